package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"loadboard/internal/domain"
)

// SQLStore implements Repository over database/sql. The same store serves
// SQLite and Postgres; rebind translates `?` placeholders for drivers that
// use positional ones.
type SQLStore struct {
	db     *sql.DB
	rebind func(string) string
}

func NewSQLStore(db *sql.DB, rebind func(string) string) *SQLStore {
	if rebind == nil {
		rebind = func(q string) string { return q }
	}
	return &SQLStore{db: db, rebind: rebind}
}

const loadColumns = `id, client_name, expected_qty, format, load_order, status,
	loaded_qty, missing_qty, missing_refs, vehicle_id, route_code,
	route_group_id, pallet_count, verification_status, group_id, shift_id,
	created_at, updated_at`

func scanLoad(row interface{ Scan(...any) error }) (domain.LoadRecord, error) {
	var l domain.LoadRecord
	var refs string
	err := row.Scan(&l.ID, &l.ClientName, &l.ExpectedQty, &l.Format, &l.LoadOrder,
		&l.Status, &l.LoadedQty, &l.MissingQty, &refs, &l.VehicleID, &l.RouteCode,
		&l.RouteGroupID, &l.PalletCount, &l.Verification, &l.GroupID, &l.ShiftID,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return domain.LoadRecord{}, err
	}
	if err := json.Unmarshal([]byte(refs), &l.MissingRefs); err != nil {
		return domain.LoadRecord{}, fmt.Errorf("load %s: bad missing_refs: %w", l.ID, err)
	}
	return l, nil
}

func (s *SQLStore) GetLoad(ctx context.Context, id string) (domain.LoadRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+loadColumns+` FROM loads WHERE id = ?`), id)
	l, err := scanLoad(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LoadRecord{}, ErrNotFound
	}
	return l, err
}

func (s *SQLStore) SaveLoad(ctx context.Context, l domain.LoadRecord) error {
	refs, err := json.Marshal(refsOrEmpty(l.MissingRefs))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE loads SET
		client_name = ?, expected_qty = ?, format = ?, load_order = ?,
		status = ?, loaded_qty = ?, missing_qty = ?, missing_refs = ?,
		vehicle_id = ?, route_code = ?, route_group_id = ?, pallet_count = ?,
		verification_status = ?, group_id = ?, shift_id = ?,
		created_at = ?, updated_at = ?
		WHERE id = ?`),
		l.ClientName, l.ExpectedQty, string(l.Format), string(l.LoadOrder),
		string(l.Status), l.LoadedQty, l.MissingQty, string(refs),
		l.VehicleID, l.RouteCode, l.RouteGroupID, l.PalletCount,
		verificationValue(l.Verification), l.GroupID, l.ShiftID,
		l.CreatedAt, l.UpdatedAt, l.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO loads (`+loadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		l.ID, l.ClientName, l.ExpectedQty, string(l.Format), string(l.LoadOrder),
		string(l.Status), l.LoadedQty, l.MissingQty, string(refs),
		l.VehicleID, l.RouteCode, l.RouteGroupID, l.PalletCount,
		verificationValue(l.Verification), l.GroupID, l.ShiftID,
		l.CreatedAt, l.UpdatedAt)
	return err
}

func (s *SQLStore) DeleteLoad(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM loads WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) ListLoads(ctx context.Context) ([]domain.LoadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loadColumns+` FROM loads ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoads(rows)
}

func (s *SQLStore) ListActiveLoadsByGroup(ctx context.Context, format domain.LoadFormat, routePrefix string, shiftID *string) ([]domain.LoadRecord, error) {
	q := `SELECT ` + loadColumns + ` FROM loads
		WHERE status != 'complete' AND format = ? AND route_code LIKE ? || '%'`
	args := []any{string(format), routePrefix}
	if shiftID == nil {
		q += ` AND shift_id IS NULL`
	} else {
		q += ` AND shift_id = ?`
		args = append(args, *shiftID)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoads(rows)
}

func (s *SQLStore) GetGroup(ctx context.Context, id string) (domain.LoadGroup, error) {
	var g domain.LoadGroup
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, vehicle_id,
		max_pallet_count, status, shift_id, created_at, updated_at
		FROM load_groups WHERE id = ?`), id).
		Scan(&g.ID, &g.VehicleID, &g.MaxPalletCount, &g.Status, &g.ShiftID,
			&g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LoadGroup{}, ErrNotFound
	}
	return g, err
}

func (s *SQLStore) SaveGroup(ctx context.Context, g domain.LoadGroup) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE load_groups SET
		vehicle_id = ?, max_pallet_count = ?, status = ?, shift_id = ?,
		created_at = ?, updated_at = ? WHERE id = ?`),
		g.VehicleID, g.MaxPalletCount, string(g.Status), g.ShiftID,
		g.CreatedAt, g.UpdatedAt, g.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO load_groups
		(id, vehicle_id, max_pallet_count, status, shift_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		g.ID, g.VehicleID, g.MaxPalletCount, string(g.Status), g.ShiftID,
		g.CreatedAt, g.UpdatedAt)
	return err
}

func (s *SQLStore) ListGroups(ctx context.Context) ([]domain.LoadGroup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, vehicle_id, max_pallet_count,
		status, shift_id, created_at, updated_at FROM load_groups ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.LoadGroup
	for rows.Next() {
		var g domain.LoadGroup
		if err := rows.Scan(&g.ID, &g.VehicleID, &g.MaxPalletCount, &g.Status,
			&g.ShiftID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (s *SQLStore) DeleteGroup(ctx context.Context, id string) (bool, error) {
	if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE loads SET group_id = NULL WHERE group_id = ?`), id); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM load_groups WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) ListLoadsByGroup(ctx context.Context, groupID string) ([]domain.LoadRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+loadColumns+` FROM loads
		WHERE group_id = ? ORDER BY created_at, id`), groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoads(rows)
}

func (s *SQLStore) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	var sh domain.Shift
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, starts_at,
		ends_at, created_at, updated_at FROM shifts WHERE id = ?`), id).
		Scan(&sh.ID, &sh.Name, &sh.StartsAt, &sh.EndsAt, &sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Shift{}, ErrNotFound
	}
	return sh, err
}

func (s *SQLStore) SaveShift(ctx context.Context, sh domain.Shift) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE shifts SET name = ?,
		starts_at = ?, ends_at = ?, created_at = ?, updated_at = ? WHERE id = ?`),
		sh.Name, sh.StartsAt, sh.EndsAt, sh.CreatedAt, sh.UpdatedAt, sh.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO shifts
		(id, name, starts_at, ends_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		sh.ID, sh.Name, sh.StartsAt, sh.EndsAt, sh.CreatedAt, sh.UpdatedAt)
	return err
}

func (s *SQLStore) ListShifts(ctx context.Context) ([]domain.Shift, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, starts_at, ends_at,
		created_at, updated_at FROM shifts ORDER BY starts_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Shift
	for rows.Next() {
		var sh domain.Shift
		if err := rows.Scan(&sh.ID, &sh.Name, &sh.StartsAt, &sh.EndsAt,
			&sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, sh)
	}
	return res, rows.Err()
}

func (s *SQLStore) DeleteShift(ctx context.Context, id string) (bool, error) {
	if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE loads SET shift_id = NULL WHERE shift_id = ?`), id); err != nil {
		return false, err
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE load_groups SET shift_id = NULL WHERE shift_id = ?`), id); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM shifts WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) Close() error { return s.db.Close() }

func collectLoads(rows *sql.Rows) ([]domain.LoadRecord, error) {
	var res []domain.LoadRecord
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func refsOrEmpty(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}

// verificationValue maps the optional enum to a nullable column value;
// drivers do not know how to bind *VerificationStatus directly.
func verificationValue(v *domain.VerificationStatus) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
