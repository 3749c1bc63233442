package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"loadboard/internal/domain"
	"loadboard/internal/repo"
)

// CreateGroup opens a new vehicle trip. Groups start pending and take their
// real status from their children once loads are attached.
func (e *Engine) CreateGroup(ctx context.Context, vehicleID string, maxPalletCount int, shiftID *string) (domain.LoadGroup, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return domain.LoadGroup{}, domain.Errorf("vehicle_id is required")
	}
	if maxPalletCount < 0 {
		return domain.LoadGroup{}, domain.Errorf("max_pallet_count must be >= 0")
	}
	if shiftID != nil {
		if _, err := e.GetShift(ctx, *shiftID); err != nil {
			return domain.LoadGroup{}, err
		}
	}
	now := e.timestamp()
	g := domain.LoadGroup{
		ID:             uuid.NewString(),
		VehicleID:      vehicleID,
		MaxPalletCount: maxPalletCount,
		Status:         domain.StatusPending,
		ShiftID:        shiftID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.repo.SaveGroup(ctx, g); err != nil {
		return domain.LoadGroup{}, err
	}
	e.journal.Append("group.created", "group", g.ID, map[string]any{
		"vehicle_id": vehicleID,
	})
	return g, nil
}

func (e *Engine) GetGroup(ctx context.Context, id string) (domain.LoadGroup, error) {
	g, err := e.repo.GetGroup(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.LoadGroup{}, domain.NotFound("group", id)
	}
	return g, err
}

func (e *Engine) ListGroups(ctx context.Context) ([]domain.LoadGroup, error) {
	return e.repo.ListGroups(ctx)
}

// GroupLoads returns the loads attached to a group.
func (e *Engine) GroupLoads(ctx context.Context, id string) ([]domain.LoadRecord, error) {
	if _, err := e.GetGroup(ctx, id); err != nil {
		return nil, err
	}
	return e.repo.ListLoadsByGroup(ctx, id)
}

// UpdateGroup changes the vehicle, pallet capacity or, as a manual override,
// the status. An overridden status lasts until the next child commit
// re-derives it.
func (e *Engine) UpdateGroup(ctx context.Context, id string, vehicleID *string, maxPalletCount *int, status *domain.LoadStatus) (domain.LoadGroup, error) {
	g, err := e.GetGroup(ctx, id)
	if err != nil {
		return domain.LoadGroup{}, err
	}
	if vehicleID != nil {
		if strings.TrimSpace(*vehicleID) == "" {
			return domain.LoadGroup{}, domain.Errorf("vehicle_id is required")
		}
		g.VehicleID = *vehicleID
	}
	if maxPalletCount != nil {
		if *maxPalletCount < 0 {
			return domain.LoadGroup{}, domain.Errorf("max_pallet_count must be >= 0")
		}
		g.MaxPalletCount = *maxPalletCount
	}
	if status != nil {
		g.Status = *status
	}
	g.Touch(e.now())
	if err := e.repo.SaveGroup(ctx, g); err != nil {
		return domain.LoadGroup{}, err
	}
	e.journal.Append("group.updated", "group", g.ID, nil)
	return g, nil
}

// DeleteGroup removes the group; its loads survive detached.
func (e *Engine) DeleteGroup(ctx context.Context, id string) error {
	ok, err := e.repo.DeleteGroup(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("group", id)
	}
	e.journal.Append("group.deleted", "group", id, nil)
	return nil
}

// CreateShift opens a collection period.
func (e *Engine) CreateShift(ctx context.Context, name, startsAt, endsAt string) (domain.Shift, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Shift{}, domain.Errorf("shift name is required")
	}
	if startsAt >= endsAt {
		return domain.Shift{}, domain.Errorf("shift must end after it starts")
	}
	now := e.timestamp()
	sh := domain.Shift{
		ID:        uuid.NewString(),
		Name:      name,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.repo.SaveShift(ctx, sh); err != nil {
		return domain.Shift{}, err
	}
	e.journal.Append("shift.created", "shift", sh.ID, map[string]any{
		"name": name,
	})
	return sh, nil
}

func (e *Engine) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	sh, err := e.repo.GetShift(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Shift{}, domain.NotFound("shift", id)
	}
	return sh, err
}

func (e *Engine) ListShifts(ctx context.Context) ([]domain.Shift, error) {
	return e.repo.ListShifts(ctx)
}

// DeleteShift removes the shift; loads and groups scoped to it survive
// unscoped.
func (e *Engine) DeleteShift(ctx context.Context, id string) error {
	ok, err := e.repo.DeleteShift(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("shift", id)
	}
	e.journal.Append("shift.deleted", "shift", id, nil)
	return nil
}
