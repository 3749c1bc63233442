package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"loadboard/internal/db"
	"loadboard/internal/domain"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewSQLStore(conn, nil)
}

func TestSQLStoreLoadRoundTrip(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	pallets := 4
	v := domain.VerificationVerified
	l := testLoad("l1", "2601")
	l.PalletCount = &pallets
	l.Verification = &v
	l.MissingRefs = []string{"ref-1", "ref-2"}
	if err := s.SaveLoad(ctx, l); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetLoad(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if got.RouteCodeValue() != "2601" {
		t.Fatalf("route code lost: %+v", got)
	}
	if got.PalletCount == nil || *got.PalletCount != 4 {
		t.Fatalf("pallet count lost: %+v", got.PalletCount)
	}
	if got.Verification == nil || *got.Verification != domain.VerificationVerified {
		t.Fatalf("verification lost: %+v", got.Verification)
	}
	if len(got.MissingRefs) != 2 || got.MissingRefs[0] != "ref-1" {
		t.Fatalf("missing refs lost: %+v", got.MissingRefs)
	}

	// Nullable fields stay null.
	bare := testLoad("l2", "")
	if err := s.SaveLoad(ctx, bare); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetLoad(ctx, "l2")
	if err != nil {
		t.Fatal(err)
	}
	if got.RouteCode != nil || got.PalletCount != nil || got.Verification != nil {
		t.Fatalf("expected nil optionals, got %+v", got)
	}
	if got.MissingRefs == nil || len(got.MissingRefs) != 0 {
		t.Fatalf("expected empty refs, got %#v", got.MissingRefs)
	}
}

func TestSQLStoreUpsert(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	l := testLoad("l1", "2601")
	if err := s.SaveLoad(ctx, l); err != nil {
		t.Fatal(err)
	}
	l.LoadedQty = 7
	l.Status = domain.StatusInProcess
	if err := s.SaveLoad(ctx, l); err != nil {
		t.Fatal(err)
	}
	all, err := s.ListLoads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].LoadedQty != 7 || all[0].Status != domain.StatusInProcess {
		t.Fatalf("upsert broken: %+v", all)
	}
}

func TestSQLStoreNotFound(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()
	if _, err := s.GetLoad(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetGroup(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetShift(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLStoreActiveLoadsFilter(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	a := testLoad("a", "2601")
	b := testLoad("b", "2602")
	b.Status = domain.StatusComplete
	c := testLoad("c", "2801")
	shift := "s1"
	d := testLoad("d", "2603")
	d.ShiftID = &shift
	for _, l := range []domain.LoadRecord{a, b, c, d} {
		if err := s.SaveLoad(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	active, err := s.ListActiveLoadsByGroup(ctx, domain.FormatSmall, "26", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "a" {
		t.Fatalf("expected only load a, got %+v", active)
	}

	scoped, err := s.ListActiveLoadsByGroup(ctx, domain.FormatSmall, "26", &shift)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].ID != "d" {
		t.Fatalf("expected only load d, got %+v", scoped)
	}
}

func TestSQLStoreGroupAndShiftDetach(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	sh := domain.Shift{ID: "s1", Name: "morning",
		StartsAt: "2026-08-01T06:00:00Z", EndsAt: "2026-08-01T14:00:00Z",
		CreatedAt: "2026-08-01T05:00:00Z", UpdatedAt: "2026-08-01T05:00:00Z"}
	if err := s.SaveShift(ctx, sh); err != nil {
		t.Fatal(err)
	}
	sid := "s1"
	g := domain.LoadGroup{ID: "g1", VehicleID: "truck-1", Status: domain.StatusPending, ShiftID: &sid,
		CreatedAt: "2026-08-01T08:00:00Z", UpdatedAt: "2026-08-01T08:00:00Z"}
	if err := s.SaveGroup(ctx, g); err != nil {
		t.Fatal(err)
	}
	gid := "g1"
	l := testLoad("l1", "2601")
	l.GroupID = &gid
	l.ShiftID = &sid
	if err := s.SaveLoad(ctx, l); err != nil {
		t.Fatal(err)
	}

	ok, err := s.DeleteGroup(ctx, "g1")
	if err != nil || !ok {
		t.Fatalf("delete group: ok=%v err=%v", ok, err)
	}
	got, _ := s.GetLoad(ctx, "l1")
	if got.GroupID != nil {
		t.Fatal("load still attached to deleted group")
	}

	ok, err = s.DeleteShift(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("delete shift: ok=%v err=%v", ok, err)
	}
	got, _ = s.GetLoad(ctx, "l1")
	if got.ShiftID != nil {
		t.Fatal("load still scoped to deleted shift")
	}
}

func TestRebindPostgres(t *testing.T) {
	got := db.RebindPostgres(`UPDATE loads SET status = ? WHERE id = ?`)
	want := `UPDATE loads SET status = $1 WHERE id = $2`
	if got != want {
		t.Fatalf("got %q", got)
	}
}
