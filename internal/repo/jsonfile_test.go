package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"loadboard/internal/domain"
)

func newTestJSONStore(t *testing.T) *JSONStore {
	t.Helper()
	s, err := NewJSONStore(filepath.Join(t.TempDir(), "board.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testLoad(id, route string) domain.LoadRecord {
	l := domain.LoadRecord{
		ID:          id,
		ClientName:  "cliente",
		ExpectedQty: 10,
		Format:      domain.FormatSmall,
		LoadOrder:   domain.OrderMedio,
		Status:      domain.StatusPending,
		MissingRefs: []string{},
		CreatedAt:   "2026-08-01T08:00:00Z",
		UpdatedAt:   "2026-08-01T08:00:00Z",
	}
	if route != "" {
		l.RouteCode = &route
	}
	return l
}

func TestJSONStoreLoadRoundTrip(t *testing.T) {
	s := newTestJSONStore(t)
	ctx := context.Background()

	l := testLoad("l1", "2601")
	if err := s.SaveLoad(ctx, l); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetLoad(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ClientName != "cliente" || got.RouteCodeValue() != "2601" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Upsert replaces in place.
	l.LoadedQty = 5
	if err := s.SaveLoad(ctx, l); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetLoad(ctx, "l1")
	if got.LoadedQty != 5 {
		t.Fatalf("expected upsert, got %d", got.LoadedQty)
	}
	all, err := s.ListLoads(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected 1 load, got %d (%v)", len(all), err)
	}
}

func TestJSONStoreNotFound(t *testing.T) {
	s := newTestJSONStore(t)
	_, err := s.GetLoad(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ok, err := s.DeleteLoad(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected no-op delete, got ok=%v err=%v", ok, err)
	}
}

func TestJSONStoreActiveLoadsFilter(t *testing.T) {
	s := newTestJSONStore(t)
	ctx := context.Background()

	a := testLoad("a", "2601")
	b := testLoad("b", "2602")
	b.Status = domain.StatusComplete
	c := testLoad("c", "2801")
	d := testLoad("d", "2603")
	shift := "s1"
	d.ShiftID = &shift
	e := testLoad("e", "2604")
	e.Format = domain.FormatLarge
	for _, l := range []domain.LoadRecord{a, b, c, d, e} {
		if err := s.SaveLoad(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	// Complete loads, other prefixes, other shifts and other formats are out.
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
		t.Fatalf("expected only load d in shift, got %+v", scoped)
	}
}

func TestJSONStoreGroupDetachOnDelete(t *testing.T) {
	s := newTestJSONStore(t)
	ctx := context.Background()

	g := domain.LoadGroup{ID: "g1", VehicleID: "truck-1", Status: domain.StatusPending,
		CreatedAt: "2026-08-01T08:00:00Z", UpdatedAt: "2026-08-01T08:00:00Z"}
	if err := s.SaveGroup(ctx, g); err != nil {
		t.Fatal(err)
	}
	l := testLoad("l1", "2601")
	gid := "g1"
	l.GroupID = &gid
	if err := s.SaveLoad(ctx, l); err != nil {
		t.Fatal(err)
	}

	children, err := s.ListLoadsByGroup(ctx, "g1")
	if err != nil || len(children) != 1 {
		t.Fatalf("expected 1 child, got %d (%v)", len(children), err)
	}

	ok, err := s.DeleteGroup(ctx, "g1")
	if err != nil || !ok {
		t.Fatalf("delete failed: ok=%v err=%v", ok, err)
	}
	got, err := s.GetLoad(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if got.GroupID != nil {
		t.Fatal("load still attached to deleted group")
	}
}

func TestJSONStoreShiftDetachOnDelete(t *testing.T) {
	s := newTestJSONStore(t)
	ctx := context.Background()

	sh := domain.Shift{ID: "s1", Name: "morning",
		StartsAt: "2026-08-01T06:00:00Z", EndsAt: "2026-08-01T14:00:00Z",
		CreatedAt: "2026-08-01T05:00:00Z", UpdatedAt: "2026-08-01T05:00:00Z"}
	if err := s.SaveShift(ctx, sh); err != nil {
		t.Fatal(err)
	}
	sid := "s1"
	l := testLoad("l1", "2601")
	l.ShiftID = &sid
	g := domain.LoadGroup{ID: "g1", VehicleID: "truck-1", Status: domain.StatusPending, ShiftID: &sid,
		CreatedAt: "2026-08-01T08:00:00Z", UpdatedAt: "2026-08-01T08:00:00Z"}
	if err := s.SaveLoad(ctx, l); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	ok, err := s.DeleteShift(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("delete failed: ok=%v err=%v", ok, err)
	}
	gotLoad, _ := s.GetLoad(ctx, "l1")
	gotGroup, _ := s.GetGroup(ctx, "g1")
	if gotLoad.ShiftID != nil || gotGroup.ShiftID != nil {
		t.Fatal("shift references not detached")
	}
}

func TestMatchesShift(t *testing.T) {
	a, b := "s1", "s2"
	if !matchesShift(nil, nil) {
		t.Fatal("nil should match nil")
	}
	if matchesShift(&a, nil) || matchesShift(nil, &a) {
		t.Fatal("nil must not match a concrete shift")
	}
	if !matchesShift(&a, &a) || matchesShift(&a, &b) {
		t.Fatal("concrete shift matching broken")
	}
}
