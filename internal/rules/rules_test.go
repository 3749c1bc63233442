package rules

import (
	"errors"
	"testing"

	"loadboard/internal/domain"
)

func smallLoad() domain.LoadRecord {
	route := "2601"
	return domain.LoadRecord{
		ID:          "l1",
		ClientName:  "cliente",
		ExpectedQty: 100,
		Format:      domain.FormatSmall,
		LoadOrder:   domain.OrderMedio,
		Status:      domain.StatusPending,
		RouteCode:   &route,
	}
}

func largeLoad() domain.LoadRecord {
	pallets := 4
	v := domain.VerificationUnverified
	return domain.LoadRecord{
		ID:           "l2",
		ClientName:   "cliente",
		ExpectedQty:  40,
		Format:       domain.FormatLarge,
		LoadOrder:    domain.OrderFondo,
		Status:       domain.StatusPending,
		PalletCount:  &pallets,
		Verification: &v,
	}
}

func TestValidateOK(t *testing.T) {
	l := smallLoad()
	if err := Validate(&l); err != nil {
		t.Fatal(err)
	}
	g := largeLoad()
	if err := Validate(&g); err != nil {
		t.Fatal(err)
	}
}

func TestNegativeQuantities(t *testing.T) {
	for _, mutate := range []func(*domain.LoadRecord){
		func(l *domain.LoadRecord) { l.ExpectedQty = -1 },
		func(l *domain.LoadRecord) { l.LoadedQty = -1 },
		func(l *domain.LoadRecord) { l.MissingQty = -1 },
	} {
		l := smallLoad()
		mutate(&l)
		err := Validate(&l)
		if domain.CodeOf(err) != domain.CodeInvariantViolation {
			t.Fatalf("expected invariant_violation, got %v", err)
		}
	}
}

func TestTotalExceedsExpected(t *testing.T) {
	l := smallLoad()
	l.LoadedQty = 90
	l.MissingQty = 20
	err := Validate(&l)
	if domain.CodeOf(err) != domain.CodeInvariantViolation {
		t.Fatalf("expected invariant_violation, got %v", err)
	}
}

func TestCompletionExactness(t *testing.T) {
	l := smallLoad()
	l.Status = domain.StatusComplete
	l.LoadedQty = 10
	if err := Validate(&l); domain.CodeOf(err) != domain.CodeInvariantViolation {
		t.Fatalf("under-processed load accepted as complete: %v", err)
	}

	l.LoadedQty = 10
	l.MissingQty = 90
	if err := Validate(&l); err != nil {
		t.Fatalf("fully accounted load rejected: %v", err)
	}
}

func TestSmallFormatRequiresRoute(t *testing.T) {
	l := smallLoad()
	l.RouteCode = nil
	if err := Validate(&l); domain.CodeOf(err) != domain.CodeInvariantViolation {
		t.Fatalf("expected invariant_violation, got %v", err)
	}
	empty := ""
	l.RouteCode = &empty
	if err := Validate(&l); domain.CodeOf(err) != domain.CodeInvariantViolation {
		t.Fatalf("empty route code accepted: %v", err)
	}
}

func TestLargeFormatShape(t *testing.T) {
	l := largeLoad()
	l.PalletCount = nil
	if err := Validate(&l); domain.CodeOf(err) != domain.CodeInvariantViolation {
		t.Fatalf("expected invariant_violation for missing pallet_count, got %v", err)
	}
	l = largeLoad()
	l.Verification = nil
	if err := Validate(&l); domain.CodeOf(err) != domain.CodeInvariantViolation {
		t.Fatalf("expected invariant_violation for missing verification, got %v", err)
	}
}

// Quantity rules fire before format shape rules.
func TestFirstFailureOrder(t *testing.T) {
	l := smallLoad()
	l.RouteCode = nil
	l.LoadedQty = 200
	err := Validate(&l)
	if err == nil {
		t.Fatal("expected error")
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if de.Message == "small format requires route_code" {
		t.Fatal("format rule fired before quantity rule")
	}
}
