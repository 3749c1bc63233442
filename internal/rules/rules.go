// Package rules holds the pure load invariants. Validate performs no I/O and
// never mutates its argument; the engine re-runs it after every field
// mutation before persisting, not only at construction.
package rules

import (
	"loadboard/internal/domain"
)

// Validate checks all load invariants and fails on the first broken rule, in
// fixed order: quantity non-negativity, total vs expected, completion
// exactness, then format-specific shape.
func Validate(l *domain.LoadRecord) error {
	if err := validateQuantities(l); err != nil {
		return err
	}
	if err := validateCompletion(l); err != nil {
		return err
	}
	return validateFormatShape(l)
}

func validateQuantities(l *domain.LoadRecord) error {
	if l.ExpectedQty < 0 {
		return domain.InvariantViolation("expected_qty must be >= 0")
	}
	if l.LoadedQty < 0 {
		return domain.InvariantViolation("loaded_qty must be >= 0")
	}
	if l.MissingQty < 0 {
		return domain.InvariantViolation("missing_qty must be >= 0")
	}
	if total := l.LoadedQty + l.MissingQty; total > l.ExpectedQty {
		return domain.InvariantViolation("loaded (%d) + missing (%d) exceeds expected (%d)",
			l.LoadedQty, l.MissingQty, l.ExpectedQty)
	}
	return nil
}

// A load may be complete only when every expected unit is accounted for.
func validateCompletion(l *domain.LoadRecord) error {
	if l.Status != domain.StatusComplete {
		return nil
	}
	if total := l.LoadedQty + l.MissingQty; total != l.ExpectedQty {
		return domain.InvariantViolation("cannot be complete: processed (%d) != expected (%d)",
			total, l.ExpectedQty)
	}
	return nil
}

func validateFormatShape(l *domain.LoadRecord) error {
	switch l.Format {
	case domain.FormatSmall:
		if l.RouteCodeValue() == "" {
			return domain.InvariantViolation("small format requires route_code")
		}
	case domain.FormatLarge:
		if l.PalletCount == nil {
			return domain.InvariantViolation("large format requires pallet_count")
		}
		if l.Verification == nil {
			return domain.InvariantViolation("large format requires verification_status")
		}
	default:
		return domain.InvariantViolation("unknown format: %q", l.Format)
	}
	return nil
}
