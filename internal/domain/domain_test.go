package domain

import (
	"testing"
	"time"
)

func TestTouchMonotonic(t *testing.T) {
	l := LoadRecord{UpdatedAt: "2026-08-01T12:00:00Z"}

	l.Touch(time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC))
	if l.UpdatedAt != "2026-08-01T13:00:00Z" {
		t.Fatalf("expected advance, got %s", l.UpdatedAt)
	}

	// A clock running behind must not move updated_at backwards.
	l.Touch(time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC))
	if l.UpdatedAt != "2026-08-01T13:00:00Z" {
		t.Fatalf("updated_at went backwards: %s", l.UpdatedAt)
	}
}

func TestRoutePrefix(t *testing.T) {
	cases := map[string]string{
		"2601": "26",
		"23":   "23",
		"9":    "9",
		"":     "",
	}
	for code, want := range cases {
		if got := RoutePrefix(code); got != want {
			t.Errorf("RoutePrefix(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestRouteCodeValue(t *testing.T) {
	var l LoadRecord
	if l.RouteCodeValue() != "" {
		t.Fatal("expected empty route code for nil")
	}
	code := "2601"
	l.RouteCode = &code
	if l.RouteCodeValue() != "2601" {
		t.Fatalf("got %q", l.RouteCodeValue())
	}
}

func TestParsers(t *testing.T) {
	if _, err := ParseLoadFormat("small"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseLoadFormat("medium"); err == nil {
		t.Fatal("expected error for unknown format")
	} else if CodeOf(err) != CodeDomainError {
		t.Fatalf("expected domain_error code, got %s", CodeOf(err))
	}
	if _, err := ParseLoadStatus("in_process"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseLoadStatus("done"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	for _, v := range []string{"f", "mf", "m", "mp", "p"} {
		if _, err := ParseLoadOrder(v); err != nil {
			t.Fatalf("order %q: %v", v, err)
		}
	}
	if _, err := ParseLoadOrder("x"); err == nil {
		t.Fatal("expected error for unknown order")
	}
	if _, err := ParseVerificationStatus("verified"); err != nil {
		t.Fatal(err)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NotFound("load", "abc")); got != CodeNotFound {
		t.Fatalf("got %s", got)
	}
	if got := CodeOf(InvariantViolation("boom")); got != CodeInvariantViolation {
		t.Fatalf("got %s", got)
	}
	if got := CodeOf(RouteConflict("clash", nil)); got != CodeRouteConflict {
		t.Fatalf("got %s", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Fatalf("expected empty code for nil, got %s", got)
	}
}
