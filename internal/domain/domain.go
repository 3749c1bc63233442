package domain

import (
	"time"
)

// LoadFormat selects which optional fields of a LoadRecord are mandatory.
type LoadFormat string

const (
	FormatSmall LoadFormat = "small"
	FormatLarge LoadFormat = "large"
)

// LoadStatus is the load lifecycle. Hold is a freeform side branch reachable
// from and returnable to any state.
type LoadStatus string

const (
	StatusPending   LoadStatus = "pending"
	StatusInProcess LoadStatus = "in_process"
	StatusComplete  LoadStatus = "complete"
	StatusHold      LoadStatus = "hold"
)

// VerificationStatus applies to large-format loads only.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
)

// LoadOrder is the physical stacking position, top to bottom:
// fondo, medio fondo, medio, medio puerta, puerta.
type LoadOrder string

const (
	OrderFondo       LoadOrder = "f"
	OrderMedioFondo  LoadOrder = "mf"
	OrderMedio       LoadOrder = "m"
	OrderMedioPuerta LoadOrder = "mp"
	OrderPuerta      LoadOrder = "p"
)

type LoadRecord struct {
	ID           string              `json:"id"`
	ClientName   string              `json:"client_name"`
	ExpectedQty  int                 `json:"expected_qty"`
	Format       LoadFormat          `json:"format" enum:"small,large"`
	LoadOrder    LoadOrder           `json:"load_order" enum:"f,mf,m,mp,p"`
	Status       LoadStatus          `json:"status" enum:"pending,in_process,complete,hold"`
	LoadedQty    int                 `json:"loaded_qty"`
	MissingQty   int                 `json:"missing_qty"`
	MissingRefs  []string            `json:"missing_refs"`
	VehicleID    *string             `json:"vehicle_id,omitempty"`
	RouteCode    *string             `json:"route_code,omitempty"`
	RouteGroupID *string             `json:"route_group_id,omitempty"`
	PalletCount  *int                `json:"pallet_count,omitempty"`
	Verification *VerificationStatus `json:"verification_status,omitempty" enum:"unverified,verified"`
	GroupID      *string             `json:"group_id,omitempty"`
	ShiftID      *string             `json:"shift_id,omitempty"`
	CreatedAt    string              `json:"created_at" format:"date-time"`
	UpdatedAt    string              `json:"updated_at" format:"date-time"`
}

// LoadGroup is a vehicle trip owning zero or more loads via their group_id
// back-reference. Its status is derived from the children, never set directly
// in steady state.
type LoadGroup struct {
	ID             string     `json:"id"`
	VehicleID      string     `json:"vehicle_id"`
	MaxPalletCount int        `json:"max_pallet_count"`
	Status         LoadStatus `json:"status" enum:"pending,in_process,complete,hold"`
	ShiftID        *string    `json:"shift_id,omitempty"`
	CreatedAt      string     `json:"created_at" format:"date-time"`
	UpdatedAt      string     `json:"updated_at" format:"date-time"`
}

// Shift is a time-bounded collection period loads and groups may be scoped to.
type Shift struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartsAt  string `json:"starts_at" format:"date-time"`
	EndsAt    string `json:"ends_at" format:"date-time"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Touch advances updated_at, keeping it monotonic non-decreasing even if the
// supplied clock runs behind a previous write.
func (l *LoadRecord) Touch(now time.Time) {
	l.UpdatedAt = laterTimestamp(l.UpdatedAt, now)
}

func (g *LoadGroup) Touch(now time.Time) {
	g.UpdatedAt = laterTimestamp(g.UpdatedAt, now)
}

// laterTimestamp relies on RFC3339 UTC strings comparing lexicographically.
func laterTimestamp(current string, now time.Time) string {
	ts := now.UTC().Format(time.RFC3339)
	if current > ts {
		return current
	}
	return ts
}

// RoutePrefix returns the group prefix of a route code: its first two
// characters, used as the staging-lane concurrency key.
func RoutePrefix(code string) string {
	if len(code) < 2 {
		return code
	}
	return code[:2]
}

// RouteCode returns the load's route code or "" when unset.
func (l *LoadRecord) RouteCodeValue() string {
	if l.RouteCode == nil {
		return ""
	}
	return *l.RouteCode
}

func ParseLoadFormat(v string) (LoadFormat, error) {
	switch LoadFormat(v) {
	case FormatSmall, FormatLarge:
		return LoadFormat(v), nil
	}
	return "", Errorf("invalid format: %q", v)
}

func ParseLoadStatus(v string) (LoadStatus, error) {
	switch LoadStatus(v) {
	case StatusPending, StatusInProcess, StatusComplete, StatusHold:
		return LoadStatus(v), nil
	}
	return "", Errorf("invalid status: %q", v)
}

func ParseLoadOrder(v string) (LoadOrder, error) {
	switch LoadOrder(v) {
	case OrderFondo, OrderMedioFondo, OrderMedio, OrderMedioPuerta, OrderPuerta:
		return LoadOrder(v), nil
	}
	return "", Errorf("invalid load_order: %q", v)
}

func ParseVerificationStatus(v string) (VerificationStatus, error) {
	switch VerificationStatus(v) {
	case VerificationUnverified, VerificationVerified:
		return VerificationStatus(v), nil
	}
	return "", Errorf("invalid verification_status: %q", v)
}
