package server

import (
	"loadboard/internal/domain"
)

type CreateLoadRequest struct {
	ClientName   string  `json:"client_name" example:"Mercado Norte"`
	ExpectedQty  int     `json:"expected_qty" example:"100"`
	Format       string  `json:"format" enum:"small,large"`
	LoadOrder    string  `json:"load_order" enum:"f,mf,m,mp,p"`
	VehicleID    *string `json:"vehicle_id,omitempty"`
	RouteCode    *string `json:"route_code,omitempty" example:"2601"`
	RouteGroupID *string `json:"route_group_id,omitempty"`
	PalletCount  *int    `json:"pallet_count,omitempty"`
	Verification *string `json:"verification_status,omitempty" enum:"unverified,verified"`
	GroupID      *string `json:"group_id,omitempty"`
	ShiftID      *string `json:"shift_id,omitempty"`
}

type AssignVehicleRequest struct {
	VehicleID    string  `json:"vehicle_id"`
	RouteCode    *string `json:"route_code,omitempty"`
	RouteGroupID *string `json:"route_group_id,omitempty"`
}

type IncrementLoadedRequest struct {
	Delta int `json:"delta" example:"10"`
}

type SetMissingRequest struct {
	MissingQty  int      `json:"missing_qty"`
	MissingRefs []string `json:"missing_refs,omitempty"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" enum:"pending,in_process,complete,hold"`
}

type SetVerificationRequest struct {
	VerificationStatus string `json:"verification_status" enum:"unverified,verified"`
}

type AssignGroupRequest struct {
	GroupID *string `json:"group_id"`
}

type CreateGroupRequest struct {
	VehicleID      string  `json:"vehicle_id"`
	MaxPalletCount int     `json:"max_pallet_count"`
	ShiftID        *string `json:"shift_id,omitempty"`
}

type UpdateGroupRequest struct {
	VehicleID      *string `json:"vehicle_id,omitempty"`
	MaxPalletCount *int    `json:"max_pallet_count,omitempty"`
	// Status is a manual override; the next load commit re-derives it.
	Status *string `json:"status,omitempty" enum:"pending,in_process,complete,hold"`
}

type CreateShiftRequest struct {
	Name     string `json:"name" example:"morning"`
	StartsAt string `json:"starts_at" format:"date-time"`
	EndsAt   string `json:"ends_at" format:"date-time"`
}

// LoadResponse mirrors domain.LoadRecord on the wire.
type LoadResponse = domain.LoadRecord

type GroupResponse struct {
	domain.LoadGroup
	Loads []domain.LoadRecord `json:"loads,omitempty"`
}

type ShiftResponse = domain.Shift
