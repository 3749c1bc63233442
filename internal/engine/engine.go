// Package engine executes the load commands. Every command follows the same
// protocol: look up the record, mutate a value copy, touch updated_at,
// validate, persist, then run the group-status hook and journal the event.
// A command that fails validation leaves the stored record untouched.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"loadboard/internal/config"
	"loadboard/internal/domain"
	"loadboard/internal/events"
	"loadboard/internal/repo"
	"loadboard/internal/rules"
)

type Engine struct {
	repo    repo.Repository
	journal *events.Journal
	routes  config.RoutesConfig

	// now is swappable in tests.
	now func() time.Time
}

func New(r repo.Repository, journal *events.Journal, routes config.RoutesConfig) *Engine {
	return &Engine{repo: r, journal: journal, routes: routes, now: time.Now}
}

// SetClock overrides the engine clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// CreateLoadOptions carries the caller-supplied fields of a new load. Zero
// pointers leave the matching optional fields unset.
type CreateLoadOptions struct {
	ClientName   string
	ExpectedQty  int
	Format       domain.LoadFormat
	LoadOrder    domain.LoadOrder
	VehicleID    *string
	RouteCode    *string
	RouteGroupID *string
	PalletCount  *int
	Verification *domain.VerificationStatus
	GroupID      *string
	ShiftID      *string
}

// CreateLoad builds a pending load, runs the route-conflict pre-check when a
// route code is supplied, validates and persists it.
func (e *Engine) CreateLoad(ctx context.Context, opts CreateLoadOptions) (domain.LoadRecord, error) {
	now := e.timestamp()
	l := domain.LoadRecord{
		ID:           uuid.NewString(),
		ClientName:   opts.ClientName,
		ExpectedQty:  opts.ExpectedQty,
		Format:       opts.Format,
		LoadOrder:    opts.LoadOrder,
		Status:       domain.StatusPending,
		MissingRefs:  []string{},
		VehicleID:    opts.VehicleID,
		RouteCode:    opts.RouteCode,
		RouteGroupID: opts.RouteGroupID,
		PalletCount:  opts.PalletCount,
		Verification: opts.Verification,
		GroupID:      opts.GroupID,
		ShiftID:      opts.ShiftID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if l.Format == domain.FormatLarge && l.Verification == nil {
		v := domain.VerificationUnverified
		l.Verification = &v
	}
	if opts.GroupID != nil {
		if _, err := e.GetGroup(ctx, *opts.GroupID); err != nil {
			return domain.LoadRecord{}, err
		}
	}
	if opts.ShiftID != nil {
		if _, err := e.GetShift(ctx, *opts.ShiftID); err != nil {
			return domain.LoadRecord{}, err
		}
	}
	if err := e.checkRouteConflict(ctx, l); err != nil {
		return domain.LoadRecord{}, err
	}
	if err := rules.Validate(&l); err != nil {
		return domain.LoadRecord{}, err
	}
	if err := e.repo.SaveLoad(ctx, l); err != nil {
		return domain.LoadRecord{}, err
	}
	e.syncAfterSave(ctx, l.GroupID)
	e.journal.Append("load.created", "load", l.ID, map[string]any{
		"client_name": l.ClientName,
		"format":      string(l.Format),
	})
	return l, nil
}

// GetLoad returns one load by id.
func (e *Engine) GetLoad(ctx context.Context, id string) (domain.LoadRecord, error) {
	l, err := e.repo.GetLoad(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.LoadRecord{}, domain.NotFound("load", id)
	}
	return l, err
}

// ListLoads returns every load.
func (e *Engine) ListLoads(ctx context.Context) ([]domain.LoadRecord, error) {
	return e.repo.ListLoads(ctx)
}

// AssignVehicle sets the vehicle, and optionally re-routes the load. Route
// fields are only overwritten when supplied; a vehicle-only call keeps the
// existing route. A re-route re-runs the route-conflict pre-check against the
// other active loads.
func (e *Engine) AssignVehicle(ctx context.Context, id string, vehicleID string, routeCode, routeGroupID *string) (domain.LoadRecord, error) {
	l, err := e.GetLoad(ctx, id)
	if err != nil {
		return domain.LoadRecord{}, err
	}
	if l.Status == domain.StatusComplete {
		return domain.LoadRecord{}, domain.Errorf("load %s is complete and cannot be modified", id)
	}
	l.VehicleID = &vehicleID
	rerouted := false
	if routeCode != nil {
		l.RouteCode = routeCode
		rerouted = true
	}
	if routeGroupID != nil {
		l.RouteGroupID = routeGroupID
		rerouted = true
	}
	l.Touch(e.now())
	if rerouted {
		if err := e.checkRouteConflict(ctx, l); err != nil {
			return domain.LoadRecord{}, err
		}
	}
	if err := rules.Validate(&l); err != nil {
		return domain.LoadRecord{}, err
	}
	if err := e.commitLoad(ctx, l); err != nil {
		return domain.LoadRecord{}, err
	}
	e.journal.Append("load.vehicle_assigned", "load", l.ID, map[string]any{
		"vehicle_id": vehicleID,
		"route_code": l.RouteCodeValue(),
	})
	return l, nil
}

// IncrementLoaded adds delta scanned units. A pending load moves to
// in_process on its first increment.
func (e *Engine) IncrementLoaded(ctx context.Context, id string, delta int) (domain.LoadRecord, error) {
	if delta <= 0 {
		return domain.LoadRecord{}, domain.Errorf("increment must be positive, got %d", delta)
	}
	l, err := e.GetLoad(ctx, id)
	if err != nil {
		return domain.LoadRecord{}, err
	}
	if l.Status == domain.StatusComplete {
		return domain.LoadRecord{}, domain.Errorf("load %s is complete and cannot be modified", id)
	}
	l.LoadedQty += delta
	if l.Status == domain.StatusPending {
		l.Status = domain.StatusInProcess
	}
	l.Touch(e.now())
	if err := rules.Validate(&l); err != nil {
		return domain.LoadRecord{}, err
	}
	if err := e.commitLoad(ctx, l); err != nil {
		return domain.LoadRecord{}, err
	}
	e.journal.Append("load.loaded_incremented", "load", l.ID, map[string]any{
		"delta":      delta,
		"loaded_qty": l.LoadedQty,
	})
	return l, nil
}

// SetMissing replaces the missing quantity and its reference list wholesale;
// it is not additive.
func (e *Engine) SetMissing(ctx context.Context, id string, qty int, refs []string) (domain.LoadRecord, error) {
	l, err := e.GetLoad(ctx, id)
	if err != nil {
		return domain.LoadRecord{}, err
	}
	l.MissingQty = qty
	if refs == nil {
		refs = []string{}
	}
	l.MissingRefs = refs
	l.Touch(e.now())
	if err := rules.Validate(&l); err != nil {
		return domain.LoadRecord{}, err
	}
	if err := e.commitLoad(ctx, l); err != nil {
		return domain.LoadRecord{}, err
	}
	e.journal.Append("load.missing_set", "load", l.ID, map[string]any{
		"missing_qty": qty,
		"refs":        len(refs),
	})
	return l, nil
}

// ChangeStatus moves the load through its lifecycle. There is no fixed
// transition graph: the completion invariant is the only gate, so a fully
// accounted load may complete from any state, and hold is reachable from and
// returnable to any state.
func (e *Engine) ChangeStatus(ctx context.Context, id string, next domain.LoadStatus) (domain.LoadRecord, error) {
	l, err := e.GetLoad(ctx, id)
	if err != nil {
		return domain.LoadRecord{}, err
	}
	prev := l.Status
	l.Status = next
	l.Touch(e.now())
	if err := rules.Validate(&l); err != nil {
		return domain.LoadRecord{}, err
	}
	if err := e.commitLoad(ctx, l); err != nil {
		return domain.LoadRecord{}, err
	}
	e.journal.Append("load.status_changed", "load", l.ID, map[string]any{
		"from": string(prev),
		"to":   string(next),
	})
	return l, nil
}

// SetVerification updates the verification state of a large-format load.
func (e *Engine) SetVerification(ctx context.Context, id string, v domain.VerificationStatus) (domain.LoadRecord, error) {
	l, err := e.GetLoad(ctx, id)
	if err != nil {
		return domain.LoadRecord{}, err
	}
	if l.Format != domain.FormatLarge {
		return domain.LoadRecord{}, domain.Errorf("verification applies to large-format loads only")
	}
	l.Verification = &v
	l.Touch(e.now())
	if err := rules.Validate(&l); err != nil {
		return domain.LoadRecord{}, err
	}
	if err := e.commitLoad(ctx, l); err != nil {
		return domain.LoadRecord{}, err
	}
	e.journal.Append("load.verification_set", "load", l.ID, map[string]any{
		"verification_status": string(v),
	})
	return l, nil
}

// AssignGroup attaches the load to a group, or detaches it when groupID is
// nil. Both the previous and the new group get their status re-derived.
func (e *Engine) AssignGroup(ctx context.Context, id string, groupID *string) (domain.LoadRecord, error) {
	l, err := e.GetLoad(ctx, id)
	if err != nil {
		return domain.LoadRecord{}, err
	}
	if groupID != nil {
		if _, err := e.GetGroup(ctx, *groupID); err != nil {
			return domain.LoadRecord{}, err
		}
	}
	previous := l.GroupID
	l.GroupID = groupID
	l.Touch(e.now())
	if err := rules.Validate(&l); err != nil {
		return domain.LoadRecord{}, err
	}
	if err := e.repo.SaveLoad(ctx, l); err != nil {
		return domain.LoadRecord{}, err
	}
	e.syncAfterSave(ctx, previous)
	e.syncAfterSave(ctx, groupID)
	e.journal.Append("load.group_assigned", "load", l.ID, map[string]any{
		"group_id": stringOrNil(groupID),
	})
	return l, nil
}

// DeleteLoad removes the load and re-derives its former group's status.
func (e *Engine) DeleteLoad(ctx context.Context, id string) error {
	l, err := e.GetLoad(ctx, id)
	if err != nil {
		return err
	}
	ok, err := e.repo.DeleteLoad(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("load", id)
	}
	e.syncAfterSave(ctx, l.GroupID)
	e.journal.Append("load.deleted", "load", id, nil)
	return nil
}

// commitLoad persists the load and runs the group hook for its parent.
func (e *Engine) commitLoad(ctx context.Context, l domain.LoadRecord) error {
	if err := e.repo.SaveLoad(ctx, l); err != nil {
		return err
	}
	e.syncAfterSave(ctx, l.GroupID)
	return nil
}

// syncAfterSave re-derives the parent group's status once the load write is
// durable. The command already committed at that point, so a hook failure is
// journaled instead of failed.
func (e *Engine) syncAfterSave(ctx context.Context, groupID *string) {
	if groupID == nil {
		return
	}
	if err := e.SyncGroupStatus(ctx, *groupID); err != nil {
		e.journal.Append("group.sync_failed", "group", *groupID, map[string]any{
			"error": err.Error(),
		})
	}
}

func (e *Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
