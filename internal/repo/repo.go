// Package repo defines the persistence contract the engine works against and
// its backends: a file-backed JSON document store and a relational store
// (SQLite or Postgres). The backend is chosen by configuration.
package repo

import (
	"context"
	"errors"

	"loadboard/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Repository is the durable-truth collaborator of the load engine. Save
// operations are upserts by id. None of the backends sync group status on
// save; the engine invokes that hook explicitly after each commit.
type Repository interface {
	GetLoad(ctx context.Context, id string) (domain.LoadRecord, error)
	SaveLoad(ctx context.Context, l domain.LoadRecord) error
	DeleteLoad(ctx context.Context, id string) (bool, error)
	ListLoads(ctx context.Context) ([]domain.LoadRecord, error)

	// ListActiveLoadsByGroup returns non-complete loads matching format and
	// route-code prefix within one shift scope: a nil shiftID matches only
	// loads with no shift; a concrete id matches only that shift.
	ListActiveLoadsByGroup(ctx context.Context, format domain.LoadFormat, routePrefix string, shiftID *string) ([]domain.LoadRecord, error)

	GetGroup(ctx context.Context, id string) (domain.LoadGroup, error)
	SaveGroup(ctx context.Context, g domain.LoadGroup) error
	ListGroups(ctx context.Context) ([]domain.LoadGroup, error)
	// DeleteGroup detaches child loads (clears their group_id) rather than
	// deleting them.
	DeleteGroup(ctx context.Context, id string) (bool, error)
	ListLoadsByGroup(ctx context.Context, groupID string) ([]domain.LoadRecord, error)

	GetShift(ctx context.Context, id string) (domain.Shift, error)
	SaveShift(ctx context.Context, s domain.Shift) error
	ListShifts(ctx context.Context) ([]domain.Shift, error)
	// DeleteShift detaches loads and groups scoped to the shift.
	DeleteShift(ctx context.Context, id string) (bool, error)

	Close() error
}

func matchesShift(loadShift, want *string) bool {
	if want == nil {
		return loadShift == nil
	}
	return loadShift != nil && *loadShift == *want
}
