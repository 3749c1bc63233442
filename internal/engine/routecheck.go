package engine

import (
	"context"
	"fmt"

	"loadboard/internal/domain"
)

// checkRouteConflict runs the staging-lane concurrency pre-check before a
// load is created or re-routed. The rules are keyed on the first two
// characters of the route code:
//
//   - exclusive prefixes: at most one active route code per lane; a second
//     route may not start until the first one's loads are complete.
//   - grouped prefixes: multiple routes may run, but the first active load
//     carrying a route_group_id fixes the lane's group; newcomers must match
//     it. Actives without a group id do not constrain anyone, and a lane with
//     no carrier accepts any newcomer.
//   - any other prefix: no restriction.
//
// Only small-format loads ride routes, so only they are checked, and only
// against active (non-complete) small loads in the same shift scope. It is a
// read-then-write pre-check, not a lock: two concurrent conflicting commands
// can both pass it. The stakes are an operator warning, not corruption, so
// the race is tolerated.
func (e *Engine) checkRouteConflict(ctx context.Context, candidate domain.LoadRecord) error {
	if candidate.Format != domain.FormatSmall {
		return nil
	}
	code := candidate.RouteCodeValue()
	if code == "" {
		return nil
	}
	prefix := domain.RoutePrefix(code)
	exclusive := containsPrefix(e.routes.ExclusivePrefixes, prefix)
	grouped := containsPrefix(e.routes.GroupedPrefixes, prefix)
	if !exclusive && !grouped {
		return nil
	}

	active, err := e.repo.ListActiveLoadsByGroup(ctx, candidate.Format, prefix, candidate.ShiftID)
	if err != nil {
		return err
	}

	groupSettled := false
	for _, other := range active {
		if other.ID == candidate.ID {
			continue
		}
		if exclusive && other.RouteCodeValue() != code {
			return domain.RouteConflict(
				fmt.Sprintf("route %s conflicts with active route %s in lane %s",
					code, other.RouteCodeValue(), prefix),
				map[string]any{
					"route_code":        code,
					"active_route_code": other.RouteCodeValue(),
					"prefix":            prefix,
					"conflicting_load":  other.ID,
				})
		}
		if grouped && !groupSettled && other.RouteGroupID != nil {
			if candidate.RouteGroupID == nil || *candidate.RouteGroupID != *other.RouteGroupID {
				return domain.RouteConflict(
					fmt.Sprintf("route %s belongs to a different route group than active loads in lane %s",
						code, prefix),
					map[string]any{
						"route_code":       code,
						"route_group_id":   stringOrNil(candidate.RouteGroupID),
						"active_group_id":  *other.RouteGroupID,
						"prefix":           prefix,
						"conflicting_load": other.ID,
					})
			}
			// The first carrier settles the lane's group.
			groupSettled = true
		}
	}
	return nil
}

func containsPrefix(prefixes []string, prefix string) bool {
	for _, p := range prefixes {
		if p == prefix {
			return true
		}
	}
	return false
}
