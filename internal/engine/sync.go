package engine

import (
	"context"
	"errors"

	"loadboard/internal/domain"
	"loadboard/internal/repo"
)

// SyncGroupStatus re-derives a group's status from its children and writes it
// back only when it changed. Derivation: all children complete means
// complete, any child in_process means in_process, otherwise pending. Held
// children count like their base state (they are not in_process). A group
// with no children keeps whatever status it has.
func (e *Engine) SyncGroupStatus(ctx context.Context, groupID string) error {
	g, err := e.repo.GetGroup(ctx, groupID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.NotFound("group", groupID)
	}
	if err != nil {
		return err
	}
	children, err := e.repo.ListLoadsByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}

	derived := deriveGroupStatus(children)
	if derived == g.Status {
		return nil
	}
	g.Status = derived
	g.Touch(e.now())
	if err := e.repo.SaveGroup(ctx, g); err != nil {
		return err
	}
	e.journal.Append("group.status_synced", "group", g.ID, map[string]any{
		"status": string(derived),
	})
	return nil
}

func deriveGroupStatus(children []domain.LoadRecord) domain.LoadStatus {
	allComplete := true
	anyInProcess := false
	for _, c := range children {
		if c.Status != domain.StatusComplete {
			allComplete = false
		}
		if c.Status == domain.StatusInProcess {
			anyInProcess = true
		}
	}
	switch {
	case allComplete:
		return domain.StatusComplete
	case anyInProcess:
		return domain.StatusInProcess
	default:
		return domain.StatusPending
	}
}
