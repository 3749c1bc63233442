package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"loadboard/internal/domain"
)

// JSONStore keeps the whole board in a single JSON document on disk. Every
// operation reads and rewrites the file; adequate for a single-writer desk
// setup, not for concurrent processes.
type JSONStore struct {
	path string
}

type jsonDocument struct {
	Loads  []domain.LoadRecord `json:"loads"`
	Groups []domain.LoadGroup  `json:"groups"`
	Shifts []domain.Shift      `json:"shifts"`
}

// NewJSONStore creates the backing file (and parent directory) if missing.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &JSONStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(jsonDocument{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) read() (jsonDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return jsonDocument{}, err
	}
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return jsonDocument{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *JSONStore) write(doc jsonDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *JSONStore) GetLoad(ctx context.Context, id string) (domain.LoadRecord, error) {
	doc, err := s.read()
	if err != nil {
		return domain.LoadRecord{}, err
	}
	for _, l := range doc.Loads {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.LoadRecord{}, ErrNotFound
}

func (s *JSONStore) SaveLoad(ctx context.Context, l domain.LoadRecord) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Loads {
		if doc.Loads[i].ID == l.ID {
			doc.Loads[i] = l
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Loads = append(doc.Loads, l)
	}
	return s.write(doc)
}

func (s *JSONStore) DeleteLoad(ctx context.Context, id string) (bool, error) {
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	kept := doc.Loads[:0]
	found := false
	for _, l := range doc.Loads {
		if l.ID == id {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return false, nil
	}
	doc.Loads = kept
	return true, s.write(doc)
}

func (s *JSONStore) ListLoads(ctx context.Context) ([]domain.LoadRecord, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Loads, nil
}

func (s *JSONStore) ListActiveLoadsByGroup(ctx context.Context, format domain.LoadFormat, routePrefix string, shiftID *string) ([]domain.LoadRecord, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	var res []domain.LoadRecord
	for _, l := range doc.Loads {
		if l.Status == domain.StatusComplete {
			continue
		}
		if l.Format != format {
			continue
		}
		if !matchesShift(l.ShiftID, shiftID) {
			continue
		}
		if !strings.HasPrefix(l.RouteCodeValue(), routePrefix) {
			continue
		}
		res = append(res, l)
	}
	return res, nil
}

func (s *JSONStore) GetGroup(ctx context.Context, id string) (domain.LoadGroup, error) {
	doc, err := s.read()
	if err != nil {
		return domain.LoadGroup{}, err
	}
	for _, g := range doc.Groups {
		if g.ID == id {
			return g, nil
		}
	}
	return domain.LoadGroup{}, ErrNotFound
}

func (s *JSONStore) SaveGroup(ctx context.Context, g domain.LoadGroup) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Groups {
		if doc.Groups[i].ID == g.ID {
			doc.Groups[i] = g
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Groups = append(doc.Groups, g)
	}
	return s.write(doc)
}

func (s *JSONStore) ListGroups(ctx context.Context) ([]domain.LoadGroup, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Groups, nil
}

func (s *JSONStore) DeleteGroup(ctx context.Context, id string) (bool, error) {
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	kept := doc.Groups[:0]
	found := false
	for _, g := range doc.Groups {
		if g.ID == id {
			found = true
			continue
		}
		kept = append(kept, g)
	}
	if !found {
		return false, nil
	}
	doc.Groups = kept
	for i := range doc.Loads {
		if doc.Loads[i].GroupID != nil && *doc.Loads[i].GroupID == id {
			doc.Loads[i].GroupID = nil
		}
	}
	return true, s.write(doc)
}

func (s *JSONStore) ListLoadsByGroup(ctx context.Context, groupID string) ([]domain.LoadRecord, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	var res []domain.LoadRecord
	for _, l := range doc.Loads {
		if l.GroupID != nil && *l.GroupID == groupID {
			res = append(res, l)
		}
	}
	return res, nil
}

func (s *JSONStore) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	doc, err := s.read()
	if err != nil {
		return domain.Shift{}, err
	}
	for _, sh := range doc.Shifts {
		if sh.ID == id {
			return sh, nil
		}
	}
	return domain.Shift{}, ErrNotFound
}

func (s *JSONStore) SaveShift(ctx context.Context, sh domain.Shift) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Shifts {
		if doc.Shifts[i].ID == sh.ID {
			doc.Shifts[i] = sh
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Shifts = append(doc.Shifts, sh)
	}
	return s.write(doc)
}

func (s *JSONStore) ListShifts(ctx context.Context) ([]domain.Shift, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Shifts, nil
}

func (s *JSONStore) DeleteShift(ctx context.Context, id string) (bool, error) {
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	kept := doc.Shifts[:0]
	found := false
	for _, sh := range doc.Shifts {
		if sh.ID == id {
			found = true
			continue
		}
		kept = append(kept, sh)
	}
	if !found {
		return false, nil
	}
	doc.Shifts = kept
	for i := range doc.Loads {
		if doc.Loads[i].ShiftID != nil && *doc.Loads[i].ShiftID == id {
			doc.Loads[i].ShiftID = nil
		}
	}
	for i := range doc.Groups {
		if doc.Groups[i].ShiftID != nil && *doc.Groups[i].ShiftID == id {
			doc.Groups[i].ShiftID = nil
		}
	}
	return true, s.write(doc)
}

func (s *JSONStore) Close() error { return nil }
