package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"loadboard/internal/config"
	"loadboard/internal/engine"
	"loadboard/internal/events"
	"loadboard/internal/repo"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := repo.NewJSONStore(filepath.Join(t.TempDir(), "board.json"))
	if err != nil {
		t.Fatal(err)
	}
	routes := config.RoutesConfig{
		ExclusivePrefixes: []string{"26", "28"},
		GroupedPrefixes:   []string{"23"},
	}
	eng := engine.New(store, events.NewDiscardJournal(), routes)
	log := logrus.New()
	log.SetOutput(io.Discard)
	handler, err := New(Config{Engine: eng, Log: log})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("bad error envelope %s: %v", data, err)
	}
	return envelope.Error.Code
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, data := doJSON(t, http.MethodGet, srv.URL+"/v0/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, data)
	}
}

func TestLoadLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v0"

	resp, data := doJSON(t, http.MethodPost, base+"/loads", map[string]any{
		"client_name":  "cliente",
		"expected_qty": 100,
		"format":       "small",
		"load_order":   "m",
		"route_code":   "2601",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, data)
	}
	var load struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &load); err != nil {
		t.Fatal(err)
	}
	if load.Status != "pending" {
		t.Fatalf("new load status %s", load.Status)
	}

	resp, data = doJSON(t, http.MethodPost, fmt.Sprintf("%s/loads/%s/loaded", base, load.ID),
		map[string]int{"delta": 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("increment: %d %s", resp.StatusCode, data)
	}

	// Early completion: 422 invariant_violation.
	resp, data = doJSON(t, http.MethodPost, fmt.Sprintf("%s/loads/%s/status", base, load.ID),
		map[string]string{"status": "complete"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("early complete: %d %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "invariant_violation" {
		t.Fatalf("code %s", code)
	}

	resp, data = doJSON(t, http.MethodPost, fmt.Sprintf("%s/loads/%s/missing", base, load.ID),
		map[string]any{"missing_qty": 90, "missing_refs": []string{"box-1"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("missing: %d %s", resp.StatusCode, data)
	}

	resp, data = doJSON(t, http.MethodPost, fmt.Sprintf("%s/loads/%s/status", base, load.ID),
		map[string]string{"status": "complete"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d %s", resp.StatusCode, data)
	}
}

func TestRouteConflictReturns409(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v0"

	resp, data := doJSON(t, http.MethodPost, base+"/loads", map[string]any{
		"client_name": "a", "expected_qty": 10,
		"format": "small", "load_order": "m", "route_code": "2601",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create: %d %s", resp.StatusCode, data)
	}
	resp, data = doJSON(t, http.MethodPost, base+"/loads", map[string]any{
		"client_name": "b", "expected_qty": 10,
		"format": "small", "load_order": "m", "route_code": "2602",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("conflicting create: %d %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "route_conflict" {
		t.Fatalf("code %s", code)
	}
}

func TestNotFoundReturns404(t *testing.T) {
	srv := newTestServer(t)
	resp, data := doJSON(t, http.MethodGet, srv.URL+"/v0/loads/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "not_found" {
		t.Fatalf("code %s", code)
	}
}

func TestDomainErrorReturns400(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v0"
	resp, data := doJSON(t, http.MethodPost, base+"/loads", map[string]any{
		"client_name": "a", "expected_qty": 10,
		"format": "small", "load_order": "m", "route_code": "4101",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, data)
	}
	var load struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &load); err != nil {
		t.Fatal(err)
	}
	resp, data = doJSON(t, http.MethodPost, fmt.Sprintf("%s/loads/%s/loaded", base, load.ID),
		map[string]int{"delta": -1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", resp.StatusCode, data)
	}
	if code := errorCode(t, data); code != "domain_error" {
		t.Fatalf("code %s", code)
	}
}

func TestGroupEndpoints(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v0"

	resp, data := doJSON(t, http.MethodPost, base+"/groups", map[string]any{
		"vehicle_id": "truck-1", "max_pallet_count": 12,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group: %d %s", resp.StatusCode, data)
	}
	var group struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &group); err != nil {
		t.Fatal(err)
	}

	resp, data = doJSON(t, http.MethodPost, base+"/loads", map[string]any{
		"client_name": "a", "expected_qty": 10,
		"format": "small", "load_order": "m", "route_code": "4101",
		"group_id": group.ID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create load: %d %s", resp.StatusCode, data)
	}
	var load struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &load); err != nil {
		t.Fatal(err)
	}
	if resp, data = doJSON(t, http.MethodPost, fmt.Sprintf("%s/loads/%s/loaded", base, load.ID),
		map[string]int{"delta": 3}); resp.StatusCode != http.StatusOK {
		t.Fatalf("increment: %d %s", resp.StatusCode, data)
	}

	resp, data = doJSON(t, http.MethodGet, base+"/groups/"+group.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get group: %d %s", resp.StatusCode, data)
	}
	var got struct {
		Status string `json:"status"`
		Loads  []struct {
			ID string `json:"id"`
		} `json:"loads"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "in_process" {
		t.Fatalf("group status %s", got.Status)
	}
	if len(got.Loads) != 1 || got.Loads[0].ID != load.ID {
		t.Fatalf("embedded loads %+v", got.Loads)
	}
}

func TestShiftEndpoints(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v0"

	resp, data := doJSON(t, http.MethodPost, base+"/shifts", map[string]any{
		"name": "morning", "starts_at": "2026-08-01T06:00:00Z", "ends_at": "2026-08-01T14:00:00Z",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create shift: %d %s", resp.StatusCode, data)
	}
	var shift struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &shift); err != nil {
		t.Fatal(err)
	}

	resp, _ = doJSON(t, http.MethodDelete, base+"/shifts/"+shift.ID, nil)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete shift: %d", resp.StatusCode)
	}
	resp, data = doJSON(t, http.MethodGet, base+"/shifts/"+shift.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted shift still present: %d %s", resp.StatusCode, data)
	}
}
