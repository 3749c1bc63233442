// Package loadboard is a typed Go client for the Loadboard HTTP API.
package loadboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a Loadboard server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a client for a server base URL, e.g. "http://127.0.0.1:8844".
// The /v0 prefix is appended automatically unless already present.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v0") {
		baseURL += "/v0"
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is the server's error envelope surfaced as a Go error.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	ae, ok := err.(*APIError)
	return ok && ae.Code == code
}

type Load struct {
	ID           string   `json:"id"`
	ClientName   string   `json:"client_name"`
	ExpectedQty  int      `json:"expected_qty"`
	Format       string   `json:"format"`
	LoadOrder    string   `json:"load_order"`
	Status       string   `json:"status"`
	LoadedQty    int      `json:"loaded_qty"`
	MissingQty   int      `json:"missing_qty"`
	MissingRefs  []string `json:"missing_refs"`
	VehicleID    *string  `json:"vehicle_id,omitempty"`
	RouteCode    *string  `json:"route_code,omitempty"`
	RouteGroupID *string  `json:"route_group_id,omitempty"`
	PalletCount  *int     `json:"pallet_count,omitempty"`
	Verification *string  `json:"verification_status,omitempty"`
	GroupID      *string  `json:"group_id,omitempty"`
	ShiftID      *string  `json:"shift_id,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type Group struct {
	ID             string  `json:"id"`
	VehicleID      string  `json:"vehicle_id"`
	MaxPalletCount int     `json:"max_pallet_count"`
	Status         string  `json:"status"`
	ShiftID        *string `json:"shift_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	Loads          []Load  `json:"loads,omitempty"`
}

type Shift struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartsAt  string `json:"starts_at"`
	EndsAt    string `json:"ends_at"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type CreateLoadRequest struct {
	ClientName   string  `json:"client_name"`
	ExpectedQty  int     `json:"expected_qty"`
	Format       string  `json:"format"`
	LoadOrder    string  `json:"load_order"`
	VehicleID    *string `json:"vehicle_id,omitempty"`
	RouteCode    *string `json:"route_code,omitempty"`
	RouteGroupID *string `json:"route_group_id,omitempty"`
	PalletCount  *int    `json:"pallet_count,omitempty"`
	Verification *string `json:"verification_status,omitempty"`
	GroupID      *string `json:"group_id,omitempty"`
	ShiftID      *string `json:"shift_id,omitempty"`
}

type AssignVehicleRequest struct {
	VehicleID    string  `json:"vehicle_id"`
	RouteCode    *string `json:"route_code,omitempty"`
	RouteGroupID *string `json:"route_group_id,omitempty"`
}

type CreateGroupRequest struct {
	VehicleID      string  `json:"vehicle_id"`
	MaxPalletCount int     `json:"max_pallet_count"`
	ShiftID        *string `json:"shift_id,omitempty"`
}

type CreateShiftRequest struct {
	Name     string `json:"name"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
			return &APIError{Status: resp.StatusCode, Code: "http_error",
				Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
		}
		envelope.Error.Status = resp.StatusCode
		return &envelope.Error
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) CreateLoad(ctx context.Context, req CreateLoadRequest) (Load, error) {
	var l Load
	err := c.do(ctx, http.MethodPost, "/loads", req, &l)
	return l, err
}

func (c *Client) GetLoad(ctx context.Context, id string) (Load, error) {
	var l Load
	err := c.do(ctx, http.MethodGet, "/loads/"+id, nil, &l)
	return l, err
}

func (c *Client) ListLoads(ctx context.Context) ([]Load, error) {
	var loads []Load
	err := c.do(ctx, http.MethodGet, "/loads", nil, &loads)
	return loads, err
}

func (c *Client) DeleteLoad(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/loads/"+id, nil, nil)
}

func (c *Client) AssignVehicle(ctx context.Context, id string, req AssignVehicleRequest) (Load, error) {
	var l Load
	err := c.do(ctx, http.MethodPost, "/loads/"+id+"/vehicle", req, &l)
	return l, err
}

func (c *Client) IncrementLoaded(ctx context.Context, id string, delta int) (Load, error) {
	var l Load
	err := c.do(ctx, http.MethodPost, "/loads/"+id+"/loaded", map[string]int{"delta": delta}, &l)
	return l, err
}

func (c *Client) SetMissing(ctx context.Context, id string, qty int, refs []string) (Load, error) {
	var l Load
	err := c.do(ctx, http.MethodPost, "/loads/"+id+"/missing", map[string]any{
		"missing_qty":  qty,
		"missing_refs": refs,
	}, &l)
	return l, err
}

func (c *Client) ChangeStatus(ctx context.Context, id, status string) (Load, error) {
	var l Load
	err := c.do(ctx, http.MethodPost, "/loads/"+id+"/status", map[string]string{"status": status}, &l)
	return l, err
}

func (c *Client) SetVerification(ctx context.Context, id, verification string) (Load, error) {
	var l Load
	err := c.do(ctx, http.MethodPost, "/loads/"+id+"/verification",
		map[string]string{"verification_status": verification}, &l)
	return l, err
}

func (c *Client) AssignGroup(ctx context.Context, id string, groupID *string) (Load, error) {
	var l Load
	err := c.do(ctx, http.MethodPost, "/loads/"+id+"/group", map[string]any{"group_id": groupID}, &l)
	return l, err
}

func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (Group, error) {
	var g Group
	err := c.do(ctx, http.MethodPost, "/groups", req, &g)
	return g, err
}

func (c *Client) GetGroup(ctx context.Context, id string) (Group, error) {
	var g Group
	err := c.do(ctx, http.MethodGet, "/groups/"+id, nil, &g)
	return g, err
}

func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	err := c.do(ctx, http.MethodGet, "/groups", nil, &groups)
	return groups, err
}

type UpdateGroupRequest struct {
	VehicleID      *string `json:"vehicle_id,omitempty"`
	MaxPalletCount *int    `json:"max_pallet_count,omitempty"`
	Status         *string `json:"status,omitempty"`
}

func (c *Client) UpdateGroup(ctx context.Context, id string, req UpdateGroupRequest) (Group, error) {
	var g Group
	err := c.do(ctx, http.MethodPatch, "/groups/"+id, req, &g)
	return g, err
}

func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/groups/"+id, nil, nil)
}

func (c *Client) SyncGroup(ctx context.Context, id string) (Group, error) {
	var g Group
	err := c.do(ctx, http.MethodPost, "/groups/"+id+"/sync", nil, &g)
	return g, err
}

func (c *Client) CreateShift(ctx context.Context, req CreateShiftRequest) (Shift, error) {
	var sh Shift
	err := c.do(ctx, http.MethodPost, "/shifts", req, &sh)
	return sh, err
}

func (c *Client) ListShifts(ctx context.Context) ([]Shift, error) {
	var shifts []Shift
	err := c.do(ctx, http.MethodGet, "/shifts", nil, &shifts)
	return shifts, err
}

func (c *Client) DeleteShift(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/shifts/"+id, nil, nil)
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
