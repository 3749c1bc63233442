// Package server exposes the load engine over HTTP. Errors reach the client
// as a stable envelope: {"error": {"code", "message", "details"}}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"loadboard/internal/domain"
	"loadboard/internal/engine"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Log      *logrus.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"route_conflict"`
	Message string         `json:"message" example:"route 2602 conflicts with active route 2601 in lane 26"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Loadboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are 400 bad_request; 422 is
			// reserved for domain invariant violations.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	hcfg := huma.DefaultConfig("Loadboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerLoads(group, cfg.Engine)
	registerLoadCommands(group, cfg.Engine)
	registerGroups(group, cfg.Engine)
	registerShifts(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"duration": time.Since(start).String(),
			}).Info("request")
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps domain failures onto HTTP statuses while keeping their
// stable codes in the envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		status := http.StatusInternalServerError
		switch de.Code {
		case domain.CodeNotFound:
			status = http.StatusNotFound
		case domain.CodeInvariantViolation:
			status = http.StatusUnprocessableEntity
		case domain.CodeRouteConflict:
			status = http.StatusConflict
		case domain.CodeDomainError:
			status = http.StatusBadRequest
		}
		return newAPIError(status, de.Code, de.Message, de.Details)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return domain.CodeNotFound
	case http.StatusConflict:
		return domain.CodeRouteConflict
	case http.StatusUnprocessableEntity:
		return domain.CodeInvariantViolation
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Loadboard API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

var commandErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

func registerLoads(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-load",
		Method:        http.MethodPost,
		Path:          "/loads",
		Summary:       "Create load",
		DefaultStatus: http.StatusCreated,
		Errors:        commandErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateLoadRequest `json:"body"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		if input.Body.ClientName == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "client_name is required", nil)
		}
		format, err := domain.ParseLoadFormat(input.Body.Format)
		if err != nil {
			return nil, handleError(err)
		}
		order, err := domain.ParseLoadOrder(input.Body.LoadOrder)
		if err != nil {
			return nil, handleError(err)
		}
		opts := engine.CreateLoadOptions{
			ClientName:   input.Body.ClientName,
			ExpectedQty:  input.Body.ExpectedQty,
			Format:       format,
			LoadOrder:    order,
			VehicleID:    input.Body.VehicleID,
			RouteCode:    input.Body.RouteCode,
			RouteGroupID: input.Body.RouteGroupID,
			PalletCount:  input.Body.PalletCount,
			GroupID:      input.Body.GroupID,
			ShiftID:      input.Body.ShiftID,
		}
		if input.Body.Verification != nil {
			v, err := domain.ParseVerificationStatus(*input.Body.Verification)
			if err != nil {
				return nil, handleError(err)
			}
			opts.Verification = &v
		}
		l, err := e.CreateLoad(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-loads",
		Method:      http.MethodGet,
		Path:        "/loads",
		Summary:     "List loads",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []LoadResponse `json:"body"`
	}, error) {
		items, err := e.ListLoads(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.LoadRecord{}
		}
		return &struct {
			Body []LoadResponse `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-load",
		Method:      http.MethodGet,
		Path:        "/loads/{id}",
		Summary:     "Get load",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		l, err := e.GetLoad(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-load",
		Method:      http.MethodDelete,
		Path:        "/loads/{id}",
		Summary:     "Delete load",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteLoad(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerLoadCommands(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "assign-vehicle",
		Method:      http.MethodPost,
		Path:        "/loads/{id}/vehicle",
		Summary:     "Assign vehicle and route",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body AssignVehicleRequest `json:"body"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		if input.Body.VehicleID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "vehicle_id is required", nil)
		}
		l, err := e.AssignVehicle(ctx, input.ID, input.Body.VehicleID, input.Body.RouteCode, input.Body.RouteGroupID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "increment-loaded",
		Method:      http.MethodPost,
		Path:        "/loads/{id}/loaded",
		Summary:     "Increment loaded quantity",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body IncrementLoadedRequest `json:"body"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		l, err := e.IncrementLoaded(ctx, input.ID, input.Body.Delta)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-missing",
		Method:      http.MethodPost,
		Path:        "/loads/{id}/missing",
		Summary:     "Set missing quantity and references",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body SetMissingRequest `json:"body"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		l, err := e.SetMissing(ctx, input.ID, input.Body.MissingQty, input.Body.MissingRefs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-status",
		Method:      http.MethodPost,
		Path:        "/loads/{id}/status",
		Summary:     "Change load status",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body ChangeStatusRequest `json:"body"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		status, err := domain.ParseLoadStatus(input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := e.ChangeStatus(ctx, input.ID, status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-verification",
		Method:      http.MethodPost,
		Path:        "/loads/{id}/verification",
		Summary:     "Set verification status",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body SetVerificationRequest `json:"body"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		v, err := domain.ParseVerificationStatus(input.Body.VerificationStatus)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := e.SetVerification(ctx, input.ID, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-group",
		Method:      http.MethodPost,
		Path:        "/loads/{id}/group",
		Summary:     "Attach or detach the load's group",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body AssignGroupRequest `json:"body"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		l, err := e.AssignGroup(ctx, input.ID, input.Body.GroupID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: l}, nil
	})
}

func registerGroups(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-group",
		Method:        http.MethodPost,
		Path:          "/groups",
		Summary:       "Create load group",
		DefaultStatus: http.StatusCreated,
		Errors:        commandErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateGroupRequest `json:"body"`
	}) (*struct {
		Body GroupResponse `json:"body"`
	}, error) {
		g, err := e.CreateGroup(ctx, input.Body.VehicleID, input.Body.MaxPalletCount, input.Body.ShiftID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GroupResponse `json:"body"`
		}{Body: GroupResponse{LoadGroup: g}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-groups",
		Method:      http.MethodGet,
		Path:        "/groups",
		Summary:     "List load groups",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []GroupResponse `json:"body"`
	}, error) {
		items, err := e.ListGroups(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := []GroupResponse{}
		for _, g := range items {
			res = append(res, GroupResponse{LoadGroup: g})
		}
		return &struct {
			Body []GroupResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-group",
		Method:      http.MethodGet,
		Path:        "/groups/{id}",
		Summary:     "Get load group with its loads",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body GroupResponse `json:"body"`
	}, error) {
		g, err := e.GetGroup(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		loads, err := e.GroupLoads(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GroupResponse `json:"body"`
		}{Body: GroupResponse{LoadGroup: g, Loads: loads}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-group",
		Method:      http.MethodPatch,
		Path:        "/groups/{id}",
		Summary:     "Update load group",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body UpdateGroupRequest `json:"body"`
	}) (*struct {
		Body GroupResponse `json:"body"`
	}, error) {
		var status *domain.LoadStatus
		if input.Body.Status != nil {
			s, err := domain.ParseLoadStatus(*input.Body.Status)
			if err != nil {
				return nil, handleError(err)
			}
			status = &s
		}
		g, err := e.UpdateGroup(ctx, input.ID, input.Body.VehicleID, input.Body.MaxPalletCount, status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GroupResponse `json:"body"`
		}{Body: GroupResponse{LoadGroup: g}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-group",
		Method:      http.MethodDelete,
		Path:        "/groups/{id}",
		Summary:     "Delete load group",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteGroup(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sync-group-status",
		Method:      http.MethodPost,
		Path:        "/groups/{id}/sync",
		Summary:     "Re-derive group status from its loads",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body GroupResponse `json:"body"`
	}, error) {
		if err := e.SyncGroupStatus(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		g, err := e.GetGroup(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GroupResponse `json:"body"`
		}{Body: GroupResponse{LoadGroup: g}}, nil
	})
}

func registerShifts(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-shift",
		Method:        http.MethodPost,
		Path:          "/shifts",
		Summary:       "Create shift",
		DefaultStatus: http.StatusCreated,
		Errors:        commandErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateShiftRequest `json:"body"`
	}) (*struct {
		Body ShiftResponse `json:"body"`
	}, error) {
		sh, err := e.CreateShift(ctx, input.Body.Name, input.Body.StartsAt, input.Body.EndsAt)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ShiftResponse `json:"body"`
		}{Body: sh}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-shifts",
		Method:      http.MethodGet,
		Path:        "/shifts",
		Summary:     "List shifts",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ShiftResponse `json:"body"`
	}, error) {
		items, err := e.ListShifts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Shift{}
		}
		return &struct {
			Body []ShiftResponse `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-shift",
		Method:      http.MethodGet,
		Path:        "/shifts/{id}",
		Summary:     "Get shift",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ShiftResponse `json:"body"`
	}, error) {
		sh, err := e.GetShift(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ShiftResponse `json:"body"`
		}{Body: sh}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-shift",
		Method:      http.MethodDelete,
		Path:        "/shifts/{id}",
		Summary:     "Delete shift",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteShift(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
