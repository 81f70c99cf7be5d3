package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stargate/internal/domain"
	"stargate/internal/engine"
	"stargate/internal/events"
	"stargate/internal/metrics"
	"stargate/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

const kindInvalidRequest = "invalid_request"

// apiError is a failed Result with its HTTP status.
type apiError struct {
	status int
	Result
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

// New returns an HTTP handler exposing the Stargate API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	// Request decoding and validation failures use the Result envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", joinErrors(msg, errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", joinErrors(msg, errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestIDMiddleware)
	router.Use(accessLog(logger))
	router.Use(middleware.Recoverer)

	hcfg := huma.DefaultConfig("Stargate API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s := handlers{engine: cfg.Engine, log: logger}
	registerDocs(router, basePath)
	registerHealth(group)
	s.registerPeople(group)
	s.registerDuties(group)
	s.registerReferenceData(group)
	s.registerLogs(group)
	registerOpenAPI(router, api, basePath)
	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	return router, nil
}

type handlers struct {
	engine engine.Engine
	log    *slog.Logger
}

func joinErrors(msg string, errs []error) string {
	var parts []string
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	if len(parts) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(parts, "; ")
}

func newAPIError(status int, kind, message string) huma.StatusError {
	if kind == "" {
		kind = defaultKindForStatus(status)
	}
	return &apiError{
		status: status,
		Result: Result{
			Success:      false,
			Message:      message,
			ErrorKind:    kind,
			ResponseCode: status,
		},
	}
}

// handleError maps engine failure kinds onto HTTP statuses. Causes of
// unexpected failures are logged, never returned.
func (h handlers) handleError(ctx context.Context, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ee *engine.Error
	if !errors.As(err, &ee) {
		if errors.Is(err, repo.ErrNotFound) {
			return newAPIError(http.StatusNotFound, string(engine.KindNotFound), "not found")
		}
		h.log.ErrorContext(ctx, "request failed", "err", err, "request_id", events.RequestID(ctx))
		return newAPIError(http.StatusInternalServerError, string(engine.KindUnexpected), "An unexpected error occurred.")
	}
	switch ee.Kind {
	case engine.KindNotFound:
		return newAPIError(http.StatusNotFound, string(ee.Kind), ee.Message)
	case engine.KindInvalidReference:
		return newAPIError(http.StatusBadRequest, string(ee.Kind), ee.Message)
	case engine.KindConflict:
		return newAPIError(http.StatusConflict, string(ee.Kind), ee.Message)
	default:
		h.log.ErrorContext(ctx, "request failed", "err", err, "request_id", events.RequestID(ctx))
		return newAPIError(http.StatusInternalServerError, string(engine.KindUnexpected), ee.Message)
	}
}

func defaultKindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return kindInvalidRequest
	case http.StatusNotFound:
		return string(engine.KindNotFound)
	case http.StatusConflict:
		return string(engine.KindConflict)
	case http.StatusInternalServerError:
		return string(engine.KindUnexpected)
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requestIDMiddleware copies chi's request id into the audit context and
// echoes it to the client.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r.WithContext(events.WithRequestID(r.Context(), id)))
	})
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.LogAttrs(r.Context(), slog.LevelDebug, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var doc []byte
	docPath := path.Join(basePath, "openapi.json")
	r.Get(docPath, func(w http.ResponseWriter, r *http.Request) {
		if doc == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			doc, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil || oas.Components == nil || oas.Components.Schemas == nil {
		return
	}
	ref := oas.Components.Schemas.Schema(reflect.TypeOf(Result{}), true, "Result")
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: ref},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Stargate API Docs</title>
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

func (h handlers) registerPeople(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-people",
		Method:      http.MethodGet,
		Path:        "/person",
		Summary:     "List people with their current rank and duty title",
		Tags:        []string{"person"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PeopleResult `json:"body"`
	}, error) {
		people, err := h.engine.ListPeople(ctx)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body PeopleResult `json:"body"`
		}{Body: PeopleResult{Result: ok(http.StatusOK, "People retrieved successfully"), People: people}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-person",
		Method:      http.MethodGet,
		Path:        "/person/{name}",
		Summary:     "Get a person by name",
		Tags:        []string{"person"},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body PersonResult `json:"body"`
	}, error) {
		lookup, err := h.engine.PersonByName(ctx, input.Name)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		res := PersonResult{Result: ok(http.StatusOK, "Person retrieved successfully")}
		if lookup.Found {
			res.Person = &lookup.Person
		} else {
			res.Message = fmt.Sprintf("Person '%s' not found", input.Name)
		}
		return &struct {
			Body PersonResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-person",
		Method:        http.MethodPost,
		Path:          "/person",
		Summary:       "Create a person",
		Tags:          []string{"person"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreatePersonRequest `json:"body"`
	}) (*struct {
		Body PersonCreatedResult `json:"body"`
	}, error) {
		p, err := h.engine.CreatePerson(ctx, input.Body.Name)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body PersonCreatedResult `json:"body"`
		}{Body: PersonCreatedResult{Result: ok(http.StatusCreated, "Person created successfully"), ID: p.ID, Person: p}}, nil
	})
}

func (h handlers) registerDuties(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-astronaut-duties",
		Method:      http.MethodGet,
		Path:        "/astronautduty/{name}",
		Summary:     "Get a person's duty history",
		Tags:        []string{"astronautduty"},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body DutiesResult `json:"body"`
	}, error) {
		res, err := h.engine.DutiesByName(ctx, input.Name)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		out := DutiesResult{AstronautDuties: res.Duties}
		if res.Found {
			out.Result = ok(http.StatusOK, fmt.Sprintf("Astronaut duties retrieved successfully for %s", input.Name))
			out.Person = &res.Person
		} else {
			out.Result = ok(http.StatusOK, fmt.Sprintf("Person '%s' not found", input.Name))
		}
		return &struct {
			Body DutiesResult `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-astronaut-duty",
		Method:        http.MethodPost,
		Path:          "/astronautduty",
		Summary:       "Assign a new duty to a person",
		Description:   "Closes the person's current duty the day before the new start. A retirement duty also sets the career end date.",
		Tags:          []string{"astronautduty"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateDutyRequest `json:"body"`
	}) (*struct {
		Body DutyCreatedResult `json:"body"`
	}, error) {
		start, err := domain.ParseDate(input.Body.DutyStartDate)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, string(engine.KindInvalidReference), err.Error())
		}
		duty, err := h.engine.SubmitDuty(ctx, engine.DutyRequest{
			Name:          input.Body.Name,
			RankID:        input.Body.RankID,
			DutyTitleID:   input.Body.DutyTitleID,
			DutyStartDate: start,
		})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body DutyCreatedResult `json:"body"`
		}{Body: DutyCreatedResult{Result: ok(http.StatusCreated, "Astronaut duty created successfully"), ID: duty.ID, Duty: duty}}, nil
	})
}

func (h handlers) registerReferenceData(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ranks",
		Method:      http.MethodGet,
		Path:        "/referencedata/ranks",
		Summary:     "List active ranks by level",
		Tags:        []string{"referencedata"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RanksResult `json:"body"`
	}, error) {
		ranks, err := h.engine.Repo.ListRanks(ctx)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body RanksResult `json:"body"`
		}{Body: RanksResult{Result: ok(http.StatusOK, "Ranks retrieved successfully"), Ranks: ranks}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-duty-titles",
		Method:      http.MethodGet,
		Path:        "/referencedata/duty-titles",
		Summary:     "List active duty titles",
		Tags:        []string{"referencedata"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DutyTitlesResult `json:"body"`
	}, error) {
		titles, err := h.engine.Repo.ListDutyTitles(ctx)
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body DutyTitlesResult `json:"body"`
		}{Body: DutyTitlesResult{Result: ok(http.StatusOK, "Duty titles retrieved successfully"), DutyTitles: titles}}, nil
	})
}

func (h handlers) registerLogs(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/logs",
		Summary:     "List recent audit log entries",
		Tags:        []string{"logs"},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
		Level  string `query:"level" doc:"Exact level, case-insensitive"`
		Source string `query:"source" doc:"Substring of the entry source"`
	}) (*struct {
		Body LogsResult `json:"body"`
	}, error) {
		logs, err := h.engine.Repo.ListAuditEntries(ctx, repo.AuditFilters{Limit: input.Limit, Level: input.Level, Source: input.Source})
		if err != nil {
			return nil, h.handleError(ctx, err)
		}
		return &struct {
			Body LogsResult `json:"body"`
		}{Body: LogsResult{Result: ok(http.StatusOK, fmt.Sprintf("Retrieved %d log entries", len(logs))), Logs: logs, Count: len(logs)}}, nil
	})
}
