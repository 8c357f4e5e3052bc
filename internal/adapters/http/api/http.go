// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/okian/akut/internal/domain/dedupe"
	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/scenario"
	"github.com/okian/akut/internal/domain/types"
	"github.com/okian/akut/pkg/logger"
)

const (
	defaultListLimit = 20
	defaultMaxLimit  = 100
)

// CaseDependencies exposes the scenario catalog.
type CaseDependencies interface {
	ListCases(ctx context.Context) []types.CaseSummary
	GetCase(ctx context.Context, caseID string) (model.Scenario, error)
	CaseIssues(ctx context.Context, caseID string) ([]scenario.Issue, error)
	CaseGraph(ctx context.Context, caseID string) (string, error)
}

// EvaluateDependencies grades a timeline synchronously.
type EvaluateDependencies interface {
	Evaluate(ctx context.Context, req types.EvaluateRequest) (types.Evaluation, error)
}

// SessionDependencies records device events per session.
type SessionDependencies interface {
	dedupe.Deduper
	AppendSessionEvent(ctx context.Context, sessionID string, ev model.SessionEvent) error
	SessionEvents(ctx context.Context, sessionID string) ([]model.SessionEvent, error)
	SessionRuns(ctx context.Context, sessionID string) ([]model.Run, error)
}

// RunDependencies accepts run submissions and reads stored runs.
type RunDependencies interface {
	dedupe.Deduper
	// Enqueue pushes a submission for async grading.
	Enqueue(ctx context.Context, s model.Submission) error
	ListRuns(ctx context.Context, ownerID string, limit int) ([]model.Run, error)
	GetRun(ctx context.Context, runID string) (model.Run, error)
	DeleteRun(ctx context.Context, runID string) error
}

// LeaderboardDependencies ranks stored runs.
type LeaderboardDependencies interface {
	TopN(ctx context.Context, caseID string, n int) ([]types.Entry, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CaseDependencies
	EvaluateDependencies
	SessionDependencies
	RunDependencies
	LeaderboardDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	casesHandler       *CasesHandler
	evaluateHandler    *EvaluateHandler
	sessionsHandler    *SessionsHandler
	runsHandler        *RunsHandler
	leaderboardHandler *LeaderboardHandler
	schemaHandler      *SchemaHandler

	log logger.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxLimit int
}

// WithMaxLimit caps limit query parameters.
func WithMaxLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		casesHandler:       NewCasesHandler(deps),
		evaluateHandler:    NewEvaluateHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps),
		runsHandler:        NewRunsHandler(deps, cfg.maxLimit),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		schemaHandler:      NewSchemaHandler(),
		log:                logger.Named("http"),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(chimw.RequestID, chimw.RealIP, s.Recoverer, MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Get("/schema/scenario", s.schemaHandler.HandleScenarioSchema)

	r.Route("/cases", func(r chi.Router) {
		r.Get("/", s.casesHandler.HandleList)
		r.Get("/{caseID}", s.casesHandler.HandleGet)
		r.Get("/{caseID}/lint", s.casesHandler.HandleLint)
		r.Get("/{caseID}/graph", s.casesHandler.HandleGraph)
	})

	r.Post("/evaluate", s.evaluateHandler.HandleEvaluate)

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/events", s.sessionsHandler.HandlePostEvent)
		r.Get("/events", s.sessionsHandler.HandleListEvents)
		r.Get("/runs", s.sessionsHandler.HandleListRuns)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.runsHandler.HandleSubmit)
		r.Get("/", s.runsHandler.HandleList)
		r.Get("/{runID}", s.runsHandler.HandleGet)
		r.Delete("/{runID}", s.runsHandler.HandleDelete)
	})

	r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
}

// Handler returns a fresh router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErr picks the status from the error kind.
func writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// parseLimit reads the limit query parameter: missing means def, anything
// that is not a positive integer is a bad request.
func parseLimit(r *http.Request, def, maxLimit int) (int, string, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(def, maxLimit), "", true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, "bad_request", false
	}
	if n > maxLimit {
		return 0, "limit_exceeded", false
	}
	return n, "", true
}
