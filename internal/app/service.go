// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/okian/akut/internal/adapters/catalog"
	eventqueue "github.com/okian/akut/internal/adapters/mq/queue"
	workerpool "github.com/okian/akut/internal/adapters/mq/worker"
	"github.com/okian/akut/internal/adapters/repository"
	"github.com/okian/akut/internal/config"
	"github.com/okian/akut/internal/domain/dedupe"
	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/scenario"
	"github.com/okian/akut/internal/domain/scoring"
	"github.com/okian/akut/internal/domain/timeline"
	"github.com/okian/akut/internal/domain/types"
	"github.com/okian/akut/pkg/logger"
	"github.com/okian/akut/pkg/metrics"
)

// Service implements the API dependencies for the grading service.
type Service struct {
	mu sync.RWMutex

	// Core components
	cases    *catalog.Catalog
	store    repository.Store
	events   repository.EventLog
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	grader   *scoring.Grader
	pool     *workerpool.Pool
	closeFns []func() error

	// stopWorkers ends the pool's context once Stop has drained the queue.
	stopWorkers context.CancelFunc

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	storeDriver string
	sqlitePath  string
	actionMap   map[string]string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of grading workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCatalog sets the scenario catalog. An empty catalog is used otherwise.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.cases = c
		}
	}
}

// WithSQLite persists runs and session events in the database at path.
func WithSQLite(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.storeDriver = config.StoreSQLite
			s.sqlitePath = path
		}
	}
}

// WithActionMap overrides device event translations.
func WithActionMap(m map[string]string) Option {
	return func(s *Service) { s.actionMap = m }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig maps process configuration onto service options.
func FromConfig(cfg *config.Config) []Option {
	opts := []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithActionMap(cfg.EventActionMap),
	}
	if cfg.StoreDriver == config.StoreSQLite {
		opts = append(opts, WithSQLite(cfg.SQLitePath))
	}
	return opts
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10_000,
		dedupeSize:  100_000,
		storeDriver: config.StoreMemory,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cases == nil {
		s.cases = catalog.New()
	}
	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start opens the stores and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting grading service...")

	switch s.storeDriver {
	case config.StoreSQLite:
		db, err := repository.NewSQLiteStore(ctx, s.sqlitePath)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		s.store, s.events = db, db
		s.closeFns = append(s.closeFns, db.Close)
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.sqlitePath))
	default:
		treap := repository.NewTreapStore(ctx)
		s.store, s.events = treap, repository.NewMemoryEventLog()
		s.closeFns = append(s.closeFns, treap.Close)
		s.logger.Info(ctx, "using treap store")
	}

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.grader = scoring.NewGrader(s.cases,
		scoring.WithEvents(s.events),
		scoring.WithMerger(timeline.NewMerger(timeline.WithActionMap(s.actionMap))),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.grader, s.store,
		workerpool.WithFailureHandler(s.gradeFailed),
	)
	// Workers outlive the caller's context so Stop can drain accepted runs.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWorkers = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "grading service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("cases", s.cases.Count()),
	)
	return nil
}

// Stop drains the queue, stops the workers and closes the stores.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping grading service...")

	var errs []error
	drainErr := s.pool.Shutdown(ctx)
	if drainErr != nil {
		errs = append(errs, drainErr)
	}
	s.stopWorkers()
	for _, closeFn := range s.closeFns {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closeFns = nil

	s.started = false
	s.logger.Info(ctx, "grading service stopped",
		logger.Bool("drained", drainErr == nil),
		logger.Int64("dedupeEntries", s.deduper.Size()))
	return errors.Join(errs...)
}

// gradeFailed releases the run id so the client can resubmit it.
func (s *Service) gradeFailed(ctx context.Context, sub model.Submission, err error) { //nolint:gocritic // hugeParam: matches workerpool.FailureHandler
	s.deduper.Unrecord(ctx, dedupe.Key("run", sub.RunID))
	s.logger.Warn(ctx, "run released for resubmission",
		logger.String("run_id", sub.RunID),
		logger.Error(err))
}

// SeenAndRecord atomically checks if a key was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes a key from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// ready reports ErrClosed unless the service is between Start and Stop.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return eventqueue.ErrClosed
	}
	return nil
}

// ListCases returns the catalog summaries ordered by case id.
func (s *Service) ListCases(ctx context.Context) []types.CaseSummary {
	return s.cases.List(ctx)
}

// GetCase returns a decoded catalog scenario.
func (s *Service) GetCase(ctx context.Context, caseID string) (model.Scenario, error) {
	return s.cases.Get(ctx, caseID)
}

// CaseIssues returns the lint findings recorded when the case was added.
func (s *Service) CaseIssues(_ context.Context, caseID string) ([]scenario.Issue, error) {
	return s.cases.Issues(caseID)
}

// CaseGraph renders the case's state machine as DOT.
func (s *Service) CaseGraph(ctx context.Context, caseID string) (string, error) {
	sc, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return "", err
	}
	return scenario.Graph(sc)
}

// Evaluate grades a timeline synchronously against a catalog case or an
// inline scenario document. Lint problems of an inline document are logged
// but never block grading.
func (s *Service) Evaluate(ctx context.Context, req types.EvaluateRequest) (types.Evaluation, error) {
	if err := s.ready(); err != nil {
		return types.Evaluation{}, err
	}
	var sc model.Scenario
	switch {
	case req.Scenario != nil:
		if issues := scenario.Lint(req.Scenario); len(issues) > 0 {
			s.logger.Debug(ctx, "inline scenario has lint issues", logger.Int("issues", len(issues)))
		}
		sc = model.DecodeScenario(req.Scenario)
	case req.CaseID != "":
		var err error
		if sc, err = s.cases.Get(ctx, req.CaseID); err != nil {
			return types.Evaluation{}, err
		}
	default:
		return types.Evaluation{}, fmt.Errorf("%w: caseId or scenario is required", model.ErrInvalidDocument)
	}

	remote, err := s.grader.RemoteEvents(ctx, req.SessionID, req.RemoteEvents)
	if err != nil {
		return types.Evaluation{}, err
	}
	return s.grader.Evaluate(ctx, scoring.OriginSync, sc, req.Timeline, remote), nil
}

// AppendSessionEvent records a device event for a session.
func (s *Service) AppendSessionEvent(ctx context.Context, sessionID string, ev model.SessionEvent) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.events.Append(ctx, sessionID, ev)
}

// SessionEvents returns a session's device events in time order.
func (s *Service) SessionEvents(ctx context.Context, sessionID string) ([]model.SessionEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.events.Events(ctx, sessionID)
}

// SessionRuns returns the graded runs of a session, newest first.
func (s *Service) SessionRuns(ctx context.Context, sessionID string) ([]model.Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListBySession(ctx, sessionID)
}

// Enqueue submits a run for asynchronous grading.
func (s *Service) Enqueue(ctx context.Context, sub model.Submission) error { //nolint:gocritic // hugeParam: sent by value to the queue
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.cases.Get(ctx, sub.CaseID); err != nil {
		return fmt.Errorf("%w: %q", scoring.ErrUnknownCase, sub.CaseID)
	}
	return s.queue.Enqueue(ctx, sub)
}

// ListRuns returns up to limit runs of an owner, newest first.
func (s *Service) ListRuns(ctx context.Context, ownerID string, limit int) ([]model.Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListByOwner(ctx, ownerID, limit)
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, runID string) (model.Run, error) {
	if err := s.ready(); err != nil {
		return model.Run{}, err
	}
	return s.store.Get(ctx, runID)
}

// DeleteRun removes a stored run.
func (s *Service) DeleteRun(ctx context.Context, runID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.Delete(ctx, runID)
}

// TopN returns the top n runs, optionally restricted to one case.
func (s *Service) TopN(ctx context.Context, caseID string, n int) ([]types.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.TopN(ctx, caseID, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"storeDriver": s.storeDriver,
		"cases":       s.cases.Count(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		runs := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["runs"] = runs
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRepositoryRecordsTotal(runs)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
