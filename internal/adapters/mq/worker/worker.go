// Package worker grades queued run submissions and persists the results.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/pkg/logger"
	"github.com/okian/akut/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Grader turns a submission into a graded run.
type Grader interface {
	Grade(ctx context.Context, s model.Submission) (model.Run, error)
}

// Saver persists graded runs.
type Saver interface {
	Save(ctx context.Context, run model.Run) error
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Submission
}

// FailureHandler is told about submissions that could not be graded or saved.
type FailureHandler func(ctx context.Context, s model.Submission, err error)

// Worker processes submissions until its queue is drained or it is stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	grader    Grader
	saver     Saver
	name      string
	onFailure FailureHandler

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(queue Queue, grader Grader, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		grader:   grader,
		saver:    saver,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop. It returns when the queue channel closes,
// ctx is done, or Shutdown is called. Submissions still queued at that point
// stay queued for the remaining workers.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ch := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, s); err != nil {
				w.logger.Error(ctx, "error processing submission", logger.Error(err))
				if w.onFailure != nil {
					w.onFailure(ctx, s, err)
				}
			}
		}
	}
}

// Shutdown stops the worker without draining.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, s model.Submission) (err error) { //nolint:gocritic // hugeParam: received by value from the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		if r := recover(); r != nil {
			metrics.RecordWorkerError()
			metrics.RecordRunFailed("panic")
			err = fmt.Errorf("grading run %s panicked: %v", s.RunID, r)
		}
	}()

	run, err := w.grader.Grade(ctx, s)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordRunFailed("grade")
		metrics.RecordErrorByComponent("worker", "grade_error")
		return fmt.Errorf("grade run %s: %w", s.RunID, err)
	}

	if err := w.saver.Save(ctx, run); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordRunFailed("store")
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("save run %s: %w", s.RunID, err)
	}

	metrics.RecordRunGraded()
	w.logger.Debug(ctx, "run graded",
		logger.String("run_id", run.RunID),
		logger.String("case_id", run.CaseID),
		logger.Float64("score", run.Summary.Score),
		logger.Duration("took", time.Since(start)))
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. A count below one uses twice the CPU
// count. opts apply to every worker.
func NewPool(workerCount int, queue Queue, grader Grader, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * 2
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, grader, saver, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue (when it can be closed) and lets the workers
// drain it. Workers still busy when ctx or the pool timeout expires are
// stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(context.Background())
			timedOut++
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers stopped before draining: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
