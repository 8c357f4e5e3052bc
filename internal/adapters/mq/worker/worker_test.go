package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/akut/internal/adapters/mq/queue"
	"github.com/okian/akut/internal/adapters/mq/worker"
	"github.com/okian/akut/internal/domain/model"
	logging "github.com/okian/akut/pkg/logger"
)

type mockQueue struct {
	ch chan model.Submission
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan model.Submission, 16)}
}

func (q *mockQueue) Dequeue(context.Context) <-chan model.Submission { return q.ch }

func (q *mockQueue) Close() error {
	close(q.ch)
	return nil
}

type mockGrader struct {
	mu     sync.Mutex
	errors map[string]error
	panics map[string]bool
}

func newMockGrader() *mockGrader {
	return &mockGrader{errors: map[string]error{}, panics: map[string]bool{}}
}

func (g *mockGrader) Grade(_ context.Context, s model.Submission) (model.Run, error) {
	g.mu.Lock()
	err, panics := g.errors[s.RunID], g.panics[s.RunID]
	g.mu.Unlock()
	if panics {
		panic("boom")
	}
	if err != nil {
		return model.Run{}, err
	}
	return model.Run{RunID: s.RunID, CaseID: s.CaseID, Summary: model.Summary{Score: 50}}, nil
}

type mockSaver struct {
	mu    sync.Mutex
	runs  map[string]model.Run
	fail  map[string]bool
	saved chan string
}

func newMockSaver() *mockSaver {
	return &mockSaver{runs: map[string]model.Run{}, fail: map[string]bool{}, saved: make(chan string, 64)}
}

func (s *mockSaver) Save(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[run.RunID] {
		return errors.New("disk full")
	}
	s.runs[run.RunID] = run
	s.saved <- run.RunID
	return nil
}

func (s *mockSaver) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[id]
	return ok
}

type failures struct {
	mu  sync.Mutex
	ids []string
	ch  chan struct{}
}

func newFailures() *failures { return &failures{ch: make(chan struct{}, 16)} }

func (f *failures) handle(_ context.Context, s model.Submission, _ error) {
	f.mu.Lock()
	f.ids = append(f.ids, s.RunID)
	f.mu.Unlock()
	f.ch <- struct{}{}
}

func waitFor[T any](ch <-chan T) bool {
	select {
	case <-ch:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := newMockQueue()
		grader := newMockGrader()
		saver := newMockSaver()
		failed := newFailures()

		w := worker.NewInMemoryWorker(q, grader, saver,
			worker.WithName("test-worker"),
			worker.WithFailureHandler(failed.handle))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a submission is graded", func() {
			q.ch <- model.Submission{RunID: "run-1", CaseID: "aks"}

			convey.Convey("Then the run is saved", func() {
				convey.So(waitFor(saver.saved), convey.ShouldBeTrue)
				convey.So(saver.has("run-1"), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When grading fails", func() {
			grader.errors["run-2"] = errors.New("unknown case")
			q.ch <- model.Submission{RunID: "run-2"}

			convey.Convey("Then the failure handler is told and nothing is saved", func() {
				convey.So(waitFor(failed.ch), convey.ShouldBeTrue)
				convey.So(failed.ids, convey.ShouldResemble, []string{"run-2"})
				convey.So(saver.has("run-2"), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When saving fails", func() {
			saver.fail["run-3"] = true
			q.ch <- model.Submission{RunID: "run-3"}

			convey.Convey("Then the failure handler is told", func() {
				convey.So(waitFor(failed.ch), convey.ShouldBeTrue)
				convey.So(failed.ids, convey.ShouldResemble, []string{"run-3"})
			})
		})

		convey.Convey("When grading panics", func() {
			grader.panics["run-4"] = true
			q.ch <- model.Submission{RunID: "run-4"}
			q.ch <- model.Submission{RunID: "run-5"}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(failed.ch), convey.ShouldBeTrue)
				convey.So(waitFor(saver.saved), convey.ShouldBeTrue)
				convey.So(saver.has("run-5"), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(waitFor(w.Done()), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		saver := newMockSaver()
		p := worker.NewPool(3, q, newMockGrader(), saver)
		p.Start(context.Background())

		convey.So(p.Size(), convey.ShouldEqual, 3)

		convey.Convey("When submissions are queued and the pool shuts down", func() {
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(context.Background(), model.Submission{RunID: fmt.Sprintf("run-%d", i)}), convey.ShouldBeNil)
			}
			err := p.Shutdown(context.Background())

			convey.Convey("Then every buffered submission is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(saver.saved), convey.ShouldEqual, 20)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPoolCancelledContext(t *testing.T) {
	convey.Convey("Given a pool whose run context is already cancelled", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		saver := newMockSaver()
		p := worker.NewPool(2, q, newMockGrader(), saver)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p.Start(ctx)

		convey.Convey("When submissions are queued and the pool shuts down", func() {
			for i := 0; i < 50; i++ {
				convey.So(q.Enqueue(context.Background(), model.Submission{RunID: fmt.Sprintf("run-%d", i)}), convey.ShouldBeNil)
			}
			convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then nothing taken off the queue is lost", func() {
				left := 0
				for range q.Dequeue(context.Background()) {
					left++
				}
				convey.So(len(saver.saved)+left, convey.ShouldEqual, 50)
			})
		})
	})
}

func TestNewPoolDefaults(t *testing.T) {
	convey.Convey("Given a non-positive worker count", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))
		p := worker.NewPool(0, newMockQueue(), newMockGrader(), newMockSaver())

		convey.Convey("Then the pool sizes itself from the CPU count", func() {
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
