package scoring

import (
	"time"

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/timeline"
	"github.com/okian/akut/pkg/logger"
)

// Option applies a configuration option to the Grader.
type Option func(*Grader)

// WithEvents sets where recorded session events are read from.
func WithEvents(events Events) Option {
	return func(g *Grader) { g.events = events }
}

// WithMerger replaces the default timeline merger, e.g. one built with a
// configured event action map.
func WithMerger(m *timeline.Merger) Option {
	return func(g *Grader) {
		if m != nil {
			g.merger = m
		}
	}
}

// WithEvaluator replaces the evaluation function.
func WithEvaluator(fn func(model.Scenario, []model.ActionLogEntry) model.Result) Option {
	return func(g *Grader) {
		if fn != nil {
			g.evaluate = fn
		}
	}
}

// WithClock sets the time source stamped on graded runs.
func WithClock(now func() time.Time) Option {
	return func(g *Grader) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Grader) {
		if l != nil {
			g.log = l
		}
	}
}
