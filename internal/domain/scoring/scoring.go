// Package scoring grades trainee timelines against scenarios: it merges
// device events into the local log, evaluates the merged timeline and
// summarizes the result.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/akut/internal/domain/evaluation"
	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/timeline"
	"github.com/okian/akut/internal/domain/types"
	"github.com/okian/akut/pkg/logger"
	"github.com/okian/akut/pkg/metrics"
)

// Evaluation origins used as metric labels.
const (
	OriginSync   = "sync"
	OriginWorker = "worker"
)

// Cases looks scenarios up by case id.
type Cases interface {
	Get(ctx context.Context, caseID string) (model.Scenario, error)
}

// Events returns the recorded device events of a session.
type Events interface {
	Events(ctx context.Context, sessionID string) ([]model.SessionEvent, error)
}

// Grader turns timelines into graded results.
type Grader struct {
	cases    Cases
	events   Events
	merger   *timeline.Merger
	evaluate func(model.Scenario, []model.ActionLogEntry) model.Result
	now      func() time.Time
	log      logger.Logger
}

// NewGrader creates a grader resolving case ids through cases.
func NewGrader(cases Cases, opts ...Option) *Grader {
	g := &Grader{
		cases:    cases,
		merger:   timeline.NewMerger(),
		evaluate: evaluation.Evaluate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Named("grader")
	}
	return g
}

// RemoteEvents returns the device events to merge: remote itself when not
// nil, otherwise the session's recorded events.
func (g *Grader) RemoteEvents(ctx context.Context, sessionID string, remote []model.SessionEvent) ([]model.SessionEvent, error) {
	if remote != nil || sessionID == "" || g.events == nil {
		return remote, nil
	}
	evs, err := g.events.Events(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s events: %w", sessionID, err)
	}
	return evs, nil
}

// Evaluate merges remote into local, grades the merged timeline against s
// and summarizes it. It never fails: a panic inside the evaluator is logged,
// counted and turned into an empty result.
func (g *Grader) Evaluate(ctx context.Context, origin string, s model.Scenario, local []model.ActionLogEntry, remote []model.SessionEvent) types.Evaluation {
	start := time.Now()

	tr := g.merger.Translator()
	for _, ev := range remote {
		_, mapped := tr.ActionID(ev.Type)
		metrics.RecordRemoteEventMerged(mapped)
	}
	merged := g.merger.Merge(local, remote)

	res := g.safeEvaluate(ctx, s, merged)
	sum := evaluation.Summarize(res)

	metrics.RecordEvaluation(origin, float64(time.Since(start).Microseconds())/1000)
	for _, ea := range res.Evaluated {
		if err := metrics.RecordGrade(string(ea.Status)); err != nil {
			g.log.Warn(ctx, "unexpected grade status", logger.Error(err))
		}
	}
	metrics.RecordExtraActions(len(res.ExtraActions))

	return types.Evaluation{
		Timeline:     merged,
		Evaluated:    res.Evaluated,
		ExtraActions: res.ExtraActions,
		Summary:      sum,
	}
}

func (g *Grader) safeEvaluate(ctx context.Context, s model.Scenario, tl []model.ActionLogEntry) (res model.Result) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordEvaluatorRecovered()
			g.log.Warn(ctx, "evaluator panicked; returning empty result",
				logger.String("case_id", s.ID),
				logger.Any("panic", r))
			res = model.EmptyResult()
		}
	}()

	res = g.evaluate(s, tl)
	if res.Evaluated == nil {
		res.Evaluated = []model.EvaluatedAction{}
	}
	if res.ExtraActions == nil {
		res.ExtraActions = []model.ActionLogEntry{}
	}
	return res
}

// Grade implements the worker grader: it resolves the case, collects the
// session's device events when none were submitted and returns the graded run.
func (g *Grader) Grade(ctx context.Context, sub model.Submission) (model.Run, error) { //nolint:gocritic // hugeParam: mirrors the queue element
	if sub.RunID == "" {
		return model.Run{}, ErrMissingRunID
	}
	s, err := g.cases.Get(ctx, sub.CaseID)
	if err != nil {
		return model.Run{}, fmt.Errorf("%w %q: %w", ErrUnknownCase, sub.CaseID, err)
	}
	remote, err := g.RemoteEvents(ctx, sub.SessionID, sub.RemoteEvents)
	if err != nil {
		return model.Run{}, err
	}

	ev := g.Evaluate(ctx, OriginWorker, s, sub.Timeline, remote)
	metrics.RecordRunScore(ev.Summary.Score)

	created := sub.SubmittedAt
	if created.IsZero() {
		created = g.now()
	}
	return model.Run{
		RunID:       sub.RunID,
		OwnerID:     sub.OwnerID,
		OrgID:       sub.OrgID,
		SessionID:   sub.SessionID,
		CaseID:      sub.CaseID,
		CaseTitle:   s.Title,
		TraineeName: sub.TraineeName,
		TotalTimeMs: sub.TotalTimeMs,
		Timeline:    ev.Timeline,
		Result:      model.Result{Evaluated: ev.Evaluated, ExtraActions: ev.ExtraActions},
		Summary:     ev.Summary,
		CreatedAt:   created.UTC(),
	}, nil
}
