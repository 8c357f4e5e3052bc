package scoring_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/scoring"
	"github.com/okian/akut/internal/domain/timeline"
	"github.com/okian/akut/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

func ptr(f float64) *float64 { return &f }

var aks = model.Scenario{
	ID:    "aks",
	Title: "Chest pain",
	ExpectedActions: []model.ExpectedAction{
		{ActionID: "C_BP_MEASURE", Importance: model.ImportanceCritical, MustBeforeSec: ptr(120)},
		{ActionID: "GIVE_O2", Importance: model.ImportanceImportant, RecommendedBeforeSec: ptr(60)},
	},
}

type fakeCases map[string]model.Scenario

func (f fakeCases) Get(_ context.Context, id string) (model.Scenario, error) {
	s, ok := f[id]
	if !ok {
		return model.Scenario{}, errors.New("not found")
	}
	return s, nil
}

type fakeEvents map[string][]model.SessionEvent

func (f fakeEvents) Events(_ context.Context, id string) ([]model.SessionEvent, error) {
	return f[id], nil
}

func TestGraderEvaluate(t *testing.T) {
	convey.Convey("Given a grader", t, func() {
		g := scoring.NewGrader(fakeCases{"aks": aks})
		ctx := context.Background()

		convey.Convey("When the blood pressure comes from the defibrillator", func() {
			local := []model.ActionLogEntry{{ID: "l1", TimeMs: 90_000, ActionID: "GIVE_O2"}}
			remote := []model.SessionEvent{{ID: "e1", Type: timeline.EventNIBP, TRelMs: 30_000, Payload: map[string]any{"sys": 120, "dia": 80}}}
			ev := g.Evaluate(ctx, scoring.OriginSync, aks, local, remote)

			convey.Convey("Then the merged timeline is ordered and graded", func() {
				convey.So(ev.Timeline, convey.ShouldHaveLength, 2)
				convey.So(ev.Timeline[0].ActionID, convey.ShouldEqual, "C_BP_MEASURE")
				convey.So(ev.Evaluated[0].Status, convey.ShouldEqual, model.StatusGreen)
				convey.So(ev.Evaluated[1].Status, convey.ShouldEqual, model.StatusYellow)
				convey.So(ev.Summary.Green, convey.ShouldEqual, 1)
				convey.So(ev.Summary.Yellow, convey.ShouldEqual, 1)
				convey.So(ev.Summary.Score, convey.ShouldEqual, 75)
			})
		})

		convey.Convey("When nothing was logged", func() {
			ev := g.Evaluate(ctx, scoring.OriginSync, aks, nil, nil)

			convey.Convey("Then missing actions are graded and lists are empty, not nil", func() {
				convey.So(ev.Evaluated, convey.ShouldHaveLength, 2)
				convey.So(ev.Evaluated[0].Status, convey.ShouldEqual, model.StatusRed)
				convey.So(ev.ExtraActions, convey.ShouldNotBeNil)
				convey.So(ev.Timeline, convey.ShouldNotBeNil)
				convey.So(ev.Summary.Red, convey.ShouldEqual, 1)
				convey.So(ev.Summary.Score, convey.ShouldEqual, 25)
			})
		})
	})
}

func TestGraderRecoversFromPanics(t *testing.T) {
	convey.Convey("Given an evaluator that panics", t, func() {
		g := scoring.NewGrader(fakeCases{}, scoring.WithEvaluator(func(model.Scenario, []model.ActionLogEntry) model.Result {
			panic("index out of range")
		}))

		convey.Convey("When a timeline is evaluated", func() {
			ev := g.Evaluate(context.Background(), scoring.OriginSync, aks,
				[]model.ActionLogEntry{{ID: "1", ActionID: "GIVE_O2"}}, nil)

			convey.Convey("Then an empty result is returned instead of crashing", func() {
				convey.So(ev.Evaluated, convey.ShouldBeEmpty)
				convey.So(ev.ExtraActions, convey.ShouldBeEmpty)
				convey.So(ev.Timeline, convey.ShouldHaveLength, 1)
			})
		})
	})
}

func TestGraderGrade(t *testing.T) {
	convey.Convey("Given a grader with recorded session events", t, func() {
		fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
		events := fakeEvents{"s1": {{ID: "e1", Type: timeline.EventNIBP, TRelMs: 10_000}}}
		g := scoring.NewGrader(fakeCases{"aks": aks},
			scoring.WithEvents(events),
			scoring.WithClock(func() time.Time { return fixed }))
		ctx := context.Background()

		convey.Convey("When a submission without remote events names the session", func() {
			run, err := g.Grade(ctx, model.Submission{RunID: "r1", OwnerID: "u1", CaseID: "aks", SessionID: "s1"})

			convey.Convey("Then the recorded events are merged", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(run.CaseTitle, convey.ShouldEqual, "Chest pain")
				convey.So(run.Timeline, convey.ShouldHaveLength, 1)
				convey.So(run.Result.Evaluated[0].Status, convey.ShouldEqual, model.StatusGreen)
				convey.So(run.CreatedAt, convey.ShouldEqual, fixed)
			})
		})

		convey.Convey("When the submission brings its own remote events", func() {
			run, err := g.Grade(ctx, model.Submission{RunID: "r2", CaseID: "aks", SessionID: "s1", RemoteEvents: []model.SessionEvent{}})

			convey.Convey("Then the session log is not consulted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(run.Timeline, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the case is unknown", func() {
			_, err := g.Grade(ctx, model.Submission{RunID: "r3", CaseID: "nope"})

			convey.Convey("Then ErrUnknownCase is returned", func() {
				convey.So(errors.Is(err, scoring.ErrUnknownCase), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the run id is missing", func() {
			_, err := g.Grade(ctx, model.Submission{CaseID: "aks"})

			convey.Convey("Then ErrMissingRunID is returned", func() {
				convey.So(errors.Is(err, scoring.ErrMissingRunID), convey.ShouldBeTrue)
			})
		})
	})
}

func TestGraderEventActionOverrides(t *testing.T) {
	convey.Convey("Given a merger that maps a custom device event", t, func() {
		m := timeline.NewMerger(timeline.WithActionMap(map[string]string{"DEFIB_PACING": "C_PACING"}))
		s := model.Scenario{ID: "brady", ExpectedActions: []model.ExpectedAction{{ActionID: "C_PACING", Importance: model.ImportanceCritical}}}
		g := scoring.NewGrader(fakeCases{}, scoring.WithMerger(m))

		ev := g.Evaluate(context.Background(), scoring.OriginSync, s, nil,
			[]model.SessionEvent{{ID: "p", Type: "DEFIB_PACING", TRelMs: 1000}})

		convey.Convey("Then the mapped action is credited", func() {
			convey.So(ev.Evaluated[0].Status, convey.ShouldEqual, model.StatusGreen)
		})
	})
}
