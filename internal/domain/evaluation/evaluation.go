// Package evaluation grades a case timeline against a scenario rubric.
//
// Evaluate is a pure function: it performs no I/O, holds no state between
// calls and never panics on empty or partially malformed input.
package evaluation

import (
	"github.com/okian/akut/internal/domain/actionid"
	"github.com/okian/akut/internal/domain/model"
)

// Comments for actions that were never performed or must not be performed.
const (
	CommentCriticalMissing  = "critical action never performed"
	CommentImportantMissing = "important action missing"
	CommentForbidden        = "action that should not have been performed"
)

// Evaluate grades timeline against the expected actions of s.
//
// The first logged occurrence of an action is graded. Expected actions are
// reported in scenario order; OPTIONAL and FORBIDDEN actions that were never
// performed produce no entry. Logged actions the scenario does not expect
// are returned as extra actions in timeline order.
func Evaluate(s model.Scenario, timeline []model.ActionLogEntry) model.Result {
	res := model.EmptyResult()

	first := make(map[string]int, len(timeline))
	for i := range timeline {
		id := actionid.Normalize(timeline[i].ActionID)
		if id == "" {
			continue
		}
		if _, seen := first[id]; !seen {
			first[id] = i
		}
	}

	expected := make(map[string]struct{}, len(s.ExpectedActions))
	for _, ea := range s.ExpectedActions {
		id := actionid.Normalize(ea.ActionID)
		expected[id] = struct{}{}

		idx, performed := first[id]

		if !performed {
			switch ea.Importance {
			case model.ImportanceCritical:
				res.Evaluated = append(res.Evaluated, model.EvaluatedAction{
					Expected: ea, Status: model.StatusRed, Comment: CommentCriticalMissing,
				})
			case model.ImportanceImportant:
				res.Evaluated = append(res.Evaluated, model.EvaluatedAction{
					Expected: ea, Status: model.StatusYellow, Comment: CommentImportantMissing,
				})
			}
			continue
		}

		entry := timeline[idx]
		if ea.Importance == model.ImportanceForbidden {
			res.Evaluated = append(res.Evaluated, model.EvaluatedAction{
				Expected: ea, LogEntry: &entry, Status: model.StatusRed, Comment: CommentForbidden,
			})
			continue
		}

		status, comment := model.ResolveTiming(ea).Grade(float64(entry.TimeMs) / 1000)
		res.Evaluated = append(res.Evaluated, model.EvaluatedAction{
			Expected: ea, LogEntry: &entry, Status: status, Comment: comment,
		})
	}

	for _, e := range timeline {
		if e.ActionID == "" {
			continue
		}
		if _, ok := expected[actionid.Normalize(e.ActionID)]; !ok {
			res.ExtraActions = append(res.ExtraActions, e)
		}
	}
	return res
}

// Summarize counts grades and computes a 0-100 score where GREEN is worth
// one point and YELLOW half a point per evaluated action.
func Summarize(r model.Result) model.Summary {
	var s model.Summary
	for _, ea := range r.Evaluated {
		switch ea.Status {
		case model.StatusGreen:
			s.Green++
		case model.StatusYellow:
			s.Yellow++
		case model.StatusRed:
			s.Red++
		}
	}
	s.Extra = len(r.ExtraActions)
	if total := s.Green + s.Yellow + s.Red; total > 0 {
		s.Score = 100 * (float64(s.Green) + 0.5*float64(s.Yellow)) / float64(total)
	}
	return s
}
