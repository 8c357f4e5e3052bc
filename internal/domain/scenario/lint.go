// Package scenario validates authored scenario documents and renders their
// narrative state machine.
package scenario

import (
	"fmt"
	"math"

	"github.com/okian/akut/internal/domain/actionid"
	"github.com/okian/akut/internal/domain/model"
)

// Severity of a lint issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in a scenario document.
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

type linter struct {
	issues []Issue
}

func (l *linter) errorf(path, format string, args ...any) {
	l.issues = append(l.issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (l *linter) warnf(path, format string, args ...any) {
	l.issues = append(l.issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Lint checks a raw scenario document the way it is authored. Grading
// never fails on these problems, so they are reported at load time instead.
func Lint(doc map[string]any) []Issue {
	l := &linter{issues: []Issue{}}
	if doc == nil {
		l.errorf("", "document is empty")
		return l.issues
	}

	if model.String(doc["id"]) == "" {
		l.errorf("id", "missing scenario id")
	}
	if model.String(doc["title"]) == "" {
		l.warnf("title", "missing title")
	}

	states := l.lintStates(doc)
	l.lintTransitions(doc, states)
	l.lintExpectedActions(doc)
	return l.issues
}

func (l *linter) lintStates(doc map[string]any) map[string]bool {
	states := map[string]bool{}
	for i, raw := range model.List(doc["states"]) {
		path := fmt.Sprintf("states[%d]", i)
		m, ok := model.Map(raw)
		if !ok {
			l.errorf(path, "state is not an object")
			continue
		}
		id := model.String(m["id"])
		switch {
		case id == "":
			l.errorf(path+".id", "missing state id")
		case states[id]:
			l.errorf(path+".id", "duplicate state id %q", id)
		default:
			states[id] = true
		}
	}

	initial := model.String(doc["initialStateId"])
	if len(states) > 0 && !states[initial] {
		l.errorf("initialStateId", "initial state %q is not defined", initial)
	}
	return states
}

func (l *linter) lintTransitions(doc map[string]any, states map[string]bool) {
	for i, raw := range model.List(doc["transitions"]) {
		path := fmt.Sprintf("transitions[%d]", i)
		m, ok := model.Map(raw)
		if !ok {
			l.errorf(path, "transition is not an object")
			continue
		}
		for _, key := range []string{"fromStateId", "toStateId"} {
			if id := model.String(m[key]); !states[id] {
				l.warnf(path+"."+key, "unknown state %q", id)
			}
		}
		if actionid.Normalize(m["actionId"]) == "" {
			l.warnf(path+".actionId", "transition has no action id")
		}
	}
}

func (l *linter) lintExpectedActions(doc map[string]any) {
	raw, present := doc["expectedActions"]
	if !present {
		l.warnf("expectedActions", "no expected actions; every run will be empty")
		return
	}
	list, ok := raw.([]any)
	if !ok {
		l.errorf("expectedActions", "expectedActions is not an array")
		return
	}

	seen := map[string]int{}
	for i, item := range list {
		path := fmt.Sprintf("expectedActions[%d]", i)
		m, ok := model.Map(item)
		if !ok {
			l.errorf(path, "expected action is not an object")
			continue
		}

		rawID, isString := m["actionId"].(string)
		id := actionid.Normalize(m["actionId"])
		switch {
		case !isString:
			l.errorf(path+".actionId", "action id is not a string")
		case id == "":
			l.errorf(path+".actionId", "action id is empty")
		case rawID != id:
			l.warnf(path+".actionId", "action id %q has wrapping quotes or whitespace", rawID)
		}
		if id != "" {
			if prev, dup := seen[id]; dup {
				l.warnf(path+".actionId", "action %q already expected at expectedActions[%d]; only the first log entry is graded for both", id, prev)
			} else {
				seen[id] = i
			}
		}

		imp := model.Importance(model.String(m["importance"]))
		switch {
		case m["importance"] == nil:
			l.warnf(path+".importance", "no importance; the action is graded only when performed")
		case !imp.Valid():
			l.warnf(path+".importance", "unknown importance %v; the action is graded only when performed", m["importance"])
		}

		l.lintTiming(path, m, imp)
	}
}

func (l *linter) lintTiming(path string, m map[string]any, imp model.Importance) {
	hasTiming := false

	if raw, ok := m["timeTargetsSec"]; ok {
		hasTiming = true
		tt, isMap := model.Map(raw)
		if !isMap {
			l.errorf(path+".timeTargetsSec", "timeTargetsSec is not an object")
		} else {
			bands := [3]float64{}
			complete := true
			for i, key := range []string{"green", "yellow", "red"} {
				f, ok := model.Number(tt[key])
				if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
					complete = false
					continue
				}
				bands[i] = f
			}
			switch {
			case !complete:
				l.warnf(path+".timeTargetsSec", "green, yellow and red must all be numbers; legacy thresholds apply")
			case bands[0] > bands[1] || bands[1] > bands[2]:
				l.warnf(path+".timeTargetsSec", "bands should be ascending, got %v/%v/%v", bands[0], bands[1], bands[2])
			}
		}
	}

	rec, recOK := l.threshold(path, m, "recommendedBeforeSec")
	must, mustOK := l.threshold(path, m, "mustBeforeSec")
	if recOK || mustOK {
		hasTiming = true
	}
	if recOK && mustOK && rec > must {
		l.warnf(path, "recommendedBeforeSec %v is after mustBeforeSec %v", rec, must)
	}

	if _, ok := m["mustBeBeforeSec"]; ok {
		l.warnf(path+".mustBeBeforeSec", "unknown key mustBeBeforeSec is ignored; did you mean mustBeforeSec?")
	}
	if hasTiming && imp == model.ImportanceForbidden {
		l.warnf(path, "timing is ignored for forbidden actions")
	}
}

func (l *linter) threshold(path string, m map[string]any, key string) (float64, bool) {
	raw, present := m[key]
	if !present {
		return 0, false
	}
	f, ok := model.Number(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		l.errorf(path+"."+key, "%s is not a number and is ignored", key)
		return 0, false
	}
	if f < 0 {
		l.warnf(path+"."+key, "%s is negative", key)
	}
	return f, true
}
