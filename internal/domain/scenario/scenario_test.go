package scenario_test

import (
	"encoding/json"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/scenario"
)

func findIssue(issues []scenario.Issue, path string) (scenario.Issue, bool) {
	for _, i := range issues {
		if i.Path == path {
			return i, true
		}
	}
	return scenario.Issue{}, false
}

func validDoc() map[string]any {
	return map[string]any{
		"id":             "aks-1",
		"title":          "AKS M 58",
		"initialStateId": "S0",
		"states":         []any{map[string]any{"id": "S0"}, map[string]any{"id": "S1"}},
		"transitions": []any{
			map[string]any{"id": "T1", "fromStateId": "S0", "toStateId": "S1", "actionId": "GIVE_O2"},
		},
		"expectedActions": []any{
			map[string]any{"actionId": "GIVE_O2", "importance": "CRITICAL", "mustBeforeSec": 60},
			map[string]any{"actionId": "C_ECG_4_12_LEAD", "importance": "IMPORTANT",
				"timeTargetsSec": map[string]any{"green": 60, "yellow": 120, "red": 300}},
		},
	}
}

func TestLintValid(t *testing.T) {
	Convey("Given a well formed scenario", t, func() {
		issues := scenario.Lint(validDoc())

		Convey("Then no issues are reported", func() {
			So(issues, ShouldBeEmpty)
			So(scenario.HasErrors(issues), ShouldBeFalse)
		})
	})
}

func TestLintDocument(t *testing.T) {
	Convey("Given a nil document", t, func() {
		So(scenario.HasErrors(scenario.Lint(nil)), ShouldBeTrue)
	})

	Convey("Given a document without id and a non-array rubric", t, func() {
		issues := scenario.Lint(map[string]any{"expectedActions": "GIVE_O2"})

		Convey("Then both are errors", func() {
			i, ok := findIssue(issues, "id")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityError)
			i, ok = findIssue(issues, "expectedActions")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityError)
		})
	})

	Convey("Given an unknown initial state and a dangling transition", t, func() {
		doc := validDoc()
		doc["initialStateId"] = "S9"
		doc["transitions"] = []any{map[string]any{"fromStateId": "S0", "toStateId": "S7"}}
		issues := scenario.Lint(doc)

		Convey("Then they are reported", func() {
			i, ok := findIssue(issues, "initialStateId")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityError)
			i, ok = findIssue(issues, "transitions[0].toStateId")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityWarning)
			_, ok = findIssue(issues, "transitions[0].actionId")
			So(ok, ShouldBeTrue)
		})
	})
}

func TestLintExpectedActions(t *testing.T) {
	Convey("Given rubric entries with authoring mistakes", t, func() {
		doc := validDoc()
		doc["expectedActions"] = []any{
			map[string]any{"actionId": `"GIVE_O2"`, "importance": "CRITICAL"},
			map[string]any{"actionId": "GIVE_O2", "importance": "critical"},
			map[string]any{"actionId": `""`, "importance": "OPTIONAL"},
			map[string]any{"actionId": "A", "importance": "IMPORTANT",
				"timeTargetsSec": map[string]any{"green": 120, "yellow": 60, "red": 300}},
			map[string]any{"actionId": "B", "importance": "IMPORTANT",
				"timeTargetsSec": map[string]any{"green": 60}},
			map[string]any{"actionId": "C", "importance": "IMPORTANT",
				"recommendedBeforeSec": 200, "mustBeforeSec": 100},
			map[string]any{"actionId": "D", "importance": "CRITICAL", "mustBeBeforeSec": 60},
			map[string]any{"actionId": "E", "importance": "FORBIDDEN", "mustBeforeSec": "soon"},
			"GIVE_O2",
		}
		issues := scenario.Lint(doc)

		Convey("Then quoted ids are warned about", func() {
			i, ok := findIssue(issues, "expectedActions[0].actionId")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityWarning)
		})

		Convey("Then duplicates after normalization are warned about", func() {
			i, ok := findIssue(issues, "expectedActions[1].actionId")
			So(ok, ShouldBeTrue)
			So(i.Message, ShouldContainSubstring, "expectedActions[0]")
		})

		Convey("Then unknown importance is a warning", func() {
			i, ok := findIssue(issues, "expectedActions[1].importance")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityWarning)
		})

		Convey("Then an empty normalized id is an error", func() {
			i, ok := findIssue(issues, "expectedActions[2].actionId")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityError)
		})

		Convey("Then descending bands are a warning", func() {
			i, ok := findIssue(issues, "expectedActions[3].timeTargetsSec")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityWarning)
		})

		Convey("Then partial bands are a warning", func() {
			i, ok := findIssue(issues, "expectedActions[4].timeTargetsSec")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityWarning)
		})

		Convey("Then recommended after must is a warning", func() {
			i, ok := findIssue(issues, "expectedActions[5]")
			So(ok, ShouldBeTrue)
			So(i.Message, ShouldContainSubstring, "after mustBeforeSec")
		})

		Convey("Then the misspelled deadline key is reported and not used", func() {
			i, ok := findIssue(issues, "expectedActions[6].mustBeBeforeSec")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityWarning)
		})

		Convey("Then non-numeric thresholds are errors", func() {
			i, ok := findIssue(issues, "expectedActions[7].mustBeforeSec")
			So(ok, ShouldBeTrue)
			So(i.Severity, ShouldEqual, scenario.SeverityError)
		})

		Convey("Then non-object entries are errors", func() {
			_, ok := findIssue(issues, "expectedActions[8]")
			So(ok, ShouldBeTrue)
			So(scenario.HasErrors(issues), ShouldBeTrue)
		})
	})
}

func TestGraph(t *testing.T) {
	Convey("Given a decoded scenario", t, func() {
		s := model.DecodeScenario(validDoc())

		dot, err := scenario.Graph(s)

		Convey("Then a directed graph is rendered", func() {
			So(err, ShouldBeNil)
			So(dot, ShouldStartWith, "digraph")
			So(dot, ShouldContainSubstring, `"S0"`)
			So(dot, ShouldContainSubstring, `"S1"`)
			So(dot, ShouldContainSubstring, "doublecircle")
			So(dot, ShouldContainSubstring, "->")
			So(dot, ShouldContainSubstring, `"GIVE_O2"`)
		})
	})

	Convey("Given a scenario without states", t, func() {
		dot, err := scenario.Graph(model.Scenario{ID: "empty"})

		Convey("Then an empty graph is rendered", func() {
			So(err, ShouldBeNil)
			So(strings.TrimSpace(dot), ShouldStartWith, "digraph")
		})
	})
}

func TestSchema(t *testing.T) {
	Convey("Given the scenario JSON Schema", t, func() {
		raw, err := scenario.Schema()
		So(err, ShouldBeNil)

		var doc map[string]any
		So(json.Unmarshal(raw, &doc), ShouldBeNil)

		Convey("Then it describes the rubric fields", func() {
			s := string(raw)
			So(s, ShouldContainSubstring, `"expectedActions"`)
			So(s, ShouldContainSubstring, `"timeTargetsSec"`)
			So(s, ShouldContainSubstring, `"mustBeforeSec"`)
			So(doc["title"], ShouldEqual, "Scenario")
		})

		Convey("Then repeated calls return the same bytes", func() {
			again, _ := scenario.Schema()
			So(again, ShouldResemble, raw)
		})
	})
}
