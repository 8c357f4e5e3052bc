package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// DecodeScenario converts a loosely typed scenario document into a Scenario.
// Fields of the wrong type are treated as absent. Every expected action gets
// its TimingPolicy resolved here.
func DecodeScenario(doc map[string]any) Scenario {
	s := Scenario{
		ID:             String(doc["id"]),
		Title:          String(doc["title"]),
		Subtitle:       String(doc["subtitle"]),
		DispatchText:   String(doc["dispatchText"]),
		CaseType:       String(doc["caseType"]),
		Acuity:         String(doc["acuity"]),
		Diagnosis:      String(doc["diagnosis"]),
		InitialStateID: String(doc["initialStateId"]),
	}
	if d, ok := Number(doc["difficulty"]); ok {
		s.Difficulty = int(d)
	}

	for _, raw := range List(doc["states"]) {
		if m, ok := Map(raw); ok {
			s.States = append(s.States, decodeState(m))
		}
	}
	for _, raw := range List(doc["transitions"]) {
		if m, ok := Map(raw); ok {
			s.Transitions = append(s.Transitions, Transition{
				ID:          String(m["id"]),
				FromStateID: String(m["fromStateId"]),
				ToStateID:   String(m["toStateId"]),
				ActionID:    String(m["actionId"]),
				Feedback:    String(m["feedbackToFacilitator"]),
			})
		}
	}

	s.ExpectedActions = []ExpectedAction{}
	for _, raw := range List(doc["expectedActions"]) {
		if m, ok := Map(raw); ok {
			s.ExpectedActions = append(s.ExpectedActions, DecodeExpectedAction(m))
		}
	}
	return s
}

// DecodeScenarioJSON decodes raw JSON bytes holding a single scenario object.
func DecodeScenarioJSON(data []byte) (Scenario, error) {
	doc, err := DecodeDocumentJSON(data)
	if err != nil {
		return Scenario{}, err
	}
	return DecodeScenario(doc), nil
}

// DecodeDocumentJSON decodes raw JSON into a generic document, keeping numbers exact.
func DecodeDocumentJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidDocument)
	}
	return doc, nil
}

// DecodeExpectedAction converts one loosely typed rubric entry.
// A timeTargetsSec missing any finite band is dropped so the legacy
// thresholds apply.
func DecodeExpectedAction(m map[string]any) ExpectedAction {
	a := ExpectedAction{
		ActionID:     String(m["actionId"]),
		Importance:   Importance(String(m["importance"])),
		Title:        String(m["title"]),
		SuccessText:  String(m["successText"]),
		ImproveText:  String(m["improveText"]),
		CriticalText: String(m["criticalText"]),
	}
	if tt, ok := Map(m["timeTargetsSec"]); ok {
		g, gok := finiteNumber(tt["green"])
		y, yok := finiteNumber(tt["yellow"])
		r, rok := finiteNumber(tt["red"])
		if gok && yok && rok {
			a.TimeTargetsSec = &TimeTargets{Green: g, Yellow: y, Red: r}
		}
	}
	if v, ok := finiteNumber(m["recommendedBeforeSec"]); ok {
		a.RecommendedBeforeSec = &v
	}
	if v, ok := finiteNumber(m["mustBeforeSec"]); ok {
		a.MustBeforeSec = &v
	}
	a.Timing = ResolveTiming(a)
	return a
}

func decodeState(m map[string]any) State {
	st := State{
		ID:        String(m["id"]),
		ExtraInfo: String(m["extraInfo"]),
	}
	if v, ok := Map(m["vitals"]); ok {
		st.Vitals.HR, _ = Number(v["hr"])
		st.Vitals.RR, _ = Number(v["rr"])
		st.Vitals.BPSys, _ = Number(v["btSys"])
		st.Vitals.BPDia, _ = Number(v["btDia"])
		st.Vitals.SpO2, _ = Number(v["spo2"])
		st.Vitals.Temp = optionalNumber(v["temp"])
		st.Vitals.GCS = optionalNumber(v["gcs"])
		st.Vitals.PainNRS = optionalNumber(v["painNrs"])
	}
	if abcde, ok := Map(m["abcde"]); ok {
		st.ABCDE = make(map[string]string, len(abcde))
		for k, v := range abcde {
			st.ABCDE[k] = String(v)
		}
	}
	return st
}

// String returns v when it is a string and "" otherwise.
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Number returns v as float64 when it is a JSON or YAML number.
// Numeric strings are not numbers.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func finiteNumber(v any) (float64, bool) {
	f, ok := Number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func optionalNumber(v any) *float64 {
	f, ok := finiteNumber(v)
	if !ok {
		return nil
	}
	return &f
}

// Map returns v as a string-keyed map. YAML decoders may produce
// map[any]any, which is converted when every key is a string.
func Map(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// List returns v as a slice, or nil when it is not one.
func List(v any) []any {
	l, _ := v.([]any)
	return l
}
