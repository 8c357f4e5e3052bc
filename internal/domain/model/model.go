// Package model contains domain models passed between layers.
package model

// Importance is the grading weight class of an expected action.
type Importance string

const (
	ImportanceCritical  Importance = "CRITICAL"
	ImportanceImportant Importance = "IMPORTANT"
	ImportanceOptional  Importance = "OPTIONAL"
	ImportanceForbidden Importance = "FORBIDDEN"
)

// Valid reports whether i is one of the known importance classes.
func (i Importance) Valid() bool {
	switch i {
	case ImportanceCritical, ImportanceImportant, ImportanceOptional, ImportanceForbidden:
		return true
	default:
		return false
	}
}

// Status is the traffic-light grade of one expected action.
type Status string

const (
	StatusGreen  Status = "GREEN"
	StatusYellow Status = "YELLOW"
	StatusRed    Status = "RED"
)

// TimeTargets holds the three ascending second thresholds of a tri-band policy.
type TimeTargets struct {
	Green  float64 `json:"green"`
	Yellow float64 `json:"yellow"`
	Red    float64 `json:"red"`
}

// ExpectedAction is one entry in a scenario's grading rubric.
type ExpectedAction struct {
	ActionID             string       `json:"actionId"`
	Importance           Importance   `json:"importance"`
	Title                string       `json:"title,omitempty"`
	SuccessText          string       `json:"successText,omitempty"`
	ImproveText          string       `json:"improveText,omitempty"`
	CriticalText         string       `json:"criticalText,omitempty"`
	TimeTargetsSec       *TimeTargets `json:"timeTargetsSec,omitempty"`
	RecommendedBeforeSec *float64     `json:"recommendedBeforeSec,omitempty"`
	MustBeforeSec        *float64     `json:"mustBeforeSec,omitempty"`

	// Timing is resolved from the fields above when a document is decoded.
	Timing TimingPolicy `json:"-"`
}

// ActionLogEntry is one recorded trainee or remote-device action.
// TimeMs is relative to the start of the case timer.
type ActionLogEntry struct {
	ID               string         `json:"id"`
	TimeMs           int64          `json:"timeMs"`
	ActionID         string         `json:"actionId"`
	Description      string         `json:"description,omitempty"`
	ResultingStateID string         `json:"resultingStateId,omitempty"`
	Meta             map[string]any `json:"meta,omitempty"`
}

// EvaluatedAction is the graded outcome for one expected action.
type EvaluatedAction struct {
	Expected ExpectedAction  `json:"expected"`
	LogEntry *ActionLogEntry `json:"logEntry,omitempty"`
	Status   Status          `json:"status"`
	Comment  string          `json:"comment"`
}

// Result is the output of a case evaluation.
type Result struct {
	Evaluated    []EvaluatedAction `json:"evaluated"`
	ExtraActions []ActionLogEntry  `json:"extraActions"`
}

// EmptyResult returns a result with non-nil empty slices.
func EmptyResult() Result {
	return Result{Evaluated: []EvaluatedAction{}, ExtraActions: []ActionLogEntry{}}
}

// Summary condenses a Result into counts and a 0-100 score.
type Summary struct {
	Green  int     `json:"green"`
	Yellow int     `json:"yellow"`
	Red    int     `json:"red"`
	Extra  int     `json:"extra"`
	Score  float64 `json:"score"`
}
