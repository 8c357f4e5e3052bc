// Package types contains the request and response shapes shared by the
// service and its HTTP layer.
package types

import (
	"time"

	"github.com/okian/akut/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank        int       `json:"rank"`
	RunID       string    `json:"runId"`
	CaseID      string    `json:"caseId"`
	OwnerID     string    `json:"ownerId"`
	TraineeName string    `json:"traineeDisplayName,omitempty"`
	Score       float64   `json:"score"`
	Green       int       `json:"green"`
	Yellow      int       `json:"yellow"`
	Red         int       `json:"red"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CaseSummary is the listing view of a scenario.
type CaseSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle,omitempty"`
	CaseType        string `json:"caseType,omitempty"`
	Acuity          string `json:"acuity,omitempty"`
	Difficulty      int    `json:"difficulty,omitempty"`
	ExpectedActions int    `json:"expectedActions"`
	Warnings        int    `json:"warnings"`
}

// EvaluateRequest asks for a synchronous grade. Either CaseID names a
// catalog case or Scenario carries an inline scenario document. When
// RemoteEvents is nil and SessionID is set, the session's recorded events
// are merged.
type EvaluateRequest struct {
	CaseID       string                 `json:"caseId,omitempty"`
	Scenario     map[string]any         `json:"scenario,omitempty"`
	Timeline     []model.ActionLogEntry `json:"timeline"`
	RemoteEvents []model.SessionEvent   `json:"remoteEvents,omitempty"`
	SessionID    string                 `json:"sessionId,omitempty"`
}

// Evaluation is the graded view of a merged timeline.
type Evaluation struct {
	Timeline     []model.ActionLogEntry  `json:"timeline"`
	Evaluated    []model.EvaluatedAction `json:"evaluated"`
	ExtraActions []model.ActionLogEntry  `json:"extraActions"`
	Summary      model.Summary           `json:"summary"`
}
