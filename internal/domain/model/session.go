package model

import "time"

// Session event sources.
const (
	SourceDefib       = "DEFIB"
	SourceFacilitator = "FACILITATOR"
	SourceSystem      = "SYSTEM"
)

// SessionEvent is an event pushed by a paired device during a session.
// TRelMs shares the case-timer axis with ActionLogEntry.TimeMs.
type SessionEvent struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	TRelMs  int64          `json:"tRelMs"`
	Payload map[string]any `json:"payload,omitempty"`
	Note    string         `json:"note,omitempty"`
	Source  string         `json:"source,omitempty"`
}

// Run is a graded, stored case run.
type Run struct {
	RunID       string           `json:"runId"`
	OwnerID     string           `json:"ownerId"`
	OrgID       string           `json:"orgId,omitempty"`
	SessionID   string           `json:"sessionId,omitempty"`
	CaseID      string           `json:"caseId"`
	CaseTitle   string           `json:"caseTitle"`
	TraineeName string           `json:"traineeDisplayName,omitempty"`
	TotalTimeMs int64            `json:"totalTimeMs"`
	Timeline    []ActionLogEntry `json:"timeline"`
	Result      Result           `json:"result"`
	Summary     Summary          `json:"summary"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Submission asks for a run to be graded and stored asynchronously.
// When RemoteEvents is nil and SessionID is set, the session's recorded
// events are merged in.
type Submission struct {
	RunID        string           `json:"runId"`
	OwnerID      string           `json:"ownerId"`
	OrgID        string           `json:"orgId,omitempty"`
	SessionID    string           `json:"sessionId,omitempty"`
	CaseID       string           `json:"caseId"`
	TraineeName  string           `json:"traineeDisplayName,omitempty"`
	TotalTimeMs  int64            `json:"totalTimeMs"`
	Timeline     []ActionLogEntry `json:"timeline"`
	RemoteEvents []SessionEvent   `json:"remoteEvents,omitempty"`
	SubmittedAt  time.Time        `json:"submittedAt"`
}
