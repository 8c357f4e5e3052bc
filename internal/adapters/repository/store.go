// Package repository persists graded runs and session events and ranks runs
// per case.
package repository

import (
	"context"

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/internal/domain/types"
)

// Entry is a leaderboard row.
type Entry = types.Entry

func entryFromRun(r model.Run) Entry {
	return Entry{
		RunID:       r.RunID,
		CaseID:      r.CaseID,
		OwnerID:     r.OwnerID,
		TraineeName: r.TraineeName,
		Score:       r.Summary.Score,
		Green:       r.Summary.Green,
		Yellow:      r.Summary.Yellow,
		Red:         r.Summary.Red,
		CreatedAt:   r.CreatedAt,
	}
}

// Store provides read/write access to graded runs.
type Store interface {
	// Save inserts or replaces a run.
	Save(ctx context.Context, run model.Run) error

	// Get returns ErrNotFound for unknown runs.
	Get(ctx context.Context, runID string) (model.Run, error)

	// Delete removes a run. Deleting an unknown run succeeds.
	Delete(ctx context.Context, runID string) error

	// ListByOwner returns up to limit runs of an owner, newest first.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.Run, error)

	// ListBySession returns the runs of a session, newest first.
	ListBySession(ctx context.Context, sessionID string) ([]model.Run, error)

	// TopN ranks runs by score desc then run id asc. An empty caseID ranks
	// all cases. Equal scores share a rank.
	TopN(ctx context.Context, caseID string, n int) ([]Entry, error)

	// Count returns the number of stored runs.
	Count(ctx context.Context) int
}

// EventLog records session events pushed by paired devices.
type EventLog interface {
	// Append stores ev under sessionID. Event ids are unique per session;
	// a repeated id yields ErrDuplicateEvent.
	Append(ctx context.Context, sessionID string, ev model.SessionEvent) error

	// Events returns the session's events ordered by TRelMs, then arrival.
	Events(ctx context.Context, sessionID string) ([]model.SessionEvent, error)
}

// assignRanksWithTies assigns dense ranks to entries already in rank order:
// equal scores share a rank and the next score gets the next rank.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score {
			rank++
		}
		entries[i].Rank = rank
	}
}
