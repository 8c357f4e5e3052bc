package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/akut/internal/domain/model"
)

// MemoryEventLog is an in-memory EventLog.
type MemoryEventLog struct {
	mu       sync.RWMutex
	sessions map[string][]model.SessionEvent
	ids      map[string]map[string]struct{}
}

var _ EventLog = (*MemoryEventLog)(nil)

// NewMemoryEventLog returns an empty event log.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{
		sessions: make(map[string][]model.SessionEvent),
		ids:      make(map[string]map[string]struct{}),
	}
}

// Append implements EventLog.Append. Events stay sorted by TRelMs; an event
// with the same TRelMs as existing ones goes after them.
func (l *MemoryEventLog) Append(_ context.Context, sessionID string, ev model.SessionEvent) error {
	if sessionID == "" {
		return ErrInvalidID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := l.ids[sessionID]
	if seen == nil {
		seen = make(map[string]struct{})
		l.ids[sessionID] = seen
	}
	if _, dup := seen[ev.ID]; dup {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateEvent, sessionID, ev.ID)
	}
	seen[ev.ID] = struct{}{}

	evs := l.sessions[sessionID]
	i := sort.Search(len(evs), func(i int) bool { return evs[i].TRelMs > ev.TRelMs })
	evs = append(evs, model.SessionEvent{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	l.sessions[sessionID] = evs
	return nil
}

// Events implements EventLog.Events. The returned slice is a copy.
func (l *MemoryEventLog) Events(_ context.Context, sessionID string) ([]model.SessionEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	evs := l.sessions[sessionID]
	out := make([]model.SessionEvent, len(evs))
	copy(out, evs)
	return out, nil
}
