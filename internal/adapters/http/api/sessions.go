package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/okian/akut/internal/adapters/repository"
	"github.com/okian/akut/internal/domain/dedupe"
	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/pkg/metrics"
)

// SessionsHandler records and lists device events of a training session.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandlePostEvent handles POST /sessions/{sessionID}/events. Redelivered
// events (same id within a session) are acknowledged without being stored
// again, whether the idempotency cache or the event log catches them. An
// event without an id gets a generated one.
func (h *SessionsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_session_event"
	sessionID := chi.URLParam(r, "sessionID")

	var ev model.SessionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(ev.Type) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing type")))
		return
	}
	if ev.TRelMs < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("tRelMs must not be negative")))
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Source == "" {
		ev.Source = model.SourceDefib
	}

	key := dedupe.Key("event", sessionID+"/"+ev.ID)
	if h.deps.SeenAndRecord(r.Context(), key) {
		metrics.RecordSessionEventDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: ev.ID, Duplicate: true})
		return
	}
	err := h.deps.AppendSessionEvent(r.Context(), sessionID, ev)
	if errors.Is(err, repository.ErrDuplicateEvent) {
		metrics.RecordSessionEventDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: ev.ID, Duplicate: true})
		return
	}
	if err != nil {
		h.deps.Unrecord(r.Context(), key)
		writeErr(w, Wrap(op, err))
		return
	}
	metrics.RecordSessionEvent()
	writeJSON(w, http.StatusCreated, ackResponse{Status: "recorded", ID: ev.ID})
}

// HandleListEvents handles GET /sessions/{sessionID}/events.
func (h *SessionsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_session_events"
	evs, err := h.deps.SessionEvents(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

// HandleListRuns handles GET /sessions/{sessionID}/runs.
func (h *SessionsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_session_runs"
	runs, err := h.deps.SessionRuns(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
