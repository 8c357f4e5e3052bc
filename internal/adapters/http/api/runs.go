package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/okian/akut/internal/domain/dedupe"
	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/pkg/metrics"
)

// RunsHandler accepts run submissions and serves stored runs.
type RunsHandler struct {
	deps     RunDependencies
	maxLimit int
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies, maxLimit int) *RunsHandler {
	return &RunsHandler{deps: deps, maxLimit: maxLimit}
}

func validateSubmission(s *model.Submission) error {
	switch {
	case strings.TrimSpace(s.OwnerID) == "":
		return errors.New("missing ownerId")
	case strings.TrimSpace(s.CaseID) == "":
		return errors.New("missing caseId")
	case s.TotalTimeMs < 0:
		return errors.New("totalTimeMs must not be negative")
	}
	return nil
}

// HandleSubmit handles POST /runs. Grading happens asynchronously; the run
// id is returned with 202. Resubmitting a run id is acknowledged as a
// duplicate, and a full queue answers 429 so the client can retry.
func (h *RunsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_run"
	var sub model.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateSubmission(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if sub.RunID == "" {
		sub.RunID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	key := dedupe.Key("run", sub.RunID)
	if h.deps.SeenAndRecord(r.Context(), key) {
		metrics.RecordRunDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: sub.RunID, Duplicate: true})
		return
	}
	if err := h.deps.Enqueue(r.Context(), sub); err != nil {
		h.deps.Unrecord(r.Context(), key)
		writeErr(w, Wrap(op, err))
		return
	}
	metrics.RecordRunSubmitted()
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: sub.RunID})
}

// HandleList handles GET /runs?owner=&limit=.
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_runs"
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing owner")))
		return
	}
	limit, code, ok := parseLimit(r, defaultListLimit, h.maxLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, code, NewKind(op, ErrBadRequest))
		return
	}
	runs, err := h.deps.ListRuns(r.Context(), owner, limit)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGet handles GET /runs/{runID}.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run"
	run, err := h.deps.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleDelete handles DELETE /runs/{runID}.
func (h *RunsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_run"
	if err := h.deps.DeleteRun(r.Context(), chi.URLParam(r, "runID")); err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
