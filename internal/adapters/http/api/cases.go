package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/akut/internal/domain/scenario"
)

// CasesHandler serves the scenario catalog.
type CasesHandler struct {
	deps CaseDependencies
}

// NewCasesHandler creates a new cases handler.
func NewCasesHandler(deps CaseDependencies) *CasesHandler {
	return &CasesHandler{deps: deps}
}

// HandleList handles GET /cases.
func (h *CasesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.ListCases(r.Context()))
}

// HandleGet handles GET /cases/{caseID}.
func (h *CasesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_case"
	s, err := h.deps.GetCase(r.Context(), chi.URLParam(r, "caseID"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type lintResponse struct {
	CaseID    string           `json:"caseId"`
	HasErrors bool             `json:"hasErrors"`
	Issues    []scenario.Issue `json:"issues"`
}

// HandleLint handles GET /cases/{caseID}/lint.
func (h *CasesHandler) HandleLint(w http.ResponseWriter, r *http.Request) {
	const op = "api.lint_case"
	id := chi.URLParam(r, "caseID")
	issues, err := h.deps.CaseIssues(r.Context(), id)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, lintResponse{CaseID: id, HasErrors: scenario.HasErrors(issues), Issues: issues})
}

// HandleGraph handles GET /cases/{caseID}/graph and returns Graphviz DOT.
func (h *CasesHandler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	const op = "api.graph_case"
	dot, err := h.deps.CaseGraph(r.Context(), chi.URLParam(r, "caseID"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(dot))
}
