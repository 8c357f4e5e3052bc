package api

import (
	"net/http"

	"github.com/okian/akut/internal/domain/scenario"
)

// SchemaHandler serves JSON Schemas of authored documents.
type SchemaHandler struct{}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler() *SchemaHandler { return &SchemaHandler{} }

// HandleScenarioSchema handles GET /schema/scenario.
func (h *SchemaHandler) HandleScenarioSchema(w http.ResponseWriter, _ *http.Request) {
	const op = "api.scenario_schema"
	raw, err := scenario.Schema()
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
