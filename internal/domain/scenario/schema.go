package scenario

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/okian/akut/internal/domain/model"
)

var schemaOnce = sync.OnceValues(func() ([]byte, error) {
	r := &jsonschema.Reflector{AllowAdditionalProperties: true}
	s := r.Reflect(&model.Scenario{})
	s.ID = "https://akut.dev/schema/scenario.json"
	s.Title = "Scenario"
	s.Description = "Authored case: narrative states, transitions and the expected-action rubric."
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scenario schema: %w", err)
	}
	return out, nil
})

// Schema returns the JSON Schema of a scenario document. The schema only
// describes shape; Lint covers the rules a schema cannot express.
func Schema() ([]byte, error) {
	return schemaOnce()
}
