package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from the
// Catalog Go types.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Catalog{})
	s.ID = "https://github.com/ormasoftchile/stepflow/schemas/catalog-v0.json"
	s.Title = "stepflow catalog — stepflow/v0"
	s.Description = "Schema for stepflow flow catalog YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal catalog schema: %w", err)
	}
	return data, nil
}
