package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pensionlab/guidancecore/errors"
)

// reflectSchema builds a JSON schema for out, inlined without $ref so it
// can be handed to providers' structured-output modes verbatim.
func reflectSchema(out any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(out)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal schema")
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(raw, &schemaMap); err != nil {
		return nil, errors.Wrapf(err, "failed to decode schema")
	}
	return schemaMap, nil
}
