package extractor

import "sort"

// FieldPaths lists every dotted path the extractor may fill.
var FieldPaths = []string{
	"patient.full_name",
	"patient.dob",
	"insurance.payer_name",
	"insurance.insurance_id",
	"medical.chief_complaint",
	"demographics.address.street",
	"demographics.address.city",
	"demographics.address.state",
	"demographics.address.zip",
}

// SchemaName is the structured-output schema name sent to the model.
const SchemaName = "intake_step"

// ResponseSchema returns the JSON schema of an extraction response.
//
// With requireAll set every property is required, which strict structured output demands;
// leaves are still nullable. Without it only the top-level keys are required and any
// branch or leaf may be absent, which is the shape accepted at the boundary.
func ResponseSchema(requireAll bool) map[string]any {
	nullableString := func() map[string]any {
		return map[string]any{"type": []any{"string", "null"}}
	}
	object := func(props map[string]any) map[string]any {
		o := map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
		}
		if requireAll {
			keys := make([]any, 0, len(props))
			for _, k := range sortedKeys(props) {
				keys = append(keys, k)
			}
			o["required"] = keys
		}
		return o
	}

	extracted := object(map[string]any{
		"patient": object(map[string]any{
			"full_name": nullableString(),
			"dob":       nullableString(),
		}),
		"insurance": object(map[string]any{
			"payer_name":   nullableString(),
			"insurance_id": nullableString(),
		}),
		"medical": object(map[string]any{
			"chief_complaint": nullableString(),
		}),
		"demographics": object(map[string]any{
			"address": object(map[string]any{
				"street": nullableString(),
				"city":   nullableString(),
				"state":  nullableString(),
				"zip":    nullableString(),
			}),
		}),
		"intent": object(map[string]any{
			"skip_insurance_id": map[string]any{"type": []any{"boolean", "null"}},
		}),
	})

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"assistant_message": map[string]any{"type": "string"},
			"extracted":         extracted,
		},
		"required": []any{"assistant_message", "extracted"},
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
