package llm

// BuildNoteJSONSchema returns the JSON Schema (draft 2020-12 subset) that
// parsed model output must satisfy. Null tags and preview are tolerated and
// normalized after validation.
func BuildNoteJSONSchema() map[string]any {
	nonBlank := map[string]any{"type": "string", "pattern": `\S`}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":   nonBlank,
			"subject": nonBlank,
			"preview": map[string]any{"type": []string{"string", "null"}},
			"tags": map[string]any{
				"type":  []string{"array", "null"},
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"title", "subject"},
	}
}
