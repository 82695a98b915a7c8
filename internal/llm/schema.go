package llm

// BuildExtractionJSONSchema returns the JSON-Schema every sanitized extraction
// payload must satisfy. Every key is optional.
func BuildExtractionJSONSchema() map[string]any {
	str := func() map[string]any { return map[string]any{"type": "string", "minLength": 1} }
	props := map[string]any{
		"nome":                 str(),
		"idade":                map[string]any{"type": "string", "pattern": `^\d{1,3}$`},
		"genero":               map[string]any{"type": "string", "enum": []string{"Feminino", "Masculino", "Outro"}},
		"descricao":            str(),
		"data_desaparecimento": map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"categoria":            str(),
		"nome_responsavel":     str(),
		"contacto":             str(),
		"ultima_localizacao":   str(),
		"responsaveis": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"nome":     map[string]any{"type": "string"},
					"contacto": map[string]any{"type": "string"},
				},
			},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}
