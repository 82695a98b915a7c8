package llm

import (
	"strings"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
)

const maxPromptRunes = 3000

// BuildSystemPrompt describes the extraction task for missing-person posters.
func BuildSystemPrompt() string {
	parts := []string{
		"You read text transcribed from a missing-person poster from Mozambique, usually in Portuguese.",
		"Return ONLY a JSON object using these optional keys: nome, idade, genero, descricao, data_desaparecimento, categoria, nome_responsavel, contacto, ultima_localizacao, responsaveis.",
		"idade is the age in years as digits.",
		"genero is one of: Feminino, Masculino, Outro.",
		"categoria is one of: " + strings.Join(constants.CategoryPresets(), ", ") + ".",
		"data_desaparecimento is the date the person went missing as YYYY-MM-DD.",
		"descricao summarizes clothing, physical traits and circumstances.",
		"ultima_localizacao is the place the person was last seen.",
		"contacto is the main phone number to call; nome_responsavel is who answers it.",
		"responsaveis lists any further contacts as objects with nome and contacto.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt wraps the recognized text, cut to a bounded length.
func BuildUserPrompt(text string) string {
	r := []rune(text)
	if len(r) > maxPromptRunes {
		r = r[:maxPromptRunes]
	}
	return "Poster text:\n" + string(r)
}
