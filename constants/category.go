package constants

import (
	"strings"
)

// Category is a preset for the age bracket of the missing person.
type Category string

const (
	Child      Category = "Criança"
	Adolescent Category = "Adolescente"
	Adult      Category = "Adulto"
	Elderly    Category = "Idoso"
)

// Other is the preset sentinel: the user supplies free text instead of picking a preset.
// It is shared by the category, location and gender selections.
const Other = "Outro"

var allCategories = []Category{
	Child,
	Adolescent,
	Adult,
	Elderly,
}

// CategoryPresets returns the selectable category values, sentinel last.
func CategoryPresets() []string {
	result := make([]string, 0, len(allCategories)+1)
	for _, cat := range allCategories {
		result = append(result, string(cat))
	}
	return append(result, Other)
}

// CanonicalCategory maps loose labels ("crianca", "adult", "idosa") to a preset.
// ok is false when nothing matched; the caller keeps the raw label in that case.
func CanonicalCategory(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Category{
		"crianca":        Child,
		"child":          Child,
		"menor":          Child,
		"adolescent":     Adolescent,
		"teen":           Adolescent,
		"jovem":          Adolescent,
		"adult":          Adult,
		"adulta":         Adult,
		"elderly":        Elderly,
		"idosa":          Elderly,
		"terceira idade": Elderly,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}
	return "", false
}
