package constants

import "strings"

type Gender string

const (
	GenderUnset  Gender = ""
	GenderFemale Gender = "Feminino"
	GenderMale   Gender = "Masculino"
	GenderOther  Gender = Other
)

// CanonicalGender accepts the labels posters and the extraction model tend to use.
func CanonicalGender(input string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "feminino", "feminina", "f", "female", "mulher", "menina":
		return GenderFemale, true
	case "masculino", "m", "male", "homem", "menino":
		return GenderMale, true
	case "outro", "other":
		return GenderOther, true
	default:
		return GenderUnset, false
	}
}
