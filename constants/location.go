package constants

// LocationPresets are the selectable places, sentinel last. Every entry except the
// sentinel has a fixed coordinate in the gazetteer.
var LocationPresets = []string{
	"Maputo",
	"Matola",
	"Boane",
	"Gaza",
	"Beira",
	"Nampula",
	Other,
}

// CountryQualifier is appended to every free-text geocoding query.
const CountryQualifier = "Mozambique"
