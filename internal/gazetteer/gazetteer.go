// Package gazetteer holds the fixed table of known place names consulted before any
// network geocoding.
package gazetteer

import "github.com/joseph-ayodele/missing-persons-intake/internal/entity"

type place struct {
	name  string
	coord entity.Coordinate
}

var places = []place{
	{"Maputo", entity.Coordinate{Latitude: -25.9692, Longitude: 32.5732}},
	{"Matola", entity.Coordinate{Latitude: -25.9617, Longitude: 32.4607}},
	{"Boane", entity.Coordinate{Latitude: -26.0467, Longitude: 32.3275}},
	{"Gaza", entity.Coordinate{Latitude: -25.0440, Longitude: 33.6425}},
	{"Beira", entity.Coordinate{Latitude: -19.8316, Longitude: 34.8385}},
	{"Nampula", entity.Coordinate{Latitude: -15.1165, Longitude: 39.2666}},
}

var index = func() map[string]entity.Coordinate {
	m := make(map[string]entity.Coordinate, len(places))
	for _, p := range places {
		m[p.name] = p.coord
	}
	return m
}()

// Lookup is an exact, case-sensitive match.
func Lookup(name string) (entity.Coordinate, bool) {
	c, ok := index[name]
	return c, ok
}

// Names returns the known place names in display order.
func Names() []string {
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = p.name
	}
	return out
}
