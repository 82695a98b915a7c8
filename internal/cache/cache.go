// Package cache keeps coordinates resolved by the external geocoder so a place is
// looked up at most once per cache lifetime.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

// GeocodeCache stores resolved coordinates by query text. Only successful lookups
// are stored; a miss is (zero, false, nil).
type GeocodeCache interface {
	Get(ctx context.Context, query string) (entity.Coordinate, bool, error)
	Set(ctx context.Context, query string, c entity.Coordinate) error
}

// Key generates a cache key from a query.
// Format: "geocode:<lowercased query>" (e.g., "geocode:bairro zimpeto")
func Key(query string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(query))
}

type memoryEntry struct {
	coord   entity.Coordinate
	expires time.Time // zero means never
}

// MemoryCache is an in-process GeocodeCache.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryCache creates a cache; ttl <= 0 keeps entries for the life of the process.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *MemoryCache) Get(_ context.Context, query string) (entity.Coordinate, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[Key(query)]
	m.mu.RUnlock()
	if !ok || (!e.expires.IsZero() && m.now().After(e.expires)) {
		return entity.Coordinate{}, false, nil
	}
	return e.coord, true, nil
}

func (m *MemoryCache) Set(_ context.Context, query string, c entity.Coordinate) error {
	e := memoryEntry{coord: c}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[Key(query)] = e
	m.mu.Unlock()
	return nil
}
