// Package reference provides the trusted gene records that mapview features
// are reconciled against.
package reference

import (
	"context"
	"fmt"
)

// Entry is a single reference gene record.
type Entry struct {
	ID         string // canonical identifier (Entrez Gene ID)
	Symbol     string // official gene symbol
	Chromosome string
}

// Loader returns every reference entry from a backing store.
type Loader interface {
	Load(ctx context.Context) ([]Entry, error)
}

// Map is an immutable lookup of reference entries keyed by identifier.
type Map struct {
	entries map[string]Entry
}

// NewMap builds a Map from entries. When an identifier occurs more than once
// the last entry wins.
func NewMap(entries []Entry) *Map {
	m := &Map{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return m
}

// Build loads all entries from the loader and returns the resulting Map.
func Build(ctx context.Context, l Loader) (*Map, error) {
	entries, err := l.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference entries: %w", err)
	}
	return NewMap(entries), nil
}

// Lookup returns the entry for the given canonical identifier.
func (m *Map) Lookup(id string) (Entry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Len returns the number of distinct identifiers.
func (m *Map) Len() int {
	return len(m.entries)
}
