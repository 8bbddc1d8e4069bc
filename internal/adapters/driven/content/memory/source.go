// Package memory provides an in-memory content source for tests and
// local fixtures.
package memory

import (
	"context"
	"sync"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.ContentSource = (*Source)(nil)

// Source serves content units from memory.
type Source struct {
	mu    sync.RWMutex
	units []domain.ContentUnit
}

// New creates a source pre-loaded with the given units.
func New(units ...domain.ContentUnit) *Source {
	return &Source{units: units}
}

// Put adds or replaces a unit by source ID.
func (s *Source) Put(unit domain.ContentUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.units {
		if u.SourceID == unit.SourceID {
			s.units[i] = unit
			return
		}
	}
	s.units = append(s.units, unit)
}

// Remove deletes a unit by source ID.
func (s *Source) Remove(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.units {
		if u.SourceID == sourceID {
			s.units = append(s.units[:i], s.units[i+1:]...)
			return
		}
	}
}

// Fetch returns one page of matching units.
func (s *Source) Fetch(_ context.Context, req driven.FetchRequest) (*driven.ContentPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []domain.ContentUnit
	for _, u := range s.units {
		if u.SourceType == req.SourceType {
			matching = append(matching, u)
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = len(matching)
	}

	start := req.Offset
	if start > len(matching) {
		start = len(matching)
	}
	end := start + limit
	if end > len(matching) {
		end = len(matching)
	}

	return &driven.ContentPage{
		Units:      append([]domain.ContentUnit{}, matching[start:end]...),
		HasMore:    end < len(matching),
		NextOffset: end,
	}, nil
}

// Get retrieves a single unit by source ID.
func (s *Source) Get(_ context.Context, sourceID string) (*domain.ContentUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.units {
		if u.SourceID == sourceID {
			unit := u
			return &unit, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Types lists the source types present.
func (s *Source) Types() []domain.SourceType {
	return domain.AllSourceTypes()
}

// Close releases resources.
func (s *Source) Close() error {
	return nil
}
