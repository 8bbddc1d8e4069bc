// Package memory provides an in-memory vector store with brute-force
// cosine similarity. Reads take a consistent snapshot under a read
// lock, so an in-flight query sees either the old or the new complete
// chunk set for a source, never a partial replacement.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// entry pairs a chunk with its vector.
type entry struct {
	chunk  domain.Chunk
	vector domain.EmbeddingVector
}

// Store is the in-memory vector store.
type Store struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]entry // chunk ID -> entry
}

// New creates an in-memory store for vectors of the given dimension.
func New(dimension int) *Store {
	return &Store{
		dimension: dimension,
		entries:   make(map[string]entry),
	}
}

// Upsert stores a chunk and its vector, replacing any existing entry
// with the same chunk ID.
func (s *Store) Upsert(_ context.Context, chunk domain.Chunk, vector domain.EmbeddingVector) error {
	if vector.Dimension() != s.dimension {
		return domain.ErrDimensionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[chunk.ID] = entry{chunk: chunk, vector: vector}
	return nil
}

// ReplaceSource atomically swaps all chunks for a source.
func (s *Store) ReplaceSource(_ context.Context, sourceID string, chunks []domain.Chunk, vectors []domain.EmbeddingVector) error {
	if len(chunks) != len(vectors) {
		return domain.ErrDimensionMismatch
	}
	for _, v := range vectors {
		if v.Dimension() != s.dimension {
			return domain.ErrDimensionMismatch
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.chunk.SourceID == sourceID {
			delete(s.entries, id)
		}
	}
	for i, chunk := range chunks {
		s.entries[chunk.ID] = entry{chunk: chunk, vector: vectors[i]}
	}
	return nil
}

// DeleteBySource removes all chunks for a source.
func (s *Store) DeleteBySource(_ context.Context, sourceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, e := range s.entries {
		if e.chunk.SourceID == sourceID {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Query returns up to topK candidates by descending cosine similarity.
func (s *Store) Query(_ context.Context, vector domain.EmbeddingVector, topK int, filter *driven.QueryFilter) ([]domain.RetrievalCandidate, error) {
	if vector.Dimension() != s.dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	candidates := make([]domain.RetrievalCandidate, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.Matches(e.chunk) {
			continue
		}
		if e.vector.ModelID != vector.ModelID {
			// Vectors from different models are never comparable.
			continue
		}
		candidates = append(candidates, domain.RetrievalCandidate{
			Chunk:      e.chunk,
			Similarity: vector.Dot(e.vector),
		})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Chunk.ID < candidates[j].Chunk.ID
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// HashExists reports whether a content hash exists outside a source.
func (s *Store) HashExists(_ context.Context, contentHash, excludeSourceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.chunk.ContentHash == contentHash && e.chunk.SourceID != excludeSourceID {
			return true, nil
		}
	}
	return false, nil
}

// HashesBySource returns the content hashes stored for a source.
func (s *Store) HashesBySource(_ context.Context, sourceID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := make(map[string]bool)
	for _, e := range s.entries {
		if e.chunk.SourceID == sourceID {
			hashes[e.chunk.ContentHash] = true
		}
	}
	return hashes, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}
