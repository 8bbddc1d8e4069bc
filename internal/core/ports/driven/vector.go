package driven

import (
	"context"

	"github.com/answercart/answercart/internal/core/domain"
)

// QueryFilter restricts a similarity query to matching chunks.
// Zero-value fields are ignored.
type QueryFilter struct {
	// SourceTypes limits results to chunks of these types.
	SourceTypes []domain.SourceType

	// Language limits results to chunks in this language.
	Language string
}

// Matches reports whether a chunk passes the filter.
func (f *QueryFilter) Matches(c domain.Chunk) bool {
	if f == nil {
		return true
	}
	if f.Language != "" && c.Language != f.Language {
		return false
	}
	if len(f.SourceTypes) > 0 {
		ok := false
		for _, t := range f.SourceTypes {
			if c.SourceType == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// VectorStore persists chunk vectors with their metadata and serves
// top-K cosine similarity queries. It is the only stateful shared
// resource in the pipeline: writers (indexing) and readers (queries)
// run concurrently, and a query must never observe a half-written
// replacement for a source.
//
// Cosine similarity is computed as the dot product of pre-normalised
// vectors; implementations must reject vectors whose dimension does not
// match the store's configured dimension.
type VectorStore interface {
	// Upsert stores a chunk and its vector, replacing any existing
	// entry with the same chunk ID.
	Upsert(ctx context.Context, chunk domain.Chunk, vector domain.EmbeddingVector) error

	// ReplaceSource atomically swaps all chunks for a source with the
	// given set. Concurrent queries see either the old complete set or
	// the new complete set, never a mix. Passing empty slices removes
	// the source entirely.
	ReplaceSource(ctx context.Context, sourceID string, chunks []domain.Chunk, vectors []domain.EmbeddingVector) error

	// DeleteBySource removes all chunks for a source and returns the
	// number deleted.
	DeleteBySource(ctx context.Context, sourceID string) (int, error)

	// Query returns up to topK candidates ordered by descending cosine
	// similarity, optionally filtered.
	Query(ctx context.Context, vector domain.EmbeddingVector, topK int, filter *QueryFilter) ([]domain.RetrievalCandidate, error)

	// HashExists reports whether a content hash is already present in
	// the index outside the given source. Used to drop duplicate
	// chunks before upsert.
	HashExists(ctx context.Context, contentHash, excludeSourceID string) (bool, error)

	// HashesBySource returns the content hashes currently stored for a
	// source, for unchanged-content detection.
	HashesBySource(ctx context.Context, sourceID string) (map[string]bool, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
