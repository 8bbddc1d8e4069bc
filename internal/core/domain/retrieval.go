package domain

import (
	"fmt"
	"math"
)

// RetrievalCandidate is an ephemeral scoring record produced while
// answering a single query. It is never persisted.
type RetrievalCandidate struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Similarity is the raw cosine similarity score (0-1).
	Similarity float64

	// RerankScore is the weighted composite score assigned by the
	// reranker. Zero until reranking runs.
	RerankScore float64
}

// QueryContext carries opaque per-query hints from the caller.
// Conversation history is the caller's concern; the pipeline only
// consumes these hints and keeps no state between queries.
type QueryContext struct {
	// PageType is the kind of page the shopper is on
	// (e.g. "product", "checkout", "faq"). May be empty.
	PageType string

	// ProductID is the store identifier of the product currently in
	// view, when applicable.
	ProductID string

	// Locale is the shopper's language tag.
	Locale string

	// Hints holds any additional opaque key-value context.
	Hints map[string]string
}

// RerankWeights are the factor weights for the composite rerank score.
// They must sum to 1.0.
type RerankWeights struct {
	Similarity    float64
	TypeRelevance float64
	Freshness     float64
	ContextMatch  float64
	Quality       float64
}

// DefaultRerankWeights returns the shipped weight distribution.
// The values are product decisions, not algorithmic requirements, and
// are exposed through configuration.
func DefaultRerankWeights() RerankWeights {
	return RerankWeights{
		Similarity:    0.40,
		TypeRelevance: 0.25,
		Freshness:     0.15,
		ContextMatch:  0.10,
		Quality:       0.10,
	}
}

// Validate checks that the weights are non-negative and sum to 1.0
// within floating-point tolerance.
func (w RerankWeights) Validate() error {
	for _, v := range []float64{w.Similarity, w.TypeRelevance, w.Freshness, w.ContextMatch, w.Quality} {
		if v < 0 {
			return fmt.Errorf("rerank weights must be non-negative, got %v", v)
		}
	}
	sum := w.Similarity + w.TypeRelevance + w.Freshness + w.ContextMatch + w.Quality
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("rerank weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// MinRerankScore is the default threshold below which candidates are
// dropped after reranking.
const MinRerankScore = 0.15

// KeywordBoostCap bounds the additive exact-keyword-match boost.
const KeywordBoostCap = 0.1
