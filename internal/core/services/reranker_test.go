package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answercart/answercart/internal/core/domain"
)

var rerankNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testReranker(t *testing.T, opts ...RerankerOption) *Reranker {
	t.Helper()
	opts = append([]RerankerOption{
		WithRerankerClock(func() time.Time { return rerankNow }),
	}, opts...)
	r, err := NewReranker(opts...)
	require.NoError(t, err)
	return r
}

func candidate(id string, st domain.SourceType, similarity, quality float64, modified time.Time) domain.RetrievalCandidate {
	return domain.RetrievalCandidate{
		Chunk: domain.Chunk{
			ID:             id,
			SourceID:       "src:" + id,
			SourceType:     st,
			Text:           "Some store content about the product.",
			Quality:        quality,
			LastModifiedAt: modified,
		},
		Similarity: similarity,
	}
}

func TestNewReranker_RejectsInvalidWeights(t *testing.T) {
	_, err := NewReranker(WithWeights(domain.RerankWeights{Similarity: 0.9}))
	assert.Error(t, err)
}

func TestRerank_Empty(t *testing.T) {
	r := testReranker(t)
	assert.Nil(t, r.Rerank("any query", nil, domain.QueryContext{}))
}

func TestRerank_DropsBelowThreshold(t *testing.T) {
	r := testReranker(t, WithMinScore(0.9))

	out := r.Rerank("shirt", []domain.RetrievalCandidate{
		candidate("a", domain.SourceTypeProduct, 0.1, 0.1, time.Time{}),
	}, domain.QueryContext{})
	assert.Empty(t, out)
}

func TestRerank_OrderDeterministic(t *testing.T) {
	r := testReranker(t)

	cands := []domain.RetrievalCandidate{
		candidate("b", domain.SourceTypeProduct, 0.8, 0.8, rerankNow),
		candidate("a", domain.SourceTypeProduct, 0.8, 0.8, rerankNow),
		candidate("c", domain.SourceTypeProduct, 0.9, 0.8, rerankNow),
	}

	first := r.Rerank("product sizes", cands, domain.QueryContext{})
	second := r.Rerank("product sizes", cands, domain.QueryContext{})
	require.Equal(t, first, second)

	require.Len(t, first, 3)
	assert.Equal(t, "c", first[0].Chunk.ID, "higher similarity wins")
	assert.Equal(t, "a", first[1].Chunk.ID, "ties break by chunk ID")
	assert.Equal(t, "b", first[2].Chunk.ID)

	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].RerankScore, first[i].RerankScore)
	}
}

func TestRerank_PolicyIntentPrefersPolicyChunks(t *testing.T) {
	r := testReranker(t)

	policy := candidate("pol", domain.SourceTypePolicy, 0.7, 0.8, rerankNow)
	product := candidate("prod", domain.SourceTypeProduct, 0.7, 0.8, rerankNow)

	out := r.Rerank("what is your return policy", []domain.RetrievalCandidate{product, policy}, domain.QueryContext{PageType: "product"})
	require.Len(t, out, 2)
	assert.Equal(t, "pol", out[0].Chunk.ID, "policy vocabulary should beat the product page context")
}

func TestRerank_ProductIntentFromPageType(t *testing.T) {
	r := testReranker(t)

	product := candidate("prod", domain.SourceTypeProduct, 0.7, 0.8, rerankNow)
	page := candidate("pg", domain.SourceTypePage, 0.7, 0.8, rerankNow)

	// Neutral vocabulary: intent falls back to the page the shopper is on.
	out := r.Rerank("is this machine safe for babies", []domain.RetrievalCandidate{page, product}, domain.QueryContext{PageType: "product"})
	require.Len(t, out, 2)
	assert.Equal(t, "prod", out[0].Chunk.ID)
}

func TestRerank_QuestionVocabularyPrefersFAQ(t *testing.T) {
	r := testReranker(t)

	faq := candidate("fq", domain.SourceTypeFAQ, 0.7, 0.8, rerankNow)
	product := candidate("prod", domain.SourceTypeProduct, 0.7, 0.8, rerankNow)

	// Generic question words with no policy/product/page vocabulary
	// imply FAQ content, even on a product page.
	out := r.Rerank("how do i track my order", []domain.RetrievalCandidate{product, faq}, domain.QueryContext{PageType: "product"})
	require.Len(t, out, 2)
	assert.Equal(t, "fq", out[0].Chunk.ID)
}

func TestRerank_ContextMatchBoostsViewedProduct(t *testing.T) {
	r := testReranker(t)

	viewed := candidate("a", domain.SourceTypeProduct, 0.7, 0.8, rerankNow)
	viewed.Chunk.SourceID = "product:1042"
	other := candidate("b", domain.SourceTypeProduct, 0.7, 0.8, rerankNow)
	other.Chunk.SourceID = "product:9999"

	out := r.Rerank("does it come in blue", []domain.RetrievalCandidate{other, viewed}, domain.QueryContext{ProductID: "1042"})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Chunk.ID)
}

func TestRerank_FreshContentBeatsStale(t *testing.T) {
	r := testReranker(t)

	fresh := candidate("fresh", domain.SourceTypeProduct, 0.7, 0.8, rerankNow.Add(-24*time.Hour))
	stale := candidate("stale", domain.SourceTypeProduct, 0.7, 0.8, rerankNow.Add(-365*24*time.Hour))

	out := r.Rerank("product details", []domain.RetrievalCandidate{stale, fresh}, domain.QueryContext{})
	require.Len(t, out, 2)
	assert.Equal(t, "fresh", out[0].Chunk.ID)
}

func TestRerank_KeywordBoostCapped(t *testing.T) {
	r := testReranker(t)

	base := candidate("plain", domain.SourceTypeProduct, 0.7, 0.8, rerankNow)
	base.Chunk.Text = "Nothing matching here at all."
	loaded := candidate("match", domain.SourceTypeProduct, 0.7, 0.8, rerankNow)
	loaded.Chunk.Text = "blue cotton shirt washable sizes colors material stock fabric pockets sleeves"

	out := r.Rerank("blue cotton shirt washable sizes colors material stock fabric pockets sleeves",
		[]domain.RetrievalCandidate{base, loaded}, domain.QueryContext{})
	require.Len(t, out, 2)
	assert.Equal(t, "match", out[0].Chunk.ID)
	diff := out[0].RerankScore - out[1].RerankScore
	assert.LessOrEqual(t, diff, domain.KeywordBoostCap+1e-9, "keyword boost must be capped")
}

func TestRerank_ScoreNeverExceedsOne(t *testing.T) {
	r := testReranker(t)

	c := candidate("max", domain.SourceTypeProduct, 1.0, 1.0, rerankNow)
	c.Chunk.SourceID = "product:1042"
	c.Chunk.Text = "price size color material stock available"

	out := r.Rerank("price size color material stock available",
		[]domain.RetrievalCandidate{c}, domain.QueryContext{ProductID: "1042"})
	require.Len(t, out, 1)
	assert.LessOrEqual(t, out[0].RerankScore, 1.0)
}

func TestFreshness(t *testing.T) {
	r := testReranker(t)

	t.Run("zero time gets floor", func(t *testing.T) {
		assert.InDelta(t, freshnessFloor, r.freshness(time.Time{}), 1e-9)
	})

	t.Run("brand new is full", func(t *testing.T) {
		assert.InDelta(t, 1.0, r.freshness(rerankNow), 1e-9)
	})

	t.Run("older than horizon floors", func(t *testing.T) {
		assert.InDelta(t, freshnessFloor, r.freshness(rerankNow.Add(-2*freshnessHorizon)), 1e-9)
	})

	t.Run("mid-age decays linearly", func(t *testing.T) {
		mid := r.freshness(rerankNow.Add(-freshnessHorizon / 2))
		assert.InDelta(t, (1.0+freshnessFloor)/2, mid, 1e-9)
	})
}
