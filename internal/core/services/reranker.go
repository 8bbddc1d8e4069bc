package services

import (
	"sort"
	"strings"
	"time"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/logger"
)

// Freshness decay parameters: content older than the horizon keeps the
// floor factor, so old-but-correct content is never fully zeroed.
const (
	freshnessHorizon = 180 * 24 * time.Hour
	freshnessFloor   = 0.2
)

// Reranker reorders similarity-search candidates using signals beyond
// raw vector distance: content-type intent, freshness, context hints
// and static chunk quality.
type Reranker struct {
	weights  domain.RerankWeights
	minScore float64
	now      func() time.Time
}

// RerankerOption configures the reranker.
type RerankerOption func(*Reranker)

// WithWeights overrides the default weight distribution.
func WithWeights(w domain.RerankWeights) RerankerOption {
	return func(r *Reranker) {
		r.weights = w
	}
}

// WithMinScore overrides the minimum score threshold.
func WithMinScore(min float64) RerankerOption {
	return func(r *Reranker) {
		r.minScore = min
	}
}

// WithRerankerClock overrides the freshness clock. Useful for testing.
func WithRerankerClock(now func() time.Time) RerankerOption {
	return func(r *Reranker) {
		r.now = now
	}
}

// NewReranker creates a reranker with the default weights and
// threshold unless overridden.
func NewReranker(opts ...RerankerOption) (*Reranker, error) {
	r := &Reranker{
		weights:  domain.DefaultRerankWeights(),
		minScore: domain.MinRerankScore,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.weights.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Rerank scores and reorders candidates, dropping those below the
// minimum threshold. Output order is deterministic: descending rerank
// score, ties broken by similarity, then by chunk ID.
func (r *Reranker) Rerank(query string, candidates []domain.RetrievalCandidate, qc domain.QueryContext) []domain.RetrievalCandidate {
	if len(candidates) == 0 {
		return nil
	}

	intent := inferIntent(query, qc)
	terms := keywordTerms(query)
	logger.Debug("Rerank: %d candidates, intent=%s, %d keyword terms", len(candidates), intent, len(terms))

	scored := make([]domain.RetrievalCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := r.weights.Similarity*c.Similarity +
			r.weights.TypeRelevance*typeRelevance(c.Chunk.SourceType, intent) +
			r.weights.Freshness*r.freshness(c.Chunk.LastModifiedAt) +
			r.weights.ContextMatch*contextMatch(c.Chunk, qc) +
			r.weights.Quality*c.Chunk.Quality

		score += keywordBoost(c.Chunk.Text, terms)
		if score > 1 {
			score = 1
		}

		if score < r.minScore {
			continue
		}
		c.RerankScore = score
		scored = append(scored, c)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].RerankScore != scored[j].RerankScore {
			return scored[i].RerankScore > scored[j].RerankScore
		}
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})

	logger.Debug("Rerank: %d candidates above threshold %.2f", len(scored), r.minScore)
	return scored
}

// intentKeywords maps query vocabulary to the content type it implies.
var intentKeywords = map[domain.SourceType][]string{
	domain.SourceTypeProduct: {"price", "size", "sizes", "color", "colour", "material", "stock", "available", "buy", "wash", "washable", "fit", "wear"},
	domain.SourceTypePolicy:  {"return", "returns", "refund", "shipping", "delivery", "warranty", "cancel", "exchange", "privacy", "policy"},
	domain.SourceTypeFAQ:     {"how", "why", "what", "can i", "do you"},
	domain.SourceTypePage:    {"about", "contact", "store", "hours", "location"},
}

// inferIntent guesses the content type a query is after from the page
// the shopper is on and keyword heuristics. No ML involved.
func inferIntent(query string, qc domain.QueryContext) domain.SourceType {
	q := strings.ToLower(query)

	// Policy vocabulary wins even on a product page: a shopper asking
	// about returns wants the policy, not the product blurb. FAQ words
	// are generic question vocabulary, so they are consulted last.
	for _, t := range []domain.SourceType{domain.SourceTypePolicy, domain.SourceTypeProduct, domain.SourceTypePage, domain.SourceTypeFAQ} {
		for _, kw := range intentKeywords[t] {
			if strings.Contains(q, kw) {
				return t
			}
		}
	}

	switch qc.PageType {
	case "product", "shop", "cart", "checkout":
		return domain.SourceTypeProduct
	case "faq", "help", "support":
		return domain.SourceTypeFAQ
	}

	return domain.SourceTypeFAQ
}

// typeRelevance scores how well a chunk's type matches the inferred
// intent.
func typeRelevance(t, intent domain.SourceType) float64 {
	if t == intent {
		return 1.0
	}
	// FAQs answer most things passably.
	if t == domain.SourceTypeFAQ {
		return 0.6
	}
	return 0.3
}

// freshness decays linearly with content age down to the floor.
func (r *Reranker) freshness(modified time.Time) float64 {
	if modified.IsZero() {
		return freshnessFloor
	}
	age := r.now().Sub(modified)
	if age <= 0 {
		return 1.0
	}
	if age >= freshnessHorizon {
		return freshnessFloor
	}
	return 1.0 - (1.0-freshnessFloor)*(float64(age)/float64(freshnessHorizon))
}

// contextMatch boosts chunks whose source the shopper is currently
// looking at.
func contextMatch(c domain.Chunk, qc domain.QueryContext) float64 {
	if qc.ProductID != "" && strings.Contains(c.SourceID, qc.ProductID) {
		return 1.0
	}
	for _, hint := range qc.Hints {
		if hint != "" && strings.Contains(c.SourceID, hint) {
			return 0.8
		}
	}
	return 0
}

// keywordTerms extracts lowercase query terms of three or more
// characters for exact-match boosting.
func keywordTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'()")
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// keywordBoost adds 0.02 per matched term, capped post-normalisation.
func keywordBoost(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	var boost float64
	for _, term := range terms {
		if strings.Contains(lower, term) {
			boost += 0.02
		}
	}
	if boost > domain.KeywordBoostCap {
		boost = domain.KeywordBoostCap
	}
	return boost
}
