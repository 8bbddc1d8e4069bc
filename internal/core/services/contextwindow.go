package services

import (
	"github.com/answercart/answercart/internal/chunker"
	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/logger"
)

// ContextWindowBuilder assembles a token-budgeted prompt context from
// reranked candidates. Token counts are estimated with the chars/4
// heuristic; no real tokenizer is used so the builder stays independent
// of any provider.
type ContextWindowBuilder struct{}

// NewContextWindowBuilder creates a context window builder.
func NewContextWindowBuilder() *ContextWindowBuilder {
	return &ContextWindowBuilder{}
}

// Build selects chunks in rerank order until the next candidate would
// exceed the budget. When the very first candidate alone exceeds the
// budget its text is truncated at the nearest preceding sentence
// boundary rather than mid-word. Zero candidates yield an empty slice,
// not an error - "no context" is a valid, common case.
func (b *ContextWindowBuilder) Build(candidates []domain.RetrievalCandidate, tokenBudget int) []domain.Chunk {
	if len(candidates) == 0 || tokenBudget <= 0 {
		return nil
	}

	var out []domain.Chunk
	used := 0

	for i, c := range candidates {
		tokens := domain.EstimateTokens(c.Chunk.Text)

		if used+tokens > tokenBudget {
			if i == 0 {
				truncated := c.Chunk
				truncated.Text = chunker.TruncateAtSentence(c.Chunk.Text, tokenBudget*4)
				truncated.TokenEstimate = domain.EstimateTokens(truncated.Text)
				if truncated.Text != "" {
					out = append(out, truncated)
					used += truncated.TokenEstimate
				}
			}
			break
		}

		chunk := c.Chunk
		out = append(out, chunk)
		used += tokens
	}

	logger.Debug("Context window: %d chunks, ~%d/%d tokens", len(out), used, tokenBudget)
	return out
}
