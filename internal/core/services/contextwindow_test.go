package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answercart/answercart/internal/core/domain"
)

func textCandidate(id, text string) domain.RetrievalCandidate {
	return domain.RetrievalCandidate{
		Chunk: domain.Chunk{ID: id, Text: text},
	}
}

func TestContextWindowBuilder_Empty(t *testing.T) {
	b := NewContextWindowBuilder()
	assert.Nil(t, b.Build(nil, 1000))
	assert.Nil(t, b.Build([]domain.RetrievalCandidate{textCandidate("a", "text")}, 0))
}

func TestContextWindowBuilder_AllFit(t *testing.T) {
	b := NewContextWindowBuilder()

	out := b.Build([]domain.RetrievalCandidate{
		textCandidate("a", strings.Repeat("a", 400)), // ~100 tokens
		textCandidate("b", strings.Repeat("b", 400)),
	}, 300)

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestContextWindowBuilder_StopsAtBudget(t *testing.T) {
	b := NewContextWindowBuilder()

	out := b.Build([]domain.RetrievalCandidate{
		textCandidate("a", strings.Repeat("a", 400)), // 100 tokens
		textCandidate("b", strings.Repeat("b", 400)), // would exceed
		textCandidate("c", strings.Repeat("c", 40)),  // small, but selection stops
	}, 150)

	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestContextWindowBuilder_TruncatesFirstOversized(t *testing.T) {
	b := NewContextWindowBuilder()

	long := strings.Repeat("A full sentence about the product. ", 40) // ~350 tokens
	out := b.Build([]domain.RetrievalCandidate{textCandidate("a", long)}, 100)

	require.Len(t, out, 1)
	assert.LessOrEqual(t, len(out[0].Text), 400, "truncated to the budget in characters")
	assert.True(t, strings.HasSuffix(out[0].Text, "."), "cut at a sentence boundary")
	assert.Equal(t, domain.EstimateTokens(out[0].Text), out[0].TokenEstimate)
}

func TestContextWindowBuilder_PreservesRerankOrder(t *testing.T) {
	b := NewContextWindowBuilder()

	out := b.Build([]domain.RetrievalCandidate{
		textCandidate("best", "First pick."),
		textCandidate("second", "Second pick."),
		textCandidate("third", "Third pick."),
	}, 1000)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"best", "second", "third"}, []string{out[0].ID, out[1].ID, out[2].ID})
}
