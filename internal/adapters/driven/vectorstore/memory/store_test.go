package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
)

const dims = 4

func vec(values ...float32) domain.EmbeddingVector {
	v := domain.EmbeddingVector{Values: values, ModelID: "test-model"}
	v.Normalise()
	return v
}

func chunk(id, sourceID string) domain.Chunk {
	return domain.Chunk{
		ID:          id,
		SourceID:    sourceID,
		SourceType:  domain.SourceTypeProduct,
		Text:        "text for " + id,
		ContentHash: "hash-" + id,
		Language:    "en",
	}
}

func TestStore_UpsertAndQuery(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, chunk("a", "src1"), vec(1, 0, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("b", "src1"), vec(0, 1, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("c", "src2"), vec(0.9, 0.1, 0, 0)))

	got, err := s.Query(ctx, vec(1, 0, 0, 0), 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "a", got[0].Chunk.ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, "c", got[1].Chunk.ID)
	assert.Equal(t, "b", got[2].Chunk.ID)
}

func TestStore_Query_TopK(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, chunk("a", "src1"), vec(1, 0, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("b", "src1"), vec(0, 1, 0, 0)))

	got, err := s.Query(ctx, vec(1, 0, 0, 0), 1, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Chunk.ID)
}

func TestStore_Query_Filters(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	en := chunk("en", "src1")
	de := chunk("de", "src2")
	de.Language = "de"
	faq := chunk("faq", "src3")
	faq.SourceType = domain.SourceTypeFAQ

	require.NoError(t, s.Upsert(ctx, en, vec(1, 0, 0, 0)))
	require.NoError(t, s.Upsert(ctx, de, vec(1, 0, 0, 0)))
	require.NoError(t, s.Upsert(ctx, faq, vec(1, 0, 0, 0)))

	t.Run("language", func(t *testing.T) {
		got, err := s.Query(ctx, vec(1, 0, 0, 0), 10, &driven.QueryFilter{Language: "de"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "de", got[0].Chunk.ID)
	})

	t.Run("source types", func(t *testing.T) {
		got, err := s.Query(ctx, vec(1, 0, 0, 0), 10, &driven.QueryFilter{
			SourceTypes: []domain.SourceType{domain.SourceTypeFAQ},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "faq", got[0].Chunk.ID)
	})
}

func TestStore_Query_ModelMismatchExcluded(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	other := vec(1, 0, 0, 0)
	other.ModelID = "other-model"
	require.NoError(t, s.Upsert(ctx, chunk("a", "src1"), other))

	got, err := s.Query(ctx, vec(1, 0, 0, 0), 10, nil)
	require.NoError(t, err)
	assert.Empty(t, got, "vectors from different models must never match")
}

func TestStore_DimensionChecks(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	bad := domain.EmbeddingVector{Values: []float32{1, 0}, ModelID: "test-model"}
	assert.ErrorIs(t, s.Upsert(ctx, chunk("a", "src1"), bad), domain.ErrDimensionMismatch)

	_, err := s.Query(ctx, bad, 10, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStore_ReplaceSource(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, chunk("old1", "src1"), vec(1, 0, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("old2", "src1"), vec(0, 1, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("other", "src2"), vec(0, 0, 1, 0)))

	err := s.ReplaceSource(ctx, "src1",
		[]domain.Chunk{chunk("new1", "src1")},
		[]domain.EmbeddingVector{vec(0, 0, 0, 1)},
	)
	require.NoError(t, err)

	got, err := s.Query(ctx, vec(0, 0, 0, 1), 10, nil)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.Chunk.ID)
	}
	assert.Contains(t, ids, "new1")
	assert.Contains(t, ids, "other")
	assert.NotContains(t, ids, "old1")
	assert.NotContains(t, ids, "old2")
}

func TestStore_ReplaceSource_AtomicUnderConcurrentQuery(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	generation := func(n int) ([]domain.Chunk, []domain.EmbeddingVector) {
		a := chunk(fmt.Sprintf("gen%d-a", n), "src1")
		b := chunk(fmt.Sprintf("gen%d-b", n), "src1")
		return []domain.Chunk{a, b},
			[]domain.EmbeddingVector{vec(1, 0, 0, 0), vec(0, 1, 0, 0)}
	}

	chunks, vectors := generation(0)
	require.NoError(t, s.ReplaceSource(ctx, "src1", chunks, vectors))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := 1; n <= 200; n++ {
			chunks, vectors := generation(n)
			if err := s.ReplaceSource(ctx, "src1", chunks, vectors); err != nil {
				t.Errorf("replace generation %d: %v", n, err)
				return
			}
		}
	}()

	// Every snapshot must hold one whole generation, never a mix of
	// chunks from before and after a swap.
	for alive := true; alive; {
		select {
		case <-done:
			alive = false
		default:
		}

		got, err := s.Query(ctx, vec(1, 0, 0, 0), 10, nil)
		require.NoError(t, err)
		require.Len(t, got, 2)

		genA := strings.SplitN(got[0].Chunk.ID, "-", 2)[0]
		genB := strings.SplitN(got[1].Chunk.ID, "-", 2)[0]
		require.Equal(t, genA, genB, "observed chunks from two generations: %s vs %s",
			got[0].Chunk.ID, got[1].Chunk.ID)
	}
}

func TestStore_ReplaceSource_EmptyRemoves(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, chunk("a", "src1"), vec(1, 0, 0, 0)))
	require.NoError(t, s.ReplaceSource(ctx, "src1", nil, nil))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_ReplaceSource_LengthMismatch(t *testing.T) {
	s := New(dims)
	err := s.ReplaceSource(context.Background(), "src1",
		[]domain.Chunk{chunk("a", "src1")}, nil)
	assert.Error(t, err)
}

func TestStore_DeleteBySource(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, chunk("a", "src1"), vec(1, 0, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("b", "src1"), vec(0, 1, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("c", "src2"), vec(0, 0, 1, 0)))

	deleted, err := s.DeleteBySource(ctx, "src1")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_HashExists(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, chunk("a", "src1"), vec(1, 0, 0, 0)))

	exists, err := s.HashExists(ctx, "hash-a", "src2")
	require.NoError(t, err)
	assert.True(t, exists)

	// A source's own chunks never block its replacement.
	exists, err = s.HashExists(ctx, "hash-a", "src1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = s.HashExists(ctx, "unknown", "src2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_HashesBySource(t *testing.T) {
	s := New(dims)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, chunk("a", "src1"), vec(1, 0, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("b", "src1"), vec(0, 1, 0, 0)))
	require.NoError(t, s.Upsert(ctx, chunk("c", "src2"), vec(0, 0, 1, 0)))

	hashes, err := s.HashesBySource(ctx, "src1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"hash-a": true, "hash-b": true}, hashes)
}
