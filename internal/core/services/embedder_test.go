package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answercart/answercart/internal/adapters/driven/embedding/dummy"
	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
)

// mockEmbedProvider implements driven.EmbeddingProvider for testing.
// failUntil makes the first N calls fail before succeeding.
type mockEmbedProvider struct {
	name      string
	dims      int
	model     string
	failUntil int
	failErr   error // returned on every call when set
	calls     int
	batches   [][]string
}

func (m *mockEmbedProvider) Name() string    { return m.name }
func (m *mockEmbedProvider) Dimensions() int { return m.dims }
func (m *mockEmbedProvider) ModelID() string { return m.model }
func (m *mockEmbedProvider) Close() error    { return nil }

func (m *mockEmbedProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	m.batches = append(m.batches, texts)
	if m.failErr != nil {
		return nil, m.failErr
	}
	if m.calls <= m.failUntil {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dims)
		vec[0] = 2 // not unit length; the gateway normalises
		out[i] = vec
	}
	return out, nil
}

// noSleep makes retry backoff instantaneous in tests.
func noSleep(g *EmbeddingGateway) {
	g.sleep = func(context.Context, time.Duration) error { return nil }
}

func TestNewEmbeddingGateway_Validation(t *testing.T) {
	t.Run("requires fallback", func(t *testing.T) {
		_, err := NewEmbeddingGateway(nil, nil)
		assert.Error(t, err)
	})

	t.Run("rejects dimension mismatch with fallback", func(t *testing.T) {
		chain := []driven.EmbeddingProvider{&mockEmbedProvider{name: "p", dims: 8, model: "m"}}
		_, err := NewEmbeddingGateway(chain, dummy.New(16))
		assert.Error(t, err)
	})
}

func TestEmbeddingGateway_EmbedBatch_Normalises(t *testing.T) {
	p := &mockEmbedProvider{name: "p", dims: 4, model: "m"}
	g, err := NewEmbeddingGateway([]driven.EmbeddingProvider{p}, dummy.New(4))
	require.NoError(t, err)
	noSleep(g)

	vectors, err := g.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	for _, v := range vectors {
		assert.InDelta(t, 1.0, v.Dot(v), 1e-6, "vector should be unit length")
		assert.Equal(t, "m", v.ModelID)
	}
}

func TestEmbeddingGateway_EmbedBatch_SplitsAtCap(t *testing.T) {
	p := &mockEmbedProvider{name: "p", dims: 4, model: "m"}
	g, err := NewEmbeddingGateway([]driven.EmbeddingProvider{p}, dummy.New(4), WithBatchCap(2))
	require.NoError(t, err)
	noSleep(g)

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := g.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 5)

	require.Len(t, p.batches, 3)
	assert.Equal(t, []string{"a", "b"}, p.batches[0])
	assert.Equal(t, []string{"c", "d"}, p.batches[1])
	assert.Equal(t, []string{"e"}, p.batches[2])
}

func TestEmbeddingGateway_RetriesThenSucceeds(t *testing.T) {
	p := &mockEmbedProvider{name: "p", dims: 4, model: "m", failUntil: 2}
	g, err := NewEmbeddingGateway([]driven.EmbeddingProvider{p}, dummy.New(4), WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	noSleep(g)

	vectors, err := g.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, "m", vectors[0].ModelID)
}

func TestEmbeddingGateway_RejectionSkipsRetries(t *testing.T) {
	p := &mockEmbedProvider{
		name: "p", dims: 4, model: "m",
		failErr: fmt.Errorf("%w: bad credentials", domain.ErrProviderRejected),
	}
	g, err := NewEmbeddingGateway([]driven.EmbeddingProvider{p}, dummy.New(4), WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	noSleep(g)

	vectors, err := g.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, dummy.ModelID, vectors[0].ModelID, "gateway should fall back")
	assert.Equal(t, 1, p.calls, "a rejected request must not be retried")
}

func TestEmbeddingGateway_FallsBackToDummy(t *testing.T) {
	p := &mockEmbedProvider{name: "p", dims: 4, model: "m", failUntil: 99}
	g, err := NewEmbeddingGateway([]driven.EmbeddingProvider{p}, dummy.New(4), WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	noSleep(g)

	vectors, err := g.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, dummy.ModelID, vectors[0].ModelID)
	assert.Equal(t, 2, p.calls)
}

func TestEmbeddingGateway_FallbackDeterministic(t *testing.T) {
	g, err := NewEmbeddingGateway(nil, dummy.New(8))
	require.NoError(t, err)

	a, err := g.EmbedQuery(context.Background(), "same text")
	require.NoError(t, err)
	b, err := g.EmbedQuery(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)

	c, err := g.EmbedQuery(context.Background(), "different text")
	require.NoError(t, err)
	assert.NotEqual(t, a.Values, c.Values)
}

func TestEmbeddingGateway_EmptyInput(t *testing.T) {
	g, err := NewEmbeddingGateway(nil, dummy.New(4))
	require.NoError(t, err)

	vectors, err := g.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbeddingGateway_ContextCancelled(t *testing.T) {
	p := &mockEmbedProvider{name: "p", dims: 4, model: "m", failUntil: 99}
	g, err := NewEmbeddingGateway([]driven.EmbeddingProvider{p}, dummy.New(4))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = g.EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
