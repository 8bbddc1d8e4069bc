package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driven"
	"github.com/answercart/answercart/internal/logger"
)

// Embedding gateway defaults.
const (
	DefaultBatchCap      = 100
	DefaultRetryAttempts = 3
	DefaultRetryBase     = 500 * time.Millisecond
)

// EmbeddingGateway converts text into unit vectors through an ordered
// provider chain, retrying transient failures with exponential backoff
// and falling back to the deterministic fallback provider when the
// whole chain is exhausted. Fallback vectors have no semantic quality
// but keep degraded mode consistent and testable.
type EmbeddingGateway struct {
	chain    []driven.EmbeddingProvider
	fallback driven.EmbeddingProvider

	batchCap int
	attempts int
	base     time.Duration
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
}

// EmbedderOption configures the gateway.
type EmbedderOption func(*EmbeddingGateway)

// WithBatchCap sets the client-side batch size cap.
func WithBatchCap(size int) EmbedderOption {
	return func(g *EmbeddingGateway) {
		if size > 0 {
			g.batchCap = size
		}
	}
}

// WithRetry sets the per-provider retry policy.
func WithRetry(attempts int, base time.Duration) EmbedderOption {
	return func(g *EmbeddingGateway) {
		if attempts > 0 {
			g.attempts = attempts
		}
		if base > 0 {
			g.base = base
		}
	}
}

// WithEmbedLimiter rate-limits provider calls.
func WithEmbedLimiter(l *rate.Limiter) EmbedderOption {
	return func(g *EmbeddingGateway) {
		g.limiter = l
	}
}

// NewEmbeddingGateway creates a gateway over the given provider chain.
// The fallback provider must be infallible in practice (it is the
// deterministic dummy embedder) and must share the chain's dimension.
func NewEmbeddingGateway(chain []driven.EmbeddingProvider, fallback driven.EmbeddingProvider, opts ...EmbedderOption) (*EmbeddingGateway, error) {
	if fallback == nil {
		return nil, fmt.Errorf("embedding gateway: fallback provider is required")
	}
	for _, p := range chain {
		if p.Dimensions() != fallback.Dimensions() {
			return nil, fmt.Errorf("embedding gateway: provider %s dimension %d does not match fallback dimension %d",
				p.Name(), p.Dimensions(), fallback.Dimensions())
		}
	}

	g := &EmbeddingGateway{
		chain:    chain,
		fallback: fallback,
		batchCap: DefaultBatchCap,
		attempts: DefaultRetryAttempts,
		base:     DefaultRetryBase,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Dimensions returns the gateway's vector dimension.
func (g *EmbeddingGateway) Dimensions() int {
	return g.fallback.Dimensions()
}

// ModelID returns the model identifier of the active provider, or the
// fallback's when the chain is empty.
func (g *EmbeddingGateway) ModelID() string {
	if len(g.chain) > 0 {
		return g.chain[0].ModelID()
	}
	return g.fallback.ModelID()
}

// EmbedBatch embeds texts one-to-one with input order, splitting into
// capped sub-batches client-side. Every returned vector is
// L2-normalised.
func (g *EmbeddingGateway) EmbedBatch(ctx context.Context, texts []string) ([]domain.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([]domain.EmbeddingVector, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchCap {
		end := start + g.batchCap
		if end > len(texts) {
			end = len(texts)
		}

		vectors, modelID, err := g.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}

		now := time.Now()
		for _, values := range vectors {
			v := domain.EmbeddingVector{
				Values:      values,
				ModelID:     modelID,
				GeneratedAt: now,
			}
			v.Normalise()
			if v.Dimension() != g.Dimensions() {
				return nil, fmt.Errorf("%w: got %d, want %d",
					domain.ErrDimensionMismatch, v.Dimension(), g.Dimensions())
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// EmbedQuery embeds a single query text.
func (g *EmbeddingGateway) EmbedQuery(ctx context.Context, text string) (domain.EmbeddingVector, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingVector{}, err
	}
	if len(vectors) != 1 {
		return domain.EmbeddingVector{}, fmt.Errorf("%w: expected one vector, got %d",
			domain.ErrEmbeddingUnavailable, len(vectors))
	}
	return vectors[0], nil
}

// embedOnce walks the provider chain with retries, then the fallback.
func (g *EmbeddingGateway) embedOnce(ctx context.Context, texts []string) ([][]float32, string, error) {
	for _, p := range g.chain {
		vectors, err := g.tryProvider(ctx, p, texts)
		if err == nil {
			return vectors, p.ModelID(), nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		logger.Warn("Embedding provider %s exhausted retries: %v", p.Name(), err)
	}

	logger.Info("Embedding chain exhausted, using deterministic fallback")
	vectors, err := g.fallback.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return vectors, g.fallback.ModelID(), nil
}

// tryProvider calls one provider with exponential backoff. Only
// transient failures (timeouts, 5xx, quota) are retried; a provider
// that rejects the request outright fails immediately.
func (g *EmbeddingGateway) tryProvider(ctx context.Context, p driven.EmbeddingProvider, texts []string) ([][]float32, error) {
	var lastErr error
	delay := g.base

	for attempt := 1; attempt <= g.attempts; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vectors, err := p.EmbedBatch(ctx, texts)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("provider %s returned %d vectors for %d texts",
					p.Name(), len(vectors), len(texts))
			}
			return vectors, nil
		}
		lastErr = err
		logger.Debug("Embedding attempt %d/%d via %s failed: %v", attempt, g.attempts, p.Name(), err)

		if errors.Is(err, domain.ErrProviderRejected) {
			return nil, err
		}
		if attempt < g.attempts {
			if err := g.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
	}
	return nil, lastErr
}

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
