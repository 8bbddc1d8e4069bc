// Package dummy provides a deterministic fallback embedding provider.
// Vectors are reproducible pseudo-random unit vectors seeded from a
// hash of the input text: the same text always yields the bit-identical
// vector. They carry no semantic meaning; their job is to keep degraded
// mode consistent and the pipeline testable without a live provider.
package dummy

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/answercart/answercart/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// DefaultDimensions matches the default OpenAI embedding model so the
// fallback can stand in for it without a store dimension change.
const DefaultDimensions = 1536

// ModelID identifies fallback vectors in persisted records so they are
// never compared against real model vectors after recovery.
const ModelID = "dummy-hash-v1"

// Provider is the deterministic fallback embedder.
type Provider struct {
	dimensions int
}

// New creates a fallback provider with the given dimension.
// Zero or negative dimensions fall back to the default.
func New(dimensions int) *Provider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Provider{dimensions: dimensions}
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return "dummy-embedding"
}

// EmbedBatch generates one deterministic unit vector per text.
// It never fails.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.embed(text)
	}
	return out, nil
}

// embed derives a unit vector from a hash-seeded PRNG.
func (p *Provider) embed(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.LittleEndian.Uint64(sum[:8]))

	//nolint:gosec // Deterministic output is the point; this is not security-sensitive.
	rng := rand.New(rand.NewSource(seed))

	values := make([]float32, p.dimensions)
	var norm float64
	for i := range values {
		v := rng.NormFloat64()
		values[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		values[0] = 1
		return values
	}
	for i := range values {
		values[i] = float32(float64(values[i]) / norm)
	}
	return values
}

// Dimensions returns the vector size.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelID returns the fallback model identifier.
func (p *Provider) ModelID() string {
	return ModelID
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}
