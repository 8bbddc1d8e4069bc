package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Chunk size limits in characters.
const (
	MinChunkSize = 100
	MaxChunkSize = 2000
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ChunkConfig controls how source text is split into chunks.
type ChunkConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// Overlap is how many trailing characters of sentence-aligned text
	// are carried into the start of the next chunk.
	Overlap int
}

// DefaultChunkConfig returns the standard chunking parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// Validate checks the configuration against the allowed bounds.
func (c ChunkConfig) Validate() error {
	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk size %d outside [%d, %d]",
			ErrInvalidChunkConfig, c.ChunkSize, MinChunkSize, MaxChunkSize)
	}
	if c.Overlap < 0 || c.ChunkSize <= c.Overlap {
		return fmt.Errorf("%w: overlap %d must be non-negative and smaller than chunk size %d",
			ErrInvalidChunkConfig, c.Overlap, c.ChunkSize)
	}
	return nil
}

// Chunk is a bounded slice of a content unit's text.
// Chunks are created by the chunking engine and persisted in the vector
// store alongside their embedding.
type Chunk struct {
	// ID is a deterministic hash of SourceID and Position.
	ID string

	// SourceID is a weak back-reference to the originating content unit.
	SourceID string

	// SourceType classifies the originating content.
	SourceType SourceType

	// Text is the chunk content.
	Text string

	// TokenEstimate approximates the token count (chars/4 heuristic).
	TokenEstimate int

	// ContentHash is the SHA-256 hex digest of the normalised text,
	// used to discard duplicates within an index generation.
	ContentHash string

	// Position is the ordinal within the source.
	Position int

	// Quality is a static heuristic score in [0, 1] set at creation
	// time. Boilerplate-heavy text scores low.
	Quality float64

	// HardCut marks a chunk produced by splitting a single sentence
	// that alone exceeded the chunk size.
	HardCut bool

	// Language is inherited from the content unit.
	Language string

	// LastModifiedAt is inherited from the content unit.
	LastModifiedAt time.Time

	// CreatedAt is when the chunk was produced.
	CreatedAt time.Time
}

// ChunkID derives the deterministic chunk identifier for a source and
// position. The same source text rechunked with the same configuration
// yields the same IDs.
func ChunkID(sourceID string, position int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", sourceID, position)))
	return hex.EncodeToString(sum[:16])
}

// HashContent computes the content hash for dedup checks.
func HashContent(normalisedText string) string {
	sum := sha256.Sum256([]byte(normalisedText))
	return hex.EncodeToString(sum[:])
}

// EstimateTokens approximates the token count of text using the
// chars/4 heuristic. It deliberately avoids a real tokenizer to stay
// independent of any particular provider.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EmbeddingVector is the numeric representation of a chunk or query.
// Vectors are L2-normalised to unit length so cosine similarity reduces
// to a dot product.
type EmbeddingVector struct {
	// ChunkID is the owning chunk, empty for query vectors.
	ChunkID string

	// Values is the ordered vector, unit-normalised.
	Values []float32

	// ModelID identifies the embedding model that produced the vector.
	// Vectors from different models must never be compared.
	ModelID string

	// GeneratedAt is when the vector was produced.
	GeneratedAt time.Time
}

// Dimension returns the vector length.
func (v EmbeddingVector) Dimension() int {
	return len(v.Values)
}

// Dot computes the dot product with another vector of equal dimension.
// For unit vectors this equals the cosine similarity.
func (v EmbeddingVector) Dot(other EmbeddingVector) float64 {
	n := len(v.Values)
	if len(other.Values) < n {
		n = len(other.Values)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(v.Values[i]) * float64(other.Values[i])
	}
	return sum
}

// Normalise scales the vector to unit length in place.
// A zero vector is left unchanged.
func (v *EmbeddingVector) Normalise() {
	var sum float64
	for _, f := range v.Values {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i, f := range v.Values {
		v.Values[i] = float32(float64(f) / norm)
	}
}
