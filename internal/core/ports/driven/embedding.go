package driven

import "context"

// EmbeddingProvider generates vector embeddings from text.
// Providers are stacked into an ordered chain by the embedding gateway;
// the gateway owns retry, batching and normalisation, so providers only
// need to translate one batch call to their wire format.
//
// Implementations may include:
//   - OpenAI-format HTTP APIs (text-embedding-3-small, compatible servers)
//   - The deterministic hash-seeded fallback used in degraded mode
type EmbeddingProvider interface {
	// Name identifies the provider in logs and answers.
	Name() string

	// EmbedBatch generates one embedding per input text, in input
	// order. Callers must respect the provider batch cap; the gateway
	// splits larger batches client-side.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	// This must match the vector store configuration.
	Dimensions() int

	// ModelID returns the identifier of the embedding model.
	ModelID() string

	// Close releases resources.
	Close() error
}
