package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use, and must be pure:
// identical input under the same model version always yields the same vectors,
// with no hidden state. That purity is what makes batch retries safe.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts
	// and has the same length.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// ModelVersion identifies the embedding model. Entries embedded under
	// different model versions live in separate vector spaces and must never
	// be compared against each other.
	ModelVersion() string

	// Dimension is the fixed vector length produced by this model version.
	Dimension() int
}
