package ingestion

import "errors"

var (
	// ErrIndexRepositoryRequired is returned when no index repository is provided.
	ErrIndexRepositoryRequired = errors.New("index repository is required")
	// ErrLogRepositoryRequired is returned when no ingestion log repository is provided.
	ErrLogRepositoryRequired = errors.New("ingestion log repository is required")
	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")
	// ErrInvalidMaxAttempts is returned when retry is configured with a
	// non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")
)
