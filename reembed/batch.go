package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/transvec/transvec/ai"
	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/ingestion"
	"github.com/transvec/transvec/storage"
)

// BatchProcessor re-embeds batches of index entries under the target model.
type BatchProcessor struct {
	repo           storage.IndexRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.IndexRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process re-embeds a batch of source entries with the target embedder and
// upserts the results under the target model version. Chunk IDs carry over
// unchanged since they hash the chunk text, not the vector.
// Vectors are normalized after embedding so dot product equals cosine.
func (bp *BatchProcessor) Process(ctx context.Context, entries []*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Text
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := ingestion.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(entries) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(entries), len(embeddings))
	}

	targetVersion := bp.embedder.ModelVersion()
	migrated := make([]*core.IndexEntry, len(entries))
	for i, entry := range entries {
		migrated[i] = &core.IndexEntry{
			ID:            entry.ID,
			VideoID:       entry.VideoID,
			SequenceIndex: entry.SequenceIndex,
			Text:          entry.Text,
			StartOffset:   entry.StartOffset,
			EndOffset:     entry.EndOffset,
			Vector:        core.NormalizeVector(embeddings[i]),
			ModelVersion:  targetVersion,
			ProducedAt:    entry.ProducedAt,
		}
	}

	if err := bp.repo.UpsertEntries(ctx, migrated...); err != nil {
		return fmt.Errorf("failed to upsert migrated entries: %w", err)
	}

	return nil
}
