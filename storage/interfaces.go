package storage

import (
	"context"

	"github.com/transvec/transvec/core"
)

// Filters restricts a similarity search to matching index entries.
type Filters struct {
	// ModelVersion selects the vector space to search. Required: entries from
	// different model versions are never comparable.
	ModelVersion string

	// VideoIDs restricts results to the given videos. Empty means all videos.
	VideoIDs []string

	// MinScore drops matches below the threshold before truncation to k.
	MinScore float32
}

// IndexRepository persists index entries and supports similarity search.
// Implementations must be thread-safe and support concurrent access.
type IndexRepository interface {
	// UpsertEntries inserts or replaces entries keyed by (ID, ModelVersion).
	// Each entry is written atomically: its text, vector, and metadata land
	// together or not at all. Sets InsertedAt on first write and UpdatedAt on
	// every write.
	UpsertEntries(ctx context.Context, entries ...*core.IndexEntry) error

	// DeleteByVideo removes all entries for a (video, model version) pair.
	DeleteByVideo(ctx context.Context, videoID, modelVersion string) error

	// DeleteStaleEntries removes entries for a (video, model version) pair
	// whose chunk ID is not in keep. Returns the number of entries removed.
	// This is the delete-old phase of a re-ingestion: the new version's
	// entries are already in place, so readers never observe a gap.
	DeleteStaleEntries(ctx context.Context, videoID, modelVersion string, keep []core.ID) (int, error)

	// Search returns up to k entries most similar to the query vector,
	// restricted by filters, ordered by descending similarity score with ties
	// broken by ascending sequence index then video ID. Searching an empty
	// store returns an empty slice, not an error.
	// Returns core.ErrDimensionMismatch if the query vector length disagrees
	// with the stored vectors for the filtered model version.
	Search(ctx context.Context, queryVector []float32, k int, filters Filters) ([]*core.RetrievalResult, error)

	// GetEntriesByVideo retrieves all entries for a (video, model version)
	// pair, ordered by sequence index.
	GetEntriesByVideo(ctx context.Context, videoID, modelVersion string) ([]*core.IndexEntry, error)

	// CountByVideo returns the number of entries for a (video, model version) pair.
	CountByVideo(ctx context.Context, videoID, modelVersion string) (int, error)

	// ListVideos returns the distinct video IDs with at least one entry under
	// the model version, in ascending order.
	ListVideos(ctx context.Context, modelVersion string) ([]string, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// IngestionLogRepository persists per-video ingestion progress.
// Implementations must be thread-safe.
type IngestionLogRepository interface {
	// SaveIngestionRecord persists the record for its video, overwriting any
	// previous record. Updates the UpdatedAt timestamp automatically.
	SaveIngestionRecord(ctx context.Context, record *core.IngestionRecord) error

	// LoadIngestionRecord retrieves the record for a video.
	// Returns nil, nil if no record exists.
	LoadIngestionRecord(ctx context.Context, videoID string) (*core.IngestionRecord, error)
}
