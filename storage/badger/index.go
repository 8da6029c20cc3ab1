package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/storage"
)

// IndexRepository implements storage.IndexRepository for BadgerDB.
type IndexRepository struct {
	backend *Backend
}

var _ storage.IndexRepository = (*IndexRepository)(nil)

// NewIndexRepository creates a new IndexRepository.
//
// Returns the storage.IndexRepository interface to enforce abstraction.
func NewIndexRepository(backend *Backend) storage.IndexRepository {
	return &IndexRepository{backend: backend}
}

// Close releases repository resources. The backend's lifetime is owned by the
// caller that opened it.
func (r *IndexRepository) Close() error {
	return nil
}

// UpsertEntries inserts or replaces entries keyed by (ID, ModelVersion).
func (r *IndexRepository) UpsertEntries(ctx context.Context, entries ...*core.IndexEntry) error {
	for _, entry := range entries {
		if err := core.ValidateIndexEntry(entry); err != nil {
			return err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, entry := range entries {
			key := makeEntryKey(entry.ModelVersion, entry.ID)

			// Preserve InsertedAt on overwrite
			old, err := r.readEntry(tx, key)
			if err != nil {
				return err
			}
			if old != nil {
				entry.InsertedAt = old.InsertedAt
			} else {
				entry.InsertedAt = now
			}
			entry.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalIndexEntry(entry)); err != nil {
				return err
			}

			videoKey := makeEntryVideoKey(entry.ModelVersion, entry.VideoID, entry.ID)
			if err := tx.Set(videoKey, storage.MarshalID(entry.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return wrapStoreErr(err)
}

// DeleteByVideo removes all entries for a (video, model version) pair.
func (r *IndexRepository) DeleteByVideo(ctx context.Context, videoID, modelVersion string) error {
	_, err := r.DeleteStaleEntries(ctx, videoID, modelVersion, nil)
	return err
}

// DeleteStaleEntries removes entries for a (video, model version) pair whose
// chunk ID is not in keep. Returns the number of entries removed.
func (r *IndexRepository) DeleteStaleEntries(ctx context.Context, videoID, modelVersion string, keep []core.ID) (int, error) {
	keepSet := make(map[core.ID]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := r.videoEntryIDs(tx, videoID, modelVersion)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if keepSet[id] {
				continue
			}
			if err := tx.Delete(makeEntryKey(modelVersion, id)); err != nil {
				return err
			}
			if err := tx.Delete(makeEntryVideoKey(modelVersion, videoID, id)); err != nil {
				return err
			}
			deleted++
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return deleted, nil
}

// Search returns up to k entries most similar to the query vector.
func (r *IndexRepository) Search(ctx context.Context, queryVector []float32, k int, filters storage.Filters) ([]*core.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", core.ErrInvalidArgument, k)
	}
	if filters.ModelVersion == "" {
		return nil, fmt.Errorf("%w: model version filter is required", core.ErrInvalidArgument)
	}

	var videoSet map[string]bool
	if len(filters.VideoIDs) > 0 {
		videoSet = make(map[string]bool, len(filters.VideoIDs))
		for _, id := range filters.VideoIDs {
			videoSet[id] = true
		}
	}

	results := []*core.RetrievalResult{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntryScanPrefix(filters.ModelVersion)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entry *core.IndexEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalIndexEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if entry == nil {
				continue
			}

			if videoSet != nil && !videoSet[entry.VideoID] {
				continue
			}

			if len(entry.Vector) != len(queryVector) {
				return fmt.Errorf("%w: query vector has %d dimensions, stored vectors for model %s have %d",
					core.ErrDimensionMismatch, len(queryVector), filters.ModelVersion, len(entry.Vector))
			}

			score := core.DotProduct(queryVector, entry.Vector)
			if score < filters.MinScore {
				continue
			}

			results = append(results, &core.RetrievalResult{Entry: entry, Score: score})
		}
		return nil
	}, false)

	if err != nil {
		return nil, wrapStoreErr(err)
	}

	// Descending score; ties by ascending sequence index, then video ID.
	slices.SortFunc(results, func(a, b *core.RetrievalResult) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.Entry.SequenceIndex != b.Entry.SequenceIndex {
			return a.Entry.SequenceIndex - b.Entry.SequenceIndex
		}
		if a.Entry.VideoID < b.Entry.VideoID {
			return -1
		}
		if a.Entry.VideoID > b.Entry.VideoID {
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	for i, result := range results {
		result.Rank = i
	}

	return results, nil
}

// GetEntriesByVideo retrieves all entries for a (video, model version) pair,
// ordered by sequence index.
func (r *IndexRepository) GetEntriesByVideo(ctx context.Context, videoID, modelVersion string) ([]*core.IndexEntry, error) {
	var entries []*core.IndexEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := r.videoEntryIDs(tx, videoID, modelVersion)
		if err != nil {
			return err
		}

		for _, id := range ids {
			entry, err := r.readEntry(tx, makeEntryKey(modelVersion, id))
			if err != nil {
				return err
			}
			if entry != nil {
				entries = append(entries, entry)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, wrapStoreErr(err)
	}

	slices.SortFunc(entries, func(a, b *core.IndexEntry) int {
		return a.SequenceIndex - b.SequenceIndex
	})
	return entries, nil
}

// CountByVideo returns the number of entries for a (video, model version) pair.
func (r *IndexRepository) CountByVideo(ctx context.Context, videoID, modelVersion string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntryVideoScanPrefix(modelVersion, videoID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)

	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return count, nil
}

// ListVideos returns the distinct video IDs indexed under a model version,
// in ascending order.
func (r *IndexRepository) ListVideos(ctx context.Context, modelVersion string) ([]string, error) {
	if modelVersion == "" {
		return nil, fmt.Errorf("%w: model version is required", core.ErrInvalidArgument)
	}

	prefix := fmt.Sprintf("%s:%s:", entryVideoPrefix, modelVersion)
	seen := make(map[string]bool)
	var videos []string

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			rest := string(iter.Item().Key())[len(prefix):]
			cut := strings.LastIndexByte(rest, ':')
			if cut < 0 {
				continue
			}
			videoID := rest[:cut]
			if !seen[videoID] {
				seen[videoID] = true
				videos = append(videos, videoID)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, wrapStoreErr(err)
	}

	slices.Sort(videos)
	return videos, nil
}

// videoEntryIDs reads the video index and returns the chunk IDs for a
// (video, model version) pair.
func (r *IndexRepository) videoEntryIDs(tx *badger.Txn, videoID, modelVersion string) ([]core.ID, error) {
	var ids []core.ID

	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeEntryVideoScanPrefix(modelVersion, videoID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readEntry reads and unmarshals an entry, returning nil when the key is absent.
func (r *IndexRepository) readEntry(tx *badger.Txn, key []byte) (*core.IndexEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.IndexEntry
	err = item.Value(func(val []byte) error {
		var err error
		entry, err = storage.UnmarshalIndexEntry(val)
		return err
	})
	return entry, err
}

// wrapStoreErr classifies persistence faults as core.ErrStoreUnavailable,
// leaving domain errors untouched so callers can match on kind.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrInvalidArgument) ||
		errors.Is(err, core.ErrDimensionMismatch) ||
		errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
}
