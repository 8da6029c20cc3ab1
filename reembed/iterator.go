// Copyright 2025 Transvec Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"

	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/storage"
)

const (
	// DefaultBatchSize is the default number of entries to process per batch
	DefaultBatchSize = 100
)

// EntryIterator walks every indexed entry of one model version, video by
// video, in batches.
type EntryIterator struct {
	repo         storage.IndexRepository
	modelVersion string
	batchSize    int
}

// NewEntryIterator creates a new entry iterator over the given model version.
// batchSize: number of entries to yield per batch (must be > 0)
func NewEntryIterator(repo storage.IndexRepository, modelVersion string, batchSize int) *EntryIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &EntryIterator{
		repo:         repo,
		modelVersion: modelVersion,
		batchSize:    batchSize,
	}
}

// ForEach iterates over all entries under the iterator's model version,
// calling fn once per batch. Batches never span videos, so fn observing the
// last batch of a video means that video is fully processed.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func (it *EntryIterator) ForEach(ctx context.Context, fn func(videoID string, batch []*core.IndexEntry) error) error {
	videos, err := it.repo.ListVideos(ctx, it.modelVersion)
	if err != nil {
		return err
	}

	for _, videoID := range videos {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entries, err := it.repo.GetEntriesByVideo(ctx, videoID, it.modelVersion)
		if err != nil {
			return err
		}

		for i := 0; i < len(entries); i += it.batchSize {
			end := i + it.batchSize
			if end > len(entries) {
				end = len(entries)
			}

			if err := fn(videoID, entries[i:end]); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}

	return nil
}

// Count returns the total number of entries the iterator would visit.
func (it *EntryIterator) Count(ctx context.Context) (int, error) {
	videos, err := it.repo.ListVideos(ctx, it.modelVersion)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, videoID := range videos {
		count, err := it.repo.CountByVideo(ctx, videoID, it.modelVersion)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}
