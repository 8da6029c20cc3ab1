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
	"fmt"
	"io"
	"time"

	"github.com/transvec/transvec/ai"
	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/storage"
)

// Config holds configuration for a migration run.
type Config struct {
	// BatchSize is the number of entries to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of entries)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// PurgeSource removes a video's source-version entries once all of its
	// chunks have been migrated. When false both versions remain queryable.
	PurgeSource bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder orchestrates the migration of an index from a source model
// version to the target embedder's model version.
type Reembedder struct {
	repo        storage.IndexRepository
	embedder    ai.Embedder
	sourceModel string
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *EntryIterator
}

// NewReembedder creates a new reembedder migrating entries from sourceModel
// to the embedder's model version.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.IndexRepository, embedder ai.Embedder, sourceModel string, config *Config, progress io.Writer) (*Reembedder, error) {
	if sourceModel == "" {
		return nil, ErrSourceModelRequired
	}
	if embedder != nil && embedder.ModelVersion() == sourceModel {
		return nil, ErrSameModelVersion
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		repo:        repo,
		embedder:    embedder,
		sourceModel: sourceModel,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:    NewEntryIterator(repo, sourceModel, config.BatchSize),
	}, nil
}

// Run executes the migration. Every entry indexed under the source model
// version is re-embedded with the target model and upserted under the target
// version. Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No entries found under model %s\n", r.sourceModel)
		return nil
	}

	fmt.Fprintf(r.progress, "Migrating %d chunks from %s to %s (batch size: %d)\n",
		total, r.sourceModel, r.embedder.ModelVersion(), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	migratedPerVideo := make(map[string]int)

	err = r.iterator.ForEach(ctx, func(videoID string, batch []*core.IndexEntry) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to migrate batch for video %s: %w", videoID, err)
		}

		tracker.Increment(len(batch))
		migratedPerVideo[videoID] += len(batch)

		if r.config.PurgeSource {
			count, err := r.repo.CountByVideo(ctx, videoID, r.sourceModel)
			if err != nil {
				return err
			}
			if migratedPerVideo[videoID] == count {
				if err := r.repo.DeleteByVideo(ctx, videoID, r.sourceModel); err != nil {
					return fmt.Errorf("failed to purge source entries for video %s: %w", videoID, err)
				}
			}
		}

		return nil
	})

	if err != nil {
		return err
	}

	tracker.Finish()

	// Sub-resolution runs would otherwise report an infinite rate.
	elapsed := max(tracker.Elapsed(), time.Millisecond)
	fmt.Fprintf(r.progress, "Migration complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}
