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

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/storage"
)

// IngestionLogRepository implements storage.IngestionLogRepository for BadgerDB.
type IngestionLogRepository struct {
	backend *Backend
}

var _ storage.IngestionLogRepository = (*IngestionLogRepository)(nil)

// NewIngestionLogRepository creates a new IngestionLogRepository.
func NewIngestionLogRepository(backend *Backend) storage.IngestionLogRepository {
	return &IngestionLogRepository{backend: backend}
}

// SaveIngestionRecord persists the latest ingestion state for a video,
// replacing any previous record.
func (r *IngestionLogRepository) SaveIngestionRecord(ctx context.Context, record *core.IngestionRecord) error {
	if record == nil || record.VideoID == "" {
		return fmt.Errorf("%w: ingestion record requires a video ID", core.ErrInvalidArgument)
	}

	record.UpdatedAt = time.Now().UTC()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeIngestionLogKey(record.VideoID)
		if err := tx.Set(key, storage.MarshalIngestionRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return wrapStoreErr(err)
}

// LoadIngestionRecord retrieves the ingestion record for a video.
// Returns (nil, nil) when no record exists.
func (r *IngestionLogRepository) LoadIngestionRecord(ctx context.Context, videoID string) (*core.IngestionRecord, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: video ID is required", core.ErrInvalidArgument)
	}

	var record *core.IngestionRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIngestionLogKey(videoID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			record, err = storage.UnmarshalIngestionRecord(val)
			return err
		})
	}, false)

	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return record, nil
}
