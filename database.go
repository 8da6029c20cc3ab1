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

package transvec

import (
	"log/slog"

	"github.com/transvec/transvec/ai"
	"github.com/transvec/transvec/ai/openai"
	"github.com/transvec/transvec/ingestion"
	"github.com/transvec/transvec/search"
	"github.com/transvec/transvec/storage"
	"github.com/transvec/transvec/storage/badger"
)

// Database bundles the badger-backed chunk index, the ingestion log, and the
// embedding client behind one open/close lifecycle.
type Database struct {
	backend   *badger.Backend
	indexRepo storage.IndexRepository
	logRepo   storage.IngestionLogRepository
	embedder  ai.Embedder
	logger    *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	inMemory bool
}

// WithAIConfig sets the embedding service configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithInMemory opens the store in memory, discarding everything on Close.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens (creating if necessary) the index at filePath and
// connects the embedding client.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	indexRepo := badger.NewIndexRepository(backend)
	logRepo := badger.NewIngestionLogRepository(backend)

	embedder, err := openai.NewEmbedder(options.aiConfig)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:   backend,
		indexRepo: indexRepo,
		logRepo:   logRepo,
		embedder:  embedder,
		logger:    slog.Default(),
	}, nil
}

// Close closes the repositories and the backend.
func (db *Database) Close() error {
	if err := db.indexRepo.Close(); err != nil {
		db.logger.Error("error closing index repository", "err", err)
		return err
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// IndexRepository exposes the chunk index for direct access.
func (db *Database) IndexRepository() storage.IndexRepository {
	return db.indexRepo
}

// IngestionLogRepository exposes the per-video ingestion log.
func (db *Database) IngestionLogRepository() storage.IngestionLogRepository {
	return db.logRepo
}

// Embedder exposes the configured embedding client.
func (db *Database) Embedder() ai.Embedder {
	return db.embedder
}

// NewIngestionCoordinator creates a coordinator bound to this database.
func (db *Database) NewIngestionCoordinator(opts ...ingestion.Option) (*ingestion.Coordinator, error) {
	return ingestion.NewCoordinator(db.indexRepo, db.logRepo, db.embedder, opts...)
}

// NewRetriever creates a retriever bound to this database.
func (db *Database) NewRetriever(opts ...search.Option) (*search.Retriever, error) {
	return search.NewRetriever(db.indexRepo, db.embedder, opts...)
}
