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


// Package storage provides the storage abstraction layer for transvec.
//
// This package defines repository interfaces that decouple the storage
// implementation from the ingestion and retrieval logic. The concrete
// BadgerDB backend lives in the badger subpackage; any engine that satisfies
// the upsert/delete/search contract can replace it.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces to enforce abstraction:
//
//	repo, err := badger.NewIndexRepository(backend)  // returns storage.IndexRepository
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Architecture
//
//   - IndexRepository: upsert, delete-by-video, and similarity search over
//     persisted index entries, keyed by (chunk id, model version)
//   - IngestionLogRepository: per-video ingestion progress records used for
//     idempotency and status reporting
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines. Each entry upsert is atomic, so readers
// always observe either the old or the new version of an entry, never a
// half-written one.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and timeout
// support. Pass context.Background() for operations without specific timeout
// requirements.
package storage
