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


package core

import "errors"

// Error taxonomy shared across the ingestion and retrieval paths.
// Callers should match with errors.Is: wrapped errors carry context
// while preserving the kind.
var (
	// ErrInvalidConfig indicates invalid component configuration.
	// Never retried.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument indicates caller misuse (bad k, nil transcript, empty video id).
	// Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmbeddingUnavailable indicates a transient upstream embedding failure.
	// Subject to the retry policy.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStoreUnavailable indicates a transient persistence-layer fault.
	// Subject to the retry policy.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDimensionMismatch indicates a vector length disagrees with the
	// model version's declared dimension. Fatal to the affected batch or
	// query, never coerced.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVideoID indicates the VideoID field is empty.
	ErrEmptyVideoID = errors.New("video id cannot be empty")

	// ErrZeroProducedAt indicates a transcript without a production timestamp.
	ErrZeroProducedAt = errors.New("produced_at cannot be zero")
)

// IsTransient reports whether an error is a transient failure that the
// ingestion retry policy may retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrStoreUnavailable)
}
