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

import "fmt"

// ValidateTranscript validates a Transcript according to domain rules.
//
// Validation rules:
//   - VideoID must not be empty
//   - ProducedAt must not be zero
//
// NOT validated:
//   - Text (an empty transcript is legal and produces zero chunks)
//   - Language and Duration (informational metadata)
func ValidateTranscript(t *Transcript) error {
	if t == nil {
		return fmt.Errorf("%w: transcript is nil", ErrInvalidArgument)
	}

	if t.VideoID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrEmptyVideoID)
	}

	if t.ProducedAt.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrZeroProducedAt)
	}

	return nil
}

// ValidateIndexEntry validates an IndexEntry before it is written.
//
// Validation rules:
//   - VideoID must not be empty
//   - Text must not be empty (an embedding is never stored without its chunk text)
//   - Vector must not be empty
//   - ModelVersion must not be empty
func ValidateIndexEntry(entry *IndexEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidArgument)
	}

	if entry.VideoID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrEmptyVideoID)
	}

	if entry.Text == "" {
		return fmt.Errorf("%w: entry %d has no text", ErrInvalidArgument, entry.ID)
	}

	if len(entry.Vector) == 0 {
		return fmt.Errorf("%w: entry %d has no vector", ErrInvalidArgument, entry.ID)
	}

	if entry.ModelVersion == "" {
		return fmt.Errorf("%w: entry %d has no model version", ErrInvalidArgument, entry.ID)
	}

	return nil
}
