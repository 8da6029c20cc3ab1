package reembed

import "errors"

var (
	// ErrSourceModelRequired is returned when no source model version is given.
	ErrSourceModelRequired = errors.New("source model version required")

	// ErrSameModelVersion is returned when the source model version matches
	// the target embedder's model version.
	ErrSameModelVersion = errors.New("source and target model versions are identical")
)
