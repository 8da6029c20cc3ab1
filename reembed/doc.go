// Package reembed migrates indexed transcript chunks from one embedding
// model version to another. Each chunk's stored text is re-embedded with the
// target model and upserted under the target model version, leaving the
// source version in place (and serving queries) until the migration is
// complete.
//
// The package supports batch processing, progress tracking, and retry with
// exponential backoff for transient embedding failures.
package reembed
