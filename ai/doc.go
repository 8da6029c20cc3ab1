// Package ai defines the embedding service abstraction used by the ingestion
// and retrieval paths.
//
// The Embedder interface is implemented by the openai subpackage for
// OpenAI-compatible embedding APIs and by the mock subpackage for tests.
// All implementations must be pure functions of (text, model version) so that
// batch-level retries are safe.
package ai
