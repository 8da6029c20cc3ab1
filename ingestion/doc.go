// Package ingestion coordinates the transcript-to-index pipeline: splitting
// transcripts into chunks, generating embeddings, and upserting index
// entries. A per-video ingestion log records how far each transcript version
// got, and re-ingestion keeps the previous version queryable until the new
// one is fully indexed.
//
// The Coordinator supports both synchronous ingestion (Ingest) and async
// submission onto a bounded worker pool (Submit). Same-video ingestions are
// serialized; distinct videos run concurrently.
package ingestion
