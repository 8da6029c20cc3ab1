// Package chunker splits transcripts into overlapping chunks for embedding.
//
// Chunks are contiguous rune slices of the transcript text, so re-chunking an
// unchanged transcript is fully deterministic: same boundaries, same texts,
// same chunk IDs. That determinism is what the ingestion path relies on for
// idempotent upserts.
package chunker
