// Package mock provides test doubles for the ai package interfaces.
//
// The mock embedder is deterministic: the same text always produces the same
// unit vector, which lets tests exercise idempotency and re-ingestion paths
// without a live embedding service.
package mock
