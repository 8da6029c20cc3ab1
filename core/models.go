package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Chunk IDs are generated with content-based hashing so that identical
// inputs always map to the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkIDFor derives the identity of a chunk from its video, position, and text.
// The ID is a pure function of its inputs: re-chunking an unchanged transcript
// yields the same IDs, which is what makes upserts idempotent.
func ChunkIDFor(videoID string, sequenceIndex int, text string) ID {
	return IDFromContent(videoID + ":" + strconv.Itoa(sequenceIndex) + ":" + text)
}

// Transcript is a full transcript delivered by the transcription collaborator.
// It is immutable once delivered, but the same VideoID may be re-delivered
// with a newer ProducedAt, which triggers re-ingestion.
type Transcript struct {
	VideoID    string
	Text       string
	Language   string
	Duration   time.Duration
	ProducedAt time.Time
}

// Chunk is a bounded contiguous slice of a transcript, the unit of
// embedding and retrieval. Offsets are rune offsets into the transcript text.
type Chunk struct {
	ID            ID
	VideoID       string
	SequenceIndex int
	Text          string
	StartOffset   int
	EndOffset     int
}

// IndexEntry is the persisted union of a chunk, its embedding vector, and
// metadata. Entries are keyed by (ID, ModelVersion); the vector is stored
// unit-normalized so that dot product equals cosine similarity.
type IndexEntry struct {
	ID            ID
	VideoID       string
	SequenceIndex int
	Text          string
	StartOffset   int
	EndOffset     int
	Vector        []float32
	ModelVersion  string
	ProducedAt    time.Time // ProducedAt of the transcript version this entry came from
	InsertedAt    time.Time // When the entry was first written
	UpdatedAt     time.Time // When the entry was last overwritten
}

// RetrievalResult is a single ranked match from a similarity search.
// Results are ephemeral and never persisted.
type RetrievalResult struct {
	Entry *IndexEntry
	Score float32
	Rank  int
}

// IngestionState tracks the progress of one transcript ingestion.
type IngestionState int

const (
	// IngestionStatePending means the transcript has been accepted but not started.
	IngestionStatePending IngestionState = iota + 1
	// IngestionStateChunking means the transcript is being split into chunks.
	IngestionStateChunking
	// IngestionStateEmbedding means chunk embeddings are being generated.
	IngestionStateEmbedding
	// IngestionStateUpserting means index entries are being written to the store.
	IngestionStateUpserting
	// IngestionStateComplete means the transcript version is fully indexed.
	IngestionStateComplete
	// IngestionStateFailed means ingestion stopped after retry exhaustion or cancellation.
	IngestionStateFailed
)

// String returns the lowercase name of the state.
func (s IngestionState) String() string {
	switch s {
	case IngestionStatePending:
		return "pending"
	case IngestionStateChunking:
		return "chunking"
	case IngestionStateEmbedding:
		return "embedding"
	case IngestionStateUpserting:
		return "upserting"
	case IngestionStateComplete:
		return "complete"
	case IngestionStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IngestionRecord is the persisted ingestion log entry for a video.
// It is keyed by VideoID and records the last observed transcript version
// and how far its ingestion got. A Complete record for a given
// (VideoID, ProducedAt) makes redelivery of that version a no-op.
type IngestionRecord struct {
	VideoID      string
	ProducedAt   time.Time
	ModelVersion string
	State        IngestionState
	Reason       string // failure reason, empty unless State is Failed
	ChunkCount   int
	UpdatedAt    time.Time
}
