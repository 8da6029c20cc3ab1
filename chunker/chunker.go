package chunker

import (
	"fmt"

	"github.com/transvec/transvec/core"
)

// BoundaryPolicy selects how chunk boundaries are chosen.
type BoundaryPolicy int

const (
	// BoundarySentence prefers splitting at the sentence end nearest the size
	// cap, falling back to a fixed-width split when no sentence end is found
	// within the tolerance window.
	BoundarySentence BoundaryPolicy = iota + 1
	// BoundaryFixedWidth always splits at exactly MaxChunkChars.
	BoundaryFixedWidth
)

// Config controls how transcripts are split into chunks.
// All sizes are in runes, not bytes.
type Config struct {
	// MaxChunkChars caps the length of a single chunk.
	MaxChunkChars int

	// OverlapChars is the shared context between adjacent chunks.
	// Must be >= 0 and < MaxChunkChars.
	OverlapChars int

	// BoundaryPolicy selects sentence-preferred or fixed-width splitting.
	BoundaryPolicy BoundaryPolicy

	// BoundaryTolerance is how far before the size cap a sentence end may sit
	// and still be preferred over a fixed-width split.
	// Zero means MaxChunkChars / 2.
	BoundaryTolerance int
}

// DefaultConfig returns the chunking defaults used for transcript ingestion.
func DefaultConfig() Config {
	return Config{
		MaxChunkChars:  1000,
		OverlapChars:   200,
		BoundaryPolicy: BoundarySentence,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxChunkChars <= 0 {
		return fmt.Errorf("%w: MaxChunkChars must be positive, got %d", core.ErrInvalidConfig, c.MaxChunkChars)
	}
	if c.OverlapChars < 0 {
		return fmt.Errorf("%w: OverlapChars must be >= 0, got %d", core.ErrInvalidConfig, c.OverlapChars)
	}
	if c.OverlapChars >= c.MaxChunkChars {
		return fmt.Errorf("%w: OverlapChars (%d) must be less than MaxChunkChars (%d)",
			core.ErrInvalidConfig, c.OverlapChars, c.MaxChunkChars)
	}
	if c.BoundaryPolicy != BoundarySentence && c.BoundaryPolicy != BoundaryFixedWidth {
		return fmt.Errorf("%w: unknown boundary policy %d", core.ErrInvalidConfig, c.BoundaryPolicy)
	}
	if c.BoundaryTolerance < 0 {
		return fmt.Errorf("%w: BoundaryTolerance must be >= 0, got %d", core.ErrInvalidConfig, c.BoundaryTolerance)
	}
	return nil
}

func (c Config) tolerance() int {
	if c.BoundaryTolerance > 0 {
		return c.BoundaryTolerance
	}
	return c.MaxChunkChars / 2
}

// Split divides a transcript into an ordered sequence of chunks.
//
// Adjacent chunks overlap by up to OverlapChars runes; every chunk is a
// contiguous slice of the transcript text, so concatenating chunk texts with
// the overlaps removed reconstructs the transcript exactly (see Reconstruct).
// Sequence indexes are 0-based and contiguous. An empty transcript produces
// an empty sequence, not an error.
func Split(t *core.Transcript, cfg Config) ([]*core.Chunk, error) {
	if err := core.ValidateTranscript(t); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(t.Text)
	if len(runes) == 0 {
		return []*core.Chunk{}, nil
	}

	var chunks []*core.Chunk
	start := 0
	seq := 0
	for start < len(runes) {
		end := start + cfg.MaxChunkChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) && cfg.BoundaryPolicy == BoundarySentence {
			// The boundary must clear the overlapped prefix so that every
			// chunk extends past its predecessor's end.
			if boundary := lastSentenceEnd(runes, start, end); boundary > start+cfg.OverlapChars && end-boundary <= cfg.tolerance() {
				end = boundary
			}
		}

		text := string(runes[start:end])
		chunks = append(chunks, &core.Chunk{
			ID:            core.ChunkIDFor(t.VideoID, seq, text),
			VideoID:       t.VideoID,
			SequenceIndex: seq,
			Text:          text,
			StartOffset:   start,
			EndOffset:     end,
		})

		if end == len(runes) {
			break
		}

		next := end - cfg.OverlapChars
		if next <= start {
			// Forward progress even when the boundary landed inside the overlap.
			next = start + 1
		}
		start = next
		seq++
	}

	return chunks, nil
}

// Reconstruct rebuilds the original transcript text from an ordered chunk
// sequence by dropping each chunk's leading overlap. It is the inverse of
// Split for any valid configuration.
func Reconstruct(chunks []*core.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	out := []rune(chunks[0].Text)
	prevEnd := chunks[0].EndOffset
	for _, chunk := range chunks[1:] {
		overlap := prevEnd - chunk.StartOffset
		runes := []rune(chunk.Text)
		if overlap < 0 || overlap > len(runes) {
			overlap = 0
		}
		out = append(out, runes[overlap:]...)
		prevEnd = chunk.EndOffset
	}
	return string(out)
}

// lastSentenceEnd returns the rune offset just past the last sentence end in
// runes[start:end], including any whitespace that follows the terminator.
// Returns start when the window contains no sentence end.
func lastSentenceEnd(runes []rune, start, end int) int {
	boundary := start
	for i := start; i < end; i++ {
		if !isSentenceTerminator(runes[i]) {
			continue
		}
		// A terminator ends a sentence only at end of text or before whitespace.
		if i+1 < len(runes) && !isSpace(runes[i+1]) {
			continue
		}
		b := i + 1
		for b < end && isSpace(runes[b]) {
			b++
		}
		boundary = b
	}
	return boundary
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
