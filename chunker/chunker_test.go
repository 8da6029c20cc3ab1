package chunker

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transvec/transvec/core"
)

func testTranscript(text string) *core.Transcript {
	return &core.Transcript{
		VideoID:    "v1",
		Text:       text,
		ProducedAt: time.Now().UTC(),
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"fixed width", Config{MaxChunkChars: 10, BoundaryPolicy: BoundaryFixedWidth}, false},
		{"zero max", Config{MaxChunkChars: 0, BoundaryPolicy: BoundarySentence}, true},
		{"negative overlap", Config{MaxChunkChars: 10, OverlapChars: -1, BoundaryPolicy: BoundarySentence}, true},
		{"overlap equals max", Config{MaxChunkChars: 10, OverlapChars: 10, BoundaryPolicy: BoundarySentence}, true},
		{"overlap exceeds max", Config{MaxChunkChars: 10, OverlapChars: 20, BoundaryPolicy: BoundarySentence}, true},
		{"unknown policy", Config{MaxChunkChars: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplit_EmptyTranscript(t *testing.T) {
	chunks, err := Split(testTranscript(""), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_SingleChunk(t *testing.T) {
	chunks, err := Split(testTranscript("Short text."), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Short text.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 11, chunks[0].EndOffset)
}

func TestSplit_SentenceBoundaries(t *testing.T) {
	// Three sentences, cap tight enough that each chunk holds one sentence.
	transcript := testTranscript("Sentence one. Sentence two. Sentence three.")
	cfg := Config{MaxChunkChars: 20, OverlapChars: 0, BoundaryPolicy: BoundarySentence}

	chunks, err := Split(transcript, cfg)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Sentence one. ", chunks[0].Text)
	assert.Equal(t, "Sentence two. ", chunks[1].Text)
	assert.Equal(t, "Sentence three.", chunks[2].Text)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.SequenceIndex)
		assert.Equal(t, core.ChunkIDFor("v1", i, chunk.Text), chunk.ID)
	}
}

func TestSplit_FixedWidthFallback(t *testing.T) {
	// No sentence ends at all: split at exactly the cap.
	transcript := testTranscript(strings.Repeat("a", 25))
	cfg := Config{MaxChunkChars: 10, OverlapChars: 0, BoundaryPolicy: BoundarySentence}

	chunks, err := Split(transcript, cfg)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("a", 10), chunks[0].Text)
	assert.Equal(t, strings.Repeat("a", 10), chunks[1].Text)
	assert.Equal(t, strings.Repeat("a", 5), chunks[2].Text)
}

func TestSplit_Overlap(t *testing.T) {
	transcript := testTranscript(strings.Repeat("a", 30))
	cfg := Config{MaxChunkChars: 10, OverlapChars: 3, BoundaryPolicy: BoundaryFixedWidth}

	chunks, err := Split(transcript, cfg)
	require.NoError(t, err)
	require.True(t, len(chunks) > 1)

	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, 3, chunks[i-1].EndOffset-chunks[i].StartOffset)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	texts := []string{
		"Sentence one. Sentence two. Sentence three.",
		"One long paragraph without any sentence terminators at all just words",
		"Mixed! Content? With terminators. And a trailing fragment",
		strings.Repeat("lorem ipsum dolor sit amet. ", 40),
		"Unicode: héllo wörld. Ça va bien? Très bien. " + strings.Repeat("日本語のテキスト。", 12),
		"a",
	}
	configs := []Config{
		{MaxChunkChars: 20, OverlapChars: 0, BoundaryPolicy: BoundarySentence},
		{MaxChunkChars: 20, OverlapChars: 5, BoundaryPolicy: BoundarySentence},
		{MaxChunkChars: 15, OverlapChars: 7, BoundaryPolicy: BoundaryFixedWidth},
		{MaxChunkChars: 50, OverlapChars: 10, BoundaryPolicy: BoundarySentence},
		DefaultConfig(),
	}

	for _, text := range texts {
		for _, cfg := range configs {
			chunks, err := Split(testTranscript(text), cfg)
			require.NoError(t, err)
			assert.Equal(t, text, Reconstruct(chunks), "round trip failed for max=%d overlap=%d", cfg.MaxChunkChars, cfg.OverlapChars)
		}
	}
}

func TestSplit_ContiguousSequence(t *testing.T) {
	transcript := testTranscript(strings.Repeat("word after word. ", 30))
	chunks, err := Split(transcript, Config{MaxChunkChars: 40, OverlapChars: 10, BoundaryPolicy: BoundarySentence})
	require.NoError(t, err)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.SequenceIndex)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	transcript := testTranscript(strings.Repeat("some sentence here. ", 25))
	cfg := Config{MaxChunkChars: 64, OverlapChars: 16, BoundaryPolicy: BoundarySentence}

	first, err := Split(transcript, cfg)
	require.NoError(t, err)
	second, err := Split(transcript, cfg)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestSplit_ChunkSizeCap(t *testing.T) {
	transcript := testTranscript(strings.Repeat("sentence goes here. ", 50))
	cfg := Config{MaxChunkChars: 30, OverlapChars: 5, BoundaryPolicy: BoundarySentence}

	chunks, err := Split(transcript, cfg)
	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), cfg.MaxChunkChars)
	}
}
