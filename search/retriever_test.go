package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transvec/transvec/ai/mock"
	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/storage"
	badgerstore "github.com/transvec/transvec/storage/badger"
)

// axisEmbedder maps known texts onto fixed axes so similarity is predictable.
func axisEmbedder(axes map[string][]float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.Dim = 3
	lookup := func(text string) []float32 {
		if v, ok := axes[text]; ok {
			return core.NormalizeVector(v)
		}
		return []float32{0, 0, 1}
	}
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return lookup(text), nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = lookup(text)
		}
		return vectors, nil
	}
	return embedder
}

func seedEntries(t *testing.T, indexRepo storage.IndexRepository, embedder *mock.MockEmbedder, texts map[string]string) {
	t.Helper()
	ctx := context.Background()

	seqByVideo := map[string]int{}
	for videoID, text := range texts {
		vector, err := embedder.EmbedText(ctx, text)
		require.NoError(t, err)

		seq := seqByVideo[videoID]
		seqByVideo[videoID]++

		entry := &core.IndexEntry{
			ID:            core.ChunkIDFor(videoID, seq, text),
			VideoID:       videoID,
			SequenceIndex: seq,
			Text:          text,
			EndOffset:     len(text),
			Vector:        vector,
			ModelVersion:  embedder.ModelVersion(),
			ProducedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}
		require.NoError(t, indexRepo.UpsertEntries(ctx, entry))
	}
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"cooking pasta at home": {1, 0, 0},
		"pasta sauce basics":    {0.9, 0.1, 0},
		"engine maintenance":    {0, 1, 0},
		"pasta":                 {1, 0, 0},
	})

	indexRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedEntries(t, indexRepo, embedder, map[string]string{
		"vid-cooking": "cooking pasta at home",
		"vid-sauce":   "pasta sauce basics",
		"vid-cars":    "engine maintenance",
	})

	retriever, err := NewRetriever(indexRepo, embedder)
	require.NoError(t, err)

	results, err := retriever.Retrieve(context.Background(), "pasta", 10, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 2, "the orthogonal chunk should fall below the floor")

	assert.Equal(t, "cooking pasta at home", results[0].Entry.Text)
	assert.Equal(t, 0, results[0].Rank)
	assert.Equal(t, "pasta sauce basics", results[1].Entry.Text)
	assert.Equal(t, 1, results[1].Rank)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRetrieveVideoFilter(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"pasta one": {1, 0, 0},
		"pasta two": {0.95, 0.05, 0},
		"pasta":     {1, 0, 0},
	})

	indexRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedEntries(t, indexRepo, embedder, map[string]string{
		"vid-1": "pasta one",
		"vid-2": "pasta two",
	})

	retriever, err := NewRetriever(indexRepo, embedder)
	require.NoError(t, err)

	results, err := retriever.Retrieve(context.Background(), "pasta", 10, Filters{VideoIDs: []string{"vid-2"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vid-2", results[0].Entry.VideoID)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.Dim = 3

	indexRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	retriever, err := NewRetriever(indexRepo, embedder)
	require.NoError(t, err)

	results, err := retriever.Retrieve(context.Background(), "anything", 5, Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveInvalidK(t *testing.T) {
	embedder := mock.NewMockEmbedder()

	indexRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	retriever, err := NewRetriever(indexRepo, embedder)
	require.NoError(t, err)

	_, err = retriever.Retrieve(context.Background(), "query", 0, Filters{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = retriever.Retrieve(context.Background(), "query", -3, Filters{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestRetrieveSurfacesEmbedderError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("%w: connection refused", core.ErrEmbeddingUnavailable)
	}

	indexRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	retriever, err := NewRetriever(indexRepo, embedder)
	require.NoError(t, err)

	_, err = retriever.Retrieve(context.Background(), "query", 5, Filters{})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Equal(t, 1, embedder.CallCount(), "retrieval must not retry")
}

func TestNewRetrieverValidation(t *testing.T) {
	embedder := mock.NewMockEmbedder()

	indexRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewRetriever(nil, embedder)
	assert.ErrorIs(t, err, ErrIndexRepositoryRequired)

	_, err = NewRetriever(indexRepo, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewRetriever(indexRepo, embedder, WithMinScore(2))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

type recordingMonitor struct {
	started  bool
	embedded bool
	searched int
	verbatim []string
	finished int
}

func (m *recordingMonitor) Start(_ string)                  { m.started = true }
func (m *recordingMonitor) AfterQueryEmbedding(_ []float32) { m.embedded = true }
func (m *recordingMonitor) AfterSimilaritySearch(r []*core.RetrievalResult) {
	m.searched = len(r)
}
func (m *recordingMonitor) VerbatimMatch(e *core.IndexEntry) { m.verbatim = append(m.verbatim, e.Text) }
func (m *recordingMonitor) Finish(r []*core.RetrievalResult) { m.finished = len(r) }

func TestRetrieveWithMonitor(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"cooking pasta at home": {1, 0, 0},
		"engine maintenance":    {0.8, 0.2, 0},
		"pasta":                 {1, 0, 0},
	})

	indexRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedEntries(t, indexRepo, embedder, map[string]string{
		"vid-1": "cooking pasta at home",
		"vid-2": "engine maintenance",
	})

	retriever, err := NewRetriever(indexRepo, embedder)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := retriever.RetrieveWithMonitor(context.Background(), "pasta", 10, Filters{}, monitor)
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.True(t, monitor.embedded)
	assert.Equal(t, len(results), monitor.searched)
	assert.Equal(t, len(results), monitor.finished)
	// Only the chunk containing the query word is a verbatim match.
	assert.Equal(t, []string{"cooking pasta at home"}, monitor.verbatim)
}
