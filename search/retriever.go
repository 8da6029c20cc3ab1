package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/transvec/transvec/ai"
	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/storage"
)

// DefaultMinScore is the similarity floor below which results are dropped.
const DefaultMinScore float32 = 0.25

// Retriever answers free-text queries against the chunk index. The query is
// embedded with the same model the entries were indexed under, and results
// are ranked by cosine similarity.
type Retriever struct {
	indexRepo storage.IndexRepository
	embedder  ai.Embedder
	minScore  float32
	logger    *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithMinScore sets the similarity floor for results.
// Default is DefaultMinScore.
func WithMinScore(minScore float32) Option {
	return func(r *Retriever) error {
		if minScore < -1 || minScore > 1 {
			return fmt.Errorf("%w: min score must be within [-1, 1], got %v", core.ErrInvalidConfig, minScore)
		}
		r.minScore = minScore
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(indexRepo storage.IndexRepository, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if indexRepo == nil {
		return nil, ErrIndexRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		indexRepo: indexRepo,
		embedder:  embedder,
		minScore:  DefaultMinScore,
		logger:    slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Filters narrows a retrieval to specific videos. A nil or empty VideoIDs
// slice searches every indexed video.
type Filters struct {
	VideoIDs []string
}

// Retrieve returns up to k chunks most similar to the query.
// Returns an empty slice when nothing clears the similarity floor.
// Retrieval does not retry: a failed query surfaces its error directly.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filters Filters) ([]*core.RetrievalResult, error) {
	return r.RetrieveWithMonitor(ctx, query, k, filters, nil)
}

// RetrieveWithMonitor is Retrieve with observation hooks. The monitor
// receives callbacks at each stage of the retrieval process.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, k int, filters Filters, monitor RetrievalMonitor) ([]*core.RetrievalResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", core.ErrInvalidArgument, k)
	}

	monitor.Start(query)

	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	embedding = core.NormalizeVector(embedding)
	monitor.AfterQueryEmbedding(embedding)

	results, err := r.indexRepo.Search(ctx, embedding, k, storage.Filters{
		ModelVersion: r.embedder.ModelVersion(),
		VideoIDs:     filters.VideoIDs,
		MinScore:     r.minScore,
	})
	if err != nil {
		r.logger.Error("error querying the chunk index", "err", err)
		return nil, err
	}
	monitor.AfterSimilaritySearch(results)

	for _, result := range results {
		if containsAllQueryWords(result.Entry.Text, query) {
			monitor.VerbatimMatch(result.Entry)
		}
	}

	monitor.Finish(results)
	return results, nil
}
