package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/transvec/transvec/ai"
	"github.com/transvec/transvec/chunker"
	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/storage"
)

// Coordinator drives the full ingestion of a transcript: split into chunks,
// embed each chunk, and upsert the resulting index entries. Progress is
// persisted in the ingestion log so failures are queryable, and entries for a
// previous transcript version keep serving queries until the new version is
// fully indexed.
type Coordinator struct {
	indexRepo storage.IndexRepository
	logRepo   storage.IngestionLogRepository
	embedder  ai.Embedder
	chunkCfg  chunker.Config
	pool      *ants.Pool

	locks *keyedLock

	poolSize         int
	batchSize        int
	embedConcurrency int
	maxRetries       int
	retryBaseDelay   time.Duration
	callTimeout      time.Duration
	logger           *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithChunkerConfig sets the chunking configuration.
// Default is chunker.DefaultConfig().
func WithChunkerConfig(cfg chunker.Config) Option {
	return func(c *Coordinator) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.chunkCfg = cfg
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded and upserted per batch.
// Default is 64.
func WithBatchSize(size int) Option {
	return func(c *Coordinator) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", core.ErrInvalidConfig, size)
		}
		c.batchSize = size
		return nil
	}
}

// WithEmbedConcurrency bounds how many embedding batches are in flight at
// once within a single ingestion run. Default is 2.
func WithEmbedConcurrency(n int) Option {
	return func(c *Coordinator) error {
		if n < 1 {
			n = 1
		}
		c.embedConcurrency = n
		return nil
	}
}

// WithWorkerPoolSize sets the worker pool size for async ingestion via Submit.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkerPoolSize(size int) Option {
	return func(c *Coordinator) error {
		if size < 1 {
			size = 1
		}
		c.poolSize = size
		return nil
	}
}

// WithMaxRetries sets the attempt count for transient failures of embedding
// and store calls. Default is 3.
func WithMaxRetries(n int) Option {
	return func(c *Coordinator) error {
		if n < 1 {
			return fmt.Errorf("%w: max retries must be positive, got %d", core.ErrInvalidConfig, n)
		}
		c.maxRetries = n
		return nil
	}
}

// WithRetryBaseDelay sets the base delay for exponential backoff.
// Default is 1 second.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Coordinator) error {
		if d <= 0 {
			return fmt.Errorf("%w: retry base delay must be positive, got %v", core.ErrInvalidConfig, d)
		}
		c.retryBaseDelay = d
		return nil
	}
}

// WithCallTimeout sets the per-call timeout for embedding and store
// operations. Default is 30 seconds.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) error {
		if d <= 0 {
			return fmt.Errorf("%w: call timeout must be positive, got %v", core.ErrInvalidConfig, d)
		}
		c.callTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCoordinator creates a new ingestion coordinator.
func NewCoordinator(
	indexRepo storage.IndexRepository,
	logRepo storage.IngestionLogRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Coordinator, error) {
	if indexRepo == nil {
		return nil, ErrIndexRepositoryRequired
	}
	if logRepo == nil {
		return nil, ErrLogRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	c := &Coordinator{
		indexRepo:        indexRepo,
		logRepo:          logRepo,
		embedder:         embedder,
		chunkCfg:         chunker.DefaultConfig(),
		locks:            newKeyedLock(),
		poolSize:         poolSize,
		batchSize:        64,
		embedConcurrency: 2,
		maxRetries:       3,
		retryBaseDelay:   time.Second,
		callTimeout:      30 * time.Second,
		logger:           slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(c.poolSize)
	if err != nil {
		return nil, err
	}
	c.pool = pool

	return c, nil
}

// Ingest runs the full ingestion of one transcript synchronously, holding the
// per-video lock for the duration. Redelivery of an already-completed
// transcript version is a no-op, as is a version older than the one last
// completed under the same model.
func (c *Coordinator) Ingest(ctx context.Context, t *core.Transcript) error {
	if err := core.ValidateTranscript(t); err != nil {
		return err
	}

	unlock := c.locks.Lock(t.VideoID)
	defer unlock()

	return c.run(ctx, t)
}

// Submit queues a transcript for async ingestion on the worker pool.
// Failures are recorded in the ingestion log and logged; use Status to
// observe the outcome.
func (c *Coordinator) Submit(t *core.Transcript) error {
	if err := core.ValidateTranscript(t); err != nil {
		return err
	}

	return c.pool.Submit(func() {
		if err := c.Ingest(context.Background(), t); err != nil {
			c.logger.Error("async ingestion failed", "video_id", t.VideoID, "err", err)
		}
	})
}

// Status returns the ingestion log record for a video, or (nil, nil) when the
// video has never been submitted.
func (c *Coordinator) Status(ctx context.Context, videoID string) (*core.IngestionRecord, error) {
	return c.logRepo.LoadIngestionRecord(ctx, videoID)
}

// Release releases the worker pool. The coordinator should not be used after
// calling Release.
func (c *Coordinator) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

func (c *Coordinator) run(ctx context.Context, t *core.Transcript) error {
	modelVersion := c.embedder.ModelVersion()
	logger := c.logger.With("video_id", t.VideoID, "model_version", modelVersion)

	prev, err := c.logRepo.LoadIngestionRecord(ctx, t.VideoID)
	if err != nil {
		return err
	}
	if prev != nil && prev.State == core.IngestionStateComplete &&
		prev.ModelVersion == modelVersion && !t.ProducedAt.After(prev.ProducedAt) {
		logger.Info("transcript version already ingested", "produced_at", t.ProducedAt)
		return nil
	}

	record := &core.IngestionRecord{
		VideoID:      t.VideoID,
		ProducedAt:   t.ProducedAt,
		ModelVersion: modelVersion,
		State:        core.IngestionStatePending,
	}
	if err := c.logRepo.SaveIngestionRecord(ctx, record); err != nil {
		return err
	}

	if err := c.process(ctx, t, record, logger); err != nil {
		record.State = core.IngestionStateFailed
		record.Reason = failureReason(err)
		// The failure itself may be a cancellation, so the record is saved
		// on a fresh context.
		if saveErr := c.logRepo.SaveIngestionRecord(context.Background(), record); saveErr != nil {
			logger.Error("failed to record ingestion failure", "err", saveErr)
		}
		logger.Error("ingestion failed", "state", record.State, "reason", record.Reason)
		return err
	}

	return nil
}

// process walks the ingestion state machine. The caller owns failure
// recording.
func (c *Coordinator) process(ctx context.Context, t *core.Transcript, record *core.IngestionRecord, logger *slog.Logger) error {
	if err := c.saveState(ctx, record, core.IngestionStateChunking); err != nil {
		return err
	}

	chunks, err := chunker.Split(t, c.chunkCfg)
	if err != nil {
		return err
	}
	record.ChunkCount = len(chunks)
	logger.Info("transcript chunked", "chunks", len(chunks))

	if len(chunks) == 0 {
		// An empty transcript version supersedes whatever was indexed before.
		err := c.withRetry(ctx, func(callCtx context.Context) error {
			return c.indexRepo.DeleteByVideo(callCtx, t.VideoID, record.ModelVersion)
		})
		if err != nil {
			return err
		}
		return c.saveState(ctx, record, core.IngestionStateComplete)
	}

	if err := c.saveState(ctx, record, core.IngestionStateEmbedding); err != nil {
		return err
	}
	entries, err := c.embedChunks(ctx, t, chunks, record.ModelVersion)
	if err != nil {
		return err
	}

	if err := c.saveState(ctx, record, core.IngestionStateUpserting); err != nil {
		return err
	}
	if err := c.upsertEntries(ctx, entries); err != nil {
		return err
	}

	// The old version keeps serving until every new entry is verified
	// present; only then are its leftovers removed.
	keep, err := c.verifyEntries(ctx, t.VideoID, record.ModelVersion, entries)
	if err != nil {
		return err
	}

	var deleted int
	err = c.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		deleted, err = c.indexRepo.DeleteStaleEntries(callCtx, t.VideoID, record.ModelVersion, keep)
		return err
	})
	if err != nil {
		return err
	}

	if err := c.saveState(ctx, record, core.IngestionStateComplete); err != nil {
		return err
	}
	logger.Info("ingestion complete", "chunks", len(entries), "stale_deleted", deleted)
	return nil
}

// embedChunks embeds all chunks in batches, bounded by embedConcurrency.
// Cancellation is honored between batches; batches already embedded are
// discarded with the run.
func (c *Coordinator) embedChunks(ctx context.Context, t *core.Transcript, chunks []*core.Chunk, modelVersion string) ([]*core.IndexEntry, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make([]*core.IndexEntry, len(chunks))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		cancel()
	}

	sem := make(chan struct{}, c.embedConcurrency)
	for start := 0; start < len(chunks); start += c.batchSize {
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			break
		}

		end := start + c.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		offset := start

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			vectors, err := c.embedBatch(runCtx, batch)
			if err != nil {
				fail(err)
				return
			}
			for i, chunk := range batch {
				entries[offset+i] = &core.IndexEntry{
					ID:            chunk.ID,
					VideoID:       chunk.VideoID,
					SequenceIndex: chunk.SequenceIndex,
					Text:          chunk.Text,
					StartOffset:   chunk.StartOffset,
					EndOffset:     chunk.EndOffset,
					Vector:        vectors[i],
					ModelVersion:  modelVersion,
					ProducedAt:    t.ProducedAt,
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// embedBatch embeds one batch of chunks and normalizes the vectors so that
// dot product equals cosine similarity.
func (c *Coordinator) embedBatch(ctx context.Context, batch []*core.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	err := c.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		vectors, err = c.embedder.EmbedTexts(callCtx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d vectors, received %d",
			core.ErrEmbeddingUnavailable, len(batch), len(vectors))
	}

	for i := range vectors {
		vectors[i] = core.NormalizeVector(vectors[i])
	}
	return vectors, nil
}

// upsertEntries writes entries in batches. A single writer avoids write
// transaction conflicts; cancellation is honored between batches and leaves
// already-written batches in place for the next attempt to overwrite.
func (c *Coordinator) upsertEntries(ctx context.Context, entries []*core.IndexEntry) error {
	for start := 0; start < len(entries); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + c.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		err := c.withRetry(ctx, func(callCtx context.Context) error {
			return c.indexRepo.UpsertEntries(callCtx, batch...)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// verifyEntries confirms every new chunk ID is present in the store and
// returns the keep set for the stale sweep.
func (c *Coordinator) verifyEntries(ctx context.Context, videoID, modelVersion string, entries []*core.IndexEntry) ([]core.ID, error) {
	var stored []*core.IndexEntry
	err := c.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		stored, err = c.indexRepo.GetEntriesByVideo(callCtx, videoID, modelVersion)
		return err
	})
	if err != nil {
		return nil, err
	}

	present := make(map[core.ID]bool, len(stored))
	for _, entry := range stored {
		present[entry.ID] = true
	}

	keep := make([]core.ID, len(entries))
	for i, entry := range entries {
		if !present[entry.ID] {
			return nil, fmt.Errorf("%w: entry %d missing after upsert", core.ErrStoreUnavailable, entry.ID)
		}
		keep[i] = entry.ID
	}
	return keep, nil
}

func (c *Coordinator) saveState(ctx context.Context, record *core.IngestionRecord, state core.IngestionState) error {
	record.State = state
	return c.logRepo.SaveIngestionRecord(ctx, record)
}

// withRetry runs op with the per-call timeout and transient-only retry.
func (c *Coordinator) withRetry(ctx context.Context, op func(context.Context) error) error {
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		return op(callCtx)
	}
	return RetryWithBackoff(ctx, attempt, c.maxRetries, c.retryBaseDelay)
}

func failureReason(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return err.Error()
}
