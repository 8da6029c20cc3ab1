// Copyright 2025 Transvec Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	transvec "github.com/transvec/transvec"
	"github.com/transvec/transvec/ai"
	"github.com/transvec/transvec/ai/openai"
	"github.com/transvec/transvec/chunker"
	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/ingestion"
	"github.com/transvec/transvec/reembed"
	"github.com/transvec/transvec/search"
	"github.com/transvec/transvec/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "transvec",
		Usage: "Transcript-to-vector ingestion and semantic retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest a transcript file into the chunk index",
				ArgsUsage: "FILE",
				Action:    ingestCommand,
				Flags: append(embeddingFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "video-id",
						Usage:    "Video the transcript belongs to",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:   "produced-at",
						Usage:  "Transcript version timestamp (RFC 3339, defaults to now)",
						Layout: time.RFC3339,
					},
					&cli.StringFlag{
						Name:  "language",
						Usage: "Transcript language tag",
					},
					&cli.IntFlag{
						Name:  "max-chunk-chars",
						Usage: "Maximum chunk size in characters",
						Value: chunker.DefaultConfig().MaxChunkChars,
					},
					&cli.IntFlag{
						Name:  "overlap-chars",
						Usage: "Overlap between consecutive chunks in characters",
						Value: chunker.DefaultConfig().OverlapChars,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed and upsert per batch",
						Value: 64,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for transient failures",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Retrieve transcript chunks relevant to a query",
				ArgsUsage: "QUERY...",
				Action:    queryCommand,
				Flags: append(embeddingFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "top",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Similarity floor for results",
						Value: float64(search.DefaultMinScore),
					},
					&cli.StringSliceFlag{
						Name:  "video-id",
						Usage: "Restrict the search to these videos (repeatable)",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print a trace of the retrieval stages",
					},
				),
			},
			{
				Name:   "status",
				Usage:  "Show the ingestion log record for a video",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "video-id",
						Usage:    "Video to inspect",
						Required: true,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Migrate indexed chunks to a new embedding model version",
				Action: reembedCommand,
				Flags: append(embeddingFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "source-model",
						Usage:    "Model version to migrate entries from",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "purge-source",
						Usage: "Delete source-version entries once a video is migrated",
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// embeddingFlags are shared by every command that talks to the embedding
// service.
func embeddingFlags() []cli.Flag {
	defaults := ai.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   defaults.Host,
			EnvVars: []string{"TRANSVEC_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   defaults.Model,
			EnvVars: []string{"TRANSVEC_EMBEDDING_MODEL"},
		},
		&cli.IntFlag{
			Name:    "dimension",
			Usage:   "Embedding vector dimension",
			Value:   defaults.Dimension,
			EnvVars: []string{"TRANSVEC_EMBEDDING_DIMENSION"},
		},
	}
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithDimension(c.Int("dimension")),
	)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one transcript file, got %d arguments", c.NArg())
	}

	text, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	producedAt := time.Now().UTC()
	if ts := c.Timestamp("produced-at"); ts != nil && !ts.IsZero() {
		producedAt = ts.UTC()
	}

	db, err := transvec.NewDatabase(c.String("db"), transvec.WithAIConfig(aiConfigFromFlags(c)))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	chunkCfg := chunker.DefaultConfig()
	chunkCfg.MaxChunkChars = c.Int("max-chunk-chars")
	chunkCfg.OverlapChars = c.Int("overlap-chars")

	coordinator, err := db.NewIngestionCoordinator(
		ingestion.WithChunkerConfig(chunkCfg),
		ingestion.WithBatchSize(c.Int("batch-size")),
		ingestion.WithMaxRetries(c.Int("max-retries")),
		ingestion.WithRetryBaseDelay(c.Duration("retry-delay")),
	)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	defer coordinator.Release()

	transcript := &core.Transcript{
		VideoID:    c.String("video-id"),
		Text:       string(text),
		Language:   c.String("language"),
		ProducedAt: producedAt,
	}

	if err := coordinator.Ingest(c.Context, transcript); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	record, err := coordinator.Status(c.Context, transcript.VideoID)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %s: %d chunks (%s)\n", transcript.VideoID, record.ChunkCount, record.State)
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a query is required")
	}
	query := strings.Join(c.Args().Slice(), " ")

	db, err := transvec.NewDatabase(c.String("db"), transvec.WithAIConfig(aiConfigFromFlags(c)))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	retriever, err := db.NewRetriever(search.WithMinScore(float32(c.Float64("min-score"))))
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}

	filters := search.Filters{VideoIDs: c.StringSlice("video-id")}

	var monitor search.RetrievalMonitor
	if c.Bool("verbose") {
		monitor = &traceMonitor{}
	}

	results, err := retriever.RetrieveWithMonitor(c.Context, query, c.Int("top"), filters, monitor)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for _, hit := range results {
		fmt.Printf("%d: [%0.3f] %s #%d (chars %d-%d)\n   %s\n",
			hit.Rank, hit.Score, hit.Entry.VideoID, hit.Entry.SequenceIndex,
			hit.Entry.StartOffset, hit.Entry.EndOffset, hit.Entry.Text)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	logRepo := badger.NewIngestionLogRepository(backend)

	record, err := logRepo.LoadIngestionRecord(c.Context, c.String("video-id"))
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Printf("No ingestion record for %s\n", c.String("video-id"))
		return nil
	}

	fmt.Printf("Video:         %s\n", record.VideoID)
	fmt.Printf("State:         %s\n", record.State)
	if record.Reason != "" {
		fmt.Printf("Reason:        %s\n", record.Reason)
	}
	fmt.Printf("Model version: %s\n", record.ModelVersion)
	fmt.Printf("Produced at:   %s\n", record.ProducedAt.Format(time.RFC3339))
	fmt.Printf("Chunks:        %d\n", record.ChunkCount)
	fmt.Printf("Updated at:    %s\n", record.UpdatedAt.Format(time.RFC3339))
	return nil
}

func reembedCommand(c *cli.Context) error {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	indexRepo := badger.NewIndexRepository(backend)
	defer indexRepo.Close()

	embedder, err := openai.NewEmbedder(aiConfigFromFlags(c))
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		PurgeSource:    c.Bool("purge-source"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reembedder, err := reembed.NewReembedder(indexRepo, embedder, c.String("source-model"), config, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Source model: %s\n", c.String("source-model"))
	fmt.Fprintf(os.Stderr, "Target model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// traceMonitor prints each retrieval stage to stderr.
type traceMonitor struct{}

var _ search.RetrievalMonitor = (*traceMonitor)(nil)

func (m *traceMonitor) Start(query string) {
	fmt.Fprintf(os.Stderr, "query: %q\n", query)
}

func (m *traceMonitor) AfterQueryEmbedding(vector []float32) {
	fmt.Fprintf(os.Stderr, "embedded query (%d dimensions)\n", len(vector))
}

func (m *traceMonitor) AfterSimilaritySearch(results []*core.RetrievalResult) {
	fmt.Fprintf(os.Stderr, "similarity search returned %d chunks\n", len(results))
}

func (m *traceMonitor) VerbatimMatch(entry *core.IndexEntry) {
	fmt.Fprintf(os.Stderr, "verbatim match: %s #%d\n", entry.VideoID, entry.SequenceIndex)
}

func (m *traceMonitor) Finish(results []*core.RetrievalResult) {
	fmt.Fprintf(os.Stderr, "returning %d results\n", len(results))
}

func setup(c *cli.Context) error {
	// Optional .env for the TRANSVEC_* variables
	_ = godotenv.Load()

	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
