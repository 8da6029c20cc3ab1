package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/transvec/transvec/core"
	"github.com/transvec/transvec/storage"
)

func makeTestEntry(videoID string, seq int, text string, vector []float32) *core.IndexEntry {
	return &core.IndexEntry{
		ID:            core.ChunkIDFor(videoID, seq, text),
		VideoID:       videoID,
		SequenceIndex: seq,
		Text:          text,
		StartOffset:   seq * 10,
		EndOffset:     seq*10 + len(text),
		Vector:        core.NormalizeVector(vector),
		ModelVersion:  "test-model-v1",
		ProducedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestIndexUpsertAndGet(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	entries := []*core.IndexEntry{
		makeTestEntry("vid-1", 0, "first chunk", []float32{1, 0, 0}),
		makeTestEntry("vid-1", 1, "second chunk", []float32{0, 1, 0}),
		makeTestEntry("vid-1", 2, "third chunk", []float32{0, 0, 1}),
	}

	if err := indexRepo.UpsertEntries(ctx, entries...); err != nil {
		t.Fatalf("Failed to upsert entries: %v", err)
	}

	got, err := indexRepo.GetEntriesByVideo(ctx, "vid-1", "test-model-v1")
	if err != nil {
		t.Fatalf("Failed to get entries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	for i, entry := range got {
		if entry.SequenceIndex != i {
			t.Fatalf("Expected sequence %d at position %d, got %d", i, i, entry.SequenceIndex)
		}
		if entry.InsertedAt.IsZero() || entry.UpdatedAt.IsZero() {
			t.Fatal("Expected timestamps to be set on insert")
		}
	}

	count, err := indexRepo.CountByVideo(ctx, "vid-1", "test-model-v1")
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 3 {
		t.Fatalf("Expected count 3, got %d", count)
	}
}

func TestIndexUpsertIsIdempotent(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	entry := makeTestEntry("vid-1", 0, "same text", []float32{1, 0, 0})
	if err := indexRepo.UpsertEntries(ctx, entry); err != nil {
		t.Fatalf("Failed first upsert: %v", err)
	}
	firstInserted := entry.InsertedAt

	// Re-ingesting the same chunk produces the same ID and overwrites in place.
	again := makeTestEntry("vid-1", 0, "same text", []float32{1, 0, 0})
	if again.ID != entry.ID {
		t.Fatalf("Expected identical chunk IDs, got %d and %d", entry.ID, again.ID)
	}
	if err := indexRepo.UpsertEntries(ctx, again); err != nil {
		t.Fatalf("Failed second upsert: %v", err)
	}

	count, err := indexRepo.CountByVideo(ctx, "vid-1", "test-model-v1")
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 entry after duplicate upsert, got %d", count)
	}

	got, err := indexRepo.GetEntriesByVideo(ctx, "vid-1", "test-model-v1")
	if err != nil {
		t.Fatalf("Failed to get entries: %v", err)
	}
	if !got[0].InsertedAt.Equal(firstInserted) {
		t.Fatalf("Expected InsertedAt preserved on overwrite, got %v and %v", firstInserted, got[0].InsertedAt)
	}
}

func TestSearchRanking(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	entries := []*core.IndexEntry{
		makeTestEntry("vid-1", 0, "close match", []float32{0.9, 0.1, 0}),
		makeTestEntry("vid-1", 1, "exact match", []float32{1, 0, 0}),
		makeTestEntry("vid-2", 0, "orthogonal", []float32{0, 1, 0}),
	}
	if err := indexRepo.UpsertEntries(ctx, entries...); err != nil {
		t.Fatalf("Failed to upsert entries: %v", err)
	}

	query := core.NormalizeVector([]float32{1, 0, 0})
	results, err := indexRepo.Search(ctx, query, 10, storage.Filters{ModelVersion: "test-model-v1"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Entry.Text != "exact match" {
		t.Fatalf("Expected exact match first, got %q", results[0].Entry.Text)
	}
	if results[1].Entry.Text != "close match" {
		t.Fatalf("Expected close match second, got %q", results[1].Entry.Text)
	}
	for i, result := range results {
		if result.Rank != i {
			t.Fatalf("Expected rank %d, got %d", i, result.Rank)
		}
		if i > 0 && result.Score > results[i-1].Score {
			t.Fatal("Expected scores in descending order")
		}
	}

	// MinScore drops the orthogonal entry.
	filtered, err := indexRepo.Search(ctx, query, 10, storage.Filters{ModelVersion: "test-model-v1", MinScore: 0.5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("Expected 2 results above threshold, got %d", len(filtered))
	}

	// k truncates after ranking.
	top, err := indexRepo.Search(ctx, query, 1, storage.Filters{ModelVersion: "test-model-v1"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(top) != 1 || top[0].Entry.Text != "exact match" {
		t.Fatalf("Expected single exact match, got %+v", top)
	}

	// Video filter restricts the candidate set.
	scoped, err := indexRepo.Search(ctx, query, 10, storage.Filters{
		ModelVersion: "test-model-v1",
		VideoIDs:     []string{"vid-2"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Entry.VideoID != "vid-2" {
		t.Fatalf("Expected only vid-2 results, got %+v", scoped)
	}
}

func TestSearchTieBreakOrdering(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	// Identical vectors give identical scores; ordering must then fall back
	// to ascending sequence index, then ascending video ID.
	vector := []float32{1, 0, 0}
	entries := []*core.IndexEntry{
		makeTestEntry("vid-b", 2, "b two", vector),
		makeTestEntry("vid-a", 2, "a two", vector),
		makeTestEntry("vid-b", 0, "b zero", vector),
		makeTestEntry("vid-a", 1, "a one", vector),
	}
	if err := indexRepo.UpsertEntries(ctx, entries...); err != nil {
		t.Fatalf("Failed to upsert entries: %v", err)
	}

	query := core.NormalizeVector(vector)
	results, err := indexRepo.Search(ctx, query, 10, storage.Filters{ModelVersion: "test-model-v1"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	for i, result := range results[1:] {
		if result.Score != results[i].Score {
			t.Fatalf("Expected equal scores, got %v and %v", results[i].Score, result.Score)
		}
	}

	want := []struct {
		videoID string
		seq     int
	}{
		{"vid-b", 0},
		{"vid-a", 1},
		{"vid-a", 2},
		{"vid-b", 2},
	}
	for i, result := range results {
		if result.Entry.VideoID != want[i].videoID || result.Entry.SequenceIndex != want[i].seq {
			t.Fatalf("Position %d: expected %s/%d, got %s/%d",
				i, want[i].videoID, want[i].seq, result.Entry.VideoID, result.Entry.SequenceIndex)
		}
		if result.Rank != i {
			t.Fatalf("Expected rank %d, got %d", i, result.Rank)
		}
	}
}

func TestSearchValidation(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()
	query := []float32{1, 0, 0}

	if _, err := indexRepo.Search(ctx, query, 0, storage.Filters{ModelVersion: "m"}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("Expected invalid argument for k=0, got %v", err)
	}
	if _, err := indexRepo.Search(ctx, query, 5, storage.Filters{}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("Expected invalid argument for missing model version, got %v", err)
	}

	entry := makeTestEntry("vid-1", 0, "stored", []float32{1, 0, 0})
	if err := indexRepo.UpsertEntries(ctx, entry); err != nil {
		t.Fatalf("Failed to upsert entry: %v", err)
	}
	if _, err := indexRepo.Search(ctx, []float32{1, 0}, 5, storage.Filters{ModelVersion: "test-model-v1"}); !errors.Is(err, core.ErrDimensionMismatch) {
		t.Fatalf("Expected dimension mismatch, got %v", err)
	}
}

func TestDeleteStaleEntries(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	entries := []*core.IndexEntry{
		makeTestEntry("vid-1", 0, "keep me", []float32{1, 0, 0}),
		makeTestEntry("vid-1", 1, "stale one", []float32{0, 1, 0}),
		makeTestEntry("vid-1", 2, "stale two", []float32{0, 0, 1}),
	}
	if err := indexRepo.UpsertEntries(ctx, entries...); err != nil {
		t.Fatalf("Failed to upsert entries: %v", err)
	}

	deleted, err := indexRepo.DeleteStaleEntries(ctx, "vid-1", "test-model-v1", []core.ID{entries[0].ID})
	if err != nil {
		t.Fatalf("Failed to delete stale entries: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("Expected 2 deletions, got %d", deleted)
	}

	got, err := indexRepo.GetEntriesByVideo(ctx, "vid-1", "test-model-v1")
	if err != nil {
		t.Fatalf("Failed to get entries: %v", err)
	}
	if len(got) != 1 || got[0].Text != "keep me" {
		t.Fatalf("Expected only the kept entry, got %+v", got)
	}
}

func TestDeleteByVideo(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	if err := indexRepo.UpsertEntries(ctx,
		makeTestEntry("vid-1", 0, "a", []float32{1, 0, 0}),
		makeTestEntry("vid-1", 1, "b", []float32{0, 1, 0}),
		makeTestEntry("vid-2", 0, "c", []float32{0, 0, 1}),
	); err != nil {
		t.Fatalf("Failed to upsert entries: %v", err)
	}

	if err := indexRepo.DeleteByVideo(ctx, "vid-1", "test-model-v1"); err != nil {
		t.Fatalf("Failed to delete video: %v", err)
	}

	count, err := indexRepo.CountByVideo(ctx, "vid-1", "test-model-v1")
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 entries after delete, got %d", count)
	}

	// Other videos are untouched.
	count, err = indexRepo.CountByVideo(ctx, "vid-2", "test-model-v1")
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected vid-2 to survive, got %d entries", count)
	}
}

func TestModelVersionIsolation(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	oldEntry := makeTestEntry("vid-1", 0, "same chunk", []float32{1, 0, 0})
	newEntry := makeTestEntry("vid-1", 0, "same chunk", []float32{0, 1, 0})
	newEntry.ModelVersion = "test-model-v2"

	if err := indexRepo.UpsertEntries(ctx, oldEntry, newEntry); err != nil {
		t.Fatalf("Failed to upsert entries: %v", err)
	}

	query := core.NormalizeVector([]float32{1, 1, 0})
	results, err := indexRepo.Search(ctx, query, 10, storage.Filters{ModelVersion: "test-model-v2"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result under v2, got %d", len(results))
	}
	if results[0].Entry.ModelVersion != "test-model-v2" {
		t.Fatalf("Expected v2 entry, got %s", results[0].Entry.ModelVersion)
	}

	// Deleting under one model version leaves the other intact.
	if err := indexRepo.DeleteByVideo(ctx, "vid-1", "test-model-v1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	count, err := indexRepo.CountByVideo(ctx, "vid-1", "test-model-v2")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected v2 entry to survive v1 delete, got %d", count)
	}
}

func TestListVideos(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	other := makeTestEntry("vid-c", 0, "other model", []float32{1, 0, 0})
	other.ModelVersion = "test-model-v2"

	if err := indexRepo.UpsertEntries(ctx,
		makeTestEntry("vid-b", 0, "b0", []float32{1, 0, 0}),
		makeTestEntry("vid-a", 0, "a0", []float32{0, 1, 0}),
		makeTestEntry("vid-a", 1, "a1", []float32{0, 0, 1}),
		other,
	); err != nil {
		t.Fatalf("Failed to upsert entries: %v", err)
	}

	videos, err := indexRepo.ListVideos(ctx, "test-model-v1")
	if err != nil {
		t.Fatalf("Failed to list videos: %v", err)
	}
	if len(videos) != 2 || videos[0] != "vid-a" || videos[1] != "vid-b" {
		t.Fatalf("Expected [vid-a vid-b], got %v", videos)
	}

	if _, err := indexRepo.ListVideos(ctx, ""); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("Expected invalid argument for empty model version, got %v", err)
	}
}

func TestUpsertRejectsInvalidEntries(t *testing.T) {
	indexRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { indexRepo.Close(); backend.Close() }()

	ctx := context.Background()

	bad := makeTestEntry("vid-1", 0, "no vector", nil)
	if err := indexRepo.UpsertEntries(ctx, bad); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("Expected invalid argument, got %v", err)
	}
}
