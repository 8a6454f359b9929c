package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/voluntarios/learnbridge/internal/services/bridge/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsRepeatable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bridge.db")
	for i := 0; i < 2; i++ {
		store, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}

func TestRecordAndListCommitAttempts(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	score := 80.0

	inputs := []storage.CommitAttempt{
		{ActivityID: "a1", ViewerID: "v1", CreatedAt: base},
		{ActivityID: "a1", ViewerID: "v1", Completed: true, Score: &score, CreatedAt: base.Add(time.Minute)},
		{ActivityID: "a2", ViewerID: "v2", Error: "backend returned 500", CreatedAt: base},
	}
	for _, attempt := range inputs {
		if err := store.RecordCommitAttempt(ctx, attempt); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := store.ListCommitAttempts(ctx, "a1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("attempts = %d, want 2", len(got))
	}
	newest := got[0]
	if !newest.Completed || newest.Score == nil || *newest.Score != 80 {
		t.Fatalf("newest = %+v, want completed with score 80", newest)
	}
	if !newest.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("created_at = %v", newest.CreatedAt)
	}
	if got[1].Score != nil {
		t.Fatalf("oldest score = %v, want nil", *got[1].Score)
	}

	other, err := store.ListCommitAttempts(ctx, "a2", 0)
	if err != nil {
		t.Fatalf("list a2: %v", err)
	}
	if len(other) != 1 || other[0].Error != "backend returned 500" {
		t.Fatalf("a2 attempts = %+v", other)
	}
}

func TestListCommitAttemptsHonorsLimit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := store.RecordCommitAttempt(ctx, storage.CommitAttempt{ActivityID: "a1"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := store.ListCommitAttempts(ctx, "a1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("attempts = %d, want 2", len(got))
	}
	if got[0].ID <= got[1].ID {
		t.Fatalf("ids = %d, %d; want newest first", got[0].ID, got[1].ID)
	}
}

func TestRecordCommitAttemptRequiresActivity(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.RecordCommitAttempt(context.Background(), storage.CommitAttempt{}); err == nil {
		t.Fatal("expected activity id error")
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "bridge.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	store.now = func() time.Time { return time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
