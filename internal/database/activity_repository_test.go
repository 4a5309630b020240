package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *ActivityRepository {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewActivityRepository(db)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.db")
	ctx := context.Background()

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	db.Close()

	// Re-opening must not re-apply migrations.
	db, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	db.Close()
}

func TestInsertAndList(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		entry := ActivityEntry{
			Title:         title,
			ShortOverview: "synced",
			Overview:      "details for " + title,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Insert(ctx, entry); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	entries, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Title != "third" || entries[1].Title != "second" {
		t.Errorf("entries out of order: %q, %q", entries[0].Title, entries[1].Title)
	}

	page, err := repo.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List offset failed: %v", err)
	}
	if len(page) != 1 || page[0].Title != "first" {
		t.Errorf("second page = %+v", page)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestInsertStampsMissingCreatedAt(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	if err := repo.Insert(ctx, ActivityEntry{Title: "stamped"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	entries, err := repo.List(ctx, 1, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want stamped at insert time", entries[0].CreatedAt)
	}
}

func TestPrune(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	cutoff := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	old := ActivityEntry{Title: "old", CreatedAt: cutoff.Add(-48 * time.Hour)}
	recent := ActivityEntry{Title: "recent", CreatedAt: cutoff.Add(48 * time.Hour)}
	for _, entry := range []ActivityEntry{old, recent} {
		if err := repo.Insert(ctx, entry); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	removed, err := repo.Prune(ctx, cutoff)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	entries, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "recent" {
		t.Errorf("entries = %+v", entries)
	}
}
