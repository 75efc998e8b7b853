package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/custodia-labs/moviesync/internal/core/domain"
)

func testStatePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.json")
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(testStatePath(t))

	value, ok, err := store.Get(context.Background(), "film_work_updates")
	if err != nil {
		t.Fatalf("get on missing file: %v", err)
	}
	if ok || value != "" {
		t.Errorf("expected absent key, got %q (ok=%v)", value, ok)
	}
}

func TestFileStore_SetGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(testStatePath(t))

	if err := store.Set(ctx, "film_work_updates", "2024-03-01T12:00:00Z"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "person_updates", "2024-03-01T13:00:00Z"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Overwrite keeps only the latest value.
	if err := store.Set(ctx, "film_work_updates", "2024-03-01T14:00:00Z"); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, ok, err := store.Get(ctx, "film_work_updates")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || value != "2024-03-01T14:00:00Z" {
		t.Errorf("got %q (ok=%v), want overwritten value", value, ok)
	}
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := testStatePath(t)

	store := NewFileStore(path)
	if err := store.Set(ctx, "genre_updates", "2024-03-01T12:00:00Z"); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A fresh store over the same file sees the committed state.
	reopened := NewFileStore(path)
	value, ok, err := reopened.Get(ctx, "genre_updates")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !ok || value != "2024-03-01T12:00:00Z" {
		t.Errorf("got %q (ok=%v) after reopen", value, ok)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := testStatePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path)
	_, _, err := store.Get(context.Background(), "bootstrap")
	if !errors.Is(err, domain.ErrStateCorrupt) {
		t.Errorf("expected ErrStateCorrupt, got %v", err)
	}

	// Corrupt state must not be silently overwritten either.
	if err := store.Set(context.Background(), "bootstrap", "x"); !errors.Is(err, domain.ErrStateCorrupt) {
		t.Errorf("expected ErrStateCorrupt on set, got %v", err)
	}
}

func TestFileStore_EmptyFileIsEmptyState(t *testing.T) {
	path := testStatePath(t)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path)
	_, ok, err := store.Get(context.Background(), "bootstrap")
	if err != nil {
		t.Fatalf("get on empty file: %v", err)
	}
	if ok {
		t.Error("expected no keys in an empty file")
	}
}

func TestFileStore_NoTempFilesLeftBehind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "state.json"))

	for i := 0; i < 3; i++ {
		if err := store.Set(ctx, "bootstrap", "2024-03-01T12:00:00Z"); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}
