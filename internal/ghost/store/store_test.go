package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bdobrica/Ghost/internal/ghost/store"
)

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ghost-test.db")
	s, err := store.New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestNew_AppliesMigrations(t *testing.T) {
	s, _ := newTestStore(t)

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("schema version = %d, want 1", v)
	}

	for _, table := range []string{"kv"} {
		var name string
		err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	s, path := newTestStore(t)
	if _, err := s.DB().Exec(`INSERT INTO kv (namespace, key, value, updated_at) VALUES ('n', 'k', 'v', 'now')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	again, err := store.New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()

	var count int
	if err := again.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("migrations recorded = %d, want 1", count)
	}

	var value string
	if err := again.DB().QueryRow(`SELECT value FROM kv WHERE namespace = 'n' AND key = 'k'`).Scan(&value); err != nil || value != "v" {
		t.Errorf("row lost across reopen: %q, %v", value, err)
	}
}

func TestNew_BadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.New(filepath.Join(blocker, "ghost.db")); err == nil {
		t.Fatal("expected error opening a database under a regular file")
	}
}
