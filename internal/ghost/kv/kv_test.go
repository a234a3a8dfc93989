package kv_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bdobrica/Ghost/internal/ghost/kv"
	appstore "github.com/bdobrica/Ghost/internal/ghost/store"
)

// backends returns every Store implementation, each on fresh storage.
func backends(t *testing.T) map[string]kv.Store {
	t.Helper()
	s, err := appstore.New(filepath.Join(t.TempDir(), "ghost-kv-test.db"))
	if err != nil {
		t.Fatalf("appstore.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return map[string]kv.Store{
		"sqlite": kv.New(s),
		"memory": kv.NewMemory(),
	}
}

// TestGetNotFound verifies that Get returns ErrNotFound for an absent key.
func TestGetNotFound(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "session-1", "tasks")
			if !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got: %v", err)
			}
		})
	}
}

// TestSetOverwrite verifies the write-then-read round-trip and that a second
// Set replaces the first.
func TestSetOverwrite(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Set(ctx, "session-1", "voice_enabled", "false"); err != nil {
				t.Fatalf("Set(1): %v", err)
			}
			if err := store.Set(ctx, "session-1", "voice_enabled", "true"); err != nil {
				t.Fatalf("Set(2): %v", err)
			}
			got, err := store.Get(ctx, "session-1", "voice_enabled")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got != "true" {
				t.Errorf("got %q, want %q", got, "true")
			}
		})
	}
}

// TestNamespacesAreIsolated verifies that one session never sees another's
// keys.
func TestNamespacesAreIsolated(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = store.Set(ctx, "a", "tasks", "[1]")
			_ = store.Set(ctx, "b", "tasks", "[2]")

			got, err := store.Get(ctx, "a", "tasks")
			if err != nil || got != "[1]" {
				t.Errorf("a/tasks = %q, %v", got, err)
			}
			m, err := store.List(ctx, "b")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(m) != 1 || m["tasks"] != "[2]" {
				t.Errorf("List(b) = %v", m)
			}
		})
	}
}

// TestDelete verifies removal and that deleting a missing key is a no-op.
func TestDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = store.Set(ctx, "s", "expenses", "[]")
			if err := store.Delete(ctx, "s", "expenses"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := store.Get(ctx, "s", "expenses"); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got: %v", err)
			}
			if err := store.Delete(ctx, "s", "expenses"); err != nil {
				t.Fatalf("Delete (idempotent): %v", err)
			}
		})
	}
}

// TestListEmpty verifies that an empty namespace lists as an empty map.
func TestListEmpty(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			m, err := store.List(context.Background(), "nobody")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if m == nil || len(m) != 0 {
				t.Fatalf("List = %#v, want empty non-nil map", m)
			}
		})
	}
}

// TestConcurrentAccess checks concurrent Set/Get on distinct sessions.
func TestConcurrentAccess(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const goroutines = 5
			var wg sync.WaitGroup
			wg.Add(goroutines)
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					ns := fmt.Sprintf("session-%d", i)
					value := fmt.Sprintf("value-%d", i)
					if err := store.Set(ctx, ns, "chat_history", value); err != nil {
						t.Errorf("goroutine %d Set: %v", i, err)
						return
					}
					got, err := store.Get(ctx, ns, "chat_history")
					if err != nil || got != value {
						t.Errorf("goroutine %d: got %q, %v; want %q", i, got, err, value)
					}
				}()
			}
			wg.Wait()
		})
	}
}
