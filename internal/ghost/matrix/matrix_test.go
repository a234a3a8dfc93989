package matrix_test

import (
	"context"
	"path/filepath"
	"testing"

	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Ghost/internal/ghost/kv"
	"github.com/bdobrica/Ghost/internal/ghost/matrix"
	"github.com/bdobrica/Ghost/internal/ghost/store"
)

func TestSyncState_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := store.New(filepath.Join(t.TempDir(), "ghost.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := matrix.NewSyncState(kv.New(db))
	user := id.UserID("@ghost:example.com")

	if got, err := s.LoadNextBatch(ctx, user); err != nil || got != "" {
		t.Fatalf("first LoadNextBatch = %q, %v", got, err)
	}
	if err := s.SaveNextBatch(ctx, user, "batch_1"); err != nil {
		t.Fatalf("SaveNextBatch: %v", err)
	}
	if err := s.SaveNextBatch(ctx, user, "batch_2"); err != nil {
		t.Fatalf("SaveNextBatch overwrite: %v", err)
	}
	if got, _ := s.LoadNextBatch(ctx, user); got != "batch_2" {
		t.Errorf("LoadNextBatch = %q, want batch_2", got)
	}

	if err := s.SaveFilterID(ctx, user, "filter_9"); err != nil {
		t.Fatalf("SaveFilterID: %v", err)
	}
	if got, _ := s.LoadFilterID(ctx, user); got != "filter_9" {
		t.Errorf("LoadFilterID = %q", got)
	}
	if got, _ := s.LoadFilterID(ctx, id.UserID("@other:example.com")); got != "" {
		t.Errorf("filter leaked across users: %q", got)
	}
}

func TestSyncState_StaysOutOfSessionNamespaces(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := matrix.NewSyncState(mem)
	user := id.UserID("@ghost:example.com")

	if err := s.SaveNextBatch(ctx, user, "batch_1"); err != nil {
		t.Fatalf("SaveNextBatch: %v", err)
	}
	msg := matrix.Message{RoomID: "!room:example.com", Sender: string(user)}
	got, err := mem.List(ctx, msg.SessionID())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("sync state visible in session namespace: %v", got)
	}
	if v, _ := mem.Get(ctx, "matrix-sync/@ghost:example.com", "next_batch"); v != "batch_1" {
		t.Errorf("stored next_batch = %q", v)
	}
}

func TestFormatHTML(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "Hello Sir!", "Hello Sir!"},
		{"escaped", "1 < 2 & 3", "1 &lt; 2 &amp; 3"},
		{"lines", "📝 Your tasks:\n1. milk", "📝 Your tasks:<br/>1. milk"},
		{"bill", "🧾 Expense Bill\n-----\nTOTAL 1.00", "<pre><code>🧾 Expense Bill\n-----\nTOTAL 1.00</code></pre>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matrix.FormatHTML(tt.in); got != tt.want {
				t.Errorf("FormatHTML = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageSessionID(t *testing.T) {
	a := matrix.Message{RoomID: "!room:example.com", Sender: "@alice:example.com"}
	b := matrix.Message{RoomID: "!room:example.com", Sender: "@bob:example.com"}
	if a.SessionID() == b.SessionID() {
		t.Error("different senders share a session")
	}
	if a.SessionID() != "matrix:!room:example.com:@alice:example.com" {
		t.Errorf("SessionID = %q", a.SessionID())
	}
}

func TestConfigEnabled(t *testing.T) {
	if (matrix.Config{Homeserver: "https://example.com", UserID: "@ghost:example.com"}).Enabled() {
		t.Error("enabled without an access token")
	}
	if !(matrix.Config{Homeserver: "https://example.com", UserID: "@ghost:example.com", AccessToken: "t"}).Enabled() {
		t.Error("not enabled with full credentials")
	}
}

func TestIsWatchedRoom(t *testing.T) {
	c, err := matrix.New(&matrix.Config{Homeserver: "https://example.com", UserID: "@ghost:example.com", AccessToken: "t", Rooms: []string{"!a:example.com"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.IsWatchedRoom("!a:example.com") || c.IsWatchedRoom("!b:example.com") {
		t.Error("room allowlist not applied")
	}

	open, err := matrix.New(&matrix.Config{Homeserver: "https://example.com", UserID: "@ghost:example.com", AccessToken: "t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !open.IsWatchedRoom("!b:example.com") {
		t.Error("without an allowlist every room is watched")
	}
}
