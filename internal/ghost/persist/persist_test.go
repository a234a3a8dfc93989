package persist_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bdobrica/Ghost/internal/ghost/kv"
	"github.com/bdobrica/Ghost/internal/ghost/persist"
	"github.com/bdobrica/Ghost/internal/ghost/session"
)

var day = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := kv.NewMemory()
	g := persist.New(store, 100)
	ctx := context.Background()

	want := session.Snapshot{
		Transcript: []session.ChatMessage{
			{Sender: session.SenderUser, Text: "add task buy milk", Timestamp: day},
			{Sender: session.SenderAssistant, Text: "✅ Task added: buy milk", Timestamp: day},
		},
		Tasks:               []session.Task{{ID: "t1", Text: "buy milk", CreatedDate: day}},
		Expenses:            []session.Expense{{ID: "e1", Item: "coffee", Category: "Food", Amount: 15050, Date: day, Status: session.StatusPaid}},
		VoiceEnabled:        true,
		InstallAcknowledged: true,
	}
	if err := g.Save(ctx, "s1", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := g.Load(ctx, "s1")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if raw, _ := store.Get(ctx, "s1", persist.KeyExpenses); !strings.Contains(raw, `"amount":150.50`) || !strings.Contains(raw, `"status":"Paid"`) {
		t.Errorf("expenses stored as %s", raw)
	}
}

func TestLoad_EmptySession(t *testing.T) {
	g := persist.New(kv.NewMemory(), 100)
	got := g.Load(context.Background(), "nobody")
	if diff := cmp.Diff(session.Snapshot{}, got); diff != "" {
		t.Errorf("empty load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_CorruptValuesAreDiscarded(t *testing.T) {
	store := kv.NewMemory()
	g := persist.New(store, 100)
	ctx := context.Background()

	_ = store.Set(ctx, "s1", persist.KeyChatHistory, `{not json`)
	_ = store.Set(ctx, "s1", persist.KeyExpenses, `[{"id":"e1","amount":-5}]`)
	_ = store.Set(ctx, "s1", persist.KeyTasks, `[{"id":"t1","text":"ok","created_date":"2026-10-16T00:00:00Z"}]`)
	_ = store.Set(ctx, "s1", persist.KeyVoiceEnabled, `"maybe"`)

	got := g.Load(ctx, "s1")
	if got.Transcript != nil || got.Expenses != nil || got.VoiceEnabled {
		t.Errorf("corrupt values leaked into snapshot: %+v", got)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Text != "ok" {
		t.Errorf("valid tasks lost: %+v", got.Tasks)
	}

	for _, key := range []string{persist.KeyChatHistory, persist.KeyExpenses, persist.KeyVoiceEnabled} {
		if _, err := store.Get(ctx, "s1", key); !errors.Is(err, kv.ErrNotFound) {
			t.Errorf("corrupt %s not deleted: %v", key, err)
		}
	}
}

func TestLoad_DropsDuplicateIDs(t *testing.T) {
	store := kv.NewMemory()
	g := persist.New(store, 100)
	ctx := context.Background()

	_ = store.Set(ctx, "s1", persist.KeyTasks, `[{"id":"t1","text":"a"},{"id":"t1","text":"b"},{"id":"","text":"c"}]`)
	got := g.Load(ctx, "s1")
	if len(got.Tasks) != 1 || got.Tasks[0].Text != "a" {
		t.Errorf("tasks = %+v, want only the first t1", got.Tasks)
	}
}

func TestSave_TrimsHistory(t *testing.T) {
	g := persist.New(kv.NewMemory(), 3)
	ctx := context.Background()

	var msgs []session.ChatMessage
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		msgs = append(msgs, session.ChatMessage{Sender: session.SenderUser, Text: text, Timestamp: day})
	}
	if err := g.Save(ctx, "s1", session.Snapshot{Transcript: msgs}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := g.Load(ctx, "s1").Transcript
	var texts []string
	for _, m := range got {
		texts = append(texts, m.Text)
	}
	if diff := cmp.Diff([]string{"three", "four", "five"}, texts); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestForget(t *testing.T) {
	store := kv.NewMemory()
	g := persist.New(store, 100)
	ctx := context.Background()

	_ = g.Save(ctx, "s1", session.Snapshot{VoiceEnabled: true})
	if err := g.Forget(ctx, "s1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	m, _ := store.List(ctx, "s1")
	if len(m) != 0 {
		t.Errorf("keys left after Forget: %v", m)
	}
}

type failingStore struct{ kv.Store }

func (failingStore) Set(context.Context, string, string, string) error {
	return errors.New("disk full")
}

func TestSave_ReportsWriteErrors(t *testing.T) {
	g := persist.New(failingStore{kv.NewMemory()}, 100)
	if err := g.Save(context.Background(), "s1", session.Snapshot{}); err == nil {
		t.Fatal("expected write error")
	}
}
