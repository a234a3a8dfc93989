// Package persist saves and restores the durable parts of a chat session:
// transcript, tasks, expenses, the voice preference and the install
// acknowledgement. Values are stored as JSON under one kv namespace per
// session.
//
// Loading never fails. A value that cannot be read or decoded is logged,
// deleted and treated as absent, so a corrupt row costs the user that one
// piece of history rather than the session.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bdobrica/Ghost/internal/ghost/kv"
	"github.com/bdobrica/Ghost/internal/ghost/session"
)

// Keys under a session namespace.
const (
	KeyChatHistory         = "chat_history"
	KeyTasks               = "tasks"
	KeyExpenses            = "expenses"
	KeyVoiceEnabled        = "voice_enabled"
	KeyInstallAcknowledged = "install_acknowledged"
)

// Gateway reads and writes session snapshots.
type Gateway struct {
	kv           kv.Store
	historyLimit int
}

// New returns a Gateway over store. historyLimit bounds the saved
// transcript to the most recent entries; zero or negative keeps all.
func New(store kv.Store, historyLimit int) *Gateway {
	return &Gateway{kv: store, historyLimit: historyLimit}
}

// Load returns the saved snapshot for sessionID. Missing or corrupt values
// come back as zero values.
func (g *Gateway) Load(ctx context.Context, sessionID string) session.Snapshot {
	return session.Snapshot{
		Transcript:          g.trim(load[[]session.ChatMessage](ctx, g, sessionID, KeyChatHistory)),
		Tasks:               uniqueTasks(load[[]session.Task](ctx, g, sessionID, KeyTasks)),
		Expenses:            uniqueExpenses(load[[]session.Expense](ctx, g, sessionID, KeyExpenses)),
		VoiceEnabled:        load[bool](ctx, g, sessionID, KeyVoiceEnabled),
		InstallAcknowledged: load[bool](ctx, g, sessionID, KeyInstallAcknowledged),
	}
}

// Save writes every part of snap. Each key is written independently; the
// returned error joins all failures.
func (g *Gateway) Save(ctx context.Context, sessionID string, snap session.Snapshot) error {
	transcript := g.trim(snap.Transcript)
	if transcript == nil {
		transcript = []session.ChatMessage{}
	}
	tasks := snap.Tasks
	if tasks == nil {
		tasks = []session.Task{}
	}
	expenses := snap.Expenses
	if expenses == nil {
		expenses = []session.Expense{}
	}

	return errors.Join(
		g.save(ctx, sessionID, KeyChatHistory, transcript),
		g.save(ctx, sessionID, KeyTasks, tasks),
		g.save(ctx, sessionID, KeyExpenses, expenses),
		g.save(ctx, sessionID, KeyVoiceEnabled, snap.VoiceEnabled),
		g.save(ctx, sessionID, KeyInstallAcknowledged, snap.InstallAcknowledged),
	)
}

// Forget deletes everything saved for sessionID.
func (g *Gateway) Forget(ctx context.Context, sessionID string) error {
	var errs []error
	for _, key := range []string{KeyChatHistory, KeyTasks, KeyExpenses, KeyVoiceEnabled, KeyInstallAcknowledged} {
		errs = append(errs, g.kv.Delete(ctx, sessionID, key))
	}
	return errors.Join(errs...)
}

// load decodes one value. A partially decoded value is never returned.
func load[T any](ctx context.Context, g *Gateway, sessionID, key string) T {
	var zero T
	raw, err := g.kv.Get(ctx, sessionID, key)
	if errors.Is(err, kv.ErrNotFound) {
		return zero
	}
	if err != nil {
		slog.Warn("persist: read failed, treating as absent", "session", sessionID, "key", key, "err", err)
		return zero
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		slog.Warn("persist: discarding corrupt value", "session", sessionID, "key", key, "err", err)
		if err := g.kv.Delete(ctx, sessionID, key); err != nil {
			slog.Warn("persist: delete corrupt value", "session", sessionID, "key", key, "err", err)
		}
		return zero
	}
	return v
}

func (g *Gateway) save(ctx context.Context, sessionID, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persist: encode %s: %w", key, err)
	}
	if err := g.kv.Set(ctx, sessionID, key, string(data)); err != nil {
		return fmt.Errorf("persist: write %s: %w", key, err)
	}
	return nil
}

func (g *Gateway) trim(msgs []session.ChatMessage) []session.ChatMessage {
	if g.historyLimit > 0 && len(msgs) > g.historyLimit {
		return msgs[len(msgs)-g.historyLimit:]
	}
	return msgs
}

// uniqueTasks drops tasks without an id and later duplicates of an id.
func uniqueTasks(in []session.Task) []session.Task {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, t := range in {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// uniqueExpenses drops expenses without an id or repeating an earlier id.
func uniqueExpenses(in []session.Expense) []session.Expense {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, e := range in {
		if e.ID == "" || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
