package matrix

import (
	"context"
	"errors"
	"fmt"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Ghost/internal/ghost/kv"
)

// syncNamespacePrefix keeps sync positions apart from chat sessions, whose
// namespaces are session ids.
const syncNamespacePrefix = "matrix-sync/"

const (
	keyFilterID  = "filter_id"
	keyNextBatch = "next_batch"
)

var _ mautrix.SyncStore = (*SyncState)(nil)

// SyncState keeps the bot's /sync position in the same key/value store as
// the chat sessions, so a restart neither replays room history nor answers
// a message twice. Each bot account gets its own namespace.
type SyncState struct {
	kv kv.Store
}

// NewSyncState returns a SyncState over store.
func NewSyncState(store kv.Store) *SyncState {
	return &SyncState{kv: store}
}

func (s *SyncState) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.set(ctx, userID, keyFilterID, filterID)
}

func (s *SyncState) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.get(ctx, userID, keyFilterID)
}

func (s *SyncState) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.set(ctx, userID, keyNextBatch, nextBatchToken)
}

// LoadNextBatch returns "" on the first run.
func (s *SyncState) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.get(ctx, userID, keyNextBatch)
}

func (s *SyncState) set(ctx context.Context, userID id.UserID, key, value string) error {
	if err := s.kv.Set(ctx, syncNamespacePrefix+userID.String(), key, value); err != nil {
		return fmt.Errorf("matrix: save %s: %w", key, err)
	}
	return nil
}

func (s *SyncState) get(ctx context.Context, userID id.UserID, key string) (string, error) {
	v, err := s.kv.Get(ctx, syncNamespacePrefix+userID.String(), key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("matrix: load %s: %w", key, err)
	}
	return v, nil
}
