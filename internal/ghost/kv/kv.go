// Package kv is the key/value store behind the persistence gateway. Keys are
// grouped into namespaces, one per chat session.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bdobrica/Ghost/internal/ghost/store"
)

// ErrNotFound is returned by Get when the requested key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Store is the read/write interface for namespaced values.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value under (namespace, key), or ErrNotFound.
	Get(ctx context.Context, namespace, key string) (string, error)

	// Set creates or overwrites the value under (namespace, key).
	Set(ctx context.Context, namespace, key, value string) error

	// Delete removes (namespace, key). Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// List returns every key/value pair in namespace. An empty map (not nil)
	// is returned when the namespace is empty.
	List(ctx context.Context, namespace string) (map[string]string, error)
}

type sqliteStore struct {
	db *store.Store
}

// New returns a Store backed by the kv table of db.
func New(db *store.Store) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv: get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *sqliteStore) Set(ctx context.Context, namespace, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, namespace, key, value, now)
	if err != nil {
		return fmt.Errorf("kv: set %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("kv: delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *sqliteStore) List(ctx context.Context, namespace string) (map[string]string, error) {
	rows, err := s.db.DB().QueryContext(ctx, `SELECT key, value FROM kv WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, fmt.Errorf("kv: list %s: %w", namespace, err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("kv: list scan: %w", err)
		}
		result[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv: list rows: %w", err)
	}
	return result, nil
}

// memoryStore keeps values in process memory. Used by `ghost chat` without a
// database and by tests.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{data: make(map[string]map[string]string)}
}

func (m *memoryStore) Get(_ context.Context, namespace, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[namespace][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string]string)
		m.data[namespace] = ns
	}
	ns[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[namespace], key)
	return nil
}

func (m *memoryStore) List(_ context.Context, namespace string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data[namespace]))
	for k, v := range m.data[namespace] {
		out[k] = v
	}
	return out, nil
}
