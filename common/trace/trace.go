// Package trace tags each chat turn with an id carried through context, so
// the log lines written while one message is resolved can be grouped.
package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every turn id.
const Prefix = "turn_"

type turnKey struct{}

// GenerateID returns a fresh turn id: Prefix followed by 16 hex digits.
func GenerateID() string {
	return Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// WithTraceID returns a child context carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, turnKey{}, id)
}

// FromContext returns the turn id carried by ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(turnKey{}).(string)
	return id
}
