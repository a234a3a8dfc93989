// Package install tracks the platform's deferred install offer.
//
// The platform hands Ghost a Handle when it is willing to install the app.
// The resolver arms the hook when the user asks about installing; the client
// then shows its install affordance and, once the user clicks it, Trigger
// runs the platform prompt and yields the user's choice. Handles are single
// use, matching the platform behaviour.
package install

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoHandle is returned by Trigger when no armed install offer exists.
var ErrNoHandle = errors.New("install: no deferred install handle")

// Outcome is the user's answer to the install prompt.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Declined Outcome = "declined"
)

// ParseOutcome validates a client-supplied outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case Accepted, Declined:
		return Outcome(s), nil
	}
	return "", fmt.Errorf("install: unknown outcome %q", s)
}

// Handle is a deferred install offer.
type Handle interface {
	// Prompt shows the platform install dialog and waits for the choice.
	Prompt(ctx context.Context) (Outcome, error)
}

// Hook holds at most one deferred handle and whether the affordance is armed.
// It is safe for concurrent use.
type Hook struct {
	mu     sync.Mutex
	handle Handle
	armed  bool
}

// Offer stores a new deferred handle, replacing any previous one.
func (h *Hook) Offer(handle Handle) {
	h.mu.Lock()
	h.handle = handle
	h.mu.Unlock()
}

// Available reports whether a handle is held.
func (h *Hook) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handle != nil
}

// Arm makes the install affordance visible if a handle is held. Without a
// handle it is a no-op and reports false.
func (h *Hook) Arm() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handle == nil {
		return false
	}
	h.armed = true
	return true
}

// Disarm hides the affordance without consuming the handle.
func (h *Hook) Disarm() {
	h.mu.Lock()
	h.armed = false
	h.mu.Unlock()
}

// Armed reports whether the affordance should be visible.
func (h *Hook) Armed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.armed && h.handle != nil
}

// Trigger consumes the armed handle and runs its prompt.
func (h *Hook) Trigger(ctx context.Context) (Outcome, error) {
	h.mu.Lock()
	handle := h.handle
	if handle == nil || !h.armed {
		h.mu.Unlock()
		return "", ErrNoHandle
	}
	h.handle = nil
	h.armed = false
	h.mu.Unlock()

	outcome, err := handle.Prompt(ctx)
	if err != nil {
		return "", fmt.Errorf("install: prompt: %w", err)
	}
	return outcome, nil
}
