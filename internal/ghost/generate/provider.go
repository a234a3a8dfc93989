// Package generate is Ghost's optional external text-generation capability.
//
// The resolver consults a Generator only after every rule-based branch has
// declined the input. Generation is strictly best-effort: an absent
// generator, a transport failure, a rate limit, or refusal-like output all
// mean "no answer for this turn" and the resolver falls back to its canned
// replies.
package generate

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when no backend is configured.
var ErrUnavailable = errors.New("generate: capability unavailable")

// ErrRateLimit is returned when the per-session limiter or the upstream API
// rejects the call.
var ErrRateLimit = errors.New("generate: rate limit exceeded")

// ErrRefusal is returned when the backend produced empty or refusal-like
// output.
var ErrRefusal = errors.New("generate: refusal or empty output")

// Options tune a single generation call. Zero values select backend defaults.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// DefaultOptions keeps replies short, like the canned ones.
var DefaultOptions = Options{MaxTokens: 120, Temperature: 0.7}

// Generator maps a prompt to generated text.
//
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// ComposePrompt joins the persona text and the raw user input.
func ComposePrompt(persona, input string) string {
	var b strings.Builder
	if p := strings.TrimSpace(persona); p != "" {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(strings.TrimSpace(input))
	b.WriteString("\nGhost:")
	return b.String()
}

// IsRefusal reports whether out is empty or contains any refusal marker
// (case-insensitive).
func IsRefusal(out string, markers []string) bool {
	lower := strings.ToLower(strings.TrimSpace(out))
	if lower == "" {
		return true
	}
	for _, m := range markers {
		if m = strings.ToLower(m); m != "" && strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
