// Package redact keeps secrets out of log output.
//
// Ghost's unlock and reset secrets arrive as ordinary chat input, so user
// text is passed through String before it is logged. Configuration summaries
// go through Map.
package redact

import (
	"cmp"
	"slices"
	"strings"
)

const placeholder = "[REDACTED]"

// minLen is the shortest value String will redact.
const minLen = 4

// String replaces every occurrence of the given secrets in s with
// [REDACTED]. Longer secrets are replaced first, so a secret that contains
// another is hidden whole. Secrets shorter than four characters are ignored.
//
//	slog.Info("turn received", "input", redact.String(input, unlockSecret, resetSecret))
func String(s string, secrets ...string) string {
	sorted := slices.Clone(secrets)
	slices.SortFunc(sorted, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	for _, v := range sorted {
		if len(v) < minLen {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Map returns a copy of m in which non-empty string values under keys that
// look like credentials are replaced by [REDACTED].
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if str, ok := v.(string); ok && str != "" && sensitive(k) {
			v = placeholder
		}
		out[k] = v
	}
	return out
}

var sensitiveWords = []string{"password", "secret", "token", "key", "credential", "auth"}

func sensitive(key string) bool {
	key = strings.ToLower(key)
	return slices.ContainsFunc(sensitiveWords, func(w string) bool { return strings.Contains(key, w) })
}
