package redact_test

import (
	"testing"

	"github.com/bdobrica/Ghost/common/redact"
)

func TestString_RedactsSecrets(t *testing.T) {
	got := redact.String("user typed Admin123 then Arpit@232422", "Admin123", "Arpit@232422")
	const want = "user typed [REDACTED] then [REDACTED]"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestString_SkipsShortValues(t *testing.T) {
	line := "abc is fine"
	if got := redact.String(line, "abc"); got != line {
		t.Fatalf("short value should not be redacted; got %q", got)
	}
}

func TestString_LongestSecretFirst(t *testing.T) {
	got := redact.String("reset with Admin1234!", "Admin123", "Admin1234!")
	if got != "reset with [REDACTED]" {
		t.Fatalf("got %q", got)
	}
}

func TestMap_RedactsSensitiveKeys(t *testing.T) {
	m := map[string]any{
		"http_addr":           ":8080",
		"unlock_secret":       "Admin123",
		"gen_api_key":         "sk-live",
		"matrix_access_token": "syt_abc",
		"history_limit":       100,
	}
	out := redact.Map(m)

	for _, k := range []string{"unlock_secret", "gen_api_key", "matrix_access_token"} {
		if out[k] != "[REDACTED]" {
			t.Errorf("%s should be redacted, got %v", k, out[k])
		}
	}
	if out["http_addr"] != ":8080" {
		t.Errorf("http_addr should be unchanged, got %v", out["http_addr"])
	}
	if out["history_limit"] != 100 {
		t.Errorf("non-string value should be unchanged, got %v", out["history_limit"])
	}
	if m["unlock_secret"] != "Admin123" {
		t.Error("Map mutated the original")
	}
}
