package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/bdobrica/Ghost/common/trace"
	"github.com/bdobrica/Ghost/internal/ghost/observability"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := observability.ParseLevel(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestSetup_JSONWithTrace(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	if err := observability.Setup(&buf, "debug", "json"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx := trace.WithTraceID(context.Background(), "t-123")
	observability.WithTrace(ctx).Debug("turn resolved", "rule", "tasks")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if line["trace"] != "t-123" || line["rule"] != "tasks" || line["msg"] != "turn resolved" {
		t.Errorf("line = %v", line)
	}
}

func TestSetup_Rejects(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	if err := observability.Setup(&buf, "info", "xml"); err == nil {
		t.Error("unknown format accepted")
	}
	if err := observability.Setup(&buf, "info", "text"); err != nil {
		t.Fatalf("Setup text: %v", err)
	}
	observability.WithTrace(context.Background()).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text output = %q", buf.String())
	}
}
