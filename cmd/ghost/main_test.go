package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"GHOST_HTTP_ADDR", "GHOST_DATABASE_PATH", "GHOST_GEN_PROVIDER", "MATRIX_ROOMS", "GHOST_OWNER_BIRTHDATE"} {
		t.Setenv(k, "")
	}
	cfg := loadConfig()
	if cfg.HTTPAddr != ":8080" || cfg.DatabasePath != "./ghost.db" {
		t.Errorf("addresses = %q, %q", cfg.HTTPAddr, cfg.DatabasePath)
	}
	if cfg.UnlockSecret != "Admin123" || cfg.HistoryLimit != 100 || cfg.CacheVersion != "v1" {
		t.Errorf("defaults = %+v", cfg)
	}
	if !cfg.Epoch.Equal(defaultEpoch) || !cfg.OwnerBirthdate.IsZero() {
		t.Errorf("dates = %v, %v", cfg.Epoch, cfg.OwnerBirthdate)
	}
	if cfg.Generation.Provider != "none" || cfg.Generation.Timeout != 15*time.Second {
		t.Errorf("generation = %+v", cfg.Generation)
	}
	if cfg.Matrix.Enabled() {
		t.Error("matrix enabled without credentials")
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("GHOST_HISTORY_LIMIT", "25")
	t.Setenv("GHOST_OWNER_BIRTHDATE", "1990-02-03")
	t.Setenv("GHOST_MIC_RESTART_DELAY", "2s")
	t.Setenv("MATRIX_ROOMS", " !a:example.com, ,!b:example.com")

	cfg := loadConfig()
	if cfg.HistoryLimit != 25 || cfg.RestartDelay != 2*time.Second {
		t.Errorf("limits = %d, %v", cfg.HistoryLimit, cfg.RestartDelay)
	}
	if want := time.Date(1990, 2, 3, 0, 0, 0, 0, time.UTC); !cfg.OwnerBirthdate.Equal(want) {
		t.Errorf("birthdate = %v", cfg.OwnerBirthdate)
	}
	if diff := cmp.Diff([]string{"!a:example.com", "!b:example.com"}, cfg.Matrix.Rooms); diff != "" {
		t.Errorf("rooms mismatch (-want +got):\n%s", diff)
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "Ghost v") || !strings.Contains(out, "Last updated:") {
		t.Errorf("output = %q", out)
	}
}

func TestChatCommand(t *testing.T) {
	out, err := run(t, "Admin123\nversion\n/quit\n", "chat", "--db", "", "--session", "test", "--log-level", "error")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	for _, want := range []string{"🔒 Please enter your password", "✅ Access granted", "👻 👻 Ghost v"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestRejectsBadLogFormat(t *testing.T) {
	if _, err := run(t, "", "version", "--log-format", "xml"); err == nil {
		t.Error("bad log format accepted")
	}
}
