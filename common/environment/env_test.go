package environment_test

import (
	"testing"
	"time"

	"github.com/bdobrica/Ghost/common/environment"
)

func TestStringOr(t *testing.T) {
	t.Setenv("GHOST_TEST_STRING", "hello")
	if got := environment.StringOr("GHOST_TEST_STRING", "default"); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
	if got := environment.StringOr("GHOST_TEST_STRING_MISSING", "default"); got != "default" {
		t.Errorf("expected %q, got %q", "default", got)
	}
}

func TestIntOr(t *testing.T) {
	t.Setenv("GHOST_TEST_INT", "42")
	if got := environment.IntOr("GHOST_TEST_INT", 0); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("GHOST_TEST_INT", "forty-two")
	if got := environment.IntOr("GHOST_TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7 for bad value, got %d", got)
	}
}

func TestDurationOr(t *testing.T) {
	t.Setenv("GHOST_TEST_DUR", "500ms")
	if got := environment.DurationOr("GHOST_TEST_DUR", time.Second); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
	if got := environment.DurationOr("GHOST_TEST_DUR_MISSING", time.Second); got != time.Second {
		t.Errorf("expected 1s default, got %v", got)
	}
}

func TestDateOr(t *testing.T) {
	t.Setenv("GHOST_TEST_DATE", "2025-07-01")
	got := environment.DateOr("GHOST_TEST_DATE", time.Time{})
	want := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	t.Setenv("GHOST_TEST_DATE", "01/07/2025")
	if got := environment.DateOr("GHOST_TEST_DATE", time.Time{}); !got.IsZero() {
		t.Errorf("expected zero time for bad layout, got %v", got)
	}
}

func TestStringSliceOr(t *testing.T) {
	t.Setenv("GHOST_TEST_SLICE", " !a:example.org , ,!b:example.org ")
	got := environment.StringSliceOr("GHOST_TEST_SLICE", nil)
	if len(got) != 2 || got[0] != "!a:example.org" || got[1] != "!b:example.org" {
		t.Errorf("unexpected slice: %q", got)
	}

	t.Setenv("GHOST_TEST_SLICE", " , ")
	def := []string{"x"}
	if got := environment.StringSliceOr("GHOST_TEST_SLICE", def); len(got) != 1 || got[0] != "x" {
		t.Errorf("expected default, got %q", got)
	}
}
