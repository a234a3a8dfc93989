package generate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Ghost/common/retry"
	"github.com/bdobrica/Ghost/internal/ghost/generate"
)

func oaiServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Generate(t *testing.T) {
	var req map[string]any
	srv := oaiServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"  Paris, Sir.  "}}]}`, &req)

	g := generate.NewOpenAI(generate.Config{APIKey: "test-key", BaseURL: srv.URL, Model: "tiny"})
	got, err := g.Generate(context.Background(), "capital of france?", generate.DefaultOptions)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Paris, Sir." {
		t.Errorf("expected trimmed content, got %q", got)
	}
	if req["model"] != "tiny" {
		t.Errorf("expected model tiny, got %v", req["model"])
	}
}

func TestOpenAI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, generate.ErrRateLimit},
		{"api error", http.StatusBadRequest, `{"error":{"message":"bad","type":"invalid_request"}}`, nil},
		{"no choices", http.StatusOK, `{"choices":[]}`, nil},
		{"garbage", http.StatusOK, `not json`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := oaiServer(t, tt.status, tt.body, nil)
			g := generate.NewOpenAI(generate.Config{APIKey: "test-key", BaseURL: srv.URL})
			_, err := g.Generate(context.Background(), "hi", generate.Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestComposePrompt(t *testing.T) {
	got := generate.ComposePrompt("You are Ghost.", "  tell me a joke ")
	want := "You are Ghost.\n\nUser: tell me a joke\nGhost:"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := generate.ComposePrompt("", "hi"); !strings.HasPrefix(got, "User: hi") {
		t.Errorf("expected no persona block, got %q", got)
	}
}

func TestIsRefusal(t *testing.T) {
	markers := []string{"as an ai", "i cannot"}
	if !generate.IsRefusal("  ", markers) {
		t.Error("blank output should count as refusal")
	}
	if !generate.IsRefusal("As an AI, I have no feelings.", markers) {
		t.Error("expected refusal marker match")
	}
	if generate.IsRefusal("Paris is the capital.", markers) {
		t.Error("unexpected refusal")
	}
}

func TestRateLimiter_PerSession(t *testing.T) {
	rl := generate.NewRateLimiter(2, time.Minute)
	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two calls should be allowed")
	}
	if rl.Allow("a") {
		t.Error("third call should be rejected")
	}
	if !rl.Allow("b") {
		t.Error("other sessions are independent")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	window := 30 * time.Millisecond
	rl := generate.NewRateLimiter(1, window)
	if !rl.Allow("a") {
		t.Fatal("first call should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("second call within window should be rejected")
	}
	time.Sleep(window + 10*time.Millisecond)
	if !rl.Allow("a") {
		t.Error("call after window expiry should be allowed")
	}
}

type echo struct{ calls int }

func (e *echo) Generate(_ context.Context, prompt string, _ generate.Options) (string, error) {
	e.calls++
	return prompt, nil
}

func TestLimited(t *testing.T) {
	inner := &echo{}
	g := generate.Limited(inner, generate.NewRateLimiter(1, time.Minute))
	ctx := generate.WithSession(context.Background(), "s1")

	if _, err := g.Generate(ctx, "one", generate.Options{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := g.Generate(ctx, "two", generate.Options{}); !errors.Is(err, generate.ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner generator should be called once, got %d", inner.calls)
	}
}

// flaky fails with its queued errors before answering.
type flaky struct {
	errs  []error
	calls int
}

func (f *flaky) Generate(_ context.Context, prompt string, _ generate.Options) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	return prompt, nil
}

func TestRetrying(t *testing.T) {
	cfg := retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	tests := []struct {
		name      string
		errs      []error
		wantErr   error
		wantCalls int
	}{
		{"transient failure retried", []error{errors.New("connection reset")}, nil, 2},
		{"rate limit is final", []error{generate.ErrRateLimit}, generate.ErrRateLimit, 1},
		{"refusal is final", []error{generate.ErrRefusal}, generate.ErrRefusal, 1},
		{"deadline is final", []error{context.DeadlineExceeded}, context.DeadlineExceeded, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &flaky{errs: tt.errs}
			out, err := generate.Retrying(inner, cfg).Generate(context.Background(), "hi", generate.Options{})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && out != "hi" {
				t.Errorf("out = %q", out)
			}
			if inner.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", inner.calls, tt.wantCalls)
			}
		})
	}
}
