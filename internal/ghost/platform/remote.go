// Package platform implements the recognizer, synthesizer and install
// handle that the dictation machine and the speech driver talk to.
//
// Remote serves clients reached over HTTP: every platform call becomes a
// Directive queued for the client, which collects them with the response to
// its next request and reports what happened as events. Console serves the
// terminal REPL and completes every call in-process.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bdobrica/Ghost/internal/ghost/install"
	"github.com/bdobrica/Ghost/internal/ghost/speech"
)

// Directive kinds.
const (
	KindStartRecognition = "recognition.start"
	KindStopRecognition  = "recognition.stop"
	KindSpeak            = "speech.speak"
	KindCancelSpeech     = "speech.cancel"
)

// DefaultMaxDirectives bounds the queue of a client that stopped polling.
const DefaultMaxDirectives = 64

// Directive is one instruction for the client.
type Directive struct {
	Kind      string            `json:"kind"`
	Utterance *speech.Utterance `json:"utterance,omitempty"`
}

// Remote queues platform calls as directives. It is safe for concurrent use.
type Remote struct {
	max int

	mu         sync.Mutex
	directives []Directive
	voices     []speech.Voice
	dropped    int
}

// NewRemote returns a Remote holding at most max pending directives. Zero
// means DefaultMaxDirectives. The oldest directive is dropped on overflow.
func NewRemote(max int) *Remote {
	if max <= 0 {
		max = DefaultMaxDirectives
	}
	return &Remote{max: max}
}

func (r *Remote) push(d Directive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.directives) == r.max {
		r.directives = r.directives[1:]
		r.dropped++
		if r.dropped == 1 || r.dropped%r.max == 0 {
			slog.Warn("platform: directive queue full, dropping oldest", "dropped", r.dropped)
		}
	}
	r.directives = append(r.directives, d)
}

// Drain returns and clears the pending directives.
func (r *Remote) Drain() []Directive {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.directives
	r.directives = nil
	return out
}

// Start asks the client to start recognition.
func (r *Remote) Start() error {
	r.push(Directive{Kind: KindStartRecognition})
	return nil
}

// Stop asks the client to stop recognition. The client confirms with an
// "end" dictation event.
func (r *Remote) Stop() error {
	r.push(Directive{Kind: KindStopRecognition})
	return nil
}

// SetVoices records the voices the client reported.
func (r *Remote) SetVoices(voices []speech.Voice) {
	r.mu.Lock()
	r.voices = append([]speech.Voice(nil), voices...)
	r.mu.Unlock()
}

// Voices returns the voices last reported by the client.
func (r *Remote) Voices() []speech.Voice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]speech.Voice(nil), r.voices...)
}

// Speak queues an utterance. The client reports its end with a speech "end"
// event.
func (r *Remote) Speak(u speech.Utterance) error {
	r.push(Directive{Kind: KindSpeak, Utterance: &u})
	return nil
}

// CancelSpeech asks the client to drop every queued utterance.
func (r *Remote) CancelSpeech() {
	r.push(Directive{Kind: KindCancelSpeech})
}

// InstallHandle returns a single-use install handle. The client shows its own
// install dialog and reports the answer, which is fed in with Choose.
func (r *Remote) InstallHandle() *InstallHandle {
	return &InstallHandle{choice: make(chan install.Outcome, 1)}
}

// InstallHandle is the deferred install offer of a remote client.
type InstallHandle struct {
	choice chan install.Outcome
}

var _ install.Handle = (*InstallHandle)(nil)

// Choose delivers the user's answer. Only the first answer is kept.
func (h *InstallHandle) Choose(o install.Outcome) {
	select {
	case h.choice <- o:
	default:
	}
}

// Prompt waits for the answer delivered by Choose.
func (h *InstallHandle) Prompt(ctx context.Context) (install.Outcome, error) {
	select {
	case o := <-h.choice:
		return o, nil
	case <-ctx.Done():
		return "", fmt.Errorf("platform: install prompt: %w", ctx.Err())
	}
}
