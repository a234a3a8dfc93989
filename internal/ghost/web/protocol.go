// Package web serves Ghost over HTTP: the chat, dictation, speech, voice and
// install API used by the browser client, the offline assets, and the
// /health and /status endpoints.
//
// Every API response is an Update. Clients render the new messages, execute
// the directives in order and mirror the state.
package web

import (
	"context"
	"errors"

	"github.com/bdobrica/Ghost/internal/ghost/dictation"
	"github.com/bdobrica/Ghost/internal/ghost/platform"
	"github.com/bdobrica/Ghost/internal/ghost/resolver"
	"github.com/bdobrica/Ghost/internal/ghost/session"
	"github.com/bdobrica/Ghost/internal/ghost/speech"
)

var (
	// ErrUnknownSession is returned for a session id the backend does not hold.
	ErrUnknownSession = errors.New("web: unknown session")
	// ErrInvalidEvent is returned for an event name the endpoint does not accept.
	ErrInvalidEvent = errors.New("web: invalid event")
)

// Dictation event names.
const (
	DictationGranted = "granted"
	DictationDenied  = "denied"
	DictationResult  = "result"
	DictationError   = "error"
	DictationEnd     = "end"
	DictationSleep   = "sleep"
)

// Speech event names.
const (
	SpeechVoices = "voices"
	SpeechEnd    = "end"
)

// Install event names.
const (
	InstallOffered  = "offered"
	InstallAccepted = "accepted"
	InstallDeclined = "declined"
)

// State mirrors the session flags the client renders.
type State struct {
	dictation.State
	VoiceEnabled bool `json:"voice_enabled"`
	InstallArmed bool `json:"install_armed"`
	Unlocked     bool `json:"unlocked"`
}

// Reply describes how the last chat input was resolved.
type Reply struct {
	Text       string            `json:"text,omitempty"`
	Rule       string            `json:"rule"`
	Suppressed bool              `json:"suppressed,omitempty"`
	Effects    []resolver.Effect `json:"effects,omitempty"`
}

// Update is the body of every API response.
type Update struct {
	Session    string                `json:"session"`
	Reply      *Reply                `json:"reply,omitempty"`
	Messages   []session.ChatMessage `json:"messages"`
	Directives []platform.Directive  `json:"directives"`
	State      State                 `json:"state"`
}

// DictationEvent is a recognition event reported by the client.
type DictationEvent struct {
	Event      string
	Transcript string
	Final      bool
	// Error holds the recognition error code, or the denial reason.
	Error string
}

// SpeechEvent is a synthesis event reported by the client.
type SpeechEvent struct {
	Event  string
	Voices []speech.Voice
}

// Backend runs conversations for the HTTP API.
type Backend interface {
	// OpenSession resumes id, or starts a new session when id is empty or
	// unknown. The update carries the replayed history.
	OpenSession(ctx context.Context, id string) (Update, error)
	Chat(ctx context.Context, id, text string) (Update, error)
	Dictation(ctx context.Context, id string, ev DictationEvent) (Update, error)
	Speech(ctx context.Context, id string, ev SpeechEvent) (Update, error)
	Voice(ctx context.Context, id string, enabled bool) (Update, error)
	Install(ctx context.Context, id, event string) (Update, error)
	SessionCount() int
}
