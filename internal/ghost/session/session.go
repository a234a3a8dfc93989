// Package session holds the per-conversation state the resolver and the
// dictation machine act on: the unlock flag, the voice preference, the chat
// transcript, and the task and expense ledgers.
//
// A Session is safe for concurrent use. Nothing in this package performs
// I/O; the persistence gateway snapshots and restores sessions.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Ghost/internal/ghost/install"
)

// Mode is the dictation mode of a session.
type Mode int

const (
	// Sleeping means recognition is inactive or has not been requested.
	Sleeping Mode = iota
	// WakeListening means recognition is active and only scanning for a
	// wake phrase.
	WakeListening
	// ActiveListening means finalized transcripts are forwarded as input.
	ActiveListening
)

func (m Mode) String() string {
	switch m {
	case WakeListening:
		return "wake-listening"
	case ActiveListening:
		return "active-listening"
	default:
		return "sleeping"
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name written by MarshalText.
func (m *Mode) UnmarshalText(b []byte) error {
	switch s := string(b); s {
	case "sleeping":
		*m = Sleeping
	case "wake-listening":
		*m = WakeListening
	case "active-listening":
		*m = ActiveListening
	default:
		return fmt.Errorf("session: unknown mode %q", s)
	}
	return nil
}

// Dictation is the view of the dictation state machine the resolver needs.
type Dictation interface {
	Mode() Mode
	// Wake moves a sleeping or wake-listening machine to active listening.
	// It reports whether the transition happened.
	Wake() bool
}

// Sender identifies who produced a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is one immutable transcript entry.
type ChatMessage struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is a to-do item created by "add task".
type Task struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	CreatedDate time.Time `json:"created_date"`
}

// Snapshot is the persisted subset of a session.
type Snapshot struct {
	Transcript          []ChatMessage
	Tasks               []Task
	Expenses            []Expense
	VoiceEnabled        bool
	InstallAcknowledged bool
}

// Session is one user's conversation state.
type Session struct {
	ID string

	// Install holds the platform's deferred install offer for this client.
	Install install.Hook

	mu                  sync.Mutex
	unlocked            bool
	voiceEnabled        bool
	installAcknowledged bool
	transcript          []ChatMessage
	tasks               []Task
	expenses            []Expense
	historyLimit        int
	dictation           Dictation
}

// New creates a locked session. historyLimit bounds the transcript; zero
// or negative keeps everything.
func New(id string, historyLimit int) *Session {
	return &Session{ID: id, historyLimit: historyLimit}
}

// Restore replaces the persisted parts of the session with snap. The unlock
// flag is never restored.
func (s *Session) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append([]ChatMessage(nil), snap.Transcript...)
	s.trimLocked()
	s.tasks = append([]Task(nil), snap.Tasks...)
	s.expenses = append([]Expense(nil), snap.Expenses...)
	s.voiceEnabled = snap.VoiceEnabled
	s.installAcknowledged = snap.InstallAcknowledged
}

// Snapshot returns a copy of the persisted parts of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Transcript:          append([]ChatMessage(nil), s.transcript...),
		Tasks:               append([]Task(nil), s.tasks...),
		Expenses:            append([]Expense(nil), s.expenses...),
		VoiceEnabled:        s.voiceEnabled,
		InstallAcknowledged: s.installAcknowledged,
	}
}

// AttachDictation wires the session to its dictation machine.
func (s *Session) AttachDictation(d Dictation) {
	s.mu.Lock()
	s.dictation = d
	s.mu.Unlock()
}

// Mode returns the current dictation mode, Sleeping when no machine is
// attached.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	d := s.dictation
	s.mu.Unlock()
	if d == nil {
		return Sleeping
	}
	return d.Mode()
}

// Wake asks the attached dictation machine to start active listening.
func (s *Session) Wake() bool {
	s.mu.Lock()
	d := s.dictation
	s.mu.Unlock()
	if d == nil {
		return false
	}
	return d.Wake()
}

// Unlocked reports whether the unlock secret has been entered.
func (s *Session) Unlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked
}

// Unlock marks the session as unlocked.
func (s *Session) Unlock() {
	s.mu.Lock()
	s.unlocked = true
	s.mu.Unlock()
}

// VoiceEnabled reports whether replies should be spoken.
func (s *Session) VoiceEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceEnabled
}

// SetVoiceEnabled toggles spoken replies.
func (s *Session) SetVoiceEnabled(on bool) {
	s.mu.Lock()
	s.voiceEnabled = on
	s.mu.Unlock()
}

// InstallAcknowledged reports whether the user has answered an install prompt.
func (s *Session) InstallAcknowledged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installAcknowledged
}

// AcknowledgeInstall records that an install prompt was answered.
func (s *Session) AcknowledgeInstall() {
	s.mu.Lock()
	s.installAcknowledged = true
	s.mu.Unlock()
}

// Append adds a message to the transcript, dropping the oldest entries past
// the history limit. Blank messages are ignored.
func (s *Session) Append(sender Sender, text string, at time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, ChatMessage{Sender: sender, Text: text, Timestamp: at})
	s.trimLocked()
}

func (s *Session) trimLocked() {
	if s.historyLimit > 0 && len(s.transcript) > s.historyLimit {
		s.transcript = append([]ChatMessage(nil), s.transcript[len(s.transcript)-s.historyLimit:]...)
	}
}

// Transcript returns a copy of the transcript in insertion order.
func (s *Session) Transcript() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.transcript...)
}

// Reset clears the transcript, tasks and expenses.
func (s *Session) Reset() {
	s.mu.Lock()
	s.transcript = nil
	s.tasks = nil
	s.expenses = nil
	s.mu.Unlock()
}

// AddTask appends a task dated at now.
func (s *Session) AddTask(text string, now time.Time) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Task{
		ID:          newID(func(id string) bool { return s.hasTaskLocked(id) }),
		Text:        text,
		CreatedDate: now,
	}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *Session) hasTaskLocked(id string) bool {
	for _, t := range s.tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Tasks returns a copy of the task list in creation order.
func (s *Session) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}

// ClearTasks empties the task list.
func (s *Session) ClearTasks() {
	s.mu.Lock()
	s.tasks = nil
	s.mu.Unlock()
}

// newID returns a UUID not rejected by taken.
func newID(taken func(string) bool) string {
	for {
		id := uuid.NewString()
		if !taken(id) {
			return id
		}
	}
}
