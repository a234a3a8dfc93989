// Package dictation gates speech recognition behind a wake phrase.
//
// The Machine is in one of three modes:
//
//	Sleeping        recognition is off, or was refused for good
//	WakeListening   recognition runs; final transcripts are only scanned for
//	                a wake phrase
//	ActiveListening the next final transcript is forwarded as chat input,
//	                after which the machine drops back to WakeListening
//
// Speech output pauses recognition for the length of every utterance so the
// recognizer never hears Ghost talk. Pausing is a flag, not a mode: the mode
// in force before the utterance is resumed afterwards.
//
// Platform events (results, errors, end-of-recognition) may arrive in any
// order relative to synthesis events. Every handler re-reads the current
// state under the lock instead of trusting what was true when the event was
// queued. Recognizer calls and hooks always run with the lock released.
package dictation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bdobrica/Ghost/internal/ghost/match"
	"github.com/bdobrica/Ghost/internal/ghost/session"
)

// Recognition error codes reported by the platform.
const (
	ErrNoSpeech          = "no-speech"
	ErrAborted           = "aborted"
	ErrNotAllowed        = "not-allowed"
	ErrServiceNotAllowed = "service-not-allowed"
	ErrAudioCapture      = "audio-capture"
)

const (
	DefaultMaxRestarts  = 3
	DefaultRestartDelay = 500 * time.Millisecond
	DefaultHealthyRun   = 3 * time.Second
)

// Recognizer starts and stops the platform's single recognition session.
// Both calls are asynchronous requests; the platform confirms a stop by
// delivering Ended.
type Recognizer interface {
	Start() error
	Stop() error
}

// Timer is a cancellable pending call.
type Timer interface {
	Stop() bool
}

// Config wires a Machine to its platform and to the chat pipeline.
type Config struct {
	// SessionID only labels log lines.
	SessionID   string
	Recognizer  Recognizer
	WakePhrases []string

	// Forward receives a final transcript heard in ActiveListening.
	Forward func(transcript string)
	// Greet is called when a spoken wake phrase activates listening.
	Greet func()
	// Unavailable is called once when the microphone is refused or keeps
	// failing.
	Unavailable func()

	// MaxRestarts caps consecutive failed runs, ones that end with no
	// result or no-speech report and before HealthyRun has passed. Zero
	// means DefaultMaxRestarts.
	MaxRestarts int
	// HealthyRun is how long a run must last to count as working even
	// without any recognition activity. Zero means DefaultHealthyRun.
	HealthyRun time.Duration
	// RestartDelay is the pause before an automatic restart. Zero means
	// DefaultRestartDelay.
	RestartDelay time.Duration
	// AfterFunc schedules restarts. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Machine is the dictation state machine for one session. It satisfies
// session.Dictation.
type Machine struct {
	cfg Config

	mu          sync.Mutex
	mode        session.Mode
	granted     bool // permission was granted at least once
	denied      bool // permission refused or hardware missing; terminal
	unavailable bool // gave up after repeated failures
	paused      bool // speech output in progress
	running     bool // recognizer believed to be running
	stopping    bool // a Stop was issued and Ended is still due
	closed      bool
	restarts    int // consecutive failed runs
	active      bool // the current run produced a result or a no-speech report
	startedAt   time.Time
	pending     *restart
}

// restart is a scheduled automatic start. done is closed once it has run or
// was cancelled.
type restart struct {
	timer Timer
	done  chan struct{}
}

var _ session.Dictation = (*Machine)(nil)

// New returns a sleeping Machine.
func New(cfg Config) *Machine {
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = DefaultMaxRestarts
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.HealthyRun <= 0 {
		cfg.HealthyRun = DefaultHealthyRun
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if cfg.Forward == nil {
		cfg.Forward = func(string) {}
	}
	if cfg.Greet == nil {
		cfg.Greet = func() {}
	}
	if cfg.Unavailable == nil {
		cfg.Unavailable = func() {}
	}
	return &Machine{cfg: cfg, mode: session.Sleeping}
}

// State is a point-in-time view of the machine.
type State struct {
	Mode session.Mode `json:"mode"`
	// Paused is set while speech output holds the recognizer off.
	Paused bool `json:"paused"`
	// Available is false once the microphone was refused or gave up.
	Available bool `json:"mic_available"`
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Mode: m.mode, Paused: m.paused, Available: !m.denied && !m.unavailable}
}

// Mode returns the current mode.
func (m *Machine) Mode() session.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// run executes the effects collected under the lock.
func run(effects []func()) {
	for _, f := range effects {
		f()
	}
}

// PermissionGranted starts recognition in WakeListening.
func (m *Machine) PermissionGranted() {
	m.mu.Lock()
	if m.denied || m.closed {
		m.mu.Unlock()
		return
	}
	m.granted = true
	m.unavailable = false
	m.restarts = 0
	m.mode = session.WakeListening
	var effects []func()
	if !m.paused && !m.running {
		effects = append(effects, m.startLocked())
	}
	m.mu.Unlock()

	slog.Info("dictation: microphone granted", "session", m.cfg.SessionID)
	run(effects)
}

// PermissionDenied puts the machine to sleep for the rest of the session.
func (m *Machine) PermissionDenied(reason string) {
	m.mu.Lock()
	if m.denied || m.closed {
		m.mu.Unlock()
		return
	}
	m.denied = true
	m.mode = session.Sleeping
	m.cancelTimerLocked()
	effects := []func(){m.cfg.Unavailable}
	if m.running {
		effects = append([]func(){m.stopLocked()}, effects...)
	}
	m.mu.Unlock()

	slog.Warn("dictation: microphone unavailable", "session", m.cfg.SessionID, "reason", reason)
	run(effects)
}

// Sleep turns recognition off at the user's request. Unlike a denial it is
// not terminal: PermissionGranted resumes listening.
func (m *Machine) Sleep() {
	m.mu.Lock()
	m.mode = session.Sleeping
	m.cancelTimerLocked()
	var effects []func()
	if m.running {
		effects = append(effects, m.stopLocked())
	}
	m.mu.Unlock()
	run(effects)
}

// Wake moves to ActiveListening when the microphone is usable. It reports
// whether the transition happened.
func (m *Machine) Wake() bool {
	m.mu.Lock()
	if !m.granted || m.denied || m.unavailable || m.closed {
		m.mu.Unlock()
		return false
	}
	m.mode = session.ActiveListening
	var effects []func()
	if !m.running && !m.paused && m.pending == nil {
		effects = append(effects, m.startLocked())
	}
	m.mu.Unlock()

	slog.Debug("dictation: woken by typed phrase", "session", m.cfg.SessionID)
	run(effects)
	return true
}

// Result handles a transcript. Interim results and anything heard while
// paused are discarded.
func (m *Machine) Result(transcript string, final bool) {
	m.mu.Lock()
	if m.running && !m.paused {
		m.active = true
	}
	if !final || m.paused || m.denied || m.closed {
		m.mu.Unlock()
		return
	}

	var effects []func()
	switch m.mode {
	case session.WakeListening:
		if match.Matches(transcript, m.cfg.WakePhrases) {
			m.mode = session.ActiveListening
			effects = append(effects, m.cfg.Greet)
			slog.Info("dictation: wake phrase heard", "session", m.cfg.SessionID)
		}
	case session.ActiveListening:
		m.mode = session.WakeListening
		effects = append(effects, func() { m.cfg.Forward(transcript) })
	}
	m.mu.Unlock()
	run(effects)
}

// SynthesisStarted pauses recognition for the length of an utterance.
func (m *Machine) SynthesisStarted() {
	m.mu.Lock()
	m.paused = true
	m.cancelTimerLocked()
	var effects []func()
	if m.running && !m.stopping {
		effects = append(effects, m.stopLocked())
	}
	m.mu.Unlock()
	run(effects)
}

// SynthesisEnded lifts the pause and resumes the mode in force before it.
// If the recognizer has not confirmed its stop yet, Ended restarts it.
func (m *Machine) SynthesisEnded() {
	m.mu.Lock()
	m.paused = false
	var effects []func()
	if !m.stopping && !m.running && m.shouldListenLocked() {
		effects = append(effects, m.startLocked())
	}
	m.mu.Unlock()
	run(effects)
}

// Error handles a recognition error code.
func (m *Machine) Error(code string) {
	switch code {
	case ErrNoSpeech:
		// The recognizer listened for its full window: the run worked.
		m.mu.Lock()
		if m.running {
			m.active = true
		}
		m.mu.Unlock()
		slog.Debug("dictation: recognition error ignored", "session", m.cfg.SessionID, "code", code)
		return
	case ErrAborted:
		slog.Debug("dictation: recognition error ignored", "session", m.cfg.SessionID, "code", code)
		return
	case ErrNotAllowed, ErrServiceNotAllowed, ErrAudioCapture:
		m.PermissionDenied(code)
		return
	}

	slog.Warn("dictation: recognition error, restarting", "session", m.cfg.SessionID, "code", code)
	m.mu.Lock()
	if m.denied || m.closed || m.mode == session.Sleeping {
		m.mu.Unlock()
		return
	}
	m.mode = session.WakeListening
	// A running recognizer reports Ended next, which restarts it.
	if !m.running {
		m.scheduleRestartLocked()
	}
	m.mu.Unlock()
}

// Ended handles the end of the recognition session. A stop Ghost asked for
// is expected; any other end restarts recognition. A run that heard
// something, or lasted HealthyRun, resets the failure count; after
// MaxRestarts failed runs in a row the microphone is reported unavailable.
func (m *Machine) Ended() {
	m.mu.Lock()
	wasRunning := m.running
	m.running = false
	if wasRunning && (m.active || m.cfg.Now().Sub(m.startedAt) >= m.cfg.HealthyRun) {
		m.restarts = 0
	}
	m.active = false

	if m.stopping {
		m.stopping = false
		var effects []func()
		if !m.paused && m.shouldListenLocked() {
			effects = append(effects, m.startLocked())
		}
		m.mu.Unlock()
		run(effects)
		return
	}

	if m.paused || !m.shouldListenLocked() {
		m.mu.Unlock()
		return
	}

	if m.restarts >= m.cfg.MaxRestarts {
		m.mode = session.Sleeping
		m.unavailable = true
		m.mu.Unlock()
		slog.Warn("dictation: recognition keeps ending, giving up", "session", m.cfg.SessionID, "restarts", m.cfg.MaxRestarts)
		m.cfg.Unavailable()
		return
	}
	m.scheduleRestartLocked()
	m.mu.Unlock()
}

// Close stops recognition and cancels pending restarts.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.mode = session.Sleeping
	m.cancelTimerLocked()
	var effects []func()
	if m.running {
		effects = append(effects, m.stopLocked())
	}
	m.mu.Unlock()
	run(effects)
}

func (m *Machine) shouldListenLocked() bool {
	return !m.denied && !m.closed && !m.unavailable && m.mode != session.Sleeping
}

// PendingRestart returns a channel closed once the scheduled automatic
// restart has issued its start or was cancelled. It returns nil when no
// restart is scheduled.
func (m *Machine) PendingRestart() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	return m.pending.done
}

func (m *Machine) scheduleRestartLocked() {
	if m.pending != nil {
		return
	}
	m.restarts++
	attempt := m.restarts
	r := &restart{done: make(chan struct{})}
	m.pending = r
	r.timer = m.cfg.AfterFunc(m.cfg.RestartDelay, func() {
		m.mu.Lock()
		if m.pending != r {
			m.mu.Unlock()
			return
		}
		m.pending = nil
		var effects []func()
		if !m.paused && !m.running && !m.stopping && m.shouldListenLocked() {
			effects = append(effects, m.startLocked())
		}
		m.mu.Unlock()
		slog.Debug("dictation: restarting recognition", "session", m.cfg.SessionID, "attempt", attempt)
		run(effects)
		close(r.done)
	})
}

func (m *Machine) cancelTimerLocked() {
	if m.pending != nil {
		m.pending.timer.Stop()
		close(m.pending.done)
		m.pending = nil
	}
}

// startLocked marks the recognizer running and returns the call to make
// once the lock is released. A failed start counts as an unexpected end.
func (m *Machine) startLocked() func() {
	m.running = true
	m.active = false
	m.startedAt = m.cfg.Now()
	return func() {
		if err := m.cfg.Recognizer.Start(); err != nil {
			slog.Warn("dictation: start recognition", "session", m.cfg.SessionID, "err", err)
			m.Ended()
		}
	}
}

// stopLocked marks a stop in flight and returns the call to make once the
// lock is released.
func (m *Machine) stopLocked() func() {
	m.stopping = true
	return func() {
		if err := m.cfg.Recognizer.Stop(); err != nil {
			slog.Warn("dictation: stop recognition", "session", m.cfg.SessionID, "err", err)
			m.Ended()
		}
	}
}
