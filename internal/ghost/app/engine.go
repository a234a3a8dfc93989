package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Ghost/common/redact"
	"github.com/bdobrica/Ghost/common/trace"
	"github.com/bdobrica/Ghost/internal/ghost/dictation"
	"github.com/bdobrica/Ghost/internal/ghost/install"
	"github.com/bdobrica/Ghost/internal/ghost/observability"
	"github.com/bdobrica/Ghost/internal/ghost/persist"
	"github.com/bdobrica/Ghost/internal/ghost/platform"
	"github.com/bdobrica/Ghost/internal/ghost/resolver"
	"github.com/bdobrica/Ghost/internal/ghost/rules"
	"github.com/bdobrica/Ghost/internal/ghost/session"
	"github.com/bdobrica/Ghost/internal/ghost/speech"
	"github.com/bdobrica/Ghost/internal/ghost/web"
)

// Platform is what a transport provides for audio.
type Platform interface {
	dictation.Recognizer
	speech.Synthesizer
}

// binder is implemented by platforms that deliver recognition and synthesis
// events in-process.
type binder interface {
	Bind(sink platform.RecognitionSink, finished func())
}

// speechCanceler is implemented by platforms that can drop queued speech.
type speechCanceler interface {
	CancelSpeech()
}

// Inputs answered by these rules are secrets or prompts for one, so they are
// kept out of the transcript.
var unrecordedRules = map[string]bool{
	"unlock":     true,
	"reset":      true,
	"clear_chat": true,
}

// Options configures an Engine.
type Options struct {
	Resolver *resolver.Resolver
	Book     *rules.Book
	Persist  *persist.Gateway

	HistoryLimit int
	MaxRestarts  int
	RestartDelay time.Duration
	VoiceName    string
	Locale       string

	// Secrets are redacted from logged input.
	Secrets []string

	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) dictation.Timer
}

// Engine owns the live conversations.
type Engine struct {
	opts Options

	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewEngine returns an Engine with no conversations.
func NewEngine(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts, convs: make(map[string]*Conversation)}
}

// Open returns the conversation for id, creating it on p when it is not
// live. An empty id gets a fresh UUID. created reports whether a new
// conversation was started; a new conversation restores its persisted state
// and greets with the lock prompt when its transcript is empty.
func (e *Engine) Open(ctx context.Context, id string, p Platform) (c *Conversation, created bool) {
	if id == "" {
		id = uuid.NewString()
	}
	e.mu.Lock()
	if c, ok := e.convs[id]; ok {
		e.mu.Unlock()
		return c, false
	}
	e.mu.Unlock()

	c = e.newConversation(ctx, id, p)

	e.mu.Lock()
	if existing, ok := e.convs[id]; ok {
		e.mu.Unlock()
		c.close()
		return existing, false
	}
	e.convs[id] = c
	e.mu.Unlock()

	slog.Info("conversation opened", "session", id, "messages", len(c.Session.Transcript()))
	if len(c.Session.Transcript()) == 0 {
		c.say(e.opts.Book.Message("locked", nil))
		c.save(ctx)
	}
	return c, true
}

// Get returns a live conversation.
func (e *Engine) Get(id string) (*Conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.convs[id]
	return c, ok
}

// Count returns the number of live conversations.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.convs)
}

// Close ends a live conversation. Its persisted state is kept.
func (e *Engine) Close(id string) {
	e.mu.Lock()
	c, ok := e.convs[id]
	delete(e.convs, id)
	e.mu.Unlock()
	if ok {
		c.close()
	}
}

// CloseAll ends every live conversation.
func (e *Engine) CloseAll() {
	e.mu.Lock()
	convs := e.convs
	e.convs = make(map[string]*Conversation)
	e.mu.Unlock()
	for _, c := range convs {
		c.close()
	}
}

func (e *Engine) newConversation(ctx context.Context, id string, p Platform) *Conversation {
	sess := session.New(id, e.opts.HistoryLimit)
	sess.Restore(e.opts.Persist.Load(ctx, id))

	c := &Conversation{ID: id, Session: sess, Platform: p, engine: e}
	c.Dictation = dictation.New(dictation.Config{
		SessionID:    id,
		Recognizer:   p,
		WakePhrases:  e.opts.Book.WakePhrases,
		Forward:      c.forward,
		Greet:        c.greet,
		Unavailable:  c.micUnavailable,
		MaxRestarts:  e.opts.MaxRestarts,
		RestartDelay: e.opts.RestartDelay,
		AfterFunc:    e.opts.AfterFunc,
	})
	c.Speech = speech.NewDriver(speech.Config{
		Synth:     p,
		Listener:  c.Dictation,
		VoiceName: e.opts.VoiceName,
		Locale:    e.opts.Locale,
	})
	sess.AttachDictation(c.Dictation)
	if b, ok := p.(binder); ok {
		b.Bind(c.Dictation, c.Speech.Finished)
	}
	return c
}

// Conversation is one live session with its dictation machine and speech
// driver. Turns are serialised; platform events may arrive concurrently.
type Conversation struct {
	ID        string
	Session   *session.Session
	Dictation *dictation.Machine
	Speech    *speech.Driver
	Platform  Platform

	engine *Engine
	turnMu sync.Mutex

	outMu  sync.Mutex
	outbox []session.ChatMessage
}

// Send runs one chat turn: resolve, record, reply, persist.
func (c *Conversation) Send(ctx context.Context, text string) resolver.Reply {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	log := observability.WithTrace(ctx).With("session", c.ID)
	now := c.engine.opts.Now()
	log.Info("turn received", "input", redact.String(text, c.engine.opts.Secrets...))

	reply := c.engine.opts.Resolver.Resolve(ctx, text, c.Session)
	if strings.TrimSpace(text) == "" {
		return reply
	}

	if !unrecordedRules[reply.Rule] {
		c.Session.Append(session.SenderUser, text, now)
	}
	if !reply.Suppressed {
		c.say(reply.Text)
	}
	for _, n := range reply.Notices {
		c.say(n)
	}
	c.save(ctx)

	log.Info("turn resolved", "rule", reply.Rule, "effects", reply.Effects)
	return reply
}

// Drain returns and clears the assistant messages produced since the last
// call.
func (c *Conversation) Drain() []session.ChatMessage {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	out := c.outbox
	c.outbox = nil
	return out
}

// SetVoice toggles spoken replies. Turning voice off silences speech in
// progress.
func (c *Conversation) SetVoice(ctx context.Context, on bool) {
	c.Session.SetVoiceEnabled(on)
	if !on {
		c.Speech.Cancel()
		if sc, ok := c.Platform.(speechCanceler); ok {
			sc.CancelSpeech()
		}
	}
	c.save(ctx)
	slog.Info("voice replies toggled", "session", c.ID, "enabled", on)
}

// OfferInstall stores the platform's deferred install handle.
func (c *Conversation) OfferInstall(h install.Handle) {
	c.Session.Install.Offer(h)
}

// CompleteInstall runs the armed install prompt and reports the outcome in
// the chat.
func (c *Conversation) CompleteInstall(ctx context.Context) (install.Outcome, error) {
	outcome, err := c.Session.Install.Trigger(ctx)
	if err != nil {
		return "", err
	}
	c.Session.AcknowledgeInstall()
	msg := "install_declined"
	if outcome == install.Accepted {
		msg = "install_accepted"
	}
	c.say(c.engine.opts.Book.Message(msg, nil))
	c.save(ctx)
	slog.Info("install prompt answered", "session", c.ID, "outcome", outcome)
	return outcome, nil
}

// State returns the flags a client mirrors.
func (c *Conversation) State() web.State {
	return web.State{
		State:        c.Dictation.State(),
		VoiceEnabled: c.Session.VoiceEnabled(),
		InstallArmed: c.Session.Install.Armed(),
		Unlocked:     c.Session.Unlocked(),
	}
}

// say records an assistant message, queues it for the client and speaks it
// when voice replies are on.
func (c *Conversation) say(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	now := c.engine.opts.Now()
	c.Session.Append(session.SenderAssistant, text, now)

	c.outMu.Lock()
	c.outbox = append(c.outbox, session.ChatMessage{Sender: session.SenderAssistant, Text: text, Timestamp: now})
	c.outMu.Unlock()

	if c.Session.VoiceEnabled() {
		c.Speech.Speak(text)
	}
}

func (c *Conversation) save(ctx context.Context) {
	if err := c.engine.opts.Persist.Save(ctx, c.ID, c.Session.Snapshot()); err != nil {
		slog.Warn("persist session", "session", c.ID, "err", err)
	}
}

// forward receives a transcript heard in active listening.
func (c *Conversation) forward(transcript string) {
	c.Send(context.Background(), transcript)
}

func (c *Conversation) greet() {
	c.say(c.engine.opts.Book.Message("wake_greeting", nil))
	c.save(context.Background())
}

func (c *Conversation) micUnavailable() {
	c.say(c.engine.opts.Book.Message("mic_unavailable", nil))
	c.save(context.Background())
}

func (c *Conversation) close() {
	c.Dictation.Close()
	c.Speech.Cancel()
}
