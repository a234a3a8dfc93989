package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bdobrica/Ghost/internal/ghost/install"
	"github.com/bdobrica/Ghost/internal/ghost/platform"
	"github.com/bdobrica/Ghost/internal/ghost/resolver"
	"github.com/bdobrica/Ghost/internal/ghost/web"
)

// WebBackend runs browser conversations on remote platforms.
type WebBackend struct {
	engine        *Engine
	maxDirectives int

	mu      sync.Mutex
	handles map[string]*platform.InstallHandle
}

var _ web.Backend = (*WebBackend)(nil)

// NewWebBackend returns a WebBackend over engine.
func NewWebBackend(engine *Engine, maxDirectives int) *WebBackend {
	return &WebBackend{
		engine:        engine,
		maxDirectives: maxDirectives,
		handles:       make(map[string]*platform.InstallHandle),
	}
}

// OpenSession resumes a browser session. Ids that are not UUIDs, or that
// belong to another transport, start a new session.
func (b *WebBackend) OpenSession(ctx context.Context, id string) (web.Update, error) {
	if _, err := uuid.Parse(id); err != nil {
		id = ""
	}
	if c, ok := b.engine.Get(id); ok {
		if _, remote := c.Platform.(*platform.Remote); !remote {
			id = ""
		}
	}

	c, _ := b.engine.Open(ctx, id, platform.NewRemote(b.maxDirectives))
	remote, ok := c.Platform.(*platform.Remote)
	if !ok {
		return web.Update{}, fmt.Errorf("%w: %s is not a web session", web.ErrUnknownSession, c.ID)
	}
	c.Drain()
	u := b.update(c, remote, nil)
	u.Messages = c.Session.Transcript()
	return u, nil
}

// Chat runs one turn.
func (b *WebBackend) Chat(ctx context.Context, id, text string) (web.Update, error) {
	c, remote, err := b.conversation(id)
	if err != nil {
		return web.Update{}, err
	}
	reply := c.Send(ctx, text)
	return b.update(c, remote, &reply), nil
}

// Dictation feeds a recognition event to the session's machine. When the
// event schedules an automatic restart, the call waits for it so the start
// directive travels back with this response; the client does not poll.
func (b *WebBackend) Dictation(ctx context.Context, id string, ev web.DictationEvent) (web.Update, error) {
	c, remote, err := b.conversation(id)
	if err != nil {
		return web.Update{}, err
	}
	m := c.Dictation
	switch ev.Event {
	case web.DictationGranted:
		m.PermissionGranted()
	case web.DictationDenied:
		m.PermissionDenied(orDefault(ev.Error, "denied"))
	case web.DictationResult:
		m.Result(ev.Transcript, ev.Final)
	case web.DictationError:
		m.Error(ev.Error)
	case web.DictationEnd:
		m.Ended()
	case web.DictationSleep:
		m.Sleep()
	default:
		return web.Update{}, fmt.Errorf("%w: dictation %q", web.ErrInvalidEvent, ev.Event)
	}
	if done := m.PendingRestart(); done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return b.update(c, remote, nil), nil
}

// Speech feeds a synthesis event to the session's driver.
func (b *WebBackend) Speech(_ context.Context, id string, ev web.SpeechEvent) (web.Update, error) {
	c, remote, err := b.conversation(id)
	if err != nil {
		return web.Update{}, err
	}
	switch ev.Event {
	case web.SpeechVoices:
		remote.SetVoices(ev.Voices)
		c.Speech.VoicesChanged()
	case web.SpeechEnd:
		c.Speech.Finished()
	default:
		return web.Update{}, fmt.Errorf("%w: speech %q", web.ErrInvalidEvent, ev.Event)
	}
	return b.update(c, remote, nil), nil
}

// Voice toggles spoken replies.
func (b *WebBackend) Voice(ctx context.Context, id string, enabled bool) (web.Update, error) {
	c, remote, err := b.conversation(id)
	if err != nil {
		return web.Update{}, err
	}
	c.SetVoice(ctx, enabled)
	return b.update(c, remote, nil), nil
}

// Install handles the client's install offer and the user's answer to it.
func (b *WebBackend) Install(ctx context.Context, id, event string) (web.Update, error) {
	c, remote, err := b.conversation(id)
	if err != nil {
		return web.Update{}, err
	}
	switch event {
	case web.InstallOffered:
		h := remote.InstallHandle()
		b.mu.Lock()
		b.handles[id] = h
		b.mu.Unlock()
		c.OfferInstall(h)
	case web.InstallAccepted, web.InstallDeclined:
		outcome, err := install.ParseOutcome(event)
		if err != nil {
			return web.Update{}, fmt.Errorf("%w: %v", web.ErrInvalidEvent, err)
		}
		b.mu.Lock()
		h := b.handles[id]
		b.mu.Unlock()
		if h == nil {
			return web.Update{}, install.ErrNoHandle
		}
		h.Choose(outcome)
		if _, err := c.CompleteInstall(ctx); err != nil {
			return web.Update{}, err
		}
		b.mu.Lock()
		if b.handles[id] == h {
			delete(b.handles, id)
		}
		b.mu.Unlock()
	default:
		return web.Update{}, fmt.Errorf("%w: install %q", web.ErrInvalidEvent, event)
	}
	return b.update(c, remote, nil), nil
}

// SessionCount returns the number of live conversations.
func (b *WebBackend) SessionCount() int {
	return b.engine.Count()
}

func (b *WebBackend) conversation(id string) (*Conversation, *platform.Remote, error) {
	c, ok := b.engine.Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", web.ErrUnknownSession, id)
	}
	remote, ok := c.Platform.(*platform.Remote)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not a web session", web.ErrUnknownSession, id)
	}
	return c, remote, nil
}

func (b *WebBackend) update(c *Conversation, remote *platform.Remote, reply *resolver.Reply) web.Update {
	u := web.Update{
		Session:    c.ID,
		Messages:   c.Drain(),
		Directives: remote.Drain(),
		State:      c.State(),
	}
	if reply != nil {
		u.Reply = &web.Reply{
			Text:       reply.Text,
			Rule:       reply.Rule,
			Suppressed: reply.Suppressed,
			Effects:    reply.Effects,
		}
	}
	return u
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
