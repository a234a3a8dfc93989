// Package resolver turns one line of chat input into Ghost's reply.
//
// Resolution walks an ordered table of rules. Each rule has a predicate and
// a handler; the first rule whose predicate holds produces the reply. A
// handler may decline (the generation rule does so on failure), in which case
// the walk continues with the next rule. The terminal fallback always
// answers, so Resolve never returns without a decision.
package resolver

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/bdobrica/Ghost/common/trace"
	"github.com/bdobrica/Ghost/internal/ghost/generate"
	"github.com/bdobrica/Ghost/internal/ghost/match"
	"github.com/bdobrica/Ghost/internal/ghost/rules"
	"github.com/bdobrica/Ghost/internal/ghost/session"
)

// Effect names a side effect a reply had on the session or the platform.
type Effect string

const (
	// EffectUnlocked is reported when the unlock secret was accepted.
	EffectUnlocked Effect = "unlocked"
	// EffectCleared is reported when transcript, tasks and expenses were wiped.
	EffectCleared Effect = "cleared"
	// EffectInstallArmed is reported when a deferred install handle was armed.
	EffectInstallArmed Effect = "install_armed"
	// EffectWoke is reported when a wake phrase moved dictation to active.
	EffectWoke Effect = "woke"
	// EffectTasksChanged is reported when the task list was modified.
	EffectTasksChanged Effect = "tasks_changed"
	// EffectExpensesChanged is reported when the expense list was modified.
	EffectExpensesChanged Effect = "expenses_changed"
)

// Reply is the outcome of resolving one input.
type Reply struct {
	// Text is the visible reply. It is empty when Suppressed is set.
	Text string
	// Suppressed means no reply is shown for this turn.
	Suppressed bool
	// Rule is the name of the rule that produced the reply.
	Rule string
	// Notices are out-of-band assistant messages, e.g. the wake greeting.
	Notices []string
	// Effects lists what the turn changed.
	Effects []Effect
}

// Has reports whether the reply carries effect e.
func (r Reply) Has(e Effect) bool {
	for _, x := range r.Effects {
		if x == e {
			return true
		}
	}
	return false
}

// Turn is the input handed to every rule.
type Turn struct {
	// Raw is the input with surrounding whitespace trimmed.
	Raw string
	// Lower is Raw lower-cased.
	Lower string
	// Norm is Raw passed through match.Normalize.
	Norm    string
	Session *session.Session
	Now     time.Time
}

// Rule is one entry in the resolution table. Handle returns ok=false to let
// the walk continue with the next rule.
type Rule struct {
	Name    string
	Applies func(t *Turn) bool
	Handle  func(ctx context.Context, t *Turn) (reply Reply, ok bool)
}

// Config carries everything the resolver needs besides the session.
type Config struct {
	Book         *rules.Book
	UnlockSecret string
	ResetSecret  string

	// Epoch is Ghost's own birthday, used by "your age".
	Epoch time.Time
	// OwnerBirthdate answers "my age". Zero means unknown.
	OwnerBirthdate time.Time

	// Generator is the optional external generation capability.
	Generator         generate.Generator
	GenerationOptions generate.Options
	// GenerationTimeout bounds one generation call. Zero means 15s.
	GenerationTimeout time.Duration

	// Version and LastUpdated answer version queries.
	Version     string
	LastUpdated string

	// Now and Rand are injectable for tests.
	Now  func() time.Time
	Rand *rand.Rand
}

// Resolver evaluates the rule table. It is safe for concurrent use as long
// as each Session is only resolved by one goroutine at a time.
type Resolver struct {
	cfg   Config
	rules []Rule

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds a resolver over cfg. A nil Book falls back to the embedded
// default rule book.
func New(cfg Config) (*Resolver, error) {
	if cfg.Book == nil {
		b, err := rules.Default()
		if err != nil {
			return nil, err
		}
		cfg.Book = b
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 15 * time.Second
	}
	if cfg.GenerationOptions == (generate.Options{}) {
		cfg.GenerationOptions = generate.DefaultOptions
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6768))
	}

	r := &Resolver{cfg: cfg, rng: rng}
	r.rules = []Rule{
		{Name: "unlock", Applies: r.isLocked, Handle: r.unlock},
		{Name: "reset", Applies: r.isResetSecret, Handle: r.reset},
		{Name: "clear_chat", Applies: isClearChat, Handle: r.clearChatPrompt},
		{Name: "install", Applies: r.isInstallIntent, Handle: r.install},
		{Name: "wake", Applies: r.isWake, Handle: r.wake},
		{Name: "identity", Applies: r.isIdentity, Handle: r.identity},
		{Name: "tasks", Applies: isTaskCommand, Handle: r.tasks},
		{Name: "expenses", Applies: isExpenseCommand, Handle: r.expenses},
		{Name: "game", Applies: isGame, Handle: r.game},
		{Name: "calculator", Applies: r.isCalculation, Handle: r.calculate},
		{Name: "quiz", Applies: r.keyword(rules.KeyQuiz), Handle: r.quiz},
		{Name: "version", Applies: r.keyword(rules.KeyVersion), Handle: r.version},
		{Name: "small_talk", Applies: r.isSmallTalk, Handle: r.smallTalk},
		{Name: "generate", Applies: r.canGenerate, Handle: r.generate},
		{Name: "fallback", Applies: always, Handle: r.fallback},
	}
	return r, nil
}

// Rules returns the rule names in evaluation order.
func (r *Resolver) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// Resolve produces the reply for raw. Empty or whitespace-only input is
// rejected before the table is consulted and yields a suppressed reply.
func (r *Resolver) Resolve(ctx context.Context, raw string, sess *session.Session) Reply {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reply{Suppressed: true, Rule: "empty"}
	}

	t := &Turn{
		Raw:     raw,
		Lower:   strings.ToLower(raw),
		Norm:    match.Normalize(raw),
		Session: sess,
		Now:     r.cfg.Now(),
	}

	for _, rule := range r.rules {
		if !rule.Applies(t) {
			continue
		}
		reply, ok := rule.Handle(ctx, t)
		if !ok {
			slog.Debug("resolver: rule declined", "rule", rule.Name, "session", sess.ID, "trace", trace.FromContext(ctx))
			continue
		}
		reply.Rule = rule.Name
		// The install button only stays up for install-related turns.
		if rule.Name != "install" {
			sess.Install.Disarm()
		}
		slog.Debug("resolver: rule matched", "rule", rule.Name, "session", sess.ID, "trace", trace.FromContext(ctx))
		return reply
	}

	// Unreachable: the fallback rule always answers.
	return Reply{Text: r.pick(r.cfg.Book.Fallbacks), Rule: "fallback"}
}

func (r *Resolver) msg(name string, data any) string {
	return r.cfg.Book.Message(name, data)
}

func (r *Resolver) keyword(group string) func(t *Turn) bool {
	return func(t *Turn) bool {
		return match.Matches(t.Norm, r.cfg.Book.Keyword(group))
	}
}

// pick returns a uniformly random element of choices, or "" when empty.
func (r *Resolver) pick(choices []string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[r.intN(len(choices))]
}

func (r *Resolver) intN(n int) int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.IntN(n)
}

func always(*Turn) bool { return true }

func text(s string, effects ...Effect) (Reply, bool) {
	return Reply{Text: s, Effects: effects}, true
}
