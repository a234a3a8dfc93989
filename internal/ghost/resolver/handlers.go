package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/Ghost/common/trace"
	"github.com/bdobrica/Ghost/internal/ghost/generate"
	"github.com/bdobrica/Ghost/internal/ghost/match"
	"github.com/bdobrica/Ghost/internal/ghost/rules"
	"github.com/bdobrica/Ghost/internal/ghost/session"
)

// --- access ---

func (r *Resolver) isLocked(t *Turn) bool {
	return !t.Session.Unlocked()
}

// unlock compares the input verbatim, case included, to the unlock secret.
func (r *Resolver) unlock(_ context.Context, t *Turn) (Reply, bool) {
	if r.cfg.UnlockSecret != "" && t.Raw == r.cfg.UnlockSecret {
		t.Session.Unlock()
		return text(r.msg(rules.MsgAccessGranted, nil), EffectUnlocked)
	}
	return text(r.msg(rules.MsgAccessDenied, nil))
}

func (r *Resolver) isResetSecret(t *Turn) bool {
	return r.cfg.ResetSecret != "" && t.Raw == r.cfg.ResetSecret
}

func (r *Resolver) reset(_ context.Context, t *Turn) (Reply, bool) {
	t.Session.Reset()
	return text(r.msg(rules.MsgChatCleared, nil), EffectCleared)
}

func isClearChat(t *Turn) bool {
	return strings.Contains(t.Lower, "clear chat")
}

func (r *Resolver) clearChatPrompt(context.Context, *Turn) (Reply, bool) {
	return text(r.msg(rules.MsgClearChatPrompt, nil))
}

// --- install ---

func (r *Resolver) isInstallIntent(t *Turn) bool {
	return match.ContainsAny(t.Raw, r.cfg.Book.InstallTriggers)
}

// install arms the deferred install handle when the platform offered one.
// The reply text is the same either way.
func (r *Resolver) install(_ context.Context, t *Turn) (Reply, bool) {
	if t.Session.Install.Arm() {
		return text(r.msg(rules.MsgInstallReply, nil), EffectInstallArmed)
	}
	return text(r.msg(rules.MsgInstallReply, nil))
}

// --- wake ---

func (r *Resolver) isWake(t *Turn) bool {
	switch t.Session.Mode() {
	case session.Sleeping, session.WakeListening:
		return match.Matches(t.Norm, r.cfg.Book.WakePhrases)
	}
	return false
}

// wake suppresses the reply for the wake phrase itself and emits the
// greeting as a notice.
func (r *Resolver) wake(_ context.Context, t *Turn) (Reply, bool) {
	woke := t.Session.Wake()
	reply := Reply{
		Suppressed: true,
		Notices:    []string{r.msg(rules.MsgWakeGreeting, nil)},
	}
	if woke {
		reply.Effects = []Effect{EffectWoke}
	}
	return reply, true
}

// --- identity ---

var identityGroups = []string{rules.KeyWhoAmI, rules.KeyWhoAreYou, rules.KeyMyAge, rules.KeyYourAge}

func (r *Resolver) identityGroup(t *Turn) string {
	for _, g := range identityGroups {
		if match.Matches(t.Norm, r.cfg.Book.Keyword(g)) {
			return g
		}
	}
	return ""
}

func (r *Resolver) isIdentity(t *Turn) bool {
	return r.identityGroup(t) != ""
}

type ageData struct {
	Years int
	Days  int
	Since string
}

func (r *Resolver) identity(_ context.Context, t *Turn) (Reply, bool) {
	switch r.identityGroup(t) {
	case rules.KeyWhoAmI:
		return text(r.msg(rules.MsgWhoAmI, nil))
	case rules.KeyWhoAreYou:
		return text(r.msg(rules.MsgWhoAreYou, nil))
	case rules.KeyMyAge:
		if r.cfg.OwnerBirthdate.IsZero() {
			return text(r.msg(rules.MsgMyAgeUnknown, nil))
		}
		y, d := Elapsed(r.cfg.OwnerBirthdate, t.Now)
		return text(r.msg(rules.MsgMyAge, ageData{Years: y, Days: d}))
	default:
		y, d := Elapsed(r.cfg.Epoch, t.Now)
		return text(r.msg(rules.MsgYourAge, ageData{Years: y, Days: d, Since: r.cfg.Epoch.Format("2 January 2006")}))
	}
}

// Elapsed returns the whole calendar years and remaining days between the
// dates of from and now. It returns zeros when now is before from.
func Elapsed(from, now time.Time) (years, days int) {
	from = dateOf(from)
	now = dateOf(now)
	if now.Before(from) {
		return 0, 0
	}
	years = now.Year() - from.Year()
	anniversary := from.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
		anniversary = from.AddDate(years, 0, 0)
	}
	days = int(now.Sub(anniversary) / (24 * time.Hour))
	return years, days
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --- fixed replies ---

func (r *Resolver) quiz(context.Context, *Turn) (Reply, bool) {
	return text(r.msg(rules.MsgQuiz, nil))
}

func (r *Resolver) version(context.Context, *Turn) (Reply, bool) {
	return text(r.msg(rules.MsgVersion, map[string]string{
		"Version":     r.cfg.Version,
		"LastUpdated": r.cfg.LastUpdated,
	}))
}

// --- small talk ---

func (r *Resolver) smallTalkRow(t *Turn) *rules.SmallTalk {
	rows := r.cfg.Book.SmallTalk
	for i := range rows {
		if match.Matches(t.Norm, rows[i].Keywords) {
			return &rows[i]
		}
	}
	return nil
}

func (r *Resolver) isSmallTalk(t *Turn) bool {
	return r.smallTalkRow(t) != nil
}

type clockData struct {
	Time string
	Date string
}

func (r *Resolver) smallTalk(_ context.Context, t *Turn) (Reply, bool) {
	row := r.smallTalkRow(t)
	if row == nil {
		return Reply{}, false
	}
	return text(row.Render(clockData{
		Time: t.Now.Format("3:04 PM"),
		Date: t.Now.Format("Monday, 2 January 2006"),
	}))
}

// --- generation ---

func (r *Resolver) canGenerate(*Turn) bool {
	return r.cfg.Generator != nil
}

// generate declines on any failure so the walk reaches the terminal
// fallback.
func (r *Resolver) generate(ctx context.Context, t *Turn) (Reply, bool) {
	out, err := r.callGenerator(ctx, t)
	if err != nil {
		slog.Warn("resolver: generation unavailable, using fallback",
			"session", t.Session.ID, "trace", trace.FromContext(ctx), "err", err)
		return Reply{}, false
	}
	return text(out)
}

func (r *Resolver) callGenerator(ctx context.Context, t *Turn) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = "", fmt.Errorf("resolver: generator panic: %v", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(generate.WithSession(ctx, t.Session.ID), r.cfg.GenerationTimeout)
	defer cancel()

	prompt := generate.ComposePrompt(r.cfg.Book.Persona, t.Raw)
	out, err = r.cfg.Generator.Generate(ctx, prompt, r.cfg.GenerationOptions)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if generate.IsRefusal(out, r.cfg.Book.RefusalMarkers) {
		return "", generate.ErrRefusal
	}
	return out, nil
}

// --- fallback ---

func (r *Resolver) fallback(context.Context, *Turn) (Reply, bool) {
	return text(r.pick(r.cfg.Book.Fallbacks))
}
