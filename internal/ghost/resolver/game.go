package resolver

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/bdobrica/Ghost/internal/ghost/calc"
	"github.com/bdobrica/Ghost/internal/ghost/match"
	"github.com/bdobrica/Ghost/internal/ghost/rules"
)

// --- stone, paper, scissors ---

const (
	Stone    = "stone"
	Paper    = "paper"
	Scissors = "scissors"
)

var (
	gameWords = []string{"stone", "rock", "paper", "scissors", "scissor"}
	canonical = map[string]string{
		"stone": Stone, "rock": Stone,
		"paper":    Paper,
		"scissors": Scissors, "scissor": Scissors,
	}
	gameChoices = []string{Stone, Paper, Scissors}
	beats       = map[string]string{Stone: Scissors, Scissors: Paper, Paper: Stone}
)

// Outcome is the result of one round from the user's point of view.
type Outcome int

const (
	Tie Outcome = iota
	UserWins
	GhostWins
)

// Play decides a round between the user's and Ghost's choice.
func Play(user, ghost string) Outcome {
	switch {
	case user == ghost:
		return Tie
	case beats[user] == ghost:
		return UserWins
	default:
		return GhostWins
	}
}

func isGame(t *Turn) bool {
	return match.Matches(t.Norm, gameWords)
}

func (r *Resolver) game(_ context.Context, t *Turn) (Reply, bool) {
	user := canonical[match.Normalize(match.First(t.Norm, gameWords))]
	ghost := gameChoices[r.intN(len(gameChoices))]

	var outcome string
	switch Play(user, ghost) {
	case Tie:
		outcome = r.msg(rules.MsgGameTie, nil)
	case UserWins:
		outcome = r.msg(rules.MsgGameUserWins, nil)
	default:
		outcome = r.msg(rules.MsgGameGhostWins, nil)
	}
	return text(r.msg(rules.MsgGameResult, map[string]string{
		"User":    user,
		"Ghost":   ghost,
		"Outcome": outcome,
	}))
}

// --- calculator ---

var (
	digitRe    = regexp.MustCompile(`\d`)
	operatorRe = regexp.MustCompile(`[+\-*/×÷−]|\d\s*[xX]\s*\d`)
)

func (r *Resolver) isCalculation(t *Turn) bool {
	if match.Matches(t.Norm, r.cfg.Book.Keyword(rules.KeySolve)) {
		return true
	}
	return digitRe.MatchString(t.Raw) && operatorRe.MatchString(t.Raw)
}

// calculate never surfaces a parser error; every failure becomes the hint.
func (r *Resolver) calculate(_ context.Context, t *Turn) (Reply, bool) {
	expr, err := calc.Extract(t.Raw)
	if err == nil {
		var v float64
		if v, err = calc.Eval(expr); err == nil {
			return text(r.msg(rules.MsgCalcResult, map[string]string{"Result": calc.Format(v)}))
		}
	}
	slog.Debug("resolver: calculation rejected", "session", t.Session.ID, "err", err)
	return text(r.msg(rules.MsgCalcHint, nil))
}
