package resolver

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bdobrica/Ghost/internal/ghost/match"
	"github.com/bdobrica/Ghost/internal/ghost/rules"
	"github.com/bdobrica/Ghost/internal/ghost/session"
)

// DateLayout is how task and expense dates are shown.
const DateLayout = "2006-01-02"

var (
	addTask    = regexp.MustCompile(`(?i)^add\s+(?:a\s+)?task\b[\s:,\-]*(.*)$`)
	addExpense = regexp.MustCompile(`(?i)^add\s+(?:an\s+)?expense\b(.*)$`)
	amountRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)

	showTasks     = []string{"show tasks", "show task", "list tasks", "view tasks", "my tasks"}
	clearTasks    = []string{"clear tasks", "clear task", "delete tasks", "remove tasks"}
	showExpenses  = []string{"show expenses", "show expense", "list expenses", "view expenses", "my expenses", "show bill"}
	clearExpenses = []string{"clear expenses", "clear expense", "delete expenses", "remove expenses"}

	// Words dropped from an expense description when deriving the item.
	expenseFiller = map[string]bool{
		"for": true, "of": true, "on": true, "at": true, "spent": true, "paid": true,
		"rs": true, "inr": true, "usd": true, "eur": true,
		"rupee": true, "rupees": true, "dollar": true, "dollars": true,
	}
)

// --- tasks ---

func isTaskCommand(t *Turn) bool {
	return addTask.MatchString(t.Raw) || match.Matches(t.Norm, showTasks) || match.Matches(t.Norm, clearTasks)
}

func (r *Resolver) tasks(_ context.Context, t *Turn) (Reply, bool) {
	if m := addTask.FindStringSubmatch(t.Raw); m != nil {
		item := strings.TrimSpace(m[1])
		if item == "" {
			return text(r.msg(rules.MsgTaskHint, nil))
		}
		t.Session.AddTask(item, t.Now)
		return text(r.msg(rules.MsgTaskAdded, map[string]string{"Text": item}), EffectTasksChanged)
	}

	if match.Matches(t.Norm, clearTasks) {
		t.Session.ClearTasks()
		return text(r.msg(rules.MsgTasksCleared, nil), EffectTasksChanged)
	}

	list := t.Session.Tasks()
	if len(list) == 0 {
		return text(r.msg(rules.MsgTasksEmpty, nil))
	}
	var b strings.Builder
	b.WriteString(r.msg(rules.MsgTasksHeader, nil))
	for i, task := range list {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, task.Text, task.CreatedDate.Format(DateLayout))
	}
	return text(b.String())
}

// --- expenses ---

func isExpenseCommand(t *Turn) bool {
	return addExpense.MatchString(t.Raw) || match.Matches(t.Norm, showExpenses) || match.Matches(t.Norm, clearExpenses)
}

func (r *Resolver) expenses(_ context.Context, t *Turn) (Reply, bool) {
	if m := addExpense.FindStringSubmatch(t.Raw); m != nil {
		item, amount, ok := ParseExpense(m[1])
		if !ok {
			return text(r.msg(rules.MsgExpenseHint, nil))
		}
		category := r.cfg.Book.Category(match.Normalize(item))
		t.Session.AddExpense(item, category, amount, t.Now)
		return text(r.msg(rules.MsgExpenseAdded, map[string]string{
			"Item":     item,
			"Category": category,
			"Amount":   amount.String(),
		}), EffectExpensesChanged)
	}

	if match.Matches(t.Norm, clearExpenses) {
		t.Session.ClearExpenses()
		return text(r.msg(rules.MsgExpensesCleared, nil), EffectExpensesChanged)
	}

	list := t.Session.Expenses()
	if len(list) == 0 {
		return text(r.msg(rules.MsgExpensesEmpty, nil))
	}
	return text(Bill(list))
}

// ParseExpense extracts the first decimal number in desc as the amount and
// builds an item label from the remaining words. ok is false when no
// positive amount is present.
func ParseExpense(desc string) (item string, amount session.Cents, ok bool) {
	loc := amountRe.FindStringIndex(desc)
	if loc == nil {
		return "", 0, false
	}
	f, err := strconv.ParseFloat(desc[loc[0]:loc[1]], 64)
	if err != nil {
		return "", 0, false
	}
	cents := math.Round(f * 100)
	if cents <= 0 || cents > float64(session.MaxAmount) {
		return "", 0, false
	}

	rest := desc[:loc[0]] + " " + desc[loc[1]:]
	rest = strings.Map(func(r rune) rune {
		if strings.ContainsRune("-:=@,₹$€£", r) {
			return ' '
		}
		return r
	}, rest)

	var words []string
	for _, w := range strings.Fields(rest) {
		if expenseFiller[strings.ToLower(strings.Trim(w, "."))] {
			continue
		}
		words = append(words, w)
	}
	item = strings.Join(words, " ")
	if item == "" {
		item = "Expense"
	}
	return item, session.Cents(cents), true
}

const (
	colDate     = 10
	colItem     = 16
	colCategory = 13
	colAmount   = 10
	billWidth   = colDate + colItem + colCategory + colAmount + 3
)

// Bill renders expenses as a fixed-width itemised bill with a total.
func Bill(list []session.Expense) string {
	rule := strings.Repeat("-", billWidth)
	var b strings.Builder
	b.WriteString("🧾 Expense Bill\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%-*s %-*s %-*s %*s\n", colDate, "Date", colItem, "Item", colCategory, "Category", colAmount, "Amount")
	b.WriteString(rule + "\n")
	for _, e := range list {
		fmt.Fprintf(&b, "%-*s %-*s %-*s %*s\n",
			colDate, e.Date.Format(DateLayout),
			colItem, clip(e.Item, colItem),
			colCategory, clip(e.Category, colCategory),
			colAmount, e.Amount.String())
	}
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%-*s %*s\n", billWidth-colAmount-1, "TOTAL", colAmount, session.Total(list).String())
	b.WriteString("Status: " + session.StatusPaid)
	return b.String()
}

// clip shortens s to at most n runes, marking the cut with "…".
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
