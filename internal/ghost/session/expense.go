package session

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// StatusPaid is the only expense status Ghost records.
const StatusPaid = "Paid"

// Cents is a non-negative money amount in hundredths.
type Cents int64

// MaxAmount is the largest amount a single expense may carry: one billion.
const MaxAmount Cents = 1_000_000_000_00

// String formats the amount with two decimal places.
func (c Cents) String() string {
	sign := ""
	u := uint64(c)
	if c < 0 {
		sign = "-"
		u = -u
	}
	return fmt.Sprintf("%s%d.%02d", sign, u/100, u%100)
}

// MarshalJSON encodes the amount as a decimal number, e.g. 150.5 → 150.50.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a decimal number.
func (c *Cents) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f < 0 {
		return fmt.Errorf("session: negative amount %v", f)
	}
	if f*100 > float64(MaxAmount) {
		return fmt.Errorf("session: amount %v exceeds the limit", f)
	}
	*c = Cents(f*100 + 0.5)
	return nil
}

// Expense is one paid item created by "add expense".
type Expense struct {
	ID       string    `json:"id"`
	Item     string    `json:"item"`
	Category string    `json:"category"`
	Amount   Cents     `json:"amount"`
	Date     time.Time `json:"date"`
	Status   string    `json:"status"`
}

// AddExpense appends an expense dated at now with status Paid.
func (s *Session) AddExpense(item, category string, amount Cents, now time.Time) Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := Expense{
		ID:       newID(func(id string) bool { return s.hasExpenseLocked(id) }),
		Item:     item,
		Category: category,
		Amount:   amount,
		Date:     now,
		Status:   StatusPaid,
	}
	s.expenses = append(s.expenses, e)
	return e
}

func (s *Session) hasExpenseLocked(id string) bool {
	for _, e := range s.expenses {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Expenses returns a copy of the expense list in creation order.
func (s *Session) Expenses() []Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Expense(nil), s.expenses...)
}

// ClearExpenses empties the expense list.
func (s *Session) ClearExpenses() {
	s.mu.Lock()
	s.expenses = nil
	s.mu.Unlock()
}

// Total sums the amounts of expenses, saturating at math.MaxInt64.
// Negative amounts are ignored.
func Total(expenses []Expense) Cents {
	var sum Cents
	for _, e := range expenses {
		if e.Amount <= 0 {
			continue
		}
		if e.Amount > math.MaxInt64-sum {
			return math.MaxInt64
		}
		sum += e.Amount
	}
	return sum
}
