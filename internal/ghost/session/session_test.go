package session_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bdobrica/Ghost/internal/ghost/session"
)

var day = time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)

func TestNew_StartsLocked(t *testing.T) {
	s := session.New("s1", 10)
	if s.Unlocked() {
		t.Fatal("new session should be locked")
	}
	if s.Mode() != session.Sleeping {
		t.Errorf("expected sleeping without a dictation machine, got %v", s.Mode())
	}
	if s.Wake() {
		t.Error("Wake should report false without a dictation machine")
	}
	s.Unlock()
	if !s.Unlocked() {
		t.Fatal("expected unlocked after Unlock")
	}
}

func TestAppend_BoundsHistory(t *testing.T) {
	s := session.New("s1", 3)
	for _, text := range []string{"one", "two", "  ", "three", "four"} {
		s.Append(session.SenderUser, text, day)
	}
	var got []string
	for _, m := range s.Transcript() {
		got = append(got, m.Text)
	}
	if diff := cmp.Diff([]string{"two", "three", "four"}, got); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestTasks_UniqueIDs(t *testing.T) {
	s := session.New("s1", 0)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		task := s.AddTask("t", day)
		if seen[task.ID] {
			t.Fatalf("duplicate id %s", task.ID)
		}
		seen[task.ID] = true
	}
	s.ClearTasks()
	if len(s.Tasks()) != 0 {
		t.Error("expected no tasks after ClearTasks")
	}
}

func TestExpenses_Total(t *testing.T) {
	s := session.New("s1", 0)
	s.AddExpense("coffee", "Food", 15000, day)
	e := s.AddExpense("cake", "Food", 5050, day)
	if e.Status != session.StatusPaid {
		t.Errorf("expected Paid, got %q", e.Status)
	}
	if got := session.Total(s.Expenses()).String(); got != "200.50" {
		t.Errorf("expected total 200.50, got %s", got)
	}
}

func TestCents_JSON(t *testing.T) {
	data, err := json.Marshal(session.Cents(15005))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "150.05" {
		t.Errorf("expected 150.05, got %s", data)
	}
	var c session.Cents
	if err := json.Unmarshal([]byte("19.99"), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c != 1999 {
		t.Errorf("expected 1999 cents, got %d", c)
	}
	if err := json.Unmarshal([]byte("-1"), &c); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestCents_String(t *testing.T) {
	tests := []struct {
		c    session.Cents
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{15005, "150.05"},
		{-5, "-0.05"},
		{-1250, "-12.50"},
		{math.MaxInt64, "92233720368547758.07"},
		{math.MinInt64, "-92233720368547758.08"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Cents(%d).String() = %q, want %q", int64(tt.c), got, tt.want)
		}
	}
}

func TestTotal_Saturates(t *testing.T) {
	big := session.Expense{Amount: math.MaxInt64 / 2}
	if got := session.Total([]session.Expense{big, big, big}); got != math.MaxInt64 {
		t.Errorf("Total = %d, want saturation at MaxInt64", int64(got))
	}
	if got := session.Total([]session.Expense{{Amount: 100}, {Amount: -50}}); got != 100 {
		t.Errorf("Total with a negative amount = %d, want 100", int64(got))
	}
}

func TestCents_JSONRejectsAmountsOverLimit(t *testing.T) {
	var c session.Cents
	if err := json.Unmarshal([]byte("1000000000"), &c); err != nil || c != session.MaxAmount {
		t.Errorf("limit amount: c = %d, err = %v", int64(c), err)
	}
	if err := json.Unmarshal([]byte("40000000000000000"), &c); err == nil {
		t.Error("expected error for amount over the limit")
	}
}

func TestSnapshotRestore_KeepsUnlockFlagOut(t *testing.T) {
	s := session.New("s1", 0)
	s.Unlock()
	s.SetVoiceEnabled(true)
	s.AddTask("buy milk", day)
	s.Append(session.SenderUser, "hello", day)

	r := session.New("s1", 0)
	r.Restore(s.Snapshot())
	if r.Unlocked() {
		t.Error("unlock flag must not be restored")
	}
	if !r.VoiceEnabled() {
		t.Error("voice preference should be restored")
	}
	if diff := cmp.Diff(s.Tasks(), r.Tasks()); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}

	r.Reset()
	if len(r.Tasks()) != 0 || len(r.Transcript()) != 0 {
		t.Error("Reset should clear tasks and transcript")
	}
}

type fakeDictation struct{ mode session.Mode }

func (f *fakeDictation) Mode() session.Mode { return f.mode }
func (f *fakeDictation) Wake() bool {
	if f.mode == session.ActiveListening {
		return false
	}
	f.mode = session.ActiveListening
	return true
}

func TestWake_DelegatesToDictation(t *testing.T) {
	s := session.New("s1", 0)
	d := &fakeDictation{mode: session.WakeListening}
	s.AttachDictation(d)
	if !s.Wake() {
		t.Fatal("expected wake to succeed")
	}
	if s.Mode() != session.ActiveListening {
		t.Errorf("expected active-listening, got %v", s.Mode())
	}
}

func TestMode_Text(t *testing.T) {
	for _, m := range []session.Mode{session.Sleeping, session.WakeListening, session.ActiveListening} {
		b, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("Marshal %v: %v", m, err)
		}
		var got session.Mode
		if err := json.Unmarshal(b, &got); err != nil || got != m {
			t.Errorf("%s decoded to %v, %v", b, got, err)
		}
	}
	var m session.Mode
	if err := json.Unmarshal([]byte(`"dozing"`), &m); err == nil {
		t.Error("unknown mode accepted")
	}
}
