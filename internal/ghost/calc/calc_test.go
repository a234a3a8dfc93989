package calc_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/bdobrica/Ghost/internal/ghost/calc"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"2 + 3 * 4", "14"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"-3 + 5", "2"},
		{"--3", "3"},
		{"0.1 + 0.2", "0.3"},
		{"((1))", "1"},
		{"7 - 10", "-3"},
		{".5 * 4", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := calc.Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.expr, err)
			}
			if got := calc.Format(v); got != tt.want {
				t.Errorf("Eval(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{"5/0", calc.ErrDivideByZero},
		{"5 / (2 - 2)", calc.ErrDivideByZero},
		{"2 +", calc.ErrSyntax},
		{"(2 + 3", calc.ErrSyntax},
		{"2 3", calc.ErrSyntax},
		{"1.2.3 + 1", calc.ErrSyntax},
		{"", calc.ErrSyntax},
		{"1e400", calc.ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := calc.Eval(tt.expr)
			if !errors.Is(err, tt.want) {
				t.Errorf("Eval(%q) error = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}

func TestEval_NonFinite(t *testing.T) {
	big := "9"
	for i := 0; i < 200; i++ {
		big += "9"
	}
	expr := big + "*" + big + "*" + big
	if _, err := calc.Eval(expr); !errors.Is(err, calc.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}

func TestFormat_LargeMagnitudes(t *testing.T) {
	huge := "1" + strings.Repeat("0", 299)
	v, err := calc.Eval(huge + " * 1")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	got := calc.Format(v)
	if strings.Contains(got, "Inf") || !strings.HasPrefix(got, "1") || len(got) != 300 {
		t.Errorf("Format(1e299) = %q", got)
	}
	if got := calc.Format(-math.MaxFloat64); strings.Contains(got, "Inf") || !strings.HasPrefix(got, "-17976931348623157") {
		t.Errorf("Format(-MaxFloat64) = %q", got)
	}
	if got := calc.Format(1e15 + 0.5); got != "1000000000000000.5" {
		t.Errorf("Format(1e15+0.5) = %q", got)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"solve 12 × (3 + 4)", "12 * (3 + 4)", nil},
		{"what is 6 x 7", "6*7", nil},
		{"10 ÷ 2", "10 / 2", nil},
		{"solve", "", calc.ErrEmpty},
		{"solve this please", "", calc.ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := calc.Extract(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Extract(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Extract(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
