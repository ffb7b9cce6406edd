package imacros

import (
	"strconv"
	"testing"
)

func TestDefaultEvaluatorArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{"1+2", "3"},
		{"2*3+4", "10"},
		{"2+3*4", "14"},
		{"(2+3)*4", "20"},
		{"10/4", "2.5"},
		{"-3+5", "2"},
		{"7-2-1", "4"},
	}
	ev := NewDefaultEvaluator(1)
	for _, tc := range cases {
		got, err := ev.Evaluate(tc.expr)
		if err != nil {
			t.Errorf("Evaluate(%q): unexpected error %v", tc.expr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Evaluate(%q): expected %q, got %q", tc.expr, tc.want, got)
		}
	}
}

func TestDefaultEvaluatorComparisons(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{"1 < 2", "1"},
		{"2 <= 2", "1"},
		{"3 > 4", "0"},
		{"5 == 5", "1"},
		{"5 != 5", "0"},
	}
	ev := NewDefaultEvaluator(1)
	for _, tc := range cases {
		got, err := ev.Evaluate(tc.expr)
		if err != nil {
			t.Errorf("Evaluate(%q): unexpected error %v", tc.expr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Evaluate(%q): expected %q, got %q", tc.expr, tc.want, got)
		}
	}
}

func TestDefaultEvaluatorErrors(t *testing.T) {
	ev := NewDefaultEvaluator(1)
	for _, expr := range []string{"", "1+", "(1", "1/0", "abc"} {
		if _, err := ev.Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q): expected an error", expr)
		}
	}
}

func TestDefaultEvaluatorMathRandom(t *testing.T) {
	ev := NewDefaultEvaluator(42)
	got, err := ev.Evaluate("Math.random()")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := strconv.ParseFloat(got, 64)
	if err != nil {
		t.Fatalf("expected a numeric result, got %q", got)
	}
	if f < 0 || f >= 1 {
		t.Errorf("expected a value in [0,1), got %v", f)
	}
}
