package threshold

import (
	"errors"
	"math"
	"testing"
)

func TestParseSortsAndTrims(t *testing.T) {
	set, err := Parse(" 20, 5,10 ", "-10,-5")
	if err != nil {
		t.Fatalf("parse should succeed: %v", err)
	}

	above := set.Above()
	if len(above) != 3 || above[0] != 5 || above[1] != 10 || above[2] != 20 {
		t.Fatalf("above not sorted ascending: %v", above)
	}
	below := set.Below()
	if len(below) != 2 || below[0] != -10 || below[1] != -5 {
		t.Fatalf("below not sorted ascending: %v", below)
	}
}

func TestParseBlankIsEmpty(t *testing.T) {
	set, err := Parse("", "   ")
	if err != nil {
		t.Fatalf("blank lists should parse: %v", err)
	}
	if !set.Empty() {
		t.Fatalf("expected empty set, got %s", set)
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name  string
		above string
		below string
	}{
		{"word", "5,abc", ""},
		{"empty token", "5,,10", ""},
		{"nan", "NaN", ""},
		{"inf below", "", "-Inf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.above, tc.below)
			if !errors.Is(err, ErrInvalidThreshold) {
				t.Fatalf("expected ErrInvalidThreshold, got %v", err)
			}
		})
	}
}

func TestAboveMatchPicksHighestCleared(t *testing.T) {
	set := New([]float64{5, 10, 20}, nil)

	got, ok := set.AboveMatch(12)
	if !ok || got != 10 {
		t.Fatalf("expected 10, got %v (ok=%v)", got, ok)
	}
	if _, ok := set.AboveMatch(4.99); ok {
		t.Fatal("4.99 clears nothing")
	}
	if got, _ := set.AboveMatch(20); got != 20 {
		t.Fatalf("boundary is inclusive, got %v", got)
	}
	if got, _ := set.AboveMatch(math.Inf(1)); got != 20 {
		t.Fatalf("+Inf clears every bar, got %v", got)
	}
}

func TestBelowMatchPicksSmallestMagnitude(t *testing.T) {
	set := New(nil, []float64{-5, -10})

	got, ok := set.BelowMatch(-7)
	if !ok || got != -5 {
		t.Fatalf("expected -5, got %v (ok=%v)", got, ok)
	}
	if got, _ := set.BelowMatch(-12); got != -10 {
		t.Fatalf("expected -10 as the lowest bar cleared, got %v", got)
	}
	if _, ok := set.BelowMatch(-4); ok {
		t.Fatal("-4 clears nothing")
	}
}

func TestMatchPrefersAbove(t *testing.T) {
	// a positive below threshold lets both sides match
	set := New([]float64{5}, []float64{10})

	key, ok := set.Match(7)
	if !ok || key.Direction != Above || key.Value != 5 {
		t.Fatalf("above must win, got %+v", key)
	}
	if len(set.Warnings()) != 1 {
		t.Fatalf("positive below threshold should warn: %v", set.Warnings())
	}
}

func TestSatisfiedAndHolds(t *testing.T) {
	set := New([]float64{5, 10, 20}, []float64{-10, -5})

	keys := set.Satisfied(Above, 12)
	if len(keys) != 2 {
		t.Fatalf("expected 5 and 10 satisfied, got %v", keys)
	}
	if keys[1].Holds(9) {
		t.Fatal("10 should not hold at 9")
	}

	keys = set.Satisfied(Below, -6)
	if len(keys) != 1 || keys[0].Value != -5 {
		t.Fatalf("expected only -5, got %v", keys)
	}
	if !keys[0].Holds(-5) || keys[0].Holds(-4.9) {
		t.Fatal("below key holds while change <= value")
	}
}
