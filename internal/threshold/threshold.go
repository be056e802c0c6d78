package threshold

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidThreshold is returned when a threshold list cannot be parsed.
var ErrInvalidThreshold = errors.New("invalid threshold")

// Direction tells which side of the baseline a threshold guards.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// Key identifies a single configured threshold.
type Key struct {
	Direction Direction
	Value     float64
}

// Set holds ascending above/below percentage thresholds. It is immutable after Parse.
type Set struct {
	above []float64
	below []float64
}

// Parse builds a Set from comma separated percentage lists. Blank input yields an empty list.
func Parse(above, below string) (*Set, error) {
	a, err := parseList(above)
	if err != nil {
		return nil, fmt.Errorf("above thresholds: %w", err)
	}
	b, err := parseList(below)
	if err != nil {
		return nil, fmt.Errorf("below thresholds: %w", err)
	}
	return New(a, b), nil
}

// New copies and sorts the given thresholds.
func New(above, below []float64) *Set {
	a := append([]float64(nil), above...)
	b := append([]float64(nil), below...)
	sort.Float64s(a)
	sort.Float64s(b)
	return &Set{above: a, below: b}
}

func parseList(raw string) ([]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	tokens := strings.Split(raw, ",")
	values := make([]float64, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("%w: empty value in %q", ErrInvalidThreshold, raw)
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidThreshold, token)
		}
		values = append(values, v)
	}
	return values, nil
}

// Above returns a copy of the ascending above thresholds.
func (s *Set) Above() []float64 { return append([]float64(nil), s.above...) }

// Below returns a copy of the ascending below thresholds.
func (s *Set) Below() []float64 { return append([]float64(nil), s.below...) }

// Empty reports whether no thresholds are configured at all.
func (s *Set) Empty() bool { return len(s.above) == 0 && len(s.below) == 0 }

// AboveMatch returns the highest above threshold cleared by change.
func (s *Set) AboveMatch(change float64) (float64, bool) {
	// sorted ascending: walk down from the top
	for i := len(s.above) - 1; i >= 0; i-- {
		if change >= s.above[i] {
			return s.above[i], true
		}
	}
	return 0, false
}

// BelowMatch returns the lowest below threshold cleared by change, i.e. the
// smallest-magnitude negative bar when thresholds are negative.
func (s *Set) BelowMatch(change float64) (float64, bool) {
	for _, t := range s.below {
		if change <= t {
			return t, true
		}
	}
	return 0, false
}

// Match applies above-over-below precedence and returns at most one threshold.
func (s *Set) Match(change float64) (Key, bool) {
	if t, ok := s.AboveMatch(change); ok {
		return Key{Direction: Above, Value: t}, true
	}
	if t, ok := s.BelowMatch(change); ok {
		return Key{Direction: Below, Value: t}, true
	}
	return Key{}, false
}

// Satisfied lists every threshold in direction d that change currently clears.
func (s *Set) Satisfied(d Direction, change float64) []Key {
	var keys []Key
	switch d {
	case Above:
		for _, t := range s.above {
			if change >= t {
				keys = append(keys, Key{Direction: Above, Value: t})
			}
		}
	case Below:
		for _, t := range s.below {
			if change <= t {
				keys = append(keys, Key{Direction: Below, Value: t})
			}
		}
	}
	return keys
}

// Holds reports whether change still clears k.
func (k Key) Holds(change float64) bool {
	if k.Direction == Above {
		return change >= k.Value
	}
	return change <= k.Value
}

// Warnings describes thresholds that break the sign convention (above >= 0, below <= 0).
func (s *Set) Warnings() []string {
	var out []string
	for _, t := range s.above {
		if t < 0 {
			out = append(out, fmt.Sprintf("above threshold %g is negative", t))
		}
	}
	for _, t := range s.below {
		if t > 0 {
			out = append(out, fmt.Sprintf("below threshold %g is positive", t))
		}
	}
	return out
}

func (s *Set) String() string {
	return fmt.Sprintf("above=%v below=%v", s.above, s.below)
}
