package codegen

import "fmt"

// ReservedChecker reports whether a candidate string is in the reserved
// set (spec §6), shared with the Alias Validator.
type ReservedChecker interface {
	Contains(s string) bool
}

// FilteredEngine wraps an Engine with a post-generation reserved-word
// filter (spec §4.2: "enforced as a post-generation filter"), retrying up
// to a bounded number of times before giving up.
type FilteredEngine struct {
	inner    Engine
	reserved ReservedChecker
	maxTries int
}

// NewFilteredEngine wraps inner so that Next never returns a reserved
// string, retrying internally up to maxTries times.
func NewFilteredEngine(inner Engine, reserved ReservedChecker, maxTries int) *FilteredEngine {
	if maxTries <= 0 {
		maxTries = 8
	}
	return &FilteredEngine{inner: inner, reserved: reserved, maxTries: maxTries}
}

// Next returns a non-reserved candidate, or an error if every attempt
// within maxTries landed on a reserved word (astronomically unlikely for
// any alphabet/length combination the reserved set was sized against).
func (f *FilteredEngine) Next() (string, error) {
	for i := 0; i < f.maxTries; i++ {
		candidate, err := f.inner.Next()
		if err != nil {
			return "", err
		}
		if !f.reserved.Contains(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("codegen: exhausted %d attempts avoiding reserved words", f.maxTries)
}

// Length returns the wrapped engine's configured code length.
func (f *FilteredEngine) Length() int { return f.inner.Length() }
