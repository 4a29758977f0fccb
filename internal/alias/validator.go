// Package alias implements the Alias Validator (AV): a pure, synchronous
// check of user-supplied alias strings against the rules in spec §4.5.
package alias

import "fmt"

// Reason enumerates the specific rule an alias violated.
type Reason string

const (
	ReasonInvalidLength         Reason = "invalid_length"
	ReasonInvalidCharacter      Reason = "invalid_character"
	ReasonInvalidBoundary       Reason = "invalid_boundary"
	ReasonConsecutiveSeparators Reason = "consecutive_separators"
	ReasonReserved              Reason = "reserved"
)

const maxLengthDefault = 50

// ValidationError reports why an alias was rejected.
type ValidationError struct {
	Reason Reason
	Alias  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alias %q: %s", e.Alias, e.Reason)
}

// Validator holds the configured length bound and reserved word set.
type Validator struct {
	maxLength int
	reserved  *ReservedSet
}

// NewValidator builds a Validator. maxLength <= 0 uses the spec default (50).
func NewValidator(maxLength int, reservedExtra []string) *Validator {
	if maxLength <= 0 {
		maxLength = maxLengthDefault
	}
	return &Validator{
		maxLength: maxLength,
		reserved:  NewReservedSet(reservedExtra),
	}
}

// Validate applies the rules from spec §4.5, in the order the spec lists
// them, returning the first violation found.
func (v *Validator) Validate(a string) error {
	if len(a) < 1 || len(a) > v.maxLength {
		return &ValidationError{Reason: ReasonInvalidLength, Alias: a}
	}

	for i := 0; i < len(a); i++ {
		if !isAliasChar(a[i]) {
			return &ValidationError{Reason: ReasonInvalidCharacter, Alias: a}
		}
	}

	if isSeparator(a[0]) || isSeparator(a[len(a)-1]) {
		return &ValidationError{Reason: ReasonInvalidBoundary, Alias: a}
	}

	for i := 1; i < len(a); i++ {
		if a[i-1] == a[i] && isSeparator(a[i]) {
			// Only __ and -- are rejected; mixed adjacency (-_, _-) is permitted
			// per the conservative reading spec.md §9 takes on the open question.
			return &ValidationError{Reason: ReasonConsecutiveSeparators, Alias: a}
		}
	}

	if v.reserved.Contains(a) {
		return &ValidationError{Reason: ReasonReserved, Alias: a}
	}

	return nil
}

func isSeparator(c byte) bool {
	return c == '_' || c == '-'
}

func isAliasChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	default:
		return false
	}
}
