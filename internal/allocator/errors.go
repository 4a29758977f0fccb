package allocator

import "errors"

// Error kinds surfaced by the Allocator (spec §7). The HTTP layer maps
// these to status codes with a single switch.
var (
	// ErrAliasTaken: the alias already exists or conflicts with a primary code.
	ErrAliasTaken = errors.New("allocator: alias already taken")
	// ErrCodeSpaceExhausted: the candidate-code retry budget was exhausted.
	ErrCodeSpaceExhausted = errors.New("allocator: code space exhausted, lengthen shortener.length")
	// ErrStorageUnavailable: PS reported a transient error, the circuit
	// breaker is open, or the code generator failed. Transient PS errors
	// are not retried.
	ErrStorageUnavailable = errors.New("allocator: storage unavailable")
	// ErrInvariantViolation: duplicate rows across namespaces (I1 broken).
	ErrInvariantViolation = errors.New("allocator: namespace invariant violated")
)

// InvalidAliasError wraps an alias.ValidationError so the Allocator's
// error surface stays self-contained; callers can still errors.As into
// *alias.ValidationError for the specific Reason.
type InvalidAliasError struct {
	Err error
}

func (e *InvalidAliasError) Error() string { return "allocator: invalid alias: " + e.Err.Error() }
func (e *InvalidAliasError) Unwrap() error { return e.Err }
