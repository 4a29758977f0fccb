package store

import "errors"

// Sentinel error kinds the adapter translates engine-specific errors into.
// Callers (Allocator, Resolver) never see an engine-native error value —
// they match against these with errors.Is.
var (
	// ErrCodeExists is returned by InsertURL when the primary code
	// collided with an existing urls.code row.
	ErrCodeExists = errors.New("store: code already exists")
	// ErrURLHashExists is returned by InsertURL when url_hash collided —
	// a racing allocator already created the canonical URL record.
	ErrURLHashExists = errors.New("store: url_hash already exists")
	// ErrNamespaceConflict is returned when a code/alias would violate I1
	// (the disjointness trigger fired).
	ErrNamespaceConflict = errors.New("store: namespace conflict between code and alias")
	// ErrAliasExists is returned by InsertAlias when the alias already exists.
	ErrAliasExists = errors.New("store: alias already exists")
	// ErrNotFoundTarget is returned by InsertAlias when target_id does not
	// reference an extant URL record.
	ErrNotFoundTarget = errors.New("store: alias target url not found")
	// ErrTransient wraps a retryable infrastructure error (connection
	// reset, deadlock retry, timeout).
	ErrTransient = errors.New("store: transient storage error")
	// ErrInvariantViolation marks a read that found more than one row for
	// a code in all_short_codes — I1 broken. Never auto-repaired.
	ErrInvariantViolation = errors.New("store: invariant violation, duplicate short code rows")
)
