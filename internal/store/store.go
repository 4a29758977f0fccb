// Package store implements the Persistent Store adapter (PS): durable,
// transactional storage for URL records, alias records, and bloom-filter
// snapshots, behind the capability surface spec §4.6 defines. The only
// concrete adapter built is MySQLStore (gorm + mysql), matching the
// teacher's persistence stack; there is no file-backed adapter.
package store

import "context"

// Store is the capability set the Allocator, Resolver, and the bloom
// snapshot task depend on. Engine-specific errors are translated to the
// sentinels in errors.go at the adapter boundary.
type Store interface {
	// FindURLByHash looks up the URL record whose url_hash matches h. A nil
	// result with a nil error means "no such record" (spec §4.1 step 2).
	FindURLByHash(ctx context.Context, h string) (*URLRecord, error)

	// InsertURL inserts rec (ID already populated by the caller). Returns
	// ErrCodeExists, ErrURLHashExists, ErrNamespaceConflict, or
	// ErrTransient on failure.
	InsertURL(ctx context.Context, rec *URLRecord) error

	// InsertURLWithAlias inserts rec and an alias pointing at it within a
	// single transaction (spec §4.1 step 3, alias-present sub-case). On
	// any violation the entire transaction rolls back and neither row is
	// created.
	InsertURLWithAlias(ctx context.Context, rec *URLRecord, alias string) error

	// InsertAlias attaches alias to an existing target (spec §4.1 step 4).
	// Returns ErrAliasExists, ErrNamespaceConflict, ErrNotFoundTarget, or
	// ErrTransient on failure.
	InsertAlias(ctx context.Context, alias string, targetID int64) error

	// Resolve reads the all_short_codes view for code. A nil result with a
	// nil error means "not found". More than one matching row surfaces as
	// ErrInvariantViolation.
	Resolve(ctx context.Context, code string) (*ResolvedCode, error)

	// ScanCodes streams every primary code and every alias (the full BF
	// rebuild universe) to callback, stopping at the first error it returns.
	ScanCodes(ctx context.Context, callback func(code string) error) error

	// ScanPrimaryCodes streams only urls.code values, for CG sequence-mode
	// counter recovery (spec §9 open question: primary codes only).
	ScanPrimaryCodes(ctx context.Context, callback func(code string) error) error

	// SaveSnapshot overwrites the named bloom snapshot row.
	SaveSnapshot(ctx context.Context, name string, data []byte) error

	// LoadSnapshot returns the named snapshot's bytes, or ok=false if none
	// exists yet.
	LoadSnapshot(ctx context.Context, name string) (data []byte, ok bool, err error)

	// Close releases underlying connections.
	Close() error
}
