// Package allocator implements the Allocator (AL): given a URL and an
// optional alias, it returns the canonical short code for that URL,
// creating persistent state as needed while preserving invariants I1–I5
// (spec §4.1).
package allocator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/short-core/shortlink/internal/bloomfilter"
	"github.com/short-core/shortlink/internal/breaker"
	"github.com/short-core/shortlink/internal/codegen"
	"github.com/short-core/shortlink/internal/store"
	"golang.org/x/sync/singleflight"
)

// AllocateOutcome is the Allocator's successful result (spec §4.1).
type AllocateOutcome struct {
	Code  string
	URL   string
	IsNew bool
}

// Allocator is the short-code allocation core.
type Allocator struct {
	store        store.Store
	bloom        *bloomfilter.Filter
	engine       codegen.Engine
	idGen        *IDGenerator
	breaker      *breaker.Breaker
	sf           singleflight.Group
	retryBudget  int
	dedupEnabled bool
	log          *slog.Logger
}

// New builds an Allocator. breaker may be nil to disable circuit breaking.
func New(st store.Store, bloom *bloomfilter.Filter, engine codegen.Engine, idGen *IDGenerator, br *breaker.Breaker, retryBudget int, dedupEnabled bool, log *slog.Logger) *Allocator {
	if retryBudget <= 0 {
		retryBudget = 16
	}
	if log == nil {
		log = slog.Default()
	}
	return &Allocator{
		store:        st,
		bloom:        bloom,
		engine:       engine,
		idGen:        idGen,
		breaker:      br,
		retryBudget:  retryBudget,
		dedupEnabled: dedupEnabled,
		log:          log,
	}
}

// HashURL computes the SHA-256 content hash used as the dedup key, hex
// encoded (spec §3 "url_hash").
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Allocate implements spec §4.1's algorithm. aliasOpt is nil when the
// caller supplied no alias; otherwise it must already have passed the
// Alias Validator.
func (a *Allocator) Allocate(ctx context.Context, url string, aliasOpt *string) (AllocateOutcome, error) {
	h := HashURL(url)

	if aliasOpt == nil {
		// Coalesce concurrent identical requests within this process
		// (spec_full §4.1 addition; does not replace the DB's unique
		// url_hash constraint, which still adjudicates cross-process races).
		v, err, _ := a.sf.Do(h, func() (interface{}, error) {
			return a.allocateNoAlias(ctx, url, h)
		})
		if err != nil {
			return AllocateOutcome{}, err
		}
		return v.(AllocateOutcome), nil
	}

	return a.allocateWithAlias(ctx, url, h, *aliasOpt)
}

func (a *Allocator) allocateNoAlias(ctx context.Context, url, h string) (AllocateOutcome, error) {
	existing, err := a.dedupProbe(ctx, h)
	if err != nil {
		return AllocateOutcome{}, err
	}
	if existing != nil {
		return AllocateOutcome{Code: existing.Code, URL: url, IsNew: false}, nil
	}

	for attempt := 0; attempt < a.retryBudget; attempt++ {
		candidate, err := a.engine.Next()
		if err != nil {
			return AllocateOutcome{}, fmt.Errorf("%w: %s", ErrStorageUnavailable, err)
		}

		if a.probablyTaken(ctx, candidate) {
			continue
		}

		rec := &store.URLRecord{ID: a.idGen.NextID(), Code: candidate, URL: url, URLHash: h}
		insertErr := a.runStore(ctx, func(ctx context.Context) error {
			return a.store.InsertURL(ctx, rec)
		})

		switch {
		case insertErr == nil:
			a.bloom.Insert(candidate)
			return AllocateOutcome{Code: candidate, URL: url, IsNew: true}, nil
		case errors.Is(insertErr, store.ErrCodeExists):
			continue
		case errors.Is(insertErr, store.ErrURLHashExists):
			// A racing allocator created the URL record first; restart at
			// step 1, which will now find it (spec §4.1 step 3, §9).
			return a.allocateNoAlias(ctx, url, h)
		default:
			return AllocateOutcome{}, a.classifyStoreError(insertErr)
		}
	}

	return AllocateOutcome{}, ErrCodeSpaceExhausted
}

func (a *Allocator) allocateWithAlias(ctx context.Context, url, h, aliasStr string) (AllocateOutcome, error) {
	existing, err := a.dedupProbe(ctx, h)
	if err != nil {
		return AllocateOutcome{}, err
	}

	if existing != nil {
		attachErr := a.runStore(ctx, func(ctx context.Context) error {
			return a.store.InsertAlias(ctx, aliasStr, existing.ID)
		})
		switch {
		case attachErr == nil:
			a.bloom.Insert(aliasStr)
			return AllocateOutcome{Code: aliasStr, URL: url, IsNew: false}, nil
		case errors.Is(attachErr, store.ErrAliasExists), errors.Is(attachErr, store.ErrNamespaceConflict):
			return AllocateOutcome{}, ErrAliasTaken
		default:
			return AllocateOutcome{}, a.classifyStoreError(attachErr)
		}
	}

	for attempt := 0; attempt < a.retryBudget; attempt++ {
		candidate, err := a.engine.Next()
		if err != nil {
			return AllocateOutcome{}, fmt.Errorf("%w: %s", ErrStorageUnavailable, err)
		}

		if a.probablyTaken(ctx, candidate) {
			continue
		}

		rec := &store.URLRecord{ID: a.idGen.NextID(), Code: candidate, URL: url, URLHash: h}
		insertErr := a.runStore(ctx, func(ctx context.Context) error {
			return a.store.InsertURLWithAlias(ctx, rec, aliasStr)
		})

		switch {
		case insertErr == nil:
			a.bloom.Insert(candidate)
			a.bloom.Insert(aliasStr)
			return AllocateOutcome{Code: aliasStr, URL: url, IsNew: true}, nil
		case errors.Is(insertErr, store.ErrCodeExists):
			continue
		case errors.Is(insertErr, store.ErrURLHashExists):
			return a.allocateWithAlias(ctx, url, h, aliasStr)
		case errors.Is(insertErr, store.ErrAliasExists), errors.Is(insertErr, store.ErrNamespaceConflict):
			return AllocateOutcome{}, ErrAliasTaken
		default:
			return AllocateOutcome{}, a.classifyStoreError(insertErr)
		}
	}

	return AllocateOutcome{}, ErrCodeSpaceExhausted
}

// dedupProbe implements spec §4.1 step 1-2. When dedup is disabled, every
// call behaves as though no prior record exists (spec_full §6 dedup.enabled).
func (a *Allocator) dedupProbe(ctx context.Context, h string) (*store.URLRecord, error) {
	if !a.dedupEnabled {
		return nil, nil
	}
	rec, err := runStoreValue(a, ctx, func(ctx context.Context) (*store.URLRecord, error) {
		return a.store.FindURLByHash(ctx, h)
	})
	if err != nil {
		return nil, a.classifyStoreError(err)
	}
	return rec, nil
}

// probablyTaken implements the candidate-code generation loop's BF
// fast-path probe (spec §4.1 "Candidate-code generation loop"). While the
// filter is warming up it is skipped entirely, falling back to a
// PS-authoritative check on every candidate (spec §4.3 step 4).
func (a *Allocator) probablyTaken(ctx context.Context, candidate string) bool {
	if a.bloom.Ready() && !a.bloom.MightContain(candidate) {
		return false
	}
	resolved, err := runStoreValue(a, ctx, func(ctx context.Context) (*store.ResolvedCode, error) {
		return a.store.Resolve(ctx, candidate)
	})
	if err != nil {
		// Treat a probe failure as "assume taken" so the loop retries with a
		// fresh candidate rather than risking a write on uncertain state.
		a.log.Warn("candidate verification probe failed, retrying with a new candidate", "error", err)
		return true
	}
	return resolved != nil
}

func (a *Allocator) classifyStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrInvariantViolation):
		a.log.Error("namespace invariant violated: duplicate rows across code/alias", "error", err)
		return ErrInvariantViolation
	case errors.Is(err, breaker.ErrOpen):
		return fmt.Errorf("%w: circuit open", ErrStorageUnavailable)
	case errors.Is(err, store.ErrTransient):
		return fmt.Errorf("%w: %s", ErrStorageUnavailable, err)
	default:
		return err
	}
}

// runStore executes a PS write through the circuit breaker, if configured.
func (a *Allocator) runStore(ctx context.Context, fn func(context.Context) error) error {
	if a.breaker == nil {
		return fn(ctx)
	}
	_, err := breaker.Execute(a.breaker, func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// runStoreValue executes a PS read through the circuit breaker, if
// configured. Go methods cannot carry their own type parameters, so this
// is a package-level generic function taking the Allocator explicitly.
func runStoreValue[T any](a *Allocator, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	if a.breaker == nil {
		return fn(ctx)
	}
	return breaker.Execute(a.breaker, func() (T, error) {
		return fn(ctx)
	})
}
