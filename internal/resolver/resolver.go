// Package resolver implements the Resolver (RS): resolves a short code
// (primary or alias) to its target URL, consulting the Bloom Filter fast
// path, then an optional Redis cache, then the Persistent Store (spec §4.4,
// spec_full §4.4).
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/short-core/shortlink/internal/bloomfilter"
	"github.com/short-core/shortlink/internal/breaker"
	"github.com/short-core/shortlink/internal/metrics"
	"github.com/short-core/shortlink/internal/store"
)

// Error kinds surfaced by the Resolver (spec §7).
var (
	// ErrNotFound: code was never issued, or was a definite BF negative.
	ErrNotFound = errors.New("resolver: short code not found")
	// ErrStorageUnavailable: PS was unreachable or the breaker is open.
	ErrStorageUnavailable = errors.New("resolver: storage unavailable")
	// ErrInvariantViolation: all_short_codes returned more than one row for
	// code. Resolve returns it wrapped together with ErrStorageUnavailable.
	ErrInvariantViolation = errors.New("resolver: namespace invariant violated")
)

// Cache is the subset of cache.RedisCache the Resolver depends on, kept as
// an interface so the cache tier can be nil'd out entirely (redis.enabled:
// false, spec_full §4.4 — disabling it changes performance only, per P11).
type Cache interface {
	Get(ctx context.Context, code string) (string, bool, error)
	Set(ctx context.Context, code, url string) error
}

// Resolution is the Resolver's successful result.
type Resolution struct {
	URL    string
	Source string // "primary" or "alias"; "cache" when served from the cache tier
}

// Resolver implements spec §4.4's lookup chain.
type Resolver struct {
	store   store.Store
	bloom   *bloomfilter.Filter
	cache   Cache
	breaker *breaker.Breaker
	metrics *metrics.Registry
	log     *slog.Logger
}

// New builds a Resolver. cache and br may both be nil (no cache tier
// configured, no circuit breaking configured, respectively).
func New(st store.Store, bloom *bloomfilter.Filter, cache Cache, br *breaker.Breaker, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: st, bloom: bloom, cache: cache, breaker: br, log: log}
}

// SetMetrics attaches a metrics registry after construction, so the zero
// value (no metrics) stays the default for tests that don't need one.
func (r *Resolver) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// Resolve implements spec §4.4: BF fast-negative, then cache, then PS.
func (r *Resolver) Resolve(ctx context.Context, code string) (Resolution, error) {
	if !r.bloom.Ready() {
		r.observeFastPath("not_ready")
	} else if !r.bloom.MightContain(code) {
		r.observeFastPath("definite_negative")
		return Resolution{}, ErrNotFound
	} else {
		r.observeFastPath("probe_required")
	}

	if r.cache != nil {
		if url, hit, err := r.cache.Get(ctx, code); err != nil {
			r.log.Warn("cache read failed, falling through to storage", "code", code, "error", err)
		} else if hit {
			return Resolution{URL: url, Source: "cache"}, nil
		}
	}

	resolved, err := r.runStore(ctx, code)
	if err != nil {
		return Resolution{}, r.classifyStoreError(err)
	}
	if resolved == nil {
		return Resolution{}, ErrNotFound
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, code, resolved.URL); err != nil {
			r.log.Warn("cache write failed", "code", code, "error", err)
		}
	}

	return Resolution{URL: resolved.URL, Source: resolved.Source}, nil
}

func (r *Resolver) observeFastPath(result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.BloomFastPathHits.WithLabelValues(result).Inc()
}

func (r *Resolver) runStore(ctx context.Context, code string) (*store.ResolvedCode, error) {
	if r.breaker == nil {
		return r.store.Resolve(ctx, code)
	}
	return breaker.Execute(r.breaker, func() (*store.ResolvedCode, error) {
		return r.store.Resolve(ctx, code)
	})
}

func (r *Resolver) classifyStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrInvariantViolation):
		r.log.Error("namespace invariant violated: duplicate rows across code/alias", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, ErrInvariantViolation)
	case errors.Is(err, breaker.ErrOpen):
		return fmt.Errorf("%w: circuit open", ErrStorageUnavailable)
	case errors.Is(err, store.ErrTransient):
		return fmt.Errorf("%w: %s", ErrStorageUnavailable, err)
	default:
		return err
	}
}
