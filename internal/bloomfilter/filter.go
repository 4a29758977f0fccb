// Package bloomfilter implements the Bloom Filter (BF): an in-memory
// approximate-membership structure over every short code ever issued
// (primary codes ∪ aliases), used to accelerate the Allocator's collision
// probe and the Resolver's negative lookups (spec §4.3).
package bloomfilter

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter wraps bloom.BloomFilter with the thread-safety, warm-up tracking,
// and snapshot codec spec §4.3 requires.
type Filter struct {
	mu    sync.RWMutex
	inner *bloom.BloomFilter
	ready bool
}

// New builds a Filter sized for the given expected capacity and target
// false-positive rate (spec §4.3: m, k derived by the standard formulas).
// The filter starts not-ready; callers must Restore or Rebuild it before
// relying on MightContain for the no-false-negative guarantee (I4).
func New(capacity uint, falsePositiveRate float64) *Filter {
	return &Filter{inner: bloom.NewWithEstimates(capacity, falsePositiveRate)}
}

// Ready reports whether the filter has completed warm-up (restore or
// rebuild). While false, callers MUST skip the BF fast-path and fall back
// to PS-authoritative checks (spec §4.3 step 4).
func (f *Filter) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ready
}

// markReady flips the warm-up flag. Called once restore or rebuild
// completes.
func (f *Filter) markReady() {
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()
}

// Insert adds a short code (primary or alias) to the filter. Any Insert
// that has returned is observable by subsequent MightContain calls in this
// process (spec §5 ordering guarantees).
func (f *Filter) Insert(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inner.AddString(code)
}

// MightContain reports whether code may have been issued. A false result
// is a definite negative; a true result may be a false positive bounded by
// the configured false-positive rate.
func (f *Filter) MightContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.inner.TestString(code)
}

// Rebuild adds codes to the filter, then marks the filter ready. Bits
// already set are kept, not cleared. Used for the startup scan-and-rebuild
// path (spec §4.3 step 3) when no valid snapshot is available.
func (f *Filter) Rebuild(codes []string) {
	f.mu.Lock()
	for _, c := range codes {
		f.inner.AddString(c)
	}
	f.mu.Unlock()
	f.markReady()
}

// MarkRestored flips the filter to ready. A successful Restore already
// marks the filter ready itself, so calling this after Restore changes
// nothing.
func (f *Filter) MarkRestored() {
	f.markReady()
}
