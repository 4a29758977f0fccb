package resolver

import (
	"context"
	"testing"

	"github.com/short-core/shortlink/internal/bloomfilter"
	"github.com/short-core/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rows map[string]*store.ResolvedCode
	// forceDup makes Resolve report an invariant violation for this code.
	forceDup string
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*store.ResolvedCode)}
}

func (s *fakeStore) FindURLByHash(ctx context.Context, h string) (*store.URLRecord, error) {
	return nil, nil
}
func (s *fakeStore) InsertURL(ctx context.Context, rec *store.URLRecord) error { return nil }
func (s *fakeStore) InsertURLWithAlias(ctx context.Context, rec *store.URLRecord, alias string) error {
	return nil
}
func (s *fakeStore) InsertAlias(ctx context.Context, alias string, targetID int64) error { return nil }

func (s *fakeStore) Resolve(ctx context.Context, code string) (*store.ResolvedCode, error) {
	if code == s.forceDup {
		return nil, store.ErrInvariantViolation
	}
	row, ok := s.rows[code]
	if !ok {
		return nil, nil
	}
	return row, nil
}

func (s *fakeStore) ScanCodes(ctx context.Context, callback func(string) error) error { return nil }
func (s *fakeStore) ScanPrimaryCodes(ctx context.Context, callback func(string) error) error {
	return nil
}
func (s *fakeStore) SaveSnapshot(ctx context.Context, name string, data []byte) error { return nil }
func (s *fakeStore) LoadSnapshot(ctx context.Context, name string) ([]byte, bool, error) {
	return nil, false, nil
}
func (s *fakeStore) Close() error { return nil }

type fakeCache struct {
	data map[string]string
	gets int
	sets int
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string]string)} }

func (c *fakeCache) Get(ctx context.Context, code string) (string, bool, error) {
	c.gets++
	v, ok := c.data[code]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, code, url string) error {
	c.sets++
	c.data[code] = url
	return nil
}

func TestResolve_BloomFastNegative(t *testing.T) {
	st := newFakeStore()
	bloom := bloomfilter.New(100, 0.01)
	bloom.Rebuild(nil) // ready, empty — everything is a definite negative

	r := New(st, bloom, nil, nil, nil)
	_, err := r.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_FallsThroughToStoreWhenBloomNotReady(t *testing.T) {
	st := newFakeStore()
	st.rows["abc1234"] = &store.ResolvedCode{Code: "abc1234", URL: "https://example.com", Source: "primary"}
	bloom := bloomfilter.New(100, 0.01) // never rebuilt: not ready

	r := New(st, bloom, nil, nil, nil)
	res, err := r.Resolve(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", res.URL)
	assert.Equal(t, "primary", res.Source)
}

func TestResolve_CacheHitSkipsStore(t *testing.T) {
	st := newFakeStore()
	bloom := bloomfilter.New(100, 0.01)
	bloom.Insert("abc1234")
	bloom.Rebuild(nil)

	cache := newFakeCache()
	cache.data["abc1234"] = "https://cached.example"

	r := New(st, bloom, cache, nil, nil)
	res, err := r.Resolve(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "https://cached.example", res.URL)
	assert.Equal(t, "cache", res.Source)
}

func TestResolve_CacheMissPopulatesFromStore(t *testing.T) {
	st := newFakeStore()
	st.rows["abc1234"] = &store.ResolvedCode{Code: "abc1234", URL: "https://example.com", Source: "alias"}
	bloom := bloomfilter.New(100, 0.01)
	bloom.Insert("abc1234")
	bloom.Rebuild(nil)

	cache := newFakeCache()
	r := New(st, bloom, cache, nil, nil)

	res, err := r.Resolve(context.Background(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", res.URL)
	assert.Equal(t, "alias", res.Source)
	assert.Equal(t, "https://example.com", cache.data["abc1234"])
}

func TestResolve_P11_DisablingCacheChangesOnlyPerformance(t *testing.T) {
	st := newFakeStore()
	st.rows["abc1234"] = &store.ResolvedCode{Code: "abc1234", URL: "https://example.com", Source: "primary"}
	bloom := bloomfilter.New(100, 0.01)
	bloom.Insert("abc1234")
	bloom.Rebuild(nil)

	withCache := New(st, bloom, newFakeCache(), nil, nil)
	withoutCache := New(st, bloom, nil, nil, nil)

	r1, err1 := withCache.Resolve(context.Background(), "abc1234")
	r2, err2 := withoutCache.Resolve(context.Background(), "abc1234")

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, r1.URL, r2.URL)
}

func TestResolve_NotFoundWhenStoreHasNoRow(t *testing.T) {
	st := newFakeStore()
	bloom := bloomfilter.New(100, 0.01)
	bloom.Insert("someother")
	bloom.Rebuild(nil)

	r := New(st, bloom, nil, nil, nil)
	_, err := r.Resolve(context.Background(), "someother")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_InvariantViolationSurfacesAsStorageUnavailable(t *testing.T) {
	st := newFakeStore()
	st.forceDup = "dupcode"
	bloom := bloomfilter.New(100, 0.01)
	bloom.Insert("dupcode")
	bloom.Rebuild(nil)

	r := New(st, bloom, nil, nil, nil)
	_, err := r.Resolve(context.Background(), "dupcode")
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
