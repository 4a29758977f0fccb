package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/short-core/shortlink/internal/alias"
	"github.com/short-core/shortlink/internal/allocator"
	"github.com/short-core/shortlink/internal/bloomfilter"
	"github.com/short-core/shortlink/internal/codegen"
	"github.com/short-core/shortlink/internal/resolver"
	"github.com/short-core/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory store.Store, local to this package's
// tests (the allocator package's own test double is unexported there).
type memStore struct {
	mu      sync.Mutex
	urls    map[int64]*store.URLRecord
	byHash  map[string]int64
	byCode  map[string]int64
	aliases map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		urls:    make(map[int64]*store.URLRecord),
		byHash:  make(map[string]int64),
		byCode:  make(map[string]int64),
		aliases: make(map[string]int64),
	}
}

func (s *memStore) FindURLByHash(ctx context.Context, h string) (*store.URLRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[h]
	if !ok {
		return nil, nil
	}
	rec := *s.urls[id]
	return &rec, nil
}

func (s *memStore) InsertURL(ctx context.Context, rec *store.URLRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertURLLocked(rec)
}

func (s *memStore) insertURLLocked(rec *store.URLRecord) error {
	if _, ok := s.byCode[rec.Code]; ok {
		return store.ErrCodeExists
	}
	cp := *rec
	s.urls[rec.ID] = &cp
	s.byCode[rec.Code] = rec.ID
	s.byHash[rec.URLHash] = rec.ID
	return nil
}

func (s *memStore) InsertURLWithAlias(ctx context.Context, rec *store.URLRecord, aliasStr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aliases[aliasStr]; ok {
		return store.ErrAliasExists
	}
	if err := s.insertURLLocked(rec); err != nil {
		return err
	}
	s.aliases[aliasStr] = rec.ID
	return nil
}

func (s *memStore) InsertAlias(ctx context.Context, aliasStr string, targetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aliases[aliasStr]; ok {
		return store.ErrAliasExists
	}
	s.aliases[aliasStr] = targetID
	return nil
}

func (s *memStore) Resolve(ctx context.Context, code string) (*store.ResolvedCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byCode[code]; ok {
		rec := s.urls[id]
		return &store.ResolvedCode{Code: code, TargetID: id, URL: rec.URL, Source: "primary"}, nil
	}
	if id, ok := s.aliases[code]; ok {
		rec := s.urls[id]
		return &store.ResolvedCode{Code: code, TargetID: id, URL: rec.URL, Source: "alias"}, nil
	}
	return nil, nil
}

func (s *memStore) ScanCodes(ctx context.Context, callback func(string) error) error { return nil }
func (s *memStore) ScanPrimaryCodes(ctx context.Context, callback func(string) error) error {
	return nil
}
func (s *memStore) SaveSnapshot(ctx context.Context, name string, data []byte) error { return nil }
func (s *memStore) LoadSnapshot(ctx context.Context, name string) ([]byte, bool, error) {
	return nil, false, nil
}
func (s *memStore) Close() error { return nil }

func newTestHandler(t *testing.T) (*Handler, *memStore) {
	t.Helper()
	st := newMemStore()
	bloom := bloomfilter.New(1000, 0.01)
	bloom.Rebuild(nil)

	alphabet, err := codegen.ParseAlphabet("0-9A-Za-z")
	require.NoError(t, err)
	engine, err := codegen.NewNanoidEngine(alphabet, 7)
	require.NoError(t, err)
	idGen, err := allocator.NewIDGenerator(1, 1)
	require.NoError(t, err)

	alloc := allocator.New(st, bloom, engine, idGen, nil, 16, true, nil)
	res := resolver.New(st, bloom, nil, nil, nil)
	validator := alias.NewValidator(50, nil)

	return New(alloc, res, validator, bloom, nil, nil, "https://short.example"), st
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/shorten", h.Shorten)
	r.GET("/api/v1/info/:code", h.Info)
	r.GET("/health", h.Health)
	r.GET("/:code", h.Redirect)
	return r
}

func TestShorten_CreatesNewCode(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newTestRouter(h)

	body, _ := json.Marshal(shortenRequest{URL: "https://example.com/a"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp shortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsNew)
	assert.NotEmpty(t, resp.Code)
	assert.Equal(t, "https://short.example/"+resp.Code, resp.ShortURL)
}

func TestShorten_WithInvalidAliasReturns422(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newTestRouter(h)

	badAlias := "--bad"
	body, _ := json.Marshal(shortenRequest{URL: "https://example.com/b", Alias: &badAlias})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestShorten_DuplicateAliasReturns409(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newTestRouter(h)

	aliasStr := "my-page"
	body, _ := json.Marshal(shortenRequest{URL: "https://example.com/c", Alias: &aliasStr})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body2, _ := json.Marshal(shortenRequest{URL: "https://example.com/d", Alias: &aliasStr})
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", bytes.NewReader(body2))
	req2.Header.Set("Content-Type", "application/json")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusConflict, w2.Code)
}

func TestRedirect_UnknownCodeReturns404(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedirect_KnownCodeReturns308(t *testing.T) {
	h, st := newTestHandler(t)
	router := newTestRouter(h)

	require.NoError(t, st.InsertURL(context.Background(), &store.URLRecord{
		ID: 1, Code: "abc1234", URL: "https://target.example", URLHash: "hash1",
	}))
	h.bloom.Insert("abc1234")

	req := httptest.NewRequest(http.MethodGet, "/abc1234", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPermanentRedirect, w.Code)
	assert.Equal(t, "https://target.example", w.Header().Get("Location"))
}

func TestInfo_ReportsSourceForPrimaryAndAlias(t *testing.T) {
	h, st := newTestHandler(t)
	router := newTestRouter(h)

	require.NoError(t, st.InsertURLWithAlias(context.Background(), &store.URLRecord{
		ID: 2, Code: "xyz9999", URL: "https://target2.example", URLHash: "hash2",
	}, "my-alias"))
	h.bloom.Insert("xyz9999")
	h.bloom.Insert("my-alias")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/info/xyz9999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp infoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "primary", resp.Source)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/info/my-alias", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
	var resp2 infoResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Equal(t, "alias", resp2.Source)
}

func TestHealth_ReportsBloomReadyState(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.BloomReady)
	assert.Equal(t, "ok", resp.Status)
}
