// Package handler implements the HTTP surface over the Allocator and
// Resolver: POST /api/v1/shorten, GET /:code, GET /api/v1/info/:code,
// GET /health (spec §6, spec_full §6).
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/short-core/shortlink/internal/alias"
	"github.com/short-core/shortlink/internal/allocator"
	"github.com/short-core/shortlink/internal/bloomfilter"
	"github.com/short-core/shortlink/internal/breaker"
	"github.com/short-core/shortlink/internal/metrics"
	"github.com/short-core/shortlink/internal/resolver"
)

// Handler wires the HTTP layer to the Allocator, Resolver, Alias Validator,
// and the components /health reports on.
type Handler struct {
	allocator *allocator.Allocator
	resolver  *resolver.Resolver
	validator *alias.Validator
	bloom     *bloomfilter.Filter
	breaker   *breaker.Breaker
	metrics   *metrics.Registry
	baseURL   string
}

// New builds a Handler. breaker and metricsRegistry may both be nil if
// circuit breaking/metrics collection is disabled.
func New(alloc *allocator.Allocator, res *resolver.Resolver, validator *alias.Validator, bloom *bloomfilter.Filter, br *breaker.Breaker, metricsRegistry *metrics.Registry, baseURL string) *Handler {
	return &Handler{allocator: alloc, resolver: res, validator: validator, bloom: bloom, breaker: br, metrics: metricsRegistry, baseURL: baseURL}
}

// shortenRequest is the POST /api/v1/shorten request body.
type shortenRequest struct {
	URL   string  `json:"url" binding:"required"`
	Alias *string `json:"alias,omitempty"`
}

type shortenResponse struct {
	Code      string `json:"code"`
	ShortURL  string `json:"short_url"`
	URL       string `json:"url"`
	IsNew     bool   `json:"is_new"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Shorten handles POST /api/v1/shorten.
func (h *Handler) Shorten(c *gin.Context) {
	var req shortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if req.Alias != nil {
		if err := h.validator.Validate(*req.Alias); err != nil {
			var verr *alias.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: string(verr.Reason), Message: err.Error()})
				return
			}
			c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "invalid_alias", Message: err.Error()})
			return
		}
	}

	start := time.Now()
	outcome, err := h.allocator.Allocate(c.Request.Context(), req.URL, req.Alias)
	h.observeAllocate(time.Since(start), err)
	if err != nil {
		h.writeAllocateError(c, err)
		return
	}

	c.JSON(http.StatusOK, shortenResponse{
		Code:     outcome.Code,
		ShortURL: h.buildShortURL(outcome.Code),
		URL:      outcome.URL,
		IsNew:    outcome.IsNew,
	})
}

// Redirect handles GET /:code.
func (h *Handler) Redirect(c *gin.Context) {
	code := c.Param("code")
	start := time.Now()
	resolution, err := h.resolver.Resolve(c.Request.Context(), code)
	h.observeResolve(time.Since(start), err)
	if err != nil {
		h.writeResolveError(c, err)
		return
	}
	c.Redirect(http.StatusPermanentRedirect, resolution.URL)
}

type infoResponse struct {
	Code   string `json:"code"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Info handles GET /api/v1/info/:code.
func (h *Handler) Info(c *gin.Context) {
	code := c.Param("code")
	resolution, err := h.resolver.Resolve(c.Request.Context(), code)
	if err != nil {
		h.writeResolveError(c, err)
		return
	}
	c.JSON(http.StatusOK, infoResponse{Code: code, URL: resolution.URL, Source: resolution.Source})
}

type healthResponse struct {
	Status      string `json:"status"`
	BloomReady  bool   `json:"bloom_ready"`
	BreakerState string `json:"breaker_state,omitempty"`
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	resp := healthResponse{Status: "ok", BloomReady: h.bloom.Ready()}
	if h.breaker != nil {
		resp.BreakerState = h.breaker.State()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) buildShortURL(code string) string {
	return fmt.Sprintf("%s/%s", h.baseURL, code)
}

func (h *Handler) observeAllocate(d time.Duration, err error) {
	if h.metrics == nil {
		return
	}
	outcome := outcomeLabel(err)
	h.metrics.AllocateTotal.WithLabelValues(outcome).Inc()
	h.metrics.AllocateDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if h.breaker != nil {
		h.metrics.ObserveBreakerState("ps", h.breaker.State())
	}
}

func (h *Handler) observeResolve(d time.Duration, err error) {
	if h.metrics == nil {
		return
	}
	outcome := outcomeLabel(err)
	h.metrics.ResolveTotal.WithLabelValues(outcome).Inc()
	h.metrics.ResolveDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}

func (h *Handler) writeAllocateError(c *gin.Context, err error) {
	var invalidAlias *allocator.InvalidAliasError
	switch {
	case errors.As(err, &invalidAlias):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "invalid_alias", Message: err.Error()})
	case errors.Is(err, allocator.ErrAliasTaken):
		c.JSON(http.StatusConflict, errorResponse{Error: "alias_taken", Message: err.Error()})
	case errors.Is(err, allocator.ErrCodeSpaceExhausted):
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "code_space_exhausted", Message: err.Error()})
	case errors.Is(err, allocator.ErrInvariantViolation):
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "invariant_violation", Message: err.Error()})
	case errors.Is(err, allocator.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "storage_unavailable", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: err.Error()})
	}
}

func (h *Handler) writeResolveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "short code not found"})
	case errors.Is(err, resolver.ErrInvariantViolation):
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "invariant_violation", Message: err.Error()})
	case errors.Is(err, resolver.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "storage_unavailable", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: err.Error()})
	}
}
