package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/bioarchive/studysearch/internal/index"
)

// AdminHandler serves the internal index administration surface
type AdminHandler struct {
	pool    *index.Pool
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewAdminHandler creates the admin handler
func NewAdminHandler(pool *index.Pool, logger arbor.ILogger) *AdminHandler {
	return &AdminHandler{
		pool:    pool,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		logger:  logger,
	}
}

// MetadataHandler handles GET /internal/api/indexes/metadata
func (h *AdminHandler) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !h.limiter.Allow() {
		WriteErrorCode(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
		return
	}

	WriteJSON(w, http.StatusOK, h.pool.Metadata())
}
