package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/interfaces"
	"github.com/bioarchive/studysearch/internal/models"
)

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	searchService interfaces.SearchService
	queueService  interfaces.QueueService
	validate      *validator.Validate
	logger        arbor.ILogger
}

// NewSearchHandler creates a new search handler with dependencies
func NewSearchHandler(searchService interfaces.SearchService, queueService interfaces.QueueService, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		queueService:  queueService,
		validate:      validator.New(),
		logger:        logger,
	}
}

// SearchHandler handles POST /search requests
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if h.queueService != nil && !h.queueService.Available() {
		WriteErrorCode(w, http.StatusServiceUnavailable, "WEBSOCKET_CLOSED", "indexing service unavailable")
		return
	}

	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	h.logger.Info().
		Str("query", req.Query).
		Str("collection", req.Collection).
		Int("page", req.Page).
		Int("page_size", req.PageSize).
		Msg("Search request received")

	resp, err := h.searchService.Search(r.Context(), &req)
	if err != nil {
		var invalidQuery *models.InvalidQueryError
		var invalidArg *models.InvalidArgumentError
		switch {
		case errors.As(err, &invalidQuery):
			WriteErrorCode(w, http.StatusBadRequest, "INVALID_QUERY", invalidQuery.Message)
		case errors.As(err, &invalidArg):
			WriteErrorCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", invalidArg.Message)
		default:
			h.logger.Error().Err(err).Str("query", req.Query).Msg("Search failed")
			WriteErrorCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	h.logger.Debug().
		Str("query", req.Query).
		Int64("total_hits", int64(resp.TotalHits)).
		Msg("Search completed")

	WriteJSON(w, http.StatusOK, resp)
}
