package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
)

// APIHandler serves the system endpoints
type APIHandler struct {
	logger arbor.ILogger
}

// NewAPIHandler creates the API handler
func NewAPIHandler(logger arbor.ILogger) *APIHandler {
	return &APIHandler{logger: logger}
}

// HealthHandler handles GET /health; always public
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}

// VersionHandler handles GET /api/version
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
	})
}

// NotFoundHandler answers unmatched API routes
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteErrorCode(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
}
