package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/interfaces"
)

// AutocompleteHandler serves keyword completion and ontology tree
// navigation
type AutocompleteHandler struct {
	service interfaces.AutocompleteService
	logger  arbor.ILogger
}

// NewAutocompleteHandler creates the autocomplete handler
func NewAutocompleteHandler(service interfaces.AutocompleteService, logger arbor.ILogger) *AutocompleteHandler {
	return &AutocompleteHandler{service: service, logger: logger}
}

// KeywordsHandler handles GET /autocomplete?q=&limit= requests
func (h *AutocompleteHandler) KeywordsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 0)

	var body string
	if r.URL.Query().Get("counts") == "true" {
		body = h.service.GetKeywordsWithCounts(r.Context(), q, limit)
	} else {
		body = h.service.GetKeywords(r.Context(), q, limit)
	}

	WriteText(w, http.StatusOK, body)
}

// EfoTreeHandler handles GET /efo/tree?id=&limit= requests
func (h *AutocompleteHandler) EfoTreeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := r.URL.Query().Get("id")

	var body string
	if r.URL.Query().Get("counts") == "true" {
		body = h.service.GetEfoTreeWithCounts(r.Context(), id, queryInt(r, "limit", 0))
	} else {
		body = h.service.GetEfoTree(r.Context(), id)
	}

	WriteText(w, http.StatusOK, body)
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
