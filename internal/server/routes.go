package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Search
	mux.HandleFunc("/search", s.app.SearchHandler.SearchHandler)

	// Autocomplete and ontology navigation
	mux.HandleFunc("/autocomplete", s.app.AutocompleteHandler.KeywordsHandler)
	mux.HandleFunc("/efo/tree", s.app.AutocompleteHandler.EfoTreeHandler)

	// Submission indexing
	mux.HandleFunc("/submissions/", s.app.IndexHandler.SubmissionsHandler)

	// WebSocket status channel
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Internal administration (IP allow-listed)
	mux.Handle("/internal/api/indexes/metadata",
		s.withAdminAllowList(http.HandlerFunc(s.app.AdminHandler.MetadataHandler)))

	// System
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
