package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bioarchive/studysearch/internal/auth"
)

// withRecovery converts handler panics into 500 responses
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Str("path", r.URL.Path).
					Str("panic", fmt.Sprintf("%v", rec)).
					Msg("Handler panic recovered")
				http.Error(w, `{"code":"INTERNAL_ERROR","status":500,"message":"Internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withPrincipal resolves the session or bearer token into the request
// principal. The principal lives only in the request context and is
// dropped on completion.
func (s *Server) withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Session-Token")
		if token == "" {
			if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
				token = strings.TrimPrefix(bearer, "Bearer ")
			}
		}

		if token != "" {
			if p := s.validator.Validate(token); p != nil {
				r = r.WithContext(auth.WithPrincipal(r.Context(), p))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// withAdminAllowList restricts a handler to the configured admin IPs
func (s *Server) withAdminAllowList(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.config.Index.AdminIPAllowList))
	for _, ip := range s.config.Index.AdminIPAllowList {
		allowed[strings.TrimSpace(ip)] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !allowed[host] {
			s.logger.Warn().Str("remote", host).Str("path", r.URL.Path).Msg("Admin endpoint denied")
			http.Error(w, `{"code":"FORBIDDEN","status":403,"message":"forbidden"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging records each request with its duration
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
