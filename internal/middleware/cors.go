// Package middleware provides HTTP middleware for the chat server.
package middleware

import (
	"net/http"
	"strings"
)

// CORS echoes an allowed Origin back and answers preflight requests. The
// chat API is called cross-origin by frontends that pass the tab's session
// id in a custom header, so allowedHeaders are advertised next to
// Content-Type. Credentials (the anon cookie) are only allowed for origins
// listed explicitly; a "*" entry never grants them.
func CORS(allowedOrigins []string, allowedHeaders ...string) func(http.Handler) http.Handler {
	headers := strings.Join(append([]string{"Content-Type"}, allowedHeaders...), ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", headers)
				// Only allow credentials for explicit origins, not wildcard matches.
				// Setting Allow-Credentials with a wildcard-echoed origin enables CSRF.
				for _, o := range allowedOrigins {
					if o != "*" && o == origin {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
						break
					}
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
