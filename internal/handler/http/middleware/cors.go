package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds the CORS policy the search API serves to browser
// clients such as the newsroom dashboard.
type CORSConfig struct {
	// AllowedOrigins is the origin whitelist.
	// DEPRECATED: set a Validator instead; kept so env-only deployments
	// keep working.
	AllowedOrigins []string

	// AllowedMethods are the methods preflight responses advertise.
	// CORS_ALLOWED_METHODS overrides the default
	// GET, POST, PUT, DELETE, PATCH, OPTIONS.
	AllowedMethods []string

	// AllowedHeaders are the request headers preflight responses
	// advertise. CORS_ALLOWED_HEADERS overrides the default
	// Content-Type, Authorization, X-Request-ID.
	AllowedHeaders []string

	// AllowCredentials must be true for Bearer token auth to work
	// cross-origin.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds.
	// CORS_MAX_AGE overrides the default 86400.
	MaxAge int

	// Validator decides whether an origin is allowed: whitelist,
	// pattern, or IP based.
	Validator OriginValidator

	// Logger receives policy violations and preflight traces. Tests
	// inject NoOpLogger.
	Logger CORSLogger
}

// CORS returns middleware enforcing the configured policy. Same-origin
// requests (no Origin header) pass through untouched. A disallowed
// origin is logged and forwarded without CORS headers, which makes the
// browser block the response. Allowed preflights are answered directly
// with 204 and never reach the handler chain.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin request.
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !config.Validator.IsAllowed(origin) {
				if config.Logger != nil {
					config.Logger.Warn("CORS: origin not allowed", map[string]interface{}{
						"origin":      origin,
						"path":        r.URL.Path,
						"method":      r.Method,
						"remote_addr": r.RemoteAddr,
					})
				}

				// No CORS headers; the browser rejects the response.
				next.ServeHTTP(w, r)
				return
			}

			// Echo the origin back, required when credentials are on.
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))

				if config.Logger != nil {
					config.Logger.Debug("CORS: preflight request", map[string]interface{}{
						"origin":            origin,
						"requested_method":  r.Header.Get("Access-Control-Request-Method"),
						"requested_headers": r.Header.Get("Access-Control-Request-Headers"),
					})
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
