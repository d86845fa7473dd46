package middleware

// OriginValidator decides whether an origin may make cross-origin
// requests to the API. The shipped implementation is the exact-match
// WhitelistValidator; pattern or IP based validators would satisfy the
// same interface.
type OriginValidator interface {
	// IsAllowed reports whether the Origin header value is permitted.
	// Comparison ignores case and trailing slashes; an empty origin is
	// never allowed.
	IsAllowed(origin string) bool

	// GetAllowedOrigins returns the configured origins for logging. It
	// must return a copy, not internal state.
	GetAllowedOrigins() []string
}

// ConfigSource loads the CORS policy from wherever it is stored. The
// default is environment variables via EnvConfigSource; a file or
// config-service source would implement the same four loaders.
type ConfigSource interface {
	// LoadOrigins returns the allowed origins. At least one origin is
	// required (fail-closed), each a bare http or https origin without
	// trailing slash.
	LoadOrigins() ([]string, error)

	// LoadMethods returns the allowed HTTP verbs, defaulting to
	// GET, POST, PUT, DELETE, PATCH, OPTIONS when unconfigured.
	LoadMethods() ([]string, error)

	// LoadHeaders returns the allowed request headers, defaulting to
	// Content-Type, Authorization, X-Request-ID. Header names are
	// case-insensitive to browsers.
	LoadHeaders() ([]string, error)

	// LoadMaxAge returns the preflight cache lifetime in seconds,
	// defaulting to 86400. Zero disables preflight caching; negative
	// values are an error.
	LoadMaxAge() (int, error)
}

// CORSLogger receives CORS events: Warn for policy violations, Debug
// for preflight traces, Info for startup configuration. Production
// wires SlogAdapter; tests wire NoOpLogger.
type CORSLogger interface {
	Info(msg string, fields map[string]interface{})

	Warn(msg string, fields map[string]interface{})

	Debug(msg string, fields map[string]interface{})
}
