package middleware

import (
	"strings"
)

// WhitelistValidator allows exactly the configured origins, nothing
// else. Origins are normalized once at construction (lowercase, no
// trailing slash) so the per-request check is a plain comparison.
type WhitelistValidator struct {
	allowedOrigins []string
}

// NewWhitelistValidator normalizes and stores the origin list. Empty
// entries are dropped; duplicates are kept as-is.
func NewWhitelistValidator(origins []string) *WhitelistValidator {
	normalized := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		origin = strings.ToLower(origin)
		origin = strings.TrimSuffix(origin, "/")
		normalized = append(normalized, origin)
	}

	return &WhitelistValidator{
		allowedOrigins: normalized,
	}
}

// IsAllowed reports whether the origin is whitelisted. The incoming
// value is normalized the same way the list was, so the match ignores
// case and a trailing slash. Linear scan; origin lists are short.
func (v *WhitelistValidator) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}

	origin = strings.ToLower(strings.TrimSpace(origin))
	origin = strings.TrimSuffix(origin, "/")

	for _, allowed := range v.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// GetAllowedOrigins returns a copy of the normalized origin list.
func (v *WhitelistValidator) GetAllowedOrigins() []string {
	copy := make([]string, len(v.allowedOrigins))
	for i, origin := range v.allowedOrigins {
		copy[i] = origin
	}
	return copy
}
