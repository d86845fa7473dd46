package auth

import "strings"

// Role constants define the available user roles in the system.
// These roles are used in JWT claims and permission checks.
const (
	// RoleAdmin has full access to all endpoints and methods
	RoleAdmin = "admin"
	// RoleViewer has read-only access to specific endpoints
	RoleViewer = "viewer"
)

// Permission defines the allowed operations for a role.
// It includes HTTP methods and path patterns that the role can access.
type Permission struct {
	// AllowedMethods specifies which HTTP methods this role can use
	// Example: ["GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"]
	AllowedMethods []string

	// AllowedPaths specifies which URL paths this role can access
	// Supports wildcards: "/*" matches all paths, "/api/articles/*" matches all article endpoints
	AllowedPaths []string
}

// RolePermissions maps each role to its allowed permissions.
//
// Security Model:
// - Admin: Full access to all endpoints and methods (including ingest and index administration)
// - Viewer: Read access to articles plus the query endpoint; no admin operations
//
// CORS Handling:
// - OPTIONS method is included for both roles to support CORS preflight requests
//
// Path Patterns:
// - "/*" matches all paths
// - "/api/articles/*" matches /api/articles, /api/articles/1, /api/articles/external/AKR..., etc.
// - "/api/query" matches only /api/query (exact match)
var RolePermissions = map[string]Permission{
	RoleAdmin: {
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedPaths:   []string{"/*"}, // All paths
	},
	RoleViewer: {
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedPaths: []string{
			"/api/articles",
			"/api/articles/*",
			"/api/query",
			"/swagger/*",
		},
	},
}

// checkRolePermission checks if a role has permission for a method and path.
// Returns false if the role doesn't exist or lacks permission.
//
// Permission Logic:
// 1. Check if role exists in RolePermissions map
// 2. Verify method is in AllowedMethods list
// 3. Verify path matches at least one AllowedPaths pattern
//
// Example:
//
//	checkRolePermission("admin", "POST", "/api/ingest")        // true
//	checkRolePermission("viewer", "GET", "/api/articles/1")    // true
//	checkRolePermission("viewer", "POST", "/api/query")        // true
//	checkRolePermission("viewer", "POST", "/api/ingest")       // false (path not allowed)
//	checkRolePermission("", "GET", "/api/articles")            // false (empty role)
//	checkRolePermission("unknown", "GET", "/api/articles")     // false (role doesn't exist)
func checkRolePermission(role, method, path string) bool {
	// Empty role is always denied
	if role == "" {
		return false
	}

	// Get permissions for this role
	perm, exists := RolePermissions[role]
	if !exists {
		return false
	}

	// Check if method is allowed
	methodAllowed := false
	for _, allowedMethod := range perm.AllowedMethods {
		if allowedMethod == method {
			methodAllowed = true
			break
		}
	}
	if !methodAllowed {
		return false
	}

	// Check if path matches any allowed pattern
	return matchesPathPattern(path, perm.AllowedPaths)
}

// matchesPathPattern checks if a path matches any of the allowed patterns.
// Supports wildcards for flexible path matching.
//
// Pattern Matching Rules:
// - "/*" matches all paths
// - "/api/articles/*" matches "/api/articles", "/api/articles/1", "/api/articles/1/similar", etc.
// - "/api/query" matches only "/api/query" (exact match)
//
// Wildcard Logic:
// - Patterns ending with "/*" use prefix matching
// - The prefix is everything before "/*"
// - For "/api/articles/*", the prefix is "/api/articles"
// - Path "/api/articles/1" has prefix "/api/articles" → matches
// - Path "/api/articles" has prefix "/api/articles" → matches (exact match)
//
// Example:
//
//	patterns := []string{"/api/articles/*", "/api/query"}
//	matchesPathPattern("/api/articles", patterns)           // true
//	matchesPathPattern("/api/articles/1", patterns)         // true
//	matchesPathPattern("/api/articles/1/similar", patterns) // true
//	matchesPathPattern("/api/query", patterns)              // true
//	matchesPathPattern("/api/ingest", patterns)             // false
//	matchesPathPattern("/users", patterns)                  // false
func matchesPathPattern(path string, patterns []string) bool {
	for _, pattern := range patterns {
		// Handle wildcard pattern "/*" - matches all paths
		if pattern == "/*" {
			return true
		}

		// Handle wildcard pattern ending with "/*"
		// Example: "/api/articles/*" matches "/api/articles", "/api/articles/1", "/api/articles/1/similar"
		if strings.HasSuffix(pattern, "/*") {
			// Extract prefix by removing "/*"
			prefix := strings.TrimSuffix(pattern, "/*")

			// Check if path starts with this prefix
			// This matches both exact prefix and subpaths
			// "/api/articles/*" matches:
			// - "/api/articles" (exact match)
			// - "/api/articles/1" (starts with "/api/articles/")
			// - "/api/articles/1/similar" (starts with "/api/articles/")
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}

		// Exact match for non-wildcard patterns
		if path == pattern {
			return true
		}
	}
	return false
}
