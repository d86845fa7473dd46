package auth

import (
	"testing"
)

// TestCheckRolePermission_Admin tests that admin role has full access to all endpoints
func TestCheckRolePermission_Admin(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		// Basic operations
		{
			name:   "admin can GET /api/articles",
			method: "GET",
			path:   "/api/articles",
			want:   true,
		},
		{
			name:   "admin can POST /api/query",
			method: "POST",
			path:   "/api/query",
			want:   true,
		},
		{
			name:   "admin can POST /api/ingest",
			method: "POST",
			path:   "/api/ingest",
			want:   true,
		},
		{
			name:   "admin can DELETE /api/articles/1",
			method: "DELETE",
			path:   "/api/articles/1",
			want:   true,
		},
		{
			name:   "admin can DELETE /api/index",
			method: "DELETE",
			path:   "/api/index",
			want:   true,
		},
		// CORS preflight
		{
			name:   "admin can OPTIONS /api/articles (CORS preflight)",
			method: "OPTIONS",
			path:   "/api/articles",
			want:   true,
		},
		// Admin has access to all paths
		{
			name:   "admin can access /any/path",
			method: "GET",
			path:   "/any/path",
			want:   true,
		},
		{
			name:   "admin can POST /api/index/reconcile",
			method: "POST",
			path:   "/api/index/reconcile",
			want:   true,
		},
		{
			name:   "admin can DELETE /admin/settings",
			method: "DELETE",
			path:   "/admin/settings",
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkRolePermission(RoleAdmin, tt.method, tt.path)
			if got != tt.want {
				t.Errorf("checkRolePermission(%q, %q, %q) = %v, want %v",
					RoleAdmin, tt.method, tt.path, got, tt.want)
			}
		})
	}
}

// TestCheckRolePermission_Viewer tests that viewer role is limited to article
// reads and the query endpoint
func TestCheckRolePermission_Viewer(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		// Allowed operations
		{
			name:   "viewer can GET /api/articles",
			method: "GET",
			path:   "/api/articles",
			want:   true,
		},
		{
			name:   "viewer can GET /api/articles/1",
			method: "GET",
			path:   "/api/articles/1",
			want:   true,
		},
		{
			name:   "viewer can GET /api/articles/external/AKR20240619001",
			method: "GET",
			path:   "/api/articles/external/AKR20240619001",
			want:   true,
		},
		{
			name:   "viewer can POST /api/query",
			method: "POST",
			path:   "/api/query",
			want:   true,
		},
		{
			name:   "viewer can GET /swagger/index.html",
			method: "GET",
			path:   "/swagger/index.html",
			want:   true,
		},
		// CORS preflight
		{
			name:   "viewer can OPTIONS /api/articles (CORS preflight)",
			method: "OPTIONS",
			path:   "/api/articles",
			want:   true,
		},
		{
			name:   "viewer can OPTIONS /api/query",
			method: "OPTIONS",
			path:   "/api/query",
			want:   true,
		},
		// Denied write operations
		{
			name:   "viewer CANNOT DELETE /api/articles/1",
			method: "DELETE",
			path:   "/api/articles/1",
			want:   false,
		},
		{
			name:   "viewer CANNOT PUT /api/articles/1",
			method: "PUT",
			path:   "/api/articles/1",
			want:   false,
		},
		{
			name:   "viewer CANNOT PATCH /api/articles/1",
			method: "PATCH",
			path:   "/api/articles/1",
			want:   false,
		},
		// Denied access to admin paths
		{
			name:   "viewer CANNOT POST /api/ingest",
			method: "POST",
			path:   "/api/ingest",
			want:   false,
		},
		{
			name:   "viewer CANNOT POST /api/index/ensure",
			method: "POST",
			path:   "/api/index/ensure",
			want:   false,
		},
		{
			name:   "viewer CANNOT GET /api/ingest/stats",
			method: "GET",
			path:   "/api/ingest/stats",
			want:   false,
		},
		{
			name:   "viewer CANNOT GET /admin/settings",
			method: "GET",
			path:   "/admin/settings",
			want:   false,
		},
		// Additional test cases for article subpaths
		{
			name:   "viewer can GET /api/articles/1/similar",
			method: "GET",
			path:   "/api/articles/1/similar",
			want:   true,
		},
		{
			name:   "viewer can GET /api/articles/search",
			method: "GET",
			path:   "/api/articles/search",
			want:   true,
		},
		{
			name:   "viewer can GET /swagger/swagger-ui.css",
			method: "GET",
			path:   "/swagger/swagger-ui.css",
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkRolePermission(RoleViewer, tt.method, tt.path)
			if got != tt.want {
				t.Errorf("checkRolePermission(%q, %q, %q) = %v, want %v",
					RoleViewer, tt.method, tt.path, got, tt.want)
			}
		})
	}
}

// TestCheckRolePermission_EdgeCases tests edge cases and invalid inputs
func TestCheckRolePermission_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		method string
		path   string
		want   bool
	}{
		{
			name:   "empty role returns false",
			role:   "",
			method: "GET",
			path:   "/api/articles",
			want:   false,
		},
		{
			name:   "unknown role returns false",
			role:   "superuser",
			method: "GET",
			path:   "/api/articles",
			want:   false,
		},
		{
			name:   "invalid path not in viewer list returns false for viewer",
			role:   RoleViewer,
			method: "GET",
			path:   "/invalid/path",
			want:   false,
		},
		{
			name:   "empty method returns false",
			role:   RoleAdmin,
			method: "",
			path:   "/api/articles",
			want:   false,
		},
		{
			name:   "empty path - admin can access",
			role:   RoleAdmin,
			method: "GET",
			path:   "",
			want:   true,
		},
		{
			name:   "empty path - viewer cannot access",
			role:   RoleViewer,
			method: "GET",
			path:   "",
			want:   false,
		},
		{
			name:   "unknown method for admin still works (admin has all methods)",
			role:   RoleAdmin,
			method: "UNKNOWN",
			path:   "/api/articles",
			want:   false,
		},
		{
			name:   "case sensitive role - Admin (capitalized) not found",
			role:   "Admin",
			method: "GET",
			path:   "/api/articles",
			want:   false,
		},
		{
			name:   "case sensitive role - VIEWER (uppercase) not found",
			role:   "VIEWER",
			method: "GET",
			path:   "/api/articles",
			want:   false,
		},
		{
			name:   "viewer with HEAD method (not in allowed list)",
			role:   RoleViewer,
			method: "HEAD",
			path:   "/api/articles",
			want:   false,
		},
		{
			name:   "admin with HEAD method (not in allowed list)",
			role:   RoleAdmin,
			method: "HEAD",
			path:   "/api/articles",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkRolePermission(tt.role, tt.method, tt.path)
			if got != tt.want {
				t.Errorf("checkRolePermission(%q, %q, %q) = %v, want %v",
					tt.role, tt.method, tt.path, got, tt.want)
			}
		})
	}
}

// TestMatchesPathPattern tests the path pattern matching logic
func TestMatchesPathPattern(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		patterns []string
		want     bool
	}{
		// Test "/*" matches all paths
		{
			name:     "/* matches /api/articles",
			path:     "/api/articles",
			patterns: []string{"/*"},
			want:     true,
		},
		{
			name:     "/* matches /api/index/stats",
			path:     "/api/index/stats",
			patterns: []string{"/*"},
			want:     true,
		},
		{
			name:     "/* matches /anything",
			path:     "/anything",
			patterns: []string{"/*"},
			want:     true,
		},
		{
			name:     "/* matches empty path",
			path:     "",
			patterns: []string{"/*"},
			want:     true,
		},
		{
			name:     "/* matches deeply nested path",
			path:     "/api/v1/resources/123/items/456",
			patterns: []string{"/*"},
			want:     true,
		},

		// Test exact matching
		{
			name:     "/api/articles matches exactly /api/articles",
			path:     "/api/articles",
			patterns: []string{"/api/articles"},
			want:     true,
		},
		{
			name:     "/api/articles does not match /api/articles/1",
			path:     "/api/articles/1",
			patterns: []string{"/api/articles"},
			want:     false,
		},
		{
			name:     "/api/articles does not match /api/article",
			path:     "/api/article",
			patterns: []string{"/api/articles"},
			want:     false,
		},

		// Test wildcard pattern "/api/articles/*"
		{
			name:     "/api/articles/* matches /api/articles/1",
			path:     "/api/articles/1",
			patterns: []string{"/api/articles/*"},
			want:     true,
		},
		{
			name:     "/api/articles/* matches /api/articles/1/similar",
			path:     "/api/articles/1/similar",
			patterns: []string{"/api/articles/*"},
			want:     true,
		},
		{
			name:     "/api/articles/* matches /api/articles (base path)",
			path:     "/api/articles",
			patterns: []string{"/api/articles/*"},
			want:     true,
		},
		{
			name:     "/api/articles/* does not match /api/article",
			path:     "/api/article",
			patterns: []string{"/api/articles/*"},
			want:     false,
		},
		{
			name:     "/api/articles/* does not match /api/ingest",
			path:     "/api/ingest",
			patterns: []string{"/api/articles/*"},
			want:     false,
		},

		// Test multiple patterns
		{
			name:     "multiple patterns - match first",
			path:     "/api/articles",
			patterns: []string{"/api/articles", "/api/query"},
			want:     true,
		},
		{
			name:     "multiple patterns - match second",
			path:     "/api/query",
			patterns: []string{"/api/articles", "/api/query"},
			want:     true,
		},
		{
			name:     "multiple patterns - no match",
			path:     "/users",
			patterns: []string{"/api/articles", "/api/query"},
			want:     false,
		},
		{
			name:     "multiple patterns with wildcards",
			path:     "/api/articles/123",
			patterns: []string{"/api/articles/*", "/api/logs/*"},
			want:     true,
		},

		// Test viewer role patterns (from RolePermissions)
		{
			name: "viewer patterns - /api/articles",
			path: "/api/articles",
			patterns: []string{
				"/api/articles",
				"/api/articles/*",
				"/api/query",
				"/swagger/*",
			},
			want: true,
		},
		{
			name: "viewer patterns - /api/articles/1",
			path: "/api/articles/1",
			patterns: []string{
				"/api/articles",
				"/api/articles/*",
				"/api/query",
				"/swagger/*",
			},
			want: true,
		},
		{
			name: "viewer patterns - /api/ingest not allowed",
			path: "/api/ingest",
			patterns: []string{
				"/api/articles",
				"/api/articles/*",
				"/api/query",
				"/swagger/*",
			},
			want: false,
		},

		// Edge cases
		{
			name:     "empty patterns list",
			path:     "/api/articles",
			patterns: []string{},
			want:     false,
		},
		{
			name:     "nil patterns list",
			path:     "/api/articles",
			patterns: nil,
			want:     false,
		},
		{
			name:     "pattern with trailing slash",
			path:     "/api/articles",
			patterns: []string{"/api/articles/"},
			want:     false,
		},
		{
			name:     "path without leading slash",
			path:     "api/articles",
			patterns: []string{"/api/articles"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchesPathPattern(tt.path, tt.patterns)
			if got != tt.want {
				t.Errorf("matchesPathPattern(%q, %v) = %v, want %v",
					tt.path, tt.patterns, got, tt.want)
			}
		})
	}
}

// BenchmarkCheckRolePermission benchmarks the permission checking function
// Target: < 1μs per check
func BenchmarkCheckRolePermission(b *testing.B) {
	testCases := []struct {
		name   string
		role   string
		method string
		path   string
	}{
		{
			name:   "admin_simple_path",
			role:   RoleAdmin,
			method: "GET",
			path:   "/api/articles",
		},
		{
			name:   "admin_nested_path",
			role:   RoleAdmin,
			method: "POST",
			path:   "/api/index/reconcile",
		},
		{
			name:   "viewer_allowed_simple",
			role:   RoleViewer,
			method: "GET",
			path:   "/api/articles",
		},
		{
			name:   "viewer_allowed_nested",
			role:   RoleViewer,
			method: "GET",
			path:   "/api/articles/123/similar",
		},
		{
			name:   "viewer_denied_method",
			role:   RoleViewer,
			method: "DELETE",
			path:   "/api/articles/123",
		},
		{
			name:   "viewer_denied_path",
			role:   RoleViewer,
			method: "GET",
			path:   "/admin/users",
		},
		{
			name:   "unknown_role",
			role:   "unknown",
			method: "GET",
			path:   "/api/articles",
		},
	}

	for _, tc := range testCases {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = checkRolePermission(tc.role, tc.method, tc.path)
			}
		})
	}
}

// BenchmarkMatchesPathPattern benchmarks the pattern matching function
func BenchmarkMatchesPathPattern(b *testing.B) {
	testCases := []struct {
		name     string
		path     string
		patterns []string
	}{
		{
			name:     "wildcard_all",
			path:     "/api/v1/articles/123",
			patterns: []string{"/*"},
		},
		{
			name:     "exact_match",
			path:     "/api/articles",
			patterns: []string{"/api/articles"},
		},
		{
			name:     "prefix_match",
			path:     "/api/articles/123/similar",
			patterns: []string{"/api/articles/*"},
		},
		{
			name: "viewer_patterns",
			path: "/api/articles/123",
			patterns: []string{
				"/api/articles",
				"/api/articles/*",
				"/api/query",
				"/swagger/*",
			},
		},
		{
			name: "no_match",
			path: "/admin/users",
			patterns: []string{
				"/api/articles",
				"/api/articles/*",
				"/api/query",
				"/swagger/*",
			},
		},
	}

	for _, tc := range testCases {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = matchesPathPattern(tc.path, tc.patterns)
			}
		})
	}
}

// BenchmarkRolePermissions_MapLookup benchmarks the role lookup in the map
func BenchmarkRolePermissions_MapLookup(b *testing.B) {
	testCases := []struct {
		name string
		role string
	}{
		{
			name: "admin_lookup",
			role: RoleAdmin,
		},
		{
			name: "viewer_lookup",
			role: RoleViewer,
		},
		{
			name: "unknown_lookup",
			role: "unknown",
		},
	}

	for _, tc := range testCases {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = RolePermissions[tc.role]
			}
		})
	}
}
