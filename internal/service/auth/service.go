package auth

import (
	"context"
	"strings"
)

// Credentials is a username/password pair as received from a client.
type Credentials struct {
	Username string
	Password string
}

// CredentialRequirements is the password policy a provider enforces.
type CredentialRequirements struct {
	MinPasswordLength int
	WeakPasswords     []string
}

// AuthProvider verifies credentials. Implementations exist for basic
// auth backed by environment variables; the interface keeps the HTTP
// layer ignorant of where accounts actually live.
type AuthProvider interface {
	// ValidateCredentials verifies the given username and password.
	ValidateCredentials(ctx context.Context, creds Credentials) error

	// GetRequirements returns the password policy this provider enforces.
	GetRequirements() CredentialRequirements

	// IdentifyUser returns the role for the given email address.
	IdentifyUser(ctx context.Context, email string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}

// AuthService decides which requests need credentials and delegates
// verification to the configured provider. Search and health endpoints
// stay public; ingest and reindex operations do not.
type AuthService struct {
	provider        AuthProvider
	publicEndpoints []string
}

// NewAuthService creates a service over the given provider and the
// list of path prefixes that skip authentication.
func NewAuthService(provider AuthProvider, publicEndpoints []string) *AuthService {
	return &AuthService{
		provider:        provider,
		publicEndpoints: publicEndpoints,
	}
}

// ValidateCredentials verifies credentials via the configured provider.
func (s *AuthService) ValidateCredentials(ctx context.Context, creds Credentials) error {
	return s.provider.ValidateCredentials(ctx, creds)
}

// IsPublicEndpoint reports whether path matches a public prefix.
func (s *AuthService) IsPublicEndpoint(path string) bool {
	for _, endpoint := range s.publicEndpoints {
		if strings.HasPrefix(path, endpoint) {
			return true
		}
	}
	return false
}

// GetProvider returns the active authentication provider.
func (s *AuthService) GetProvider() AuthProvider {
	return s.provider
}
