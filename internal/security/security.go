// Package security implements the gateway's security gate: request
// authentication (bearer token, session, API key, or explicit dev-mode
// bypass), per-resource capability authorization, and per-identity
// sliding-window rate limiting.
//
// Protocol and security failures are reported as *protocol.Error values
// so the dispatch layer can return them inline without reaching any
// provider.
package security

import (
	"time"
)

// CredentialKind records how an identity was established.
type CredentialKind string

const (
	CredBearer  CredentialKind = "bearer"
	CredSession CredentialKind = "session"
	CredAPIKey  CredentialKind = "api_key"
	CredDev     CredentialKind = "dev"
	CredPublic  CredentialKind = "public"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Email  string
	Role   string
	Kind   CredentialKind
	ConnID string
}

// RateKey returns the key the rate limiter buckets this identity under:
// the user id when known, otherwise the connection id. Dev-mode and
// public identities therefore share a bucket per connection.
func (id *Identity) RateKey() string {
	if id.UserID != "" {
		return id.UserID
	}
	return "conn:" + id.ConnID
}

// IsAdmin reports whether the identity carries the admin role.
func (id *Identity) IsAdmin() bool {
	return id.Role == "admin"
}

// Config holds the security gate's tunables.
type Config struct {
	// TokenSecret signs bearer tokens (HS256). Required outside dev mode.
	TokenSecret string
	// TokenTTL is embedded in issued tokens at issuance time.
	TokenTTL time.Duration
	// SessionTTL bounds session validity; sessions are not implicitly
	// refreshed on activity.
	SessionTTL time.Duration
	// RateLimitPerMinute caps requests per identity per sliding minute.
	RateLimitPerMinute int
	// DevModeBypassAuth, when set, lets unauthenticated requests through
	// with a pass-through identity. Never enable outside demos.
	DevModeBypassAuth bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TokenTTL:           24 * time.Hour,
		SessionTTL:         2 * time.Hour,
		RateLimitPerMinute: 100,
	}
}
