package security

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mbd888/fingate/internal/metrics"
	"github.com/mbd888/fingate/internal/protocol"
)

// publicMethods bypass authentication entirely.
var publicMethods = map[string]bool{
	"system.ping": true,
	"system.info": true,
	"auth.login":  true,
}

// IsPublicMethod reports whether a method requires no authentication.
func IsPublicMethod(method string) bool {
	return publicMethods[method]
}

// Gate is the security gate: authentication, authorization, and rate
// limiting for every inbound envelope.
type Gate struct {
	cfg      Config
	tokens   *TokenIssuer
	sessions SessionStore
	apiKeys  *APIKeyManager
	caps     CapabilityStore
	users    CredentialStore
	limiter  *Limiter
	logger   *slog.Logger
	now      func() time.Time
}

// Stores bundles the gate's persistence collaborators. Nil fields get
// in-memory defaults.
type Stores struct {
	Sessions     SessionStore
	APIKeys      APIKeyStore
	Capabilities CapabilityStore
	Credentials  CredentialStore
}

// NewGate creates a security gate.
func NewGate(cfg Config, stores Stores, logger *slog.Logger) *Gate {
	if stores.Sessions == nil {
		stores.Sessions = NewMemorySessionStore()
	}
	if stores.APIKeys == nil {
		stores.APIKeys = NewMemoryAPIKeyStore()
	}
	if stores.Capabilities == nil {
		stores.Capabilities = NewMemoryCapabilityStore()
	}
	if stores.Credentials == nil {
		creds := NewMemoryCredentialStore()
		creds.SeedDemoUsers()
		stores.Credentials = creds
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultConfig().TokenTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = DefaultConfig().RateLimitPerMinute
	}

	return &Gate{
		cfg:      cfg,
		tokens:   NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL),
		sessions: stores.Sessions,
		apiKeys:  NewAPIKeyManager(stores.APIKeys),
		caps:     stores.Capabilities,
		users:    stores.Credentials,
		limiter: NewLimiter(LimiterConfig{
			PerMinute: cfg.RateLimitPerMinute,
		}),
		logger: logger,
		now:    time.Now,
	}
}

// Close stops background goroutines.
func (g *Gate) Close() {
	g.limiter.Stop()
}

// Limiter exposes the rate limiter for connection-teardown cleanup.
func (g *Gate) Limiter() *Limiter {
	return g.limiter
}

// Authenticate establishes the caller's identity from the envelope's
// credential fields, in priority order: bearer token, session id, API
// key, then dev-mode pass-through. Public methods skip all checks.
func (g *Gate) Authenticate(req *protocol.Request, connID string) (*Identity, *protocol.Error) {
	if IsPublicMethod(req.Method) {
		return &Identity{Kind: CredPublic, ConnID: connID}, nil
	}

	if bearer, ok := strings.CutPrefix(req.Authorization, "Bearer "); ok {
		claims, err := g.tokens.Verify(bearer)
		if err != nil {
			metrics.AuthFailuresTotal.WithLabelValues(string(CredBearer)).Inc()
			g.logger.Warn("bearer token rejected", "conn_id", connID, "error", err)
			return nil, protocol.Errorf(protocol.CodeAuthenticationRequired, "Invalid or expired token")
		}
		return &Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
			Kind:   CredBearer,
			ConnID: connID,
		}, nil
	}

	if req.SessionID != "" {
		sess, ok := g.sessions.Get(req.SessionID)
		if !ok {
			metrics.AuthFailuresTotal.WithLabelValues(string(CredSession)).Inc()
			return nil, protocol.Errorf(protocol.CodeAuthenticationRequired, "Unknown session")
		}
		if sess.Expired(g.now()) {
			g.sessions.Revoke(sess.ID)
			metrics.AuthFailuresTotal.WithLabelValues(string(CredSession)).Inc()
			return nil, protocol.NewError(protocol.CodeSessionExpired)
		}
		return &Identity{
			UserID: sess.UserID,
			Role:   sess.Role,
			Kind:   CredSession,
			ConnID: connID,
		}, nil
	}

	if req.APIKey != "" {
		key, err := g.apiKeys.Validate(req.APIKey)
		if err != nil {
			metrics.AuthFailuresTotal.WithLabelValues(string(CredAPIKey)).Inc()
			return nil, protocol.Errorf(protocol.CodeAuthenticationRequired, "Invalid API key")
		}
		return &Identity{
			UserID: key.UserID,
			Role:   key.Role,
			Kind:   CredAPIKey,
			ConnID: connID,
		}, nil
	}

	if g.cfg.DevModeBypassAuth {
		return &Identity{Kind: CredDev, ConnID: connID}, nil
	}

	metrics.AuthFailuresTotal.WithLabelValues("none").Inc()
	g.logger.Warn("authentication failed", "conn_id", connID, "method", req.Method)
	return nil, protocol.NewError(protocol.CodeAuthenticationRequired)
}

// Authorize checks the capability table for resources.* methods.
// An explicit REVOKED record denies; anything else, including absence,
// currently allows (fail-open default, see Capability).
func (g *Gate) Authorize(ctx context.Context, id *Identity, method string, params json.RawMessage) *protocol.Error {
	if !strings.HasPrefix(method, "resources.") {
		return nil
	}
	parts := strings.Split(method, ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil
	}
	resource := parts[1]

	userID := id.UserID
	if userID == "" {
		// Dev-mode identity: the target user rides in params.
		userID = userIDFromParams(params)
	}
	if userID == "" {
		return nil
	}

	cap, err := g.caps.Get(ctx, userID, resource)
	if err != nil {
		if errors.Is(err, ErrCapabilityNotFound) {
			return accessError(DefaultAccess, resource)
		}
		g.logger.Error("capability lookup failed", "user_id", userID, "resource", resource, "error", err)
		return protocol.NewError(protocol.CodeInternal)
	}
	return accessError(cap.Access, resource)
}

func accessError(level AccessLevel, resource string) *protocol.Error {
	if level == AccessRevoked {
		return protocol.Errorf(protocol.CodePermissionDenied, "Access to %s has been revoked", resource)
	}
	return nil
}

// RateLimit enforces the per-identity sliding window.
func (g *Gate) RateLimit(id *Identity) *protocol.Error {
	if g.limiter.Allow(id.RateKey()) {
		return nil
	}
	metrics.RateLimitedTotal.Inc()
	g.logger.Warn("rate limit exceeded", "key", id.RateKey())
	return protocol.NewError(protocol.CodeRateLimitExceeded)
}

// LoginResult is returned by a successful auth.login.
type LoginResult struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login verifies credentials, issues a bearer token with a fixed TTL,
// and creates a fresh session.
func (g *Gate) Login(email, password string) (*LoginResult, *protocol.Error) {
	user, ok := g.users.ByEmail(email)
	if !ok || !CheckPassword(password, user.PasswordHash) {
		metrics.AuthFailuresTotal.WithLabelValues("login").Inc()
		g.logger.Warn("login failed", "email", email)
		return nil, protocol.Errorf(protocol.CodeAuthenticationRequired, "Invalid credentials")
	}

	token, err := g.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		g.logger.Error("token issuance failed", "error", err)
		return nil, protocol.NewError(protocol.CodeInternal)
	}

	sess := newSession(user.ID, user.Role, g.cfg.SessionTTL, g.now())
	if err := g.sessions.Create(sess); err != nil {
		g.logger.Error("session creation failed", "error", err)
		return nil, protocol.NewError(protocol.CodeInternal)
	}

	g.logger.Info("login succeeded", "user_id", user.ID, "role", user.Role)
	return &LoginResult{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Token:     token,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// TouchSession records session activity. Expiry is NOT extended;
// refresh must stay an explicit, separate operation.
func (g *Gate) TouchSession(sessionID string) {
	g.sessions.Touch(sessionID, g.now())
}

// Permissions lists the capability records for a user.
func (g *Gate) Permissions(ctx context.Context, userID string) ([]*Capability, error) {
	return g.caps.ListByUser(ctx, userID)
}

// Grant sets a GRANTED capability record. Admin only.
func (g *Gate) Grant(ctx context.Context, actor *Identity, userID, resource string) *protocol.Error {
	return g.setCapability(ctx, actor, userID, resource, AccessGranted)
}

// Revoke sets a REVOKED capability record. Admin only.
func (g *Gate) Revoke(ctx context.Context, actor *Identity, userID, resource string) *protocol.Error {
	return g.setCapability(ctx, actor, userID, resource, AccessRevoked)
}

func (g *Gate) setCapability(ctx context.Context, actor *Identity, userID, resource string, level AccessLevel) *protocol.Error {
	if !actor.IsAdmin() {
		return protocol.Errorf(protocol.CodePermissionDenied, "Capability changes require the admin role")
	}
	err := g.caps.Set(ctx, &Capability{UserID: userID, Resource: resource, Access: level})
	if err != nil {
		g.logger.Error("capability update failed", "user_id", userID, "resource", resource, "error", err)
		return protocol.NewError(protocol.CodeInternal)
	}
	g.logger.Info("capability updated", "user_id", userID, "resource", resource, "access", level)
	return nil
}

func userIDFromParams(params json.RawMessage) string {
	if len(params) == 0 {
		return ""
	}
	var p struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ""
	}
	return p.UserID
}
