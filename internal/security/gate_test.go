package security

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fingate/internal/protocol"
)

func newTestGate(t *testing.T, cfg Config) *Gate {
	t.Helper()
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = "test-secret"
	}
	g := NewGate(cfg, Stores{}, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	t.Cleanup(g.Close)
	return g
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestAuthenticatePublicMethodNeedsNoCredentials(t *testing.T) {
	g := newTestGate(t, Config{})

	for _, method := range []string{"system.ping", "system.info", "auth.login"} {
		id, perr := g.Authenticate(&protocol.Request{Method: method}, "conn1")
		require.Nil(t, perr, "method %s", method)
		assert.Equal(t, CredPublic, id.Kind)
		assert.Equal(t, "conn1", id.ConnID)
	}
}

func TestAuthenticateBearer(t *testing.T) {
	g := newTestGate(t, Config{})

	token, err := g.tokens.Issue("USR001", "demo@fingate.dev", "user")
	require.NoError(t, err)

	req := &protocol.Request{Method: "resources.accounts.list", Authorization: "Bearer " + token}
	id, perr := g.Authenticate(req, "conn1")
	require.Nil(t, perr)
	assert.Equal(t, CredBearer, id.Kind)
	assert.Equal(t, "USR001", id.UserID)
	assert.Equal(t, "user", id.Role)
}

func TestAuthenticateBadBearerRejected(t *testing.T) {
	g := newTestGate(t, Config{})

	req := &protocol.Request{Method: "resources.accounts.list", Authorization: "Bearer garbage"}
	_, perr := g.Authenticate(req, "conn1")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeAuthenticationRequired, perr.Code)
}

func TestAuthenticateBearerTakesPriorityOverSession(t *testing.T) {
	g := newTestGate(t, Config{})

	// A bad bearer must fail even if a valid session id is also present.
	res, perr := g.Login("demo@fingate.dev", "Demo@123")
	require.Nil(t, perr)

	req := &protocol.Request{
		Method:        "resources.accounts.list",
		Authorization: "Bearer garbage",
		SessionID:     res.SessionID,
	}
	_, perr = g.Authenticate(req, "conn1")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeAuthenticationRequired, perr.Code)
}

func TestAuthenticateSession(t *testing.T) {
	g := newTestGate(t, Config{})

	res, perr := g.Login("demo@fingate.dev", "Demo@123")
	require.Nil(t, perr)

	req := &protocol.Request{Method: "resources.accounts.list", SessionID: res.SessionID}
	id, perr := g.Authenticate(req, "conn1")
	require.Nil(t, perr)
	assert.Equal(t, CredSession, id.Kind)
	assert.Equal(t, "USR001", id.UserID)
}

func TestAuthenticateSessionExpired(t *testing.T) {
	g := newTestGate(t, Config{})

	res, perr := g.Login("demo@fingate.dev", "Demo@123")
	require.Nil(t, perr)

	g.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	req := &protocol.Request{Method: "resources.accounts.list", SessionID: res.SessionID}
	_, perr = g.Authenticate(req, "conn1")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeSessionExpired, perr.Code)

	// Expired session is revoked; a second attempt is plain auth-required.
	_, perr = g.Authenticate(req, "conn1")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeAuthenticationRequired, perr.Code)
}

func TestAuthenticateAPIKey(t *testing.T) {
	g := newTestGate(t, Config{})

	raw, _, err := g.apiKeys.Generate("USR001", "user", "ci")
	require.NoError(t, err)

	req := &protocol.Request{Method: "tools.call", APIKey: raw}
	id, perr := g.Authenticate(req, "conn1")
	require.Nil(t, perr)
	assert.Equal(t, CredAPIKey, id.Kind)
	assert.Equal(t, "USR001", id.UserID)

	req.APIKey = "fk_0000000000000000000000000000000000000000000000000000000000000000"
	_, perr = g.Authenticate(req, "conn1")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeAuthenticationRequired, perr.Code)
}

func TestAuthenticateDevBypass(t *testing.T) {
	g := newTestGate(t, Config{DevModeBypassAuth: true})

	id, perr := g.Authenticate(&protocol.Request{Method: "tools.call"}, "conn1")
	require.Nil(t, perr)
	assert.Equal(t, CredDev, id.Kind)
	assert.Empty(t, id.UserID)
	assert.Equal(t, "conn:conn1", id.RateKey())
}

func TestAuthenticateNoCredentials(t *testing.T) {
	g := newTestGate(t, Config{})

	_, perr := g.Authenticate(&protocol.Request{Method: "tools.call"}, "conn1")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeAuthenticationRequired, perr.Code)
}

func TestLogin(t *testing.T) {
	g := newTestGate(t, Config{})

	res, perr := g.Login("demo@fingate.dev", "Demo@123")
	require.Nil(t, perr)
	assert.Equal(t, "USR001", res.UserID)
	assert.Equal(t, "user", res.Role)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.SessionID)

	claims, err := g.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "USR001", claims.UserID)

	_, perr = g.Login("demo@fingate.dev", "wrong")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeAuthenticationRequired, perr.Code)

	_, perr = g.Login("nobody@fingate.dev", "Demo@123")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeAuthenticationRequired, perr.Code)
}

func TestAuthorizeFailOpen(t *testing.T) {
	g := newTestGate(t, Config{})
	ctx := context.Background()
	id := &Identity{UserID: "USR001", Role: "user", Kind: CredBearer}

	// No record at all: allowed.
	assert.Nil(t, g.Authorize(ctx, id, "resources.accounts.list", nil))

	// Explicit revoke denies.
	admin := &Identity{UserID: "ADMIN001", Role: "admin", Kind: CredBearer}
	require.Nil(t, g.Grant(ctx, admin, "USR001", "transactions"))
	require.Nil(t, g.Revoke(ctx, admin, "USR001", "accounts"))

	perr := g.Authorize(ctx, id, "resources.accounts.list", nil)
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodePermissionDenied, perr.Code)

	assert.Nil(t, g.Authorize(ctx, id, "resources.transactions.list", nil))

	// Re-grant restores access.
	require.Nil(t, g.Grant(ctx, admin, "USR001", "accounts"))
	assert.Nil(t, g.Authorize(ctx, id, "resources.accounts.list", nil))
}

func TestAuthorizeSkipsNonResourceMethods(t *testing.T) {
	g := newTestGate(t, Config{})
	ctx := context.Background()

	admin := &Identity{UserID: "ADMIN001", Role: "admin", Kind: CredBearer}
	require.Nil(t, g.Revoke(ctx, admin, "USR001", "accounts"))

	id := &Identity{UserID: "USR001", Role: "user", Kind: CredBearer}
	assert.Nil(t, g.Authorize(ctx, id, "tools.call", nil))
	assert.Nil(t, g.Authorize(ctx, id, "system.ping", nil))
}

func TestAuthorizeDevIdentityUsesParamsUserID(t *testing.T) {
	g := newTestGate(t, Config{DevModeBypassAuth: true})
	ctx := context.Background()

	admin := &Identity{UserID: "ADMIN001", Role: "admin", Kind: CredBearer}
	require.Nil(t, g.Revoke(ctx, admin, "USR001", "goals"))

	dev := &Identity{Kind: CredDev, ConnID: "conn1"}
	params := json.RawMessage(`{"user_id":"USR001"}`)
	perr := g.Authorize(ctx, dev, "resources.goals.list", params)
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodePermissionDenied, perr.Code)

	// No user id anywhere: nothing to check against.
	assert.Nil(t, g.Authorize(ctx, dev, "resources.goals.list", nil))
}

func TestGrantRequiresAdmin(t *testing.T) {
	g := newTestGate(t, Config{})
	ctx := context.Background()

	user := &Identity{UserID: "USR001", Role: "user", Kind: CredBearer}
	perr := g.Grant(ctx, user, "USR002", "accounts")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodePermissionDenied, perr.Code)

	perr = g.Revoke(ctx, user, "USR002", "accounts")
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodePermissionDenied, perr.Code)
}

func TestPermissionsListing(t *testing.T) {
	g := newTestGate(t, Config{})
	ctx := context.Background()

	admin := &Identity{UserID: "ADMIN001", Role: "admin", Kind: CredBearer}
	require.Nil(t, g.Grant(ctx, admin, "USR001", "accounts"))
	require.Nil(t, g.Revoke(ctx, admin, "USR001", "transactions"))

	caps, err := g.Permissions(ctx, "USR001")
	require.NoError(t, err)
	require.Len(t, caps, 2)

	byResource := map[string]AccessLevel{}
	for _, c := range caps {
		byResource[c.Resource] = c.Access
	}
	assert.Equal(t, AccessGranted, byResource["accounts"])
	assert.Equal(t, AccessRevoked, byResource["transactions"])
}

func TestRateLimitReturnsProtocolError(t *testing.T) {
	g := newTestGate(t, Config{RateLimitPerMinute: 2})
	id := &Identity{UserID: "USR001", Kind: CredBearer}

	assert.Nil(t, g.RateLimit(id))
	assert.Nil(t, g.RateLimit(id))

	perr := g.RateLimit(id)
	require.NotNil(t, perr)
	assert.Equal(t, protocol.CodeRateLimitExceeded, perr.Code)

	// Separate identities are limited independently.
	other := &Identity{UserID: "USR002", Kind: CredBearer}
	assert.Nil(t, g.RateLimit(other))
}

func TestSessionTouchDoesNotExtendExpiry(t *testing.T) {
	g := newTestGate(t, Config{})

	res, perr := g.Login("demo@fingate.dev", "Demo@123")
	require.Nil(t, perr)

	before, ok := g.sessions.Get(res.SessionID)
	require.True(t, ok)

	g.TouchSession(res.SessionID)

	after, ok := g.sessions.Get(res.SessionID)
	require.True(t, ok)
	assert.Equal(t, before.ExpiresAt, after.ExpiresAt)
}
