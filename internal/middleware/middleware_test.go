package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EnowBibi/KontriVibeBackend/internal/auth"
	"github.com/EnowBibi/KontriVibeBackend/internal/cache"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret", "", time.Hour)
	require.NoError(t, err)
	return tokens
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func identityHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userId": GetUserID(c), "role": GetRole(c)})
}

// ---- ---- auth ---- ----

func TestAuthMiddleware(t *testing.T) {
	tokens := newTokens(t)
	revocations := cache.NewMemoryRevocationStore()

	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens, revocations), identityHandler)

	valid, claims, err := tokens.Generate("user-1", "a@b.cm", auth.RoleArtist)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		w := serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/me", nil), valid))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":"user-1","role":"artist"}`, w.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/me", nil), "not-a-jwt"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		require.NoError(t, revocations.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))
		w := serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/me", nil), valid))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

type brokenRevocations struct{}

func (brokenRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestAuthMiddleware_RevocationStoreDownRejects(t *testing.T) {
	tokens := newTokens(t)
	token, _, err := tokens.Generate("user-1", "a@b.cm", auth.RoleUser)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens, brokenRevocations{}), identityHandler)

	w := serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/me", nil), token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	tokens := newTokens(t)
	token, _, err := tokens.Generate("user-2", "c@d.cm", auth.RoleUser)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/songs", OptionalAuthMiddleware(tokens, nil), identityHandler)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/songs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"","role":""}`, w.Body.String())

	w = serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/songs", nil), "bad"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"","role":""}`, w.Body.String())

	w = serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/songs", nil), token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"user-2","role":"user"}`, w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	tokens := newTokens(t)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(tokens, nil), RequireRoles(auth.RoleAdmin), identityHandler)

	userToken, _, _ := tokens.Generate("u", "u@x.cm", auth.RoleUser)
	adminToken, _, _ := tokens.Generate("a", "a@x.cm", auth.RoleAdmin)

	w := serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/admin", nil), userToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/admin", nil), adminToken))
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- ---- premium ---- ----

type stubEntitlements struct {
	ent   *subscription.Entitlement
	err   error
	calls int
}

func (s *stubEntitlements) GetEntitlement(context.Context, string) (*subscription.Entitlement, error) {
	s.calls++
	return s.ent, s.err
}

func premiumRouter(t *testing.T, src EntitlementSource) (*gin.Engine, string) {
	tokens := newTokens(t)
	token, _, err := tokens.Generate("user-1", "a@b.cm", auth.RoleUser)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/download", AuthMiddleware(tokens, nil), RequirePremium(src), func(c *gin.Context) {
		ent, ok := GetEntitlement(c)
		c.JSON(http.StatusOK, gin.H{"attached": ok && ent.IsPremiumActive})
	})
	return r, token
}

func TestRequirePremium(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		r, token := premiumRouter(t, &stubEntitlements{ent: &subscription.Entitlement{IsPremiumActive: true, DaysRemaining: 4}})
		w := serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/download", nil), token))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"attached":true}`, w.Body.String())
	})

	t.Run("inactive", func(t *testing.T) {
		r, token := premiumRouter(t, &stubEntitlements{ent: &subscription.Entitlement{}})
		w := serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/download", nil), token))
		require.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Premium subscription required", body["error"])
		assert.Equal(t, "/subscribe", body["upgradePath"])
	})

	t.Run("lookup fails", func(t *testing.T) {
		r, token := premiumRouter(t, &stubEntitlements{err: errors.New("db down")})
		w := serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/download", nil), token))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAttachEntitlement_NeverBlocks(t *testing.T) {
	tokens := newTokens(t)
	token, _, _ := tokens.Generate("user-1", "a@b.cm", auth.RoleUser)
	src := &stubEntitlements{err: errors.New("db down")}

	r := gin.New()
	r.GET("/songs", OptionalAuthMiddleware(tokens, nil), AttachEntitlement(src), func(c *gin.Context) {
		_, ok := GetEntitlement(c)
		c.JSON(http.StatusOK, gin.H{"attached": ok})
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/songs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, src.calls)

	w = serve(r, withBearer(httptest.NewRequest(http.MethodGet, "/songs", nil), token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"attached":false}`, w.Body.String())
	assert.Equal(t, 1, src.calls)
}

// ---- ---- server ---- ----

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = serve(r, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))

	now = now.Add(idleLimiterTTL + time.Minute)
	limiter.Allow("10.0.0.3")
	assert.Len(t, limiter.clients, 1)
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 1)
	r := gin.New()
	r.POST("/login", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), RequestIDHeader)
}
