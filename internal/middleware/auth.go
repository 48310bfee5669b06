package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/auth"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// Gin context keys set by the auth middleware.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
	ClaimsKey = "claims"
)

// RevocationChecker is the read side of the token revocation store.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthMiddleware requires a valid, unrevoked bearer token. A revocation
// store that cannot be read rejects the request.
func AuthMiddleware(tokens *auth.TokenManager, revocations RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			c.Abort()
			return
		}

		claims, err := authenticate(c.Request.Context(), tokens, revocations, raw)
		if err != nil {
			apperrors.HandleError(c, err)
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a token is present and
// lets anonymous requests through. A bad token is treated as no token.
func OptionalAuthMiddleware(tokens *auth.TokenManager, revocations RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		if claims, err := authenticate(c.Request.Context(), tokens, revocations, raw); err == nil {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

func authenticate(ctx context.Context, tokens *auth.TokenManager, revocations RevocationChecker, raw string) (*auth.Claims, error) {
	claims, err := tokens.Parse(raw)
	if err != nil {
		return nil, apperrors.ErrInvalidToken.WithError(err)
	}

	if revocations != nil && claims.ID != "" {
		revoked, err := revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			logger.CtxWithError(ctx, "Failed to check token revocation", err)
			return nil, apperrors.ErrInvalidToken.WithError(err)
		}
		if revoked {
			return nil, apperrors.ErrInvalidToken
		}
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func setIdentity(c *gin.Context, claims *auth.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(RoleKey, claims.Role)
	c.Set(ClaimsKey, claims)
	c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
}

// RequireRoles allows only the listed roles through.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			apperrors.HandleError(c, apperrors.ErrInsufficientPermissions)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" for anonymous callers.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func GetRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}

func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
