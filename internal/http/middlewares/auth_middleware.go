package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soficodes/bloghub/internal/auth"
	"github.com/soficodes/bloghub/internal/domain/identity"
)

// Keep these interfaces small so tests can fake them easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// RevocationChecker answers whether a token id was logged out early.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthMiddleware struct {
	jwt     TokenVerifier
	revoked RevocationChecker
}

// NewAuthMiddleware builds the bearer-token gate. revoked is nil without
// redis, in which case the denylist lookup is skipped entirely.
func NewAuthMiddleware(jwt TokenVerifier, revoked RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, revoked: revoked}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid Authorization header",
				},
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid access token",
				},
			})
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Invalid or expired access token",
				},
			})
			return
		}

		if m.revoked != nil {
			// degrade open when the denylist is unreachable; the token
			// signature already verified and it expires on its own
			if hit, err := m.revoked.IsRevoked(c.Request.Context(), claims.JTI); err == nil && hit {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": gin.H{
						"code":    "unauthorized",
						"message": "Session has been logged out",
					},
				})
				return
			}
		}

		var exp time.Time

		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}

		StashClaims(c, claims.UserID, claims.Email, claims.Role, claims.JTI, exp)

		c.Next()
	}
}

// StashClaims puts the verified identity bits on the context. Handlers
// read them back through the *FromContext helpers; tests use it to stand
// in for a verified token.
func StashClaims(c *gin.Context, userID, email, role, jti string, exp time.Time) {
	c.Set(ctxUserIDKey, userID)
	c.Set(ctxEmailKey, email)
	c.Set(ctxRoleKey, role)
	c.Set(ctxJTIKey, jti)

	if !exp.IsZero() {
		c.Set(ctxExpKey, exp)
	}
}

// Optional helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

func JTIFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxJTIKey)
	if !ok {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}

func TokenExpiryFromContext(c *gin.Context) (time.Time, bool) {
	v, ok := c.Get(ctxExpKey)
	if !ok {
		return time.Time{}, false
	}
	exp, ok := v.(time.Time)
	return exp, ok
}

// IdentityFromContext rebuilds the claims-backed identity the authz
// functions take. Returns nil when no verified identity is present, which
// every authz check treats as a deny.
func IdentityFromContext(c *gin.Context) *identity.Identity {
	id, ok := UserIDFromContext(c)

	if !ok || id == "" {
		return nil
	}

	role, _ := RoleFromContext(c)
	email, _ := c.Get(ctxEmailKey)
	emailStr, _ := email.(string)

	return &identity.Identity{
		ID:    id,
		Email: emailStr,
		Role:  identity.ParseRole(role),
	}
}
