package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soficodes/bloghub/internal/authz"
)

// RequireRole is the server-side role gate; the client-side guard makes
// the same decision through authz before rendering.
func (m *AuthMiddleware) RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := IdentityFromContext(c)

		if ident == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		allowed := string(ident.Role) == required
		if required == "admin" {
			allowed = authz.IsAdmin(ident)
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Admin role required",
				},
			})
			return
		}
		c.Next()
	}
}
