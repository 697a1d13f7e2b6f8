package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/naufal-dev/fyp-api/internal/models"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
	"github.com/naufal-dev/fyp-api/pkg/response"
)

// SelfAccess grants a user access to routes acting on their own :id
// parameter regardless of role.
const SelfAccess = "SELF"

// RBAC enforces role-based access control for routes. Role strings are
// resolved through models.ParseRole once at registration time; unknown
// role names grant access to nobody.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == SelfAccess {
			allowSelf = true
			continue
		}
		if role, ok := models.ParseRole(a); ok {
			allowedRoles[role] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
