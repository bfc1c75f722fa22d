package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/models"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
	"github.com/noah-isme/hims-api/pkg/response"
)

// RequireRoles allows the request through only for the listed roles. It must
// run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}
