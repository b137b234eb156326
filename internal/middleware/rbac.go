package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docflow-api/internal/models"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
	"github.com/noah-isme/docflow-api/pkg/response"
)

// RequireRoles limits a route to the listed roles. Program officers without a
// department are rejected because every officer permission is scoped by it.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		if claims.Role == models.RoleProgramOfficer && claims.Department == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "program officer has no department"))
			c.Abort()
			return
		}

		c.Next()
	}
}
