package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
	"github.com/noah-isme/ipcr-api/pkg/response"
)

// RequireRoles only lets callers holding one of roles through.
func RequireRoles(roles ...models.OwnerRole) gin.HandlerFunc {
	allowed := make(map[models.OwnerRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
