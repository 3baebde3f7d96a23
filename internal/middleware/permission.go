package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkhousehq/inkhouse/internal/permissions"
	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/errors"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

// RequirePermission checks that the authenticated user holds the permission
// tenant-wide in the resolved tenant. Runs after Auth and Tenant.
func RequirePermission(resolver *services.PermissionResolver, t permissions.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(string)

		tv, ok := c.Get(CtxTenantIDKey)
		if !ok {
			response.Error(c, errors.ErrTenantRequired)
			c.Abort()
			return
		}
		tenantID, _ := tv.(string)

		allowed, err := resolver.Has(c.Request.Context(), userID, tenantID, t)
		if err != nil {
			// Internal error while checking permissions
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": errors.ErrInternalServer.Code, "message": "permission check failed"}})
			return
		}
		if !allowed {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
