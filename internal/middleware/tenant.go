package middleware

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/inkhousehq/inkhouse/internal/auth"
	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/errors"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

const (
	// TenantHeader carries an explicit per-request tenant override.
	TenantHeader = "X-Tenant-ID"

	CtxTenantIDKey = "tenantID"
)

// Tenant resolves the active tenant for the request. The explicit header
// outranks the token claim; a signal naming an inactive or deleted tenant
// counts as absent. Runs after Auth so the token claim is available.
func Tenant(resolver *services.TenantContextService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var claim string
		if v, ok := c.Get(CtxClaimsKey); ok {
			if claims, ok := v.(*iauth.Claims); ok {
				claim = claims.TenantID
			}
		}

		tenantID, err := resolver.Resolve(c.Request.Context(), c.GetHeader(TenantHeader), claim)
		if err != nil {
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
			return
		}

		if tenantID != "" {
			c.Set(CtxTenantIDKey, tenantID)
		}
		c.Next()
	}
}

// RequireTenant rejects requests that resolved no active tenant. Mounted on
// routes whose semantics are meaningless without a tenant scope.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(CtxTenantIDKey); !ok {
			response.Error(c, errors.ErrTenantRequired)
			c.Abort()
			return
		}
		c.Next()
	}
}
