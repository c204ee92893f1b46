package maitre

import "github.com/gin-gonic/gin"

// IdentityMiddleware copies the authenticated identity from the gin context
// into the request context so handlers and background work see the same
// tenant scoping without touching gin directly.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if tenantID := c.GetString("tenant_id"); tenantID != "" {
			ctx = WithTenantID(ctx, tenantID)
		}
		if userID := c.GetString("user_id"); userID != "" {
			ctx = WithUserID(ctx, userID)
		}
		if role := c.GetString("role"); role != "" {
			ctx = WithRole(ctx, role)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
