package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/castgrid/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireCompanyScope returns a middleware that ensures the authenticated
// admin belongs to the company named in the :companyId path parameter.
func RequireCompanyScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyVal, ok := c.Get(ContextCompanyID)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		companyID, _ := companyVal.(string)
		if companyID == "" || companyID != c.Param("companyId") {
			response.Forbidden(c, "wrong company scope")
			c.Abort()
			return
		}
		c.Next()
	}
}
