package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/castgrid/backend/internal/auth"
	"github.com/castgrid/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserPlan is the key for the user's entitlement tier in gin context.
	ContextUserPlan = "user_plan"
	// ContextCompanyID is the key for the user's company scope in gin context.
	ContextCompanyID = "company_id"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserPlan, claims.Plan)
		c.Set(ContextCompanyID, claims.CompanyID)
		c.Next()
	}
}
