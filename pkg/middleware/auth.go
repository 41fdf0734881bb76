package middleware

import (
	"strings"

	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/jwt"
	"ai-assistant-hub/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuthMiddleware
const (
	ContextClaims   = "claims"
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// JWTAuthMiddleware checks that the request has a valid JWT and adds
// the claims to the context.
func JWTAuthMiddleware(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetGlobal()
	}
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("invalid token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, string(claims.Role))

		c.Next()
	}
}

// RequireRole returns a middleware that requires the user to have a
// specific role. Operators satisfy every role check.
func RequireRole(role jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get(ContextClaims)
		if !exists {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}

		jwtClaims, ok := claims.(*jwt.JWTClaims)
		if !ok {
			c.Error(errors.NewInternalServerError("INVALID_CLAIMS", "Invalid JWT claims format"))
			c.Abort()
			return
		}

		if !jwtClaims.HasRole(role) {
			c.Error(errors.NewForbiddenError(errors.CodeAccessDenied, "Your role does not allow this operation"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// ClaimsFromContext returns the authenticated claims, if any
func ClaimsFromContext(c *gin.Context) (*jwt.JWTClaims, bool) {
	value, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*jwt.JWTClaims)
	return claims, ok
}
