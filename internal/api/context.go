package api

import (
	"strconv"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// currentUser rebuilds the acting user from the validated claims. No
// database round trip; the token is the source of truth for identity
// and role.
func currentUser(c *gin.Context) (*models.User, bool) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return nil, false
	}
	return &models.User{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  string(claims.Role),
	}, true
}

// pathID parses a numeric path parameter
func pathID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.NewBadRequestError(errors.CodeInvalidInput, "invalid "+name)
	}
	return uint(id), nil
}
