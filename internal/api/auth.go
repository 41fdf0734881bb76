package api

import (
	"net/http"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/service"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/jwt"
	"ai-assistant-hub/backend/pkg/logger"
	"ai-assistant-hub/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	service    *service.UserService
	jwtService *jwt.Service
	logger     *logger.Logger
}

func NewAuthHandler(userService *service.UserService, jwtService *jwt.Service, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &AuthHandler{
		service:    userService,
		jwtService: jwtService,
		logger:     log,
	}
}

// Signup handles user registration
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid signup payload").WithDetails(err.Error()))
		return
	}

	user, err := h.service.CreateUser(req)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		c.Error(errors.NewInternalServerError(errors.CodeStorageFailure, "failed to issue token").WithDetails(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid login payload").WithDetails(err.Error()))
		return
	}

	token, user, err := h.service.Login(req)
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)
	c.JSON(http.StatusOK, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Me returns the current authenticated user's profile
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	user, err := h.service.GetByID(claims.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.ToResponse()})
}

// RegisterRoutes registers the auth surface
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.POST("/auth/signup", h.Signup)
	rg.POST("/auth/login", h.Login)
	rg.GET("/auth/me", auth, h.Me)
}
