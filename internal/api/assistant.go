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

// AssistantHandler exposes assistant management and grants. All routes
// here are operator-only.
type AssistantHandler struct {
	service *service.AssistantService
	logger  *logger.Logger
}

func NewAssistantHandler(assistantService *service.AssistantService, log *logger.Logger) *AssistantHandler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &AssistantHandler{service: assistantService, logger: log}
}

func (h *AssistantHandler) Create(c *gin.Context) {
	var req models.CreateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid assistant payload").WithDetails(err.Error()))
		return
	}

	assistant, err := h.service.Create(req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, assistant)
}

func (h *AssistantHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	assistant, err := h.service.Get(id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, assistant)
}

func (h *AssistantHandler) List(c *gin.Context) {
	assistants, err := h.service.List()
	if err != nil {
		c.Error(errors.NewInternalServerError(errors.CodeStorageFailure, "failed to list assistants").WithDetails(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"assistants": assistants})
}

func (h *AssistantHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req models.UpdateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid assistant payload").WithDetails(err.Error()))
		return
	}

	assistant, err := h.service.Update(id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, assistant)
}

func (h *AssistantHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AssistantHandler) Grant(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req models.CreateGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid grant payload").WithDetails(err.Error()))
		return
	}

	if err := h.service.Grant(id, req.UserID); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AssistantHandler) Revoke(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	userID, err := pathID(c, "userId")
	if err != nil {
		c.Error(err)
		return
	}
	if err := h.service.Revoke(id, userID); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AssistantHandler) Grants(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	grants, err := h.service.Grants(id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grants": grants})
}

// RegisterRoutes mounts the assistant surface behind auth. Listing and
// reading are open to any authenticated user; everything else needs the
// operator role.
func (h *AssistantHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	assistants := rg.Group("/assistants", auth)
	assistants.GET("", h.List)
	assistants.GET("/:id", h.Get)

	admin := middleware.RequireRole(jwt.RoleAdmin)
	assistants.POST("", admin, h.Create)
	assistants.PUT("/:id", admin, h.Update)
	assistants.DELETE("/:id", admin, h.Delete)
	assistants.GET("/:id/grants", admin, h.Grants)
	assistants.POST("/:id/grants", admin, h.Grant)
	assistants.DELETE("/:id/grants/:userId", admin, h.Revoke)
}
