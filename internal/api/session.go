package api

import (
	"net/http"
	"strconv"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/repository"
	"ai-assistant-hub/backend/internal/service"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the session lifecycle and history surface
type SessionHandler struct {
	conversations *service.ConversationService
	logger        *logger.Logger
}

func NewSessionHandler(conversations *service.ConversationService, log *logger.Logger) *SessionHandler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &SessionHandler{conversations: conversations, logger: log}
}

func (h *SessionHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid session payload").WithDetails(err.Error()))
		return
	}

	session, err := h.conversations.CreateSession(user, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	var filter repository.SessionFilter
	if raw := c.Query("assistant_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid assistant_id filter"))
			return
		}
		assistantID := uint(id)
		filter.AssistantID = &assistantID
	}
	if raw := c.Query("test_mode"); raw != "" {
		testMode, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid test_mode filter"))
			return
		}
		filter.TestMode = &testMode
	}

	sessions, err := h.conversations.ListSessions(user, filter)
	if err != nil {
		c.Error(errors.NewInternalServerError(errors.CodeStorageFailure, "failed to list sessions").WithDetails(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *SessionHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	session, err := h.conversations.GetSession(user, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	if err := h.conversations.DeleteSession(c.Request.Context(), user, id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type renameSessionRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *SessionHandler) Rename(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req renameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid rename payload").WithDetails(err.Error()))
		return
	}

	if err := h.conversations.RenameSession(user, id, req.Title); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Messages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	messages, err := h.conversations.History(c.Request.Context(), user, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *SessionHandler) ClearMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	if err := h.conversations.ClearMessages(c.Request.Context(), user, id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Export renders the session transcript in the requested format
func (h *SessionHandler) Export(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	export, err := h.conversations.ExportSession(c.Request.Context(), user, id, c.Query("format"))
	if err != nil {
		c.Error(err)
		return
	}
	c.Data(http.StatusOK, export.ContentType, export.Body)
}

// RegisterRoutes mounts the session surface behind auth
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	sessions := rg.Group("/sessions", auth)
	sessions.POST("", h.Create)
	sessions.GET("", h.List)
	sessions.GET("/:id", h.Get)
	sessions.DELETE("/:id", h.Delete)
	sessions.PUT("/:id/title", h.Rename)
	sessions.GET("/:id/messages", h.Messages)
	sessions.DELETE("/:id/messages", h.ClearMessages)
	sessions.GET("/:id/export", h.Export)
}
