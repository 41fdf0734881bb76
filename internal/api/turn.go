package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/service"
	"ai-assistant-hub/backend/internal/stream"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TurnHandler runs conversation turns, either as one JSON response or
// as a server-sent event stream, negotiated by the Accept header.
type TurnHandler struct {
	conversations *service.ConversationService
	logger        *logger.Logger
}

func NewTurnHandler(conversations *service.ConversationService, log *logger.Logger) *TurnHandler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &TurnHandler{conversations: conversations, logger: log}
}

// Send runs one turn against the session
func (h *TurnHandler) Send(c *gin.Context) {
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

	var req models.SendTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "invalid turn payload").WithDetails(err.Error()))
		return
	}

	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		h.sendStreaming(c, user, id, req.Content)
		return
	}

	message, err := h.conversations.Converse(c.Request.Context(), user, id, req.Content)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// sendStreaming forwards partial content as SSE data frames. Once the
// stream is open, failures are reported as an error frame rather than
// an HTTP status.
func (h *TurnHandler) sendStreaming(c *gin.Context, user *models.User, sessionID uint, content string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	// The request context dies with the client connection. The sink
	// stays bound to it so forwarding stops on disconnect, but the
	// upstream call runs on a detached context so the turn still
	// completes and persists server-side.
	clientCtx := c.Request.Context()
	turnCtx := context.WithoutCancel(clientCtx)
	sink := stream.SinkFunc(func(e stream.Event) error {
		if err := clientCtx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})

	message, err := h.conversations.ConverseStream(turnCtx, user, sessionID, content, sink)
	if err != nil {
		h.writeErrorFrame(c, err)
		return
	}

	// Final frame carries the persisted message so clients get the
	// citations and message id without a second request.
	payload, marshalErr := json.Marshal(gin.H{"type": "message", "message": message})
	if marshalErr == nil {
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		c.Writer.Flush()
	}
}

func (h *TurnHandler) writeErrorFrame(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	payload, marshalErr := json.Marshal(gin.H{
		"type":    "error",
		"code":    appErr.Code,
		"message": appErr.Message,
	})
	if marshalErr != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	c.Writer.Flush()
}

// RegisterRoutes mounts the turn endpoint behind auth
func (h *TurnHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.POST("/sessions/:id/turns", auth, h.Send)
}
