package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/service"
	"ai-assistant-hub/backend/internal/stream"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/jwt"
	"ai-assistant-hub/backend/pkg/logger"
	"ai-assistant-hub/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// inbound is what the client sends over the socket
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// outbound mirrors the SSE frame shape so both transports speak the
// same protocol.
type outbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Code    string `json:"code,omitempty"`
	Message any    `json:"message,omitempty"`
}

// Handler streams conversation turns over a websocket. One socket is
// bound to one session; each inbound turn message runs a full turn and
// streams the partial content back.
type Handler struct {
	conversations *service.ConversationService
	logger        *logger.Logger
}

func NewHandler(conversations *service.ConversationService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Handler{conversations: conversations, logger: log}
}

// Serve upgrades the connection and runs the turn loop until the client
// goes away.
func (h *Handler) Serve(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}
	sessionID, err := pathSessionID(c)
	if err != nil {
		c.Error(err)
		return
	}

	user := userFromClaims(claims)

	// Reject unknown or foreign sessions before upgrading.
	if _, err := h.conversations.GetSession(user, sessionID); err != nil {
		c.Error(err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "session_id", sessionID, "error", err.Error())
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "turn" {
			write(outbound{Type: "error", Code: errors.CodeInvalidInput, Message: "expected a turn message"})
			continue
		}

		h.runTurn(c, user, sessionID, msg.Content, write)
	}
}

func (h *Handler) runTurn(c *gin.Context, user *models.User, sessionID uint, content string, write func(any) error) {
	sink := stream.SinkFunc(func(e stream.Event) error {
		return write(outbound{Type: e.Type, Content: e.Content})
	})

	// A dropped connection surfaces as a write error on the sink; the
	// upstream call runs detached so the turn still persists.
	message, err := h.conversations.ConverseStream(context.WithoutCancel(c.Request.Context()), user, sessionID, content, sink)
	if err != nil {
		appErr := errors.FromError(err)
		write(outbound{Type: "error", Code: appErr.Code, Message: appErr.Message})
		return
	}

	write(outbound{Type: "message", Message: message})
}

// RegisterRoutes mounts the websocket endpoint behind auth
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.GET("/ws/sessions/:id", auth, h.Serve)
}

func userFromClaims(claims *jwt.JWTClaims) *models.User {
	return &models.User{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  string(claims.Role),
	}
}

func pathSessionID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.NewBadRequestError(errors.CodeInvalidInput, "invalid session id")
	}
	return uint(id), nil
}
