package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/pkg/errors"
)

// Export formats
const (
	ExportFormatJSON     = "json"
	ExportFormatMarkdown = "markdown"
	ExportFormatText     = "text"
)

// Export is a rendered session transcript
type Export struct {
	ContentType string
	Body        []byte
}

type exportEnvelope struct {
	SessionID uint              `json:"session_id"`
	Title     string            `json:"title"`
	CreatedAt string            `json:"created_at"`
	Messages  []exportedMessage `json:"messages"`
}

type exportedMessage struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Citations []models.Citation `json:"citations,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// ExportSession renders the session transcript in the requested format.
// Rendering is a pure function of the stored rows; exporting an
// unchanged session twice yields byte-identical output.
func (s *ConversationService) ExportSession(ctx context.Context, user *models.User, sessionID uint, format string) (*Export, error) {
	session, err := s.ownedSession(user, sessionID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.ListBySessionID(sessionID)
	if err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load history").WithDetails(err.Error())
	}

	switch format {
	case ExportFormatJSON, "":
		return renderJSON(session, messages)
	case ExportFormatMarkdown:
		return renderMarkdown(session, messages), nil
	case ExportFormatText:
		return renderText(session, messages), nil
	default:
		return nil, errors.NewBadRequestError(errors.CodeInvalidInput, "unknown export format "+format)
	}
}

func renderJSON(session *models.Session, messages []models.Message) (*Export, error) {
	envelope := exportEnvelope{
		SessionID: session.ID,
		Title:     session.Title,
		CreatedAt: session.CreatedAt.UTC().Format(time.RFC3339),
		Messages:  make([]exportedMessage, 0, len(messages)),
	}
	for _, m := range messages {
		envelope.Messages = append(envelope.Messages, exportedMessage{
			Role:      m.Role,
			Content:   m.Content,
			Citations: m.Citations,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope); err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to render export").WithDetails(err.Error())
	}
	return &Export{ContentType: "application/json", Body: buf.Bytes()}, nil
}

func renderMarkdown(session *models.Session, messages []models.Message) *Export {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", session.Title)
	for _, m := range messages {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", titleRole(m.Role), m.Content)
		if len(m.Citations) > 0 {
			b.WriteString("Sources:\n\n")
			for _, c := range m.Citations {
				fmt.Fprintf(&b, "- %s: %q\n", c.Filename, c.Quote)
			}
			b.WriteString("\n")
		}
	}
	return &Export{ContentType: "text/markdown; charset=utf-8", Body: []byte(b.String())}
}

func titleRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

func renderText(session *models.Session, messages []models.Message) *Export {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", session.Title)
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
		for _, c := range m.Citations {
			fmt.Fprintf(&b, "    source %s: %q\n", c.Filename, c.Quote)
		}
	}
	return &Export{ContentType: "text/plain; charset=utf-8", Body: []byte(b.String())}
}
