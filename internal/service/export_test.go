package service

import (
	"context"
	"encoding/json"
	"testing"

	"ai-assistant-hub/backend/ai"
	"ai-assistant-hub/backend/internal/models"
	apperrors "ai-assistant-hub/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture(t *testing.T) (*conversationFixture, *models.Session) {
	t.Helper()
	f := newConversationFixture(t)
	assistant := f.newAssistant(t)
	session := f.newSession(t, f.admin, assistant.ID)

	f.remote.answerResult = &ai.AnswerResult{
		ResponseID: "resp_x",
		Text:       "cited answer",
		Citations:  []ai.Citation{{FileID: "file_1", Quote: "the quote"}},
	}
	_, err := f.svc.Converse(context.Background(), f.admin, session.ID, "a question")
	require.NoError(t, err)
	return f, session
}

func TestExportJSONIsIdempotent(t *testing.T) {
	f, session := exportFixture(t)

	first, err := f.svc.ExportSession(context.Background(), f.admin, session.ID, ExportFormatJSON)
	require.NoError(t, err)
	second, err := f.svc.ExportSession(context.Background(), f.admin, session.ID, ExportFormatJSON)
	require.NoError(t, err)

	assert.Equal(t, first.Body, second.Body, "unchanged session exports byte-identically")
	assert.Equal(t, "application/json", first.ContentType)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(first.Body, &envelope))
	messages := envelope["messages"].([]any)
	require.Len(t, messages, 2)
	answer := messages[1].(map[string]any)
	assert.Equal(t, "assistant", answer["role"])
	assert.Equal(t, "cited answer", answer["content"])
	assert.NotNil(t, answer["citations"])
}

func TestExportDefaultFormatIsJSON(t *testing.T) {
	f, session := exportFixture(t)

	export, err := f.svc.ExportSession(context.Background(), f.admin, session.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "application/json", export.ContentType)
}

func TestExportMarkdown(t *testing.T) {
	f, session := exportFixture(t)

	export, err := f.svc.ExportSession(context.Background(), f.admin, session.ID, ExportFormatMarkdown)
	require.NoError(t, err)
	body := string(export.Body)
	assert.Contains(t, body, "## User")
	assert.Contains(t, body, "## Assistant")
	assert.Contains(t, body, "a question")
	assert.Contains(t, body, "cited answer")
	assert.Contains(t, body, "the quote")
}

func TestExportText(t *testing.T) {
	f, session := exportFixture(t)

	export, err := f.svc.ExportSession(context.Background(), f.admin, session.ID, ExportFormatText)
	require.NoError(t, err)
	body := string(export.Body)
	assert.Contains(t, body, "[user] a question")
	assert.Contains(t, body, "[assistant] cited answer")
}

func TestExportUnknownFormat(t *testing.T) {
	f, session := exportFixture(t)

	_, err := f.svc.ExportSession(context.Background(), f.admin, session.ID, "xml")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestExportNotOwnedSession(t *testing.T) {
	f, session := exportFixture(t)

	_, err := f.svc.ExportSession(context.Background(), f.member, session.ID, ExportFormatJSON)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionNotFound))
}
