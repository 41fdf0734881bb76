package service

import (
	"context"
	"testing"

	"ai-assistant-hub/backend/internal/models"
	apperrors "ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type assistantFixture struct {
	assistants *fakeAssistantRepo
	documents  *fakeDocumentRepo
	grants     *fakeGrantRepo
	remote     *fakeRemote
	svc        *AssistantService
}

func newAssistantFixture(t *testing.T) *assistantFixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	assistants := newFakeAssistantRepo()
	documents := newFakeDocumentRepo()
	grants := newFakeGrantRepo()
	remote := newFakeRemote()
	stager := NewStager(StagerConfig{
		StagingDir:      t.TempDir(),
		MaxBytes:        1 << 20,
		AllowedMimeList: []string{"application/pdf"},
	}, log)
	kb := NewKBService(assistants, documents, remote, stager, log)
	return &assistantFixture{
		assistants: assistants,
		documents:  documents,
		grants:     grants,
		remote:     remote,
		svc:        NewAssistantService(assistants, grants, kb, "gpt-4o-mini", log),
	}
}

func TestAssistantCreateDefaultsModel(t *testing.T) {
	f := newAssistantFixture(t)

	assistant, err := f.svc.Create(models.CreateAssistantRequest{
		Name:         "support",
		Instructions: "answer support questions",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", assistant.Model)
	assert.True(t, assistant.Active)
	assert.False(t, assistant.HasKnowledgeBase())
}

func TestAssistantUpdatePartialFields(t *testing.T) {
	f := newAssistantFixture(t)
	assistant, err := f.svc.Create(models.CreateAssistantRequest{
		Name:         "support",
		Instructions: "original",
		Model:        "gpt-4o",
	})
	require.NoError(t, err)

	newName := "billing"
	inactive := false
	updated, err := f.svc.Update(assistant.ID, models.UpdateAssistantRequest{
		Name:   &newName,
		Active: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "billing", updated.Name)
	assert.Equal(t, "original", updated.Instructions, "absent fields stay untouched")
	assert.Equal(t, "gpt-4o", updated.Model)
	assert.False(t, updated.Active)
}

func TestAssistantGetUnknown(t *testing.T) {
	f := newAssistantFixture(t)

	_, err := f.svc.Get(123)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAssistantNotFound))
}

func TestAssistantGrantAndRevoke(t *testing.T) {
	f := newAssistantFixture(t)
	assistant, err := f.svc.Create(models.CreateAssistantRequest{Name: "a", Instructions: "i"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Grant(assistant.ID, 7))
	require.NoError(t, f.svc.Grant(assistant.ID, 7), "double grant is a no-op")

	grants, err := f.svc.Grants(assistant.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, uint(7), grants[0].UserID)

	require.NoError(t, f.svc.Revoke(assistant.ID, 7))
	require.NoError(t, f.svc.Revoke(assistant.ID, 7), "revoking an absent grant is a no-op")

	grants, err = f.svc.Grants(assistant.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestAssistantDeleteTearsDownRemoteState(t *testing.T) {
	f := newAssistantFixture(t)
	assistant, err := f.svc.Create(models.CreateAssistantRequest{Name: "a", Instructions: "i"})
	require.NoError(t, err)

	require.NoError(t, f.assistants.SetVectorStoreID(assistant.ID, "vs_del"))
	require.NoError(t, f.documents.Create(&models.Document{
		AssistantID:  assistant.ID,
		Filename:     "doc.pdf",
		RemoteFileID: "file_del",
		IndexStatus:  models.IndexStatusIndexed,
	}))

	require.NoError(t, f.svc.Delete(context.Background(), assistant.ID))

	_, err = f.svc.Get(assistant.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAssistantNotFound))
	assert.Contains(t, f.remote.deletedFiles, "file_del")
	assert.Contains(t, f.remote.deletedStores, "vs_del")
}
