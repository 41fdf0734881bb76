package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ai-assistant-hub/backend/internal/models"
	apperrors "ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kbFixture struct {
	assistants *fakeAssistantRepo
	documents  *fakeDocumentRepo
	remote     *fakeRemote
	stager     *Stager
	kb         *KBService
}

func newKBFixture(t *testing.T) *kbFixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	assistants := newFakeAssistantRepo()
	documents := newFakeDocumentRepo()
	remote := newFakeRemote()
	stager := NewStager(StagerConfig{
		StagingDir:      t.TempDir(),
		MaxBytes:        1 << 20,
		AllowedMimeList: []string{"application/pdf"},
	}, log)
	return &kbFixture{
		assistants: assistants,
		documents:  documents,
		remote:     remote,
		stager:     stager,
		kb:         NewKBService(assistants, documents, remote, stager, log),
	}
}

func (f *kbFixture) newAssistant(t *testing.T) *models.Assistant {
	t.Helper()
	assistant := &models.Assistant{
		Name:         "support",
		Instructions: "answer from the docs",
		Model:        "gpt-4o-mini",
		Active:       true,
	}
	require.NoError(t, f.assistants.Create(assistant))
	return assistant
}

func (f *kbFixture) stagedFile(t *testing.T, filename string) *StagedDocument {
	t.Helper()
	path := filepath.Join(t.TempDir(), filename)
	require.NoError(t, os.WriteFile(path, []byte("pdf bytes"), 0o600))
	return &StagedDocument{Path: path, Filename: filename, MimeType: "application/pdf", SizeBytes: 9}
}

func TestRegisterDocumentProvisionsKnowledgeBaseOnFirstUpload(t *testing.T) {
	f := newKBFixture(t)
	assistant := f.newAssistant(t)

	doc, err := f.kb.RegisterDocument(context.Background(), assistant.ID, f.stagedFile(t, "guide.pdf"), "user guide")
	require.NoError(t, err)
	assert.Equal(t, models.IndexStatusIndexed, doc.IndexStatus)
	assert.NotEmpty(t, doc.RemoteFileID)
	assert.Equal(t, "user guide", doc.Description)

	reloaded, err := f.assistants.GetByID(assistant.ID)
	require.NoError(t, err)
	require.True(t, reloaded.HasKnowledgeBase())
	assert.Contains(t, f.remote.vectorStores[*reloaded.VectorStoreID], doc.RemoteFileID)
}

func TestRegisterDocumentReusesExistingHandle(t *testing.T) {
	f := newKBFixture(t)
	assistant := f.newAssistant(t)

	_, err := f.kb.RegisterDocument(context.Background(), assistant.ID, f.stagedFile(t, "one.pdf"), "")
	require.NoError(t, err)
	_, err = f.kb.RegisterDocument(context.Background(), assistant.ID, f.stagedFile(t, "two.pdf"), "")
	require.NoError(t, err)

	assert.Equal(t, 1, f.remote.createVSCalls)

	reloaded, err := f.assistants.GetByID(assistant.ID)
	require.NoError(t, err)
	assert.Len(t, f.remote.vectorStores[*reloaded.VectorStoreID], 2)
}

func TestConcurrentFirstUploadsCreateOneKnowledgeBase(t *testing.T) {
	f := newKBFixture(t)
	assistant := f.newAssistant(t)
	f.remote.createVSDelay = 20 * time.Millisecond

	staged := []*StagedDocument{
		f.stagedFile(t, "a.pdf"),
		f.stagedFile(t, "b.pdf"),
		f.stagedFile(t, "c.pdf"),
		f.stagedFile(t, "d.pdf"),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(staged))
	for i := range staged {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.kb.RegisterDocument(context.Background(), assistant.ID, staged[i], "")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.remote.createVSCalls, "concurrent first uploads must share one handle")

	reloaded, err := f.assistants.GetByID(assistant.ID)
	require.NoError(t, err)
	require.True(t, reloaded.HasKnowledgeBase())
	assert.Len(t, f.remote.vectorStores[*reloaded.VectorStoreID], len(staged))
}

func TestRegisterDocumentUnknownAssistant(t *testing.T) {
	f := newKBFixture(t)

	_, err := f.kb.RegisterDocument(context.Background(), 42, f.stagedFile(t, "guide.pdf"), "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAssistantNotFound))
}

func TestRegisterDocumentUploadFailure(t *testing.T) {
	f := newKBFixture(t)
	assistant := f.newAssistant(t)
	f.remote.uploadErr = errors.New("upstream down")

	_, err := f.kb.RegisterDocument(context.Background(), assistant.ID, f.stagedFile(t, "guide.pdf"), "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstreamFailure))

	docs, err := f.documents.ListByAssistantID(assistant.ID)
	require.NoError(t, err)
	assert.Empty(t, docs, "no row is persisted when the upload itself fails")
}

func TestRegisterDocumentIndexingFailureKeepsDegradedRow(t *testing.T) {
	f := newKBFixture(t)
	assistant := f.newAssistant(t)
	f.remote.addErr = errors.New("batch failed")

	_, err := f.kb.RegisterDocument(context.Background(), assistant.ID, f.stagedFile(t, "guide.pdf"), "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIndexingFailed))

	docs, listErr := f.documents.ListByAssistantID(assistant.ID)
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, models.IndexStatusFailed, docs[0].IndexStatus)
	assert.False(t, docs[0].Indexed())
	assert.NotEmpty(t, docs[0].RemoteFileID, "degraded row keeps the handle so cleanup can find it")
}

func TestDeregisterDocumentRoundTrip(t *testing.T) {
	f := newKBFixture(t)
	assistant := f.newAssistant(t)

	doc, err := f.kb.RegisterDocument(context.Background(), assistant.ID, f.stagedFile(t, "guide.pdf"), "")
	require.NoError(t, err)

	require.NoError(t, f.kb.DeregisterDocument(context.Background(), assistant.ID, doc.ID))

	docs, err := f.documents.ListByAssistantID(assistant.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Contains(t, f.remote.removedFromStore, doc.RemoteFileID)
	assert.Contains(t, f.remote.deletedFiles, doc.RemoteFileID)

	_, statErr := os.Stat(doc.StagedPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeregisterDocumentOwnershipMismatch(t *testing.T) {
	f := newKBFixture(t)
	owner := f.newAssistant(t)
	other := f.newAssistant(t)

	doc, err := f.kb.RegisterDocument(context.Background(), owner.ID, f.stagedFile(t, "guide.pdf"), "")
	require.NoError(t, err)

	err = f.kb.DeregisterDocument(context.Background(), other.ID, doc.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOwnershipMismatch))

	docs, err := f.documents.ListByAssistantID(owner.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1, "document survives a mismatched delete attempt")
}

func TestDeregisterDocumentUnknownDocument(t *testing.T) {
	f := newKBFixture(t)
	assistant := f.newAssistant(t)

	err := f.kb.DeregisterDocument(context.Background(), assistant.ID, 99)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDocumentNotFound))
}

func TestTeardownKnowledgeBaseDeletesRemoteState(t *testing.T) {
	f := newKBFixture(t)
	assistant := f.newAssistant(t)

	docA, err := f.kb.RegisterDocument(context.Background(), assistant.ID, f.stagedFile(t, "a.pdf"), "")
	require.NoError(t, err)
	docB, err := f.kb.RegisterDocument(context.Background(), assistant.ID, f.stagedFile(t, "b.pdf"), "")
	require.NoError(t, err)

	reloaded, err := f.assistants.GetByID(assistant.ID)
	require.NoError(t, err)

	f.kb.TeardownKnowledgeBase(context.Background(), reloaded)

	assert.Contains(t, f.remote.deletedFiles, docA.RemoteFileID)
	assert.Contains(t, f.remote.deletedFiles, docB.RemoteFileID)
	assert.Contains(t, f.remote.deletedStores, *reloaded.VectorStoreID)
}
