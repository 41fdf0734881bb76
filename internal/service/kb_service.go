package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/repository"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"
	"ai-assistant-hub/backend/pkg/observability"

	"golang.org/x/sync/singleflight"
)

// KBService keeps each assistant's remote knowledge base in step with
// its locally registered documents. Knowledge base provisioning is
// lazy; the handle is created the first time a document is registered.
type KBService struct {
	assistants repository.AssistantRepository
	documents  repository.DocumentRepository
	remote     RemoteIndexer
	stager     *Stager
	provision  singleflight.Group
	metrics    *observability.Metrics
	logger     *logger.Logger
}

func NewKBService(
	assistants repository.AssistantRepository,
	documents repository.DocumentRepository,
	remote RemoteIndexer,
	stager *Stager,
	log *logger.Logger,
) *KBService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &KBService{
		assistants: assistants,
		documents:  documents,
		remote:     remote,
		stager:     stager,
		logger:     log,
	}
}

// SetMetrics attaches the upload counters. Optional.
func (s *KBService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// RegisterDocument uploads a staged file to the external service, makes
// sure the assistant has a knowledge base, and blocks until indexing
// settles. When indexing fails the document row is still persisted in a
// degraded state so operators can see and remove it.
func (s *KBService) RegisterDocument(ctx context.Context, assistantID uint, staged *StagedDocument, description string) (*models.Document, error) {
	if _, err := s.assistants.GetByID(assistantID); err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NewNotFoundError(errors.CodeAssistantNotFound, "assistant not found")
		}
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load assistant").WithDetails(err.Error())
	}

	content, err := os.Open(staged.Path)
	if err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "staged file is unreadable").WithDetails(err.Error())
	}
	defer content.Close()

	fileID, err := s.remote.UploadFile(ctx, staged.Filename, content)
	if err != nil {
		return nil, errors.NewBadGatewayError(errors.CodeUpstreamFailure, "file upload to indexing service failed").WithDetails(err.Error())
	}

	vectorStoreID, err := s.ensureVectorStore(ctx, assistantID)
	if err != nil {
		s.cleanupRemoteFile(fileID)
		return nil, err
	}

	document := &models.Document{
		AssistantID:  assistantID,
		Filename:     staged.Filename,
		SizeBytes:    staged.SizeBytes,
		MimeType:     staged.MimeType,
		StagedPath:   staged.Path,
		RemoteFileID: fileID,
		Description:  description,
		UploadedAt:   time.Now(),
	}

	if err := s.remote.AddFilesToVectorStore(ctx, vectorStoreID, []string{fileID}); err != nil {
		document.IndexStatus = models.IndexStatusFailed
		if createErr := s.documents.Create(document); createErr != nil {
			s.logger.Error("failed to persist degraded document",
				"assistant_id", assistantID, "filename", staged.Filename, "error", createErr.Error())
			return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to persist document").WithDetails(createErr.Error())
		}
		if s.metrics != nil {
			s.metrics.IndexingFailed.Add(ctx, 1)
		}
		return document, errors.NewBadGatewayError(errors.CodeIndexingFailed, "document indexing failed").WithDetails(err.Error())
	}

	document.IndexStatus = models.IndexStatusIndexed
	if err := s.documents.Create(document); err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to persist document").WithDetails(err.Error())
	}

	if s.metrics != nil {
		s.metrics.UploadsTotal.Add(ctx, 1)
	}
	s.logger.Info("document registered",
		"assistant_id", assistantID, "document_id", document.ID,
		"remote_file_id", fileID, "vector_store_id", vectorStoreID)
	return document, nil
}

// DeregisterDocument removes a document locally and, on a best-effort
// basis, remotely. Remote failures are logged, never surfaced; the
// local row always goes away.
func (s *KBService) DeregisterDocument(ctx context.Context, assistantID, documentID uint) error {
	document, err := s.documents.GetByID(documentID)
	if err != nil {
		if err == repository.ErrNotFound {
			return errors.NewNotFoundError(errors.CodeDocumentNotFound, "document not found")
		}
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load document").WithDetails(err.Error())
	}
	if !OwnsDocument(assistantID, document) {
		return errors.NewNotFoundError(errors.CodeOwnershipMismatch, "document does not belong to this assistant")
	}

	if document.RemoteFileID != "" {
		assistant, err := s.assistants.GetByID(assistantID)
		if err == nil && assistant.HasKnowledgeBase() {
			if err := s.remote.RemoveFileFromVectorStore(ctx, *assistant.VectorStoreID, document.RemoteFileID); err != nil {
				s.logger.Warn("failed to remove file from remote index",
					"document_id", documentID, "remote_file_id", document.RemoteFileID, "error", err.Error())
			}
		}
		s.cleanupRemoteFile(document.RemoteFileID)
	}

	if document.StagedPath != "" {
		if err := os.Remove(document.StagedPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove staged file", "path", document.StagedPath, "error", err.Error())
		}
	}

	if err := s.documents.Delete(documentID); err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to delete document").WithDetails(err.Error())
	}

	s.logger.Info("document deregistered", "assistant_id", assistantID, "document_id", documentID)
	return nil
}

// ListDocuments returns the assistant's documents in upload order
func (s *KBService) ListDocuments(assistantID uint) ([]models.Document, error) {
	if _, err := s.assistants.GetByID(assistantID); err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NewNotFoundError(errors.CodeAssistantNotFound, "assistant not found")
		}
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load assistant").WithDetails(err.Error())
	}
	return s.documents.ListByAssistantID(assistantID)
}

// TeardownKnowledgeBase deletes the assistant's remote files and index.
// All remote calls are best effort; callers proceed with local deletion
// regardless of the outcome here.
func (s *KBService) TeardownKnowledgeBase(ctx context.Context, assistant *models.Assistant) {
	documents, err := s.documents.ListByAssistantID(assistant.ID)
	if err != nil {
		s.logger.Warn("failed to list documents for teardown", "assistant_id", assistant.ID, "error", err.Error())
	}
	for i := range documents {
		doc := &documents[i]
		if doc.RemoteFileID != "" {
			s.cleanupRemoteFile(doc.RemoteFileID)
		}
		if doc.StagedPath != "" {
			if err := os.Remove(doc.StagedPath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove staged file", "path", doc.StagedPath, "error", err.Error())
			}
		}
	}
	if assistant.HasKnowledgeBase() {
		if err := s.remote.DeleteVectorStore(ctx, *assistant.VectorStoreID); err != nil {
			s.logger.Warn("failed to delete remote index",
				"assistant_id", assistant.ID, "vector_store_id", *assistant.VectorStoreID, "error", err.Error())
		}
	}
}

// ensureVectorStore returns the assistant's knowledge base handle,
// creating it remotely on first use. Concurrent registrations for the
// same assistant collapse into a single creation.
func (s *KBService) ensureVectorStore(ctx context.Context, assistantID uint) (string, error) {
	v, err, _ := s.provision.Do(fmt.Sprintf("assistant:%d", assistantID), func() (any, error) {
		assistant, err := s.assistants.GetByID(assistantID)
		if err != nil {
			return "", err
		}
		if assistant.HasKnowledgeBase() {
			return *assistant.VectorStoreID, nil
		}

		vectorStoreID, err := s.remote.CreateVectorStore(ctx, fmt.Sprintf("assistant-%d-%s", assistant.ID, assistant.Name))
		if err != nil {
			return "", errors.NewBadGatewayError(errors.CodeUpstreamFailure, "failed to create remote index").WithDetails(err.Error())
		}
		if err := s.assistants.SetVectorStoreID(assistantID, vectorStoreID); err != nil {
			// The handle never reached the database, so drop the
			// remote side rather than leak it.
			if delErr := s.remote.DeleteVectorStore(context.Background(), vectorStoreID); delErr != nil {
				s.logger.Warn("failed to delete orphaned remote index",
					"vector_store_id", vectorStoreID, "error", delErr.Error())
			}
			return "", errors.NewInternalServerError(errors.CodeStorageFailure, "failed to record knowledge base handle").WithDetails(err.Error())
		}
		s.logger.Info("knowledge base provisioned", "assistant_id", assistantID, "vector_store_id", vectorStoreID)
		return vectorStoreID, nil
	})
	if err != nil {
		if err == repository.ErrNotFound {
			return "", errors.NewNotFoundError(errors.CodeAssistantNotFound, "assistant not found")
		}
		if _, ok := err.(*errors.AppError); ok {
			return "", err
		}
		return "", errors.NewInternalServerError(errors.CodeStorageFailure, "failed to provision knowledge base").WithDetails(err.Error())
	}
	return v.(string), nil
}

func (s *KBService) cleanupRemoteFile(fileID string) {
	if err := s.remote.DeleteFile(context.Background(), fileID); err != nil {
		s.logger.Warn("failed to delete remote file", "remote_file_id", fileID, "error", err.Error())
	}
}
