package service

import (
	"context"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/repository"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"
)

// AssistantService manages assistant definitions and access grants.
// All operations here are operator-only; the transport layer enforces
// the role.
type AssistantService struct {
	assistants repository.AssistantRepository
	grants     repository.GrantRepository
	kb         *KBService
	logger     *logger.Logger

	defaultModel string
}

func NewAssistantService(
	assistants repository.AssistantRepository,
	grants repository.GrantRepository,
	kb *KBService,
	defaultModel string,
	log *logger.Logger,
) *AssistantService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &AssistantService{
		assistants:   assistants,
		grants:       grants,
		kb:           kb,
		defaultModel: defaultModel,
		logger:       log,
	}
}

func (s *AssistantService) Create(req models.CreateAssistantRequest) (*models.Assistant, error) {
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}
	assistant := &models.Assistant{
		Name:         req.Name,
		Description:  req.Description,
		Instructions: req.Instructions,
		Model:        model,
		Active:       true,
	}
	if err := s.assistants.Create(assistant); err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to create assistant").WithDetails(err.Error())
	}
	s.logger.Info("assistant created", "assistant_id", assistant.ID, "name", assistant.Name)
	return assistant, nil
}

func (s *AssistantService) Get(id uint) (*models.Assistant, error) {
	assistant, err := s.assistants.GetByID(id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NewNotFoundError(errors.CodeAssistantNotFound, "assistant not found")
		}
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load assistant").WithDetails(err.Error())
	}
	return assistant, nil
}

func (s *AssistantService) List() ([]models.Assistant, error) {
	return s.assistants.List()
}

// Update applies the present fields only. The knowledge base handle is
// never writable through this path.
func (s *AssistantService) Update(id uint, req models.UpdateAssistantRequest) (*models.Assistant, error) {
	assistant, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		assistant.Name = *req.Name
	}
	if req.Description != nil {
		assistant.Description = *req.Description
	}
	if req.Instructions != nil {
		assistant.Instructions = *req.Instructions
	}
	if req.Model != nil {
		assistant.Model = *req.Model
	}
	if req.Active != nil {
		assistant.Active = *req.Active
	}

	if err := s.assistants.Update(assistant); err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to update assistant").WithDetails(err.Error())
	}
	return assistant, nil
}

// Delete removes the assistant and everything local that hangs off it,
// then tears the remote knowledge base down best-effort. Local deletion
// never waits on, or fails because of, the remote side.
func (s *AssistantService) Delete(ctx context.Context, id uint) error {
	assistant, err := s.Get(id)
	if err != nil {
		return err
	}

	// Teardown reads the document rows, so it runs before they go.
	s.kb.TeardownKnowledgeBase(ctx, assistant)

	if err := s.assistants.Delete(id); err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to delete assistant").WithDetails(err.Error())
	}
	s.logger.Info("assistant deleted", "assistant_id", id)
	return nil
}

// Grant lets a user converse with the assistant. Granting twice is
// harmless.
func (s *AssistantService) Grant(assistantID, userID uint) error {
	if _, err := s.Get(assistantID); err != nil {
		return err
	}
	exists, err := s.grants.Exists(userID, assistantID)
	if err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to check grant").WithDetails(err.Error())
	}
	if exists {
		return nil
	}
	if err := s.grants.Create(&models.AccessGrant{UserID: userID, AssistantID: assistantID}); err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to create grant").WithDetails(err.Error())
	}
	s.logger.Info("access granted", "assistant_id", assistantID, "user_id", userID)
	return nil
}

// Revoke removes a user's grant. Revoking an absent grant is a no-op.
func (s *AssistantService) Revoke(assistantID, userID uint) error {
	if _, err := s.Get(assistantID); err != nil {
		return err
	}
	if err := s.grants.DeleteByUserAndAssistant(userID, assistantID); err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to revoke grant").WithDetails(err.Error())
	}
	s.logger.Info("access revoked", "assistant_id", assistantID, "user_id", userID)
	return nil
}

// Grants lists who may converse with the assistant
func (s *AssistantService) Grants(assistantID uint) ([]models.AccessGrant, error) {
	if _, err := s.Get(assistantID); err != nil {
		return nil, err
	}
	return s.grants.ListByAssistantID(assistantID)
}
