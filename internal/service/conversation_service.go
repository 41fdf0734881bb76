package service

import (
	"context"
	"sync"

	"ai-assistant-hub/backend/ai"
	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/repository"
	"ai-assistant-hub/backend/internal/stream"
	"ai-assistant-hub/backend/pkg/cache"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"
	"ai-assistant-hub/backend/pkg/observability"
)

// ConversationService drives sessions and turns. Turns against the same
// session are serialized so the continuation token always reflects the
// most recent turn.
type ConversationService struct {
	sessions   repository.SessionRepository
	messages   repository.MessageRepository
	assistants repository.AssistantRepository
	documents  repository.DocumentRepository
	guard      *AccessGuard
	answerer   Answerer
	history    *cache.HistoryCache
	metrics    *observability.Metrics
	logger     *logger.Logger

	defaultModel string

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewConversationService(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	assistants repository.AssistantRepository,
	documents repository.DocumentRepository,
	guard *AccessGuard,
	answerer Answerer,
	history *cache.HistoryCache,
	defaultModel string,
	log *logger.Logger,
) *ConversationService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &ConversationService{
		sessions:     sessions,
		messages:     messages,
		assistants:   assistants,
		documents:    documents,
		guard:        guard,
		answerer:     answerer,
		history:      history,
		defaultModel: defaultModel,
		logger:       log,
	}
}

// SetMetrics attaches the turn counters. Optional; a nil receiver field
// means counting is off.
func (s *ConversationService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// CreateSession opens a session for the user against an assistant they
// are allowed to converse with.
func (s *ConversationService) CreateSession(user *models.User, req models.CreateSessionRequest) (*models.Session, error) {
	assistant, err := s.assistants.GetByID(req.AssistantID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NewNotFoundError(errors.CodeAssistantNotFound, "assistant not found")
		}
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load assistant").WithDetails(err.Error())
	}

	allowed, err := s.guard.CanConverse(user, assistant.ID)
	if err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to check access").WithDetails(err.Error())
	}
	if !allowed {
		return nil, errors.NewForbiddenError(errors.CodeAccessDenied, "no access to this assistant")
	}

	title := req.Title
	if title == "" {
		title = "Conversation with " + assistant.Name
	}

	session := &models.Session{
		UserID:      &user.ID,
		AssistantID: &assistant.ID,
		Title:       title,
		TestMode:    req.TestMode,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to create session").WithDetails(err.Error())
	}

	s.logger.Info("session created", "session_id", session.ID, "assistant_id", assistant.ID, "user_id", user.ID)
	return session, nil
}

// ListSessions returns the user's own sessions, newest first
func (s *ConversationService) ListSessions(user *models.User, filter repository.SessionFilter) ([]models.Session, error) {
	return s.sessions.ListByUserID(user.ID, filter)
}

// GetSession returns one of the user's sessions. A session that exists
// but belongs to someone else is reported as missing.
func (s *ConversationService) GetSession(user *models.User, sessionID uint) (*models.Session, error) {
	return s.ownedSession(user, sessionID)
}

// DeleteSession removes the session and its messages
func (s *ConversationService) DeleteSession(ctx context.Context, user *models.User, sessionID uint) error {
	if _, err := s.ownedSession(user, sessionID); err != nil {
		return err
	}
	if err := s.sessions.Delete(sessionID); err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to delete session").WithDetails(err.Error())
	}
	s.invalidateHistory(ctx, sessionID)
	return nil
}

// RenameSession updates the session title
func (s *ConversationService) RenameSession(user *models.User, sessionID uint, title string) error {
	if _, err := s.ownedSession(user, sessionID); err != nil {
		return err
	}
	if title == "" {
		return errors.NewBadRequestError(errors.CodeInvalidInput, "title must not be empty")
	}
	if err := s.sessions.UpdateTitle(sessionID, title); err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to rename session").WithDetails(err.Error())
	}
	return nil
}

// History returns the session's messages in order, serving from the
// cache when a fresh copy exists.
func (s *ConversationService) History(ctx context.Context, user *models.User, sessionID uint) ([]models.Message, error) {
	if _, err := s.ownedSession(user, sessionID); err != nil {
		return nil, err
	}

	if s.history != nil {
		dirty, err := s.history.IsDirty(ctx, sessionID)
		if err != nil {
			s.logger.Warn("history cache unavailable", "session_id", sessionID, "error", err.Error())
		} else if !dirty {
			if cached, hit, err := s.history.GetHistory(ctx, sessionID); err == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messages.ListBySessionID(sessionID)
	if err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load history").WithDetails(err.Error())
	}

	if s.history != nil {
		if err := s.history.SetHistory(ctx, sessionID, messages); err != nil {
			s.logger.Warn("failed to cache history", "session_id", sessionID, "error", err.Error())
		}
	}
	return messages, nil
}

// ClearMessages empties the session's history and resets the
// continuation token so the next turn starts a fresh context.
func (s *ConversationService) ClearMessages(ctx context.Context, user *models.User, sessionID uint) error {
	if _, err := s.ownedSession(user, sessionID); err != nil {
		return err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.messages.DeleteBySessionID(sessionID); err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to clear messages").WithDetails(err.Error())
	}
	if err := s.sessions.UpdateLastResponseID(sessionID, ""); err != nil {
		return errors.NewInternalServerError(errors.CodeStorageFailure, "failed to reset session context").WithDetails(err.Error())
	}
	s.invalidateHistory(ctx, sessionID)
	return nil
}

// Converse runs one blocking turn: the user message is persisted before
// the remote call, the answer afterwards.
func (s *ConversationService) Converse(ctx context.Context, user *models.User, sessionID uint, content string) (*models.Message, error) {
	return s.converse(ctx, user, sessionID, content, nil)
}

// ConverseStream runs one turn, forwarding partial content to the sink
// as it arrives. If the sink stops accepting events the turn still
// completes and is persisted.
func (s *ConversationService) ConverseStream(ctx context.Context, user *models.User, sessionID uint, content string, sink stream.Sink) (*models.Message, error) {
	return s.converse(ctx, user, sessionID, content, sink)
}

func (s *ConversationService) converse(ctx context.Context, user *models.User, sessionID uint, content string, sink stream.Sink) (*models.Message, error) {
	if content == "" {
		return nil, errors.NewBadRequestError(errors.CodeInvalidInput, "message content must not be empty")
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.ownedSession(user, sessionID)
	if err != nil {
		return nil, err
	}

	assistant, err := s.sessionAssistant(session)
	if err != nil {
		return nil, err
	}

	// Write-ahead: the user message is part of history even when the
	// remote call fails.
	userMessage := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   content,
	}
	if err := s.messages.Create(userMessage); err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to record message").WithDetails(err.Error())
	}
	s.invalidateHistory(ctx, sessionID)

	req := ai.AnswerRequest{
		Model:              assistant.Model,
		Instructions:       assistant.Instructions,
		Input:              content,
		PreviousResponseID: session.LastResponseID,
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	if assistant.HasKnowledgeBase() {
		req.VectorStoreID = *assistant.VectorStoreID
	}

	var result *ai.AnswerResult
	if sink == nil {
		result, err = s.answerer.Answer(ctx, req)
	} else {
		var src ai.Stream
		src, err = s.answerer.AnswerStream(ctx, req)
		if err == nil {
			result, err = stream.Deliver(src, s.countingSink(ctx, sink), s.logger)
		}
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.UpstreamErrors.Add(ctx, 1)
		}
		return nil, s.turnError(err)
	}
	if s.metrics != nil {
		s.metrics.TurnsTotal.Add(ctx, 1)
	}

	return s.finishTurn(ctx, session, assistant, result)
}

// finishTurn records the turn outcome: the continuation token is
// overwritten first, then the assistant message is persisted with its
// citations resolved to local filenames.
func (s *ConversationService) finishTurn(ctx context.Context, session *models.Session, assistant *models.Assistant, result *ai.AnswerResult) (*models.Message, error) {
	if err := s.sessions.UpdateLastResponseID(session.ID, result.ResponseID); err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to record turn context").WithDetails(err.Error())
	}

	message := &models.Message{
		ExternalID: result.ResponseID,
		SessionID:  session.ID,
		Role:       models.RoleAssistant,
		Content:    result.Text,
		Citations:  s.resolveCitations(assistant, result.Citations),
	}
	if err := s.messages.Create(message); err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to record answer").WithDetails(err.Error())
	}
	s.invalidateHistory(ctx, session.ID)

	s.logger.Info("turn completed",
		"session_id", session.ID, "response_id", result.ResponseID,
		"citations", len(message.Citations))
	return message, nil
}

// resolveCitations maps remote file handles to the original filenames
// of the assistant's documents. Handles with no matching document keep
// the raw handle as their display name.
func (s *ConversationService) resolveCitations(assistant *models.Assistant, citations []ai.Citation) models.CitationList {
	if len(citations) == 0 {
		return nil
	}

	names := make(map[string]string)
	if documents, err := s.documents.ListByAssistantID(assistant.ID); err == nil {
		for _, d := range documents {
			if d.RemoteFileID != "" {
				names[d.RemoteFileID] = d.Filename
			}
		}
	} else {
		s.logger.Warn("failed to resolve citation filenames", "assistant_id", assistant.ID, "error", err.Error())
	}

	out := make(models.CitationList, 0, len(citations))
	for _, c := range citations {
		filename, ok := names[c.FileID]
		if !ok {
			filename = c.FileID
		}
		out = append(out, models.Citation{FileID: c.FileID, Filename: filename, Quote: c.Quote})
	}
	return out
}

// ownedSession loads the session and checks ownership. Missing and
// not-owned are indistinguishable to the caller.
func (s *ConversationService) ownedSession(user *models.User, sessionID uint) (*models.Session, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NewNotFoundError(errors.CodeSessionNotFound, "session not found")
		}
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load session").WithDetails(err.Error())
	}
	if !OwnsSession(user.ID, session) {
		return nil, errors.NewNotFoundError(errors.CodeSessionNotFound, "session not found")
	}
	return session, nil
}

// sessionAssistant resolves the session's assistant. A nulled reference
// means the assistant was deleted out from under the session.
func (s *ConversationService) sessionAssistant(session *models.Session) (*models.Assistant, error) {
	if session.AssistantID == nil {
		return nil, errors.NewConflictError(errors.CodeNoAssistantSelected, "session has no assistant")
	}
	assistant, err := s.assistants.GetByID(*session.AssistantID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NewConflictError(errors.CodeNoAssistantSelected, "session has no assistant")
		}
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load assistant").WithDetails(err.Error())
	}
	return assistant, nil
}

func (s *ConversationService) countingSink(ctx context.Context, sink stream.Sink) stream.Sink {
	if s.metrics == nil {
		return sink
	}
	return stream.SinkFunc(func(e stream.Event) error {
		if e.Type == stream.EventContentDelta {
			s.metrics.StreamChunks.Add(ctx, 1)
		}
		return sink.Send(e)
	})
}

func (s *ConversationService) turnError(err error) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	if err == ai.ErrIncompleteStream {
		return errors.NewBadGatewayError(errors.CodeIncompleteStream, "answer stream ended early").WithDetails(err.Error())
	}
	return errors.NewBadGatewayError(errors.CodeUpstreamFailure, "answering service request failed").WithDetails(err.Error())
}

func (s *ConversationService) invalidateHistory(ctx context.Context, sessionID uint) {
	if s.history == nil {
		return
	}
	if err := s.history.MarkDirty(ctx, sessionID); err != nil {
		s.logger.Warn("failed to mark history dirty", "session_id", sessionID, "error", err.Error())
	}
	if err := s.history.DeleteHistory(ctx, sessionID); err != nil {
		s.logger.Warn("failed to drop cached history", "session_id", sessionID, "error", err.Error())
	}
}

func (s *ConversationService) sessionLock(sessionID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[uint]*sync.Mutex)
	}
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}
