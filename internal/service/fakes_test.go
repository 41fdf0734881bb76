package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"ai-assistant-hub/backend/ai"
	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/repository"
)

// In-memory repositories and a scriptable remote backend shared by the
// service tests.

type fakeAssistantRepo struct {
	mu         sync.Mutex
	nextID     uint
	assistants map[uint]*models.Assistant
}

func newFakeAssistantRepo() *fakeAssistantRepo {
	return &fakeAssistantRepo{assistants: make(map[uint]*models.Assistant)}
}

func (r *fakeAssistantRepo) Create(assistant *models.Assistant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	assistant.ID = r.nextID
	assistant.CreatedAt = time.Now()
	copied := *assistant
	r.assistants[assistant.ID] = &copied
	return nil
}

func (r *fakeAssistantRepo) GetByID(id uint) (*models.Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	assistant, ok := r.assistants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *assistant
	return &copied, nil
}

func (r *fakeAssistantRepo) List() ([]models.Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Assistant, 0, len(r.assistants))
	for id := uint(1); id <= r.nextID; id++ {
		if a, ok := r.assistants[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAssistantRepo) Update(assistant *models.Assistant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assistants[assistant.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *assistant
	r.assistants[assistant.ID] = &copied
	return nil
}

func (r *fakeAssistantRepo) SetVectorStoreID(id uint, vectorStoreID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assistant, ok := r.assistants[id]
	if !ok {
		return repository.ErrNotFound
	}
	assistant.VectorStoreID = &vectorStoreID
	return nil
}

func (r *fakeAssistantRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assistants, id)
	return nil
}

type fakeDocumentRepo struct {
	mu        sync.Mutex
	nextID    uint
	documents map[uint]*models.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{documents: make(map[uint]*models.Document)}
}

func (r *fakeDocumentRepo) Create(document *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	document.ID = r.nextID
	copied := *document
	r.documents[document.ID] = &copied
	return nil
}

func (r *fakeDocumentRepo) GetByID(id uint) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	document, ok := r.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *document
	return &copied, nil
}

func (r *fakeDocumentRepo) ListByAssistantID(assistantID uint) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Document
	for id := uint(1); id <= r.nextID; id++ {
		if d, ok := r.documents[id]; ok && d.AssistantID == assistantID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.documents, id)
	return nil
}

type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]models.AccessGrant
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[string]models.AccessGrant)}
}

func grantKey(userID, assistantID uint) string {
	return fmt.Sprintf("%d:%d", userID, assistantID)
}

func (r *fakeGrantRepo) Create(grant *models.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grantKey(grant.UserID, grant.AssistantID)] = *grant
	return nil
}

func (r *fakeGrantRepo) Exists(userID, assistantID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.grants[grantKey(userID, assistantID)]
	return ok, nil
}

func (r *fakeGrantRepo) ListByAssistantID(assistantID uint) ([]models.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AccessGrant
	for _, g := range r.grants {
		if g.AssistantID == assistantID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeGrantRepo) DeleteByUserAndAssistant(userID, assistantID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, grantKey(userID, assistantID))
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uint]*models.Session)}
}

func (r *fakeSessionRepo) Create(session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = r.nextID
	session.CreatedAt = time.Now()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(id uint) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) ListByUserID(userID uint, filter repository.SessionFilter) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Session
	for id := r.nextID; id >= 1; id-- {
		s, ok := r.sessions[id]
		if !ok || s.UserID == nil || *s.UserID != userID {
			continue
		}
		if filter.AssistantID != nil && (s.AssistantID == nil || *s.AssistantID != *filter.AssistantID) {
			continue
		}
		if filter.TestMode != nil && s.TestMode != *filter.TestMode {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *fakeSessionRepo) UpdateLastResponseID(id uint, responseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	session.LastResponseID = responseID
	return nil
}

func (r *fakeSessionRepo) UpdateTitle(id uint, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	session.Title = title
	return nil
}

func (r *fakeSessionRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   uint
	messages []models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Create(message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	message.ID = r.nextID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeMessageRepo) ListBySessionID(sessionID uint) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) ListBySessionIDPaginated(sessionID uint, limit, offset int) ([]models.Message, error) {
	all, _ := r.ListBySessionID(sessionID)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeMessageRepo) DeleteBySessionID(sessionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.SessionID != sessionID {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	return nil
}

// fakeRemote is a scriptable stand-in for the external service. Zero
// value behavior is success; error fields flip individual operations.
type fakeRemote struct {
	mu sync.Mutex

	uploadErr   error
	createVSErr error
	addErr      error
	answerErr   error
	streamErr   error

	createVSDelay time.Duration

	uploadedFiles     []string
	createVSCalls     int
	vectorStores      map[string][]string
	removedFromStore  []string
	deletedFiles      []string
	deletedStores     []string
	answerRequests    []ai.AnswerRequest
	answerResult      *ai.AnswerResult
	streamEvents      []ai.StreamEvent
	streamTerminalErr error
	nextFileID        int
	nextStoreID       int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{vectorStores: make(map[string][]string)}
}

func (f *fakeRemote) CreateVectorStore(ctx context.Context, name string) (string, error) {
	if f.createVSDelay > 0 {
		time.Sleep(f.createVSDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createVSErr != nil {
		return "", f.createVSErr
	}
	f.createVSCalls++
	f.nextStoreID++
	id := fmt.Sprintf("vs_%d", f.nextStoreID)
	f.vectorStores[id] = nil
	return id, nil
}

func (f *fakeRemote) UploadFile(ctx context.Context, filename string, content io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.nextFileID++
	id := fmt.Sprintf("file_%d", f.nextFileID)
	f.uploadedFiles = append(f.uploadedFiles, filename)
	return id, nil
}

func (f *fakeRemote) AddFilesToVectorStore(ctx context.Context, vectorStoreID string, fileIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.vectorStores[vectorStoreID] = append(f.vectorStores[vectorStoreID], fileIDs...)
	return nil
}

func (f *fakeRemote) RemoveFileFromVectorStore(ctx context.Context, vectorStoreID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedFromStore = append(f.removedFromStore, fileID)
	return nil
}

func (f *fakeRemote) DeleteVectorStore(ctx context.Context, vectorStoreID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedStores = append(f.deletedStores, vectorStoreID)
	return nil
}

func (f *fakeRemote) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedFiles = append(f.deletedFiles, fileID)
	return nil
}

func (f *fakeRemote) Answer(ctx context.Context, req ai.AnswerRequest) (*ai.AnswerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerRequests = append(f.answerRequests, req)
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	if f.answerResult != nil {
		result := *f.answerResult
		return &result, nil
	}
	return &ai.AnswerResult{
		ResponseID: fmt.Sprintf("resp_%d", len(f.answerRequests)),
		Text:       "answer to: " + req.Input,
	}, nil
}

func (f *fakeRemote) AnswerStream(ctx context.Context, req ai.AnswerRequest) (ai.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerRequests = append(f.answerRequests, req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	events := f.streamEvents
	if events == nil {
		events = []ai.StreamEvent{
			{Type: ai.StreamEventDelta, Delta: "partial "},
			{Type: ai.StreamEventDelta, Delta: "answer"},
			{Type: ai.StreamEventDone, Result: &ai.AnswerResult{
				ResponseID: fmt.Sprintf("resp_%d", len(f.answerRequests)),
				Text:       "partial answer",
			}},
		}
	}
	return &scriptedStream{ctx: ctx, events: events, terminalErr: f.streamTerminalErr}, nil
}

func (f *fakeRemote) lastAnswerRequest() ai.AnswerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answerRequests[len(f.answerRequests)-1]
}

// scriptedStream replays a fixed event sequence. When terminalErr is
// set it is returned after the events instead of delivering a done
// event followed by io.EOF. Like the real stream, it dies when the
// context it was opened with is canceled.
type scriptedStream struct {
	ctx         context.Context
	events      []ai.StreamEvent
	terminalErr error
	pos         int
	closed      bool
}

func (s *scriptedStream) Recv() (ai.StreamEvent, error) {
	if err := s.ctx.Err(); err != nil {
		return ai.StreamEvent{}, err
	}
	if s.pos < len(s.events) {
		event := s.events[s.pos]
		s.pos++
		return event, nil
	}
	if s.terminalErr != nil {
		return ai.StreamEvent{}, s.terminalErr
	}
	return ai.StreamEvent{}, io.EOF
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}
