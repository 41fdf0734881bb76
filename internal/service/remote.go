package service

import (
	"context"
	"io"

	"ai-assistant-hub/backend/ai"
)

// RemoteIndexer is the indexing capability of the external service:
// file upload, index lifecycle and index membership.
type RemoteIndexer interface {
	CreateVectorStore(ctx context.Context, name string) (string, error)
	UploadFile(ctx context.Context, filename string, content io.Reader) (string, error)
	AddFilesToVectorStore(ctx context.Context, vectorStoreID string, fileIDs []string) error
	RemoveFileFromVectorStore(ctx context.Context, vectorStoreID, fileID string) error
	DeleteVectorStore(ctx context.Context, vectorStoreID string) error
	DeleteFile(ctx context.Context, fileID string) error
}

// Answerer is the answering capability of the external service
type Answerer interface {
	Answer(ctx context.Context, req ai.AnswerRequest) (*ai.AnswerResult, error)
	AnswerStream(ctx context.Context, req ai.AnswerRequest) (ai.Stream, error)
}
