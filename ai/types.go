package ai

import (
	"errors"
)

// ErrIncompleteStream is returned when a streamed answer ends without the
// terminal completion event. The underlying turn may still have completed
// on the remote side.
var ErrIncompleteStream = errors.New("stream ended before completion event")

// ChunkingPolicy controls how the remote index splits documents. The
// values are fixed process-wide, not per assistant.
type ChunkingPolicy struct {
	MaxChunkSizeTokens int
	ChunkOverlapTokens int
}

// AnswerRequest is one conversation turn against the answering service.
// VectorStoreID and PreviousResponseID are optional: a turn without a
// knowledge base or without prior context is valid.
type AnswerRequest struct {
	Model              string
	Instructions       string
	Input              string
	VectorStoreID      string
	PreviousResponseID string
}

// Citation references a source file handle and the quoted span
type Citation struct {
	FileID string
	Quote  string
}

// AnswerResult is the validated, typed result of one turn
type AnswerResult struct {
	ResponseID string
	Text       string
	Citations  []Citation
}

// Stream event types
const (
	StreamEventDelta = "delta"
	StreamEventDone  = "done"
)

// StreamEvent is one element of a streamed answer: either a partial
// content delta or the terminal event carrying the full result.
type StreamEvent struct {
	Type   string
	Delta  string
	Result *AnswerResult
}

// Stream is a lazy, finite, non-restartable sequence of answer events.
// Recv returns io.EOF after the terminal event has been delivered, and
// ErrIncompleteStream if the source ends without one.
type Stream interface {
	Recv() (StreamEvent, error)
	Close() error
}
