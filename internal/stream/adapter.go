package stream

import (
	"errors"
	"io"

	"ai-assistant-hub/backend/ai"
	"ai-assistant-hub/backend/pkg/logger"
)

// Transport-agnostic event types delivered to clients
const (
	EventContentDelta = "content.delta"
	EventDone         = "done"
)

// Event is one element of the delivery sequence. Consumers must treat
// the concatenation of content deltas, in arrival order, as the final
// content.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Sink receives delivery events. A Send error means the client is gone;
// delivery stops but the turn still completes server-side.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error {
	return f(e)
}

// Deliver consumes the remote answer stream and re-emits partial-content
// events to the sink, strictly FIFO, followed by one done event. The
// terminal result is always returned when the remote stream completes,
// even if the sink stopped accepting events, so the caller can persist
// the full assistant message.
func Deliver(src ai.Stream, sink Sink, log *logger.Logger) (*ai.AnswerResult, error) {
	defer src.Close()

	if log == nil {
		log = logger.GetGlobal()
	}

	forwarding := true
	for {
		event, err := src.Recv()
		if errors.Is(err, io.EOF) {
			return nil, ai.ErrIncompleteStream
		}
		if err != nil {
			return nil, err
		}

		switch event.Type {
		case ai.StreamEventDelta:
			if !forwarding {
				continue
			}
			if sendErr := sink.Send(Event{Type: EventContentDelta, Content: event.Delta}); sendErr != nil {
				// Client disconnected. Keep draining so the turn
				// completes and history stays consistent with what the
				// remote service produced.
				forwarding = false
				log.Warn("client gone mid-stream, finishing turn server-side", "error", sendErr.Error())
			}

		case ai.StreamEventDone:
			if forwarding {
				if sendErr := sink.Send(Event{Type: EventDone}); sendErr != nil {
					log.Warn("client gone before done event", "error", sendErr.Error())
				}
			}
			return event.Result, nil
		}
	}
}
