package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-assistant-hub/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames []string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, logger.New(logger.Config{Level: "error"}))
	require.NoError(t, err)
	return client
}

func collect(t *testing.T, stream Stream) ([]StreamEvent, error) {
	t.Helper()
	defer stream.Close()
	var events []StreamEvent
	for {
		event, err := stream.Recv()
		if err != nil {
			return events, err
		}
		events = append(events, event)
		if event.Type == StreamEventDone {
			// One more Recv must report exhaustion.
			_, err := stream.Recv()
			return events, err
		}
	}
}

const completedFrame = `{"type":"response.completed","response":{"id":"resp_9","status":"completed","output":[{"type":"message","content":[{"type":"output_text","text":"full answer","annotations":[{"type":"file_citation","file_id":"file_1","quote":"span"}]}]}]}}`

func TestAnswerStreamDeliversDeltasThenDone(t *testing.T) {
	client := sseServer(t, []string{
		`{"type":"response.output_text.delta","delta":"full "}`,
		`{"type":"response.output_text.delta","delta":"answer"}`,
		completedFrame,
	})

	stream, err := client.AnswerStream(context.Background(), AnswerRequest{Model: "m", Input: "q"})
	require.NoError(t, err)

	events, err := collect(t, stream)
	assert.Equal(t, io.EOF, err)
	require.Len(t, events, 3)

	assert.Equal(t, StreamEventDelta, events[0].Type)
	assert.Equal(t, "full ", events[0].Delta)
	assert.Equal(t, "answer", events[1].Delta)

	done := events[2]
	assert.Equal(t, StreamEventDone, done.Type)
	require.NotNil(t, done.Result)
	assert.Equal(t, "resp_9", done.Result.ResponseID)
	assert.Equal(t, "full answer", done.Result.Text)
	require.Len(t, done.Result.Citations, 1)
	assert.Equal(t, "span", done.Result.Citations[0].Quote)
}

func TestAnswerStreamSkipsMalformedEvents(t *testing.T) {
	client := sseServer(t, []string{
		`{not json at all`,
		`{"type":"some.unknown.event"}`,
		`{"type":"response.output_text.delta","delta":"ok"}`,
		completedFrame,
	})

	stream, err := client.AnswerStream(context.Background(), AnswerRequest{Model: "m", Input: "q"})
	require.NoError(t, err)

	events, err := collect(t, stream)
	assert.Equal(t, io.EOF, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[0].Delta)
	assert.Equal(t, StreamEventDone, events[1].Type)
}

func TestAnswerStreamWithoutTerminalEvent(t *testing.T) {
	client := sseServer(t, []string{
		`{"type":"response.output_text.delta","delta":"half an ans"}`,
	})

	stream, err := client.AnswerStream(context.Background(), AnswerRequest{Model: "m", Input: "q"})
	require.NoError(t, err)
	defer stream.Close()

	event, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "half an ans", event.Delta)

	_, err = stream.Recv()
	assert.True(t, errors.Is(err, ErrIncompleteStream))
}

func TestAnswerStreamFailureEvent(t *testing.T) {
	client := sseServer(t, []string{
		`{"type":"response.failed","response":{"error":{"message":"model overloaded"}}}`,
	})

	stream, err := client.AnswerStream(context.Background(), AnswerRequest{Model: "m", Input: "q"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestAnswerStreamNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad api key"}}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		APIKey:  "wrong",
		Timeout: 5 * time.Second,
	}, logger.New(logger.Config{Level: "error"}))
	require.NoError(t, err)

	_, err = client.AnswerStream(context.Background(), AnswerRequest{Model: "m", Input: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad api key")
}
