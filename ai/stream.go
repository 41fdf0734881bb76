package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-assistant-hub/backend/pkg/logger"
)

// AnswerStream performs one conversation turn and returns a lazy stream
// of partial-content events followed by a terminal done event.
func (c *Client) AnswerStream(ctx context.Context, req AnswerRequest) (Stream, error) {
	payload, err := json.Marshal(c.answerBody(req, true))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call streaming turn: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var apiErr apiError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("remote service error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("remote service error (%d)", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	return &responseStream{
		body:    resp.Body,
		scanner: scanner,
		logger:  c.logger,
	}, nil
}

// responseStream parses the server-sent event protocol of the answering
// service. Malformed intermediate events are skipped, not fatal; a
// stream that ends without the completion event yields
// ErrIncompleteStream.
type responseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
	logger  *logger.Logger
}

func (s *responseStream) Recv() (StreamEvent, error) {
	if s.done {
		return StreamEvent{}, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(data), &head); err != nil {
			s.logger.Warn("skipping malformed stream event", "error", err.Error())
			continue
		}

		switch head.Type {
		case "response.output_text.delta":
			var event struct {
				Delta string `json:"delta"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				s.logger.Warn("skipping malformed delta event", "error", err.Error())
				continue
			}
			return StreamEvent{Type: StreamEventDelta, Delta: event.Delta}, nil

		case "response.completed":
			var event struct {
				Response responsePayload `json:"response"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				s.logger.Warn("skipping malformed completion event", "error", err.Error())
				continue
			}
			result, err := event.Response.toResult()
			if err != nil {
				return StreamEvent{}, err
			}
			s.done = true
			return StreamEvent{Type: StreamEventDone, Result: result}, nil

		case "response.failed", "error":
			var event struct {
				Response struct {
					Error *struct {
						Message string `json:"message"`
					} `json:"error"`
				} `json:"response"`
				Message string `json:"message"`
			}
			msg := "turn failed"
			if err := json.Unmarshal([]byte(data), &event); err == nil {
				if event.Response.Error != nil && event.Response.Error.Message != "" {
					msg = event.Response.Error.Message
				} else if event.Message != "" {
					msg = event.Message
				}
			}
			return StreamEvent{}, fmt.Errorf("answering service error: %s", msg)
		}
	}

	if err := s.scanner.Err(); err != nil {
		return StreamEvent{}, fmt.Errorf("read stream: %w", err)
	}
	return StreamEvent{}, ErrIncompleteStream
}

func (s *responseStream) Close() error {
	return s.body.Close()
}
