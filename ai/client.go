package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"ai-assistant-hub/backend/pkg/logger"
)

// Client talks to the remote answering/indexing service. It is
// constructed once at startup and injected into the services that need
// it; there is no lazy global.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	// streamClient has no overall timeout: a streamed answer stays open
	// for the duration of token generation.
	streamClient *http.Client
	chunking     ChunkingPolicy
	pollEvery    time.Duration
	pollFor      time.Duration
	logger       *logger.Logger
}

// ClientConfig configures the remote client
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	Chunking          ChunkingPolicy
	BatchPollInterval time.Duration
	BatchPollTimeout  time.Duration
}

// NewClient creates a new remote service client
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("answering service base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("answering service API key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.BatchPollInterval == 0 {
		cfg.BatchPollInterval = time.Second
	}
	if cfg.BatchPollTimeout == 0 {
		cfg.BatchPollTimeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
		chunking:     cfg.Chunking,
		pollEvery:    cfg.BatchPollInterval,
		pollFor:      cfg.BatchPollTimeout,
		logger:       log,
	}, nil
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// doJSON sends a JSON request and decodes the JSON response into out
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("remote service error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("remote service error (%d)", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unrecognized response shape: %w", err)
		}
	}
	return nil
}

// CreateVectorStore creates a remote semantic index with the fixed
// chunking policy and returns its handle.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (string, error) {
	body := map[string]any{
		"name": name,
	}
	if c.chunking.MaxChunkSizeTokens > 0 {
		body["chunking_strategy"] = map[string]any{
			"type": "static",
			"static": map[string]any{
				"max_chunk_size_tokens": c.chunking.MaxChunkSizeTokens,
				"chunk_overlap_tokens":  c.chunking.ChunkOverlapTokens,
			},
		}
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores", body, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("vector store creation returned no id")
	}
	return result.ID, nil
}

// UploadFile uploads file bytes to the remote file store and returns the
// remote file handle.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("file upload failed (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("file upload failed (%d)", resp.StatusCode)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("unrecognized upload response shape: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("file upload returned no id")
	}
	return result.ID, nil
}

// AddFilesToVectorStore submits the files for indexing and blocks until
// the remote service reports batch completion or failure.
func (c *Client) AddFilesToVectorStore(ctx context.Context, vectorStoreID string, fileIDs []string) error {
	body := map[string]any{"file_ids": fileIDs}

	var batch struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/vector_stores/%s/file_batches", vectorStoreID)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &batch); err != nil {
		return err
	}
	if batch.ID == "" {
		return fmt.Errorf("file batch creation returned no id")
	}

	deadline := time.Now().Add(c.pollFor)
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		switch batch.Status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired":
			return fmt.Errorf("file batch %s ended with status %q", batch.ID, batch.Status)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("file batch %s did not complete within %s", batch.ID, c.pollFor)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pollPath := fmt.Sprintf("/vector_stores/%s/file_batches/%s", vectorStoreID, batch.ID)
		if err := c.doJSON(ctx, http.MethodGet, pollPath, nil, &batch); err != nil {
			return err
		}
	}
}

// RemoveFileFromVectorStore removes a file from the index
func (c *Client) RemoveFileFromVectorStore(ctx context.Context, vectorStoreID, fileID string) error {
	path := fmt.Sprintf("/vector_stores/%s/files/%s", vectorStoreID, fileID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteVectorStore tears down a remote index
func (c *Client) DeleteVectorStore(ctx context.Context, vectorStoreID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/vector_stores/"+vectorStoreID, nil, nil)
}

// DeleteFile deletes an uploaded file from the remote file store
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/files/"+fileID, nil, nil)
}

// answerBody builds the wire request for one turn
func (c *Client) answerBody(req AnswerRequest, stream bool) map[string]any {
	body := map[string]any{
		"model": req.Model,
		"input": req.Input,
	}
	if req.Instructions != "" {
		body["instructions"] = req.Instructions
	}
	if req.PreviousResponseID != "" {
		body["previous_response_id"] = req.PreviousResponseID
	}
	if req.VectorStoreID != "" {
		body["tools"] = []map[string]any{
			{
				"type":             "file_search",
				"vector_store_ids": []string{req.VectorStoreID},
			},
		}
	}
	if stream {
		body["stream"] = true
	}
	return body
}

// responsePayload is the wire shape of a completed response. Unknown
// output items and annotation kinds are ignored; a payload with no
// usable text is treated as an error at this boundary.
type responsePayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			Annotations []struct {
				Type   string `json:"type"`
				FileID string `json:"file_id"`
				Quote  string `json:"quote"`
			} `json:"annotations"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// toResult validates the payload and maps it to the typed contract.
// Citations without an extractable quoted span are dropped.
func (p *responsePayload) toResult() (*AnswerResult, error) {
	if p.Error != nil && p.Error.Message != "" {
		return nil, fmt.Errorf("answering service error: %s", p.Error.Message)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("response carried no id")
	}

	result := &AnswerResult{ResponseID: p.ID}
	for _, item := range p.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type != "output_text" {
				continue
			}
			result.Text += content.Text
			for _, a := range content.Annotations {
				if a.Type != "file_citation" || a.Quote == "" {
					continue
				}
				result.Citations = append(result.Citations, Citation{
					FileID: a.FileID,
					Quote:  a.Quote,
				})
			}
		}
	}

	if result.Text == "" {
		return nil, fmt.Errorf("response %s carried no output text", p.ID)
	}
	return result, nil
}

// Answer performs one blocking conversation turn
func (c *Client) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	var payload responsePayload
	if err := c.doJSON(ctx, http.MethodPost, "/responses", c.answerBody(req, false), &payload); err != nil {
		return nil, err
	}
	return payload.toResult()
}
