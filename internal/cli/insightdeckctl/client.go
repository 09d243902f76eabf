package insightdeckctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// apiError is a non-2xx response from the server.
type apiError struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
	TraceID   string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

type apiClient struct {
	http     *http.Client
	settings Settings
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.settings.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.settings.APIKey != "" {
		req.Header.Set("X-API-Key", c.settings.APIKey)
	}
	if c.settings.SessionID != "" {
		req.Header.Set("X-Session-ID", c.settings.SessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return raw, decodeAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

func decodeAPIError(status int, raw []byte) *apiError {
	out := &apiError{Status: status}
	var envelope struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
		TraceID   string `json:"trace_id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Message == "" {
		out.Message = strings.TrimSpace(string(raw))
		if out.Message == "" {
			out.Message = http.StatusText(status)
		}
		return out
	}
	out.Code = envelope.ErrorCode
	out.Message = envelope.Message
	out.Retryable = envelope.Retryable
	out.TraceID = envelope.TraceID
	return out
}
