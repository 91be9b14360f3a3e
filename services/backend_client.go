package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rescuelink/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CredentialSource supplies the bearer token attached to backend calls.
type CredentialSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// BackendClient is the HTTP transport shared by every entity client.
type BackendClient struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialSource
	logger      *logrus.Logger
}

func NewBackendClient(baseURL string, timeout time.Duration, credentials CredentialSource) *BackendClient {
	return &BackendClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		credentials: credentials,
		logger:      logrus.StandardLogger(),
	}
}

// WithCredentials returns a copy of the client bound to another credential
// source, sharing the underlying transport.
func (bc *BackendClient) WithCredentials(credentials CredentialSource) *BackendClient {
	clone := *bc
	clone.credentials = credentials
	return &clone
}

func (bc *BackendClient) BaseURL() string {
	return bc.baseURL
}

func (bc *BackendClient) HTTPClient() *http.Client {
	return bc.httpClient
}

func (bc *BackendClient) Get(ctx context.Context, path string, out interface{}) error {
	return bc.Do(ctx, http.MethodGet, path, nil, out)
}

func (bc *BackendClient) Post(ctx context.Context, path string, body, out interface{}) error {
	return bc.Do(ctx, http.MethodPost, path, body, out)
}

func (bc *BackendClient) Patch(ctx context.Context, path string, body, out interface{}) error {
	return bc.Do(ctx, http.MethodPatch, path, body, out)
}

// Do performs one request. out may be nil when the response body is ignored.
func (bc *BackendClient) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return utils.NewBadRequestError(fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, bc.baseURL+path, reader)
	if err != nil {
		return utils.NewBadRequestError(fmt.Sprintf("build request: %v", err))
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bc.credentials != nil {
		token, err := bc.credentials.BearerToken(ctx)
		if err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	fields := logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
	}

	start := time.Now()
	resp, err := bc.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			bc.logger.WithFields(fields).Debug("Backend request cancelled")
			return ctx.Err()
		}
		bc.logger.WithFields(fields).Warnf("Backend request failed: %v", err)
		return utils.NewNetworkError("Backend unreachable", err)
	}
	defer resp.Body.Close()

	fields["status"] = resp.StatusCode
	fields["latency_ms"] = float64(time.Since(start).Microseconds()) / 1000.0

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return utils.NewNetworkError("Failed to read backend response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bc.logger.WithFields(fields).Warn("Backend returned an error status")
		return utils.NewAPIError(resp.StatusCode, extractErrorMessage(data, resp.Status))
	}

	bc.logger.WithFields(fields).Debug("Backend request completed")

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := decodeBody(data, out); err != nil {
		return utils.NewServiceErrorWithStatus(utils.ErrCodeAPI, fmt.Sprintf("Unexpected backend payload: %v", err), http.StatusBadGateway)
	}
	return nil
}

// decodeBody accepts either a bare payload or one wrapped in a
// {"data": ...} envelope.
func decodeBody(data []byte, out interface{}) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
			if err := json.Unmarshal(envelope.Data, out); err == nil {
				return nil
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}

func extractErrorMessage(data []byte, fallback string) string {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		var msg string
		if json.Unmarshal(body.Message, &msg) == nil && msg != "" {
			return msg
		}
		var msgs []string
		if json.Unmarshal(body.Message, &msgs) == nil && len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fallback
}
