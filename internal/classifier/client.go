// Package classifier provides HTTP clients for the prompt safety and
// response bias classification proxies.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperengineering/curator"
)

// DefaultTimeout bounds a classifier call when none is configured.
const DefaultTimeout = 15 * time.Second

const maxErrorBody = 200

// HTTPClient posts classification requests to a single endpoint.
// It implements curator.SafetyClassifier and curator.BiasClassifier and is
// safe for concurrent use.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	sourceID   string
	httpClient *http.Client
}

var (
	_ curator.SafetyClassifier = (*HTTPClient)(nil)
	_ curator.BiasClassifier   = (*HTTPClient)(nil)
)

// NewHTTPClient creates a classifier client for endpoint.
// sourceID is optional; if non-empty, it's sent as X-Curator-Source-ID header.
func NewHTTPClient(endpoint, apiKey, sourceID string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		sourceID: sourceID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom transports).
func (c *HTTPClient) WithHTTPClient(client *http.Client) *HTTPClient {
	c.httpClient = client
	return c
}

// SafetyRequest is the body sent to the safety classifier.
type SafetyRequest struct {
	Text string `json:"text"`
}

// BiasRequest is the body sent to the bias classifier.
type BiasRequest struct {
	UserInput string `json:"user_input"`
	Response  string `json:"response"`
}

// ClassifyPrompt asks the safety classifier to score text.
func (c *HTTPClient) ClassifyPrompt(ctx context.Context, text string) (*curator.RawSafetyResponse, error) {
	var out curator.RawSafetyResponse
	if err := c.post(ctx, "classify_prompt", SafetyRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClassifyBias asks the bias classifier to audit a response.
func (c *HTTPClient) ClassifyBias(ctx context.Context, userInput, response string) (*curator.RawBiasResponse, error) {
	var out curator.RawBiasResponse
	if err := c.post(ctx, "classify_bias", BiasRequest{UserInput: userInput, Response: response}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("User-Agent", "curator-client/1.0")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(c.sourceID) != "" {
		req.Header.Set("X-Curator-Source-ID", c.sourceID)
	}
}

func (c *HTTPClient) post(ctx context.Context, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &curator.TransportError{Operation: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &curator.TransportError{Operation: op, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &curator.TransportError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newTransportError(op, resp.StatusCode, respBody)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &curator.TransportError{Operation: op, StatusCode: resp.StatusCode, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &curator.ParseError{Operation: op, Err: fmt.Errorf("empty response body")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &curator.ParseError{Operation: op, Err: err}
	}
	return nil
}

func newTransportError(op string, statusCode int, body []byte) *curator.TransportError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return &curator.TransportError{
		Operation:  op,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, msg),
	}
}
