package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// KeyHeader carries the user's own LLM provider credential on every
// LLM-backed call.
const KeyHeader = "X-OpenAI-Key"

// Client calls the mockmate backend over HTTP. It is a pure I/O
// boundary: no caching, no retries, one error value per call.
//
// Two underlying HTTP clients are used: a short timeout for plain CRUD
// and a long one for LLM-backed calls (chat turns, feedback, match
// analysis, resume parsing, transcription). The synthesis stream has no
// client timeout; callers cancel through the context.
type Client struct {
	baseURL string
	keyFn   func() string
	crud    *http.Client
	llm     *http.Client
	stream  *http.Client
}

const (
	crudTimeout = 15 * time.Second
	llmTimeout  = 120 * time.Second
)

// APIError represents a backend error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Option customizes the client.
type Option func(*Client)

// WithKeyProvider sets the source of the user's API key. The provider
// is consulted per request so a key saved mid-session takes effect
// without rebuilding the client.
func WithKeyProvider(fn func() string) Option {
	return func(c *Client) { c.keyFn = fn }
}

// NewClient constructs a backend client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		keyFn:   func() string { return "" },
		crud:    &http.Client{Timeout: crudTimeout},
		llm:     &http.Client{Timeout: llmTimeout},
		stream:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VerifyKey checks the stored API key against the provider. A nil error
// means the key is usable.
func (c *Client) VerifyKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/key/verify", nil)
	if err != nil {
		return err
	}
	c.addKey(req)
	return c.do(c.crud, req, nil)
}

func (c *Client) addKey(req *http.Request) {
	if key := c.keyFn(); key != "" {
		req.Header.Set(KeyHeader, key)
	}
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes the request and decodes a JSON response into out (nil out
// discards the body). Non-2xx statuses become *APIError with a message
// taken from the response body when one is present.
func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var errResp struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	msg := errResp.Detail
	if msg == "" {
		msg = errResp.Error
	}
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
