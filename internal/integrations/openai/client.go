package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	betaHeader     = "assistants=v2"
)

// Run statuses reported by the Assistants API.
const (
	RunStatusQueued         = "queued"
	RunStatusInProgress     = "in_progress"
	RunStatusRequiresAction = "requires_action"
	RunStatusCancelling     = "cancelling"
	RunStatusCancelled      = "cancelled"
	RunStatusFailed         = "failed"
	RunStatusCompleted      = "completed"
	RunStatusIncomplete     = "incomplete"
	RunStatusExpired        = "expired"
)

// ErrMissingAPIKey is returned by every call when the client has no API key.
var ErrMissingAPIKey = errors.New("openai: API key is not configured")

// Thread is the minimal thread object.
type Thread struct {
	ID string `json:"id"`
}

// RunError is the last_error payload attached to failed runs.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is the minimal run object.
type Run struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      string    `json:"status"`
	LastError   *RunError `json:"last_error,omitempty"`
}

// Pending reports whether the run is still waiting to reach a terminal status.
func (r Run) Pending() bool {
	return r.Status == RunStatusQueued || r.Status == RunStatusInProgress
}

// MessageText is the text payload of a content part.
type MessageText struct {
	Value string `json:"value"`
}

// MessageContent is one content part of a thread message. Only text parts are used.
type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

// Message is a thread message.
type Message struct {
	ID       string           `json:"id"`
	ThreadID string           `json:"thread_id"`
	Role     string           `json:"role"`
	RunID    string           `json:"run_id,omitempty"`
	Content  []MessageContent `json:"content"`
}

// Text returns the value of the first text content part, if any.
func (m Message) Text() (string, bool) {
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			return c.Text.Value, true
		}
	}
	return "", false
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

type messageList struct {
	Object string    `json:"object"`
	Data   []Message `json:"data"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for the OpenAI Assistants v2 endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client. An empty apiKey is accepted so the service can
// start and report its configuration; every call then fails with ErrMissingAPIKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     strings.TrimSpace(apiKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasAPIKey reports whether the client was configured with a key.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func endpointURL(baseURL string, segments ...string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return base + "/" + strings.Join(escaped, "/")
}

// CreateThread starts an empty thread.
func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var out Thread
	if err := c.call(ctx, http.MethodPost, endpointURL(c.baseURL, "threads"), struct{}{}, &out); err != nil {
		return Thread{}, fmt.Errorf("openai: create thread: %w", err)
	}
	if out.ID == "" {
		return Thread{}, errors.New("openai: create thread: response missing id")
	}
	return out, nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (Message, error) {
	if threadID == "" {
		return Message{}, errors.New("openai: thread id must not be empty")
	}
	var out Message
	u := endpointURL(c.baseURL, "threads", threadID, "messages")
	if err := c.call(ctx, http.MethodPost, u, createMessageRequest{Role: role, Content: content}, &out); err != nil {
		return Message{}, fmt.Errorf("openai: create message: %w", err)
	}
	return out, nil
}

// CreateRun starts the assistant on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	if threadID == "" {
		return Run{}, errors.New("openai: thread id must not be empty")
	}
	if assistantID == "" {
		return Run{}, errors.New("openai: assistant id must not be empty")
	}
	var out Run
	u := endpointURL(c.baseURL, "threads", threadID, "runs")
	if err := c.call(ctx, http.MethodPost, u, createRunRequest{AssistantID: assistantID}, &out); err != nil {
		return Run{}, fmt.Errorf("openai: create run: %w", err)
	}
	if out.ID == "" {
		return Run{}, errors.New("openai: create run: response missing id")
	}
	return out, nil
}

// RetrieveRun fetches the current state of a run.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	if threadID == "" || runID == "" {
		return Run{}, errors.New("openai: thread id and run id are required")
	}
	var out Run
	u := endpointURL(c.baseURL, "threads", threadID, "runs", runID)
	if err := c.call(ctx, http.MethodGet, u, nil, &out); err != nil {
		return Run{}, fmt.Errorf("openai: retrieve run: %w", err)
	}
	return out, nil
}

// ListMessages returns the thread's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	if threadID == "" {
		return nil, errors.New("openai: thread id must not be empty")
	}
	var out messageList
	u := endpointURL(c.baseURL, "threads", threadID, "messages") + "?order=desc"
	if err := c.call(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, fmt.Errorf("openai: list messages: %w", err)
	}
	return out.Data, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, in, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)

	raw, err := c.doJSONRequest(req, endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, endpoint string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
