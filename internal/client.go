package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultRequestTimeout = 60 * time.Second

	// SessionCookieName is the cookie the backend keys sessions on
	SessionCookieName = "sessionid"
)

// Backend is the quotation service a Session talks to
type Backend interface {
	SendChatMessage(ctx context.Context, message string) (*ChatResponse, error)
	GetQuotation(ctx context.Context) (*Quotation, error)
	SyncQuotation(ctx context.Context, q Quotation) error
	ResetQuotation(ctx context.Context) error
	GetConversationHistory(ctx context.Context) ([]ConversationEntry, error)
	SyncConversationHistory(ctx context.Context, entries []ConversationEntry) error
}

// ChatResponse is the backend's answer to a chat message. Quotation is nil
// when the backend did not send one.
type ChatResponse struct {
	Response  string     `json:"response"`
	Quotation *Quotation `json:"quotation"`
}

// ClientOptions configures an HTTPClient
type ClientOptions struct {
	BaseURL   string
	Token     string        // sent as a bearer token when set
	SessionID string        // pre-seeds the session cookie when set
	Timeout   time.Duration // per request, DefaultRequestTimeout when zero
}

// HTTPClient implements Backend over the JSON API.
// It is safe for concurrent use.
type HTTPClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the backend at opts.BaseURL
func NewHTTPClient(opts ClientOptions) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", opts.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if opts.SessionID != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: SessionCookieName, Value: opts.SessionID, Path: "/"}})
	}

	return &HTTPClient{
		baseURL: base,
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
	}, nil
}

// SessionID returns the session cookie currently held for the backend
func (c *HTTPClient) SessionID() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == SessionCookieName {
			return cookie.Value
		}
	}
	return ""
}

// SendChatMessage posts one user message. The backend keeps the
// conversation context itself.
func (c *HTTPClient) SendChatMessage(ctx context.Context, message string) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, "chat", http.MethodPost, "/api/chat/", map[string]string{"message": message}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetQuotation fetches the session's quotation, nil when there is none
func (c *HTTPClient) GetQuotation(ctx context.Context) (*Quotation, error) {
	var resp struct {
		Quotation *Quotation `json:"quotation"`
	}
	if err := c.do(ctx, "get-quotation", http.MethodGet, "/api/quotation/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Quotation, nil
}

// SyncQuotation replaces the session's quotation
func (c *HTTPClient) SyncQuotation(ctx context.Context, q Quotation) error {
	return c.do(ctx, "sync-quotation", http.MethodPost, "/api/sync-quotation/", map[string]Quotation{"quotation": q}, nil)
}

// ResetQuotation clears the session's quotation and conversation
func (c *HTTPClient) ResetQuotation(ctx context.Context) error {
	return c.do(ctx, "reset", http.MethodPost, "/api/reset/", struct{}{}, nil)
}

// GetConversationHistory fetches the stored conversation
func (c *HTTPClient) GetConversationHistory(ctx context.Context) ([]ConversationEntry, error) {
	var resp struct {
		Messages []ConversationEntry `json:"messages"`
	}
	if err := c.do(ctx, "get-conversation", http.MethodGet, "/api/conversation-history/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SyncConversationHistory replaces the stored conversation
func (c *HTTPClient) SyncConversationHistory(ctx context.Context, entries []ConversationEntry) error {
	if entries == nil {
		entries = []ConversationEntry{}
	}
	body := map[string][]ConversationEntry{"messages": entries}
	return c.do(ctx, "sync-conversation", http.MethodPost, "/api/sync-conversation-history/", body, nil)
}

// Ping checks that the backend answers at all
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/api/quotation/", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	LogDebug("%s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{Op: op, Status: resp.StatusCode, Body: data}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Body: data, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
