// Package client implements the halyard chat server API: authentication,
// conversation management, and the streaming chat session controller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/halyard-ai/halyard/chat"
	"github.com/halyard-ai/halyard/retry"
	"github.com/halyard-ai/halyard/slogger"
)

// APIError is a non-2xx response from the server. Detail carries the
// server-supplied message when one was present.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server error (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server error (status %d)", e.Status)
}

// StatusCode implements retry.APIError.
func (e *APIError) StatusCode() int {
	return e.Status
}

var _ retry.APIError = &APIError{}

// Client is an authenticated halyard chat server API client. It is safe for
// concurrent use once configured; SetToken must not race with requests.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     slogger.Logger
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for all requests. The client's
// transport must support streamed response bodies for Chat.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithToken sets the bearer token used to authenticate requests.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(logger slogger.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMaxRetries sets the retry budget for setup calls.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slogger.DefaultLogger,
		maxRetries: retry.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, typically after Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL returns the normalized server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoginResult is the successful response to Login.
type LoginResult struct {
	UserID      string
	AccessToken string
}

// Login authenticates with the server and returns the access token. The
// token is also installed on the client for subsequent requests.
func (c *Client) Login(ctx context.Context, id, password, deviceName string) (*LoginResult, error) {
	body := map[string]string{
		"id":          id,
		"password":    password,
		"device_name": deviceName,
	}
	var result struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", body, &result); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	c.token = result.AccessToken
	return &LoginResult{
		UserID:      result.User.ID,
		AccessToken: result.AccessToken,
	}, nil
}

// Conversation is a conversation summary from the server listing.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ConversationDetail is a single conversation with its flat message log.
type ConversationDetail struct {
	ID       string               `json:"id"`
	Title    string               `json:"title,omitempty"`
	Messages []chat.ServerMessage `json:"messages"`
}

// CreateConversation creates a new conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations", struct{}{}, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// ListConversations fetches the conversation listing.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var result []Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetConversation fetches one conversation's flat message log. Pass the
// result to chat.ReconcileHistory for rendering.
func (c *Client) GetConversation(ctx context.Context, id string) (*ConversationDetail, error) {
	var result ConversationDetail
	path := fmt.Sprintf("/api/conversations/%s", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelConversation asks the server to stop the conversation's in-flight
// generation. It is best-effort: callers typically ignore the error.
func (c *Client) CancelConversation(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/conversations/%s/cancel", id)
	return c.doJSON(ctx, http.MethodPost, path, struct{}{}, nil)
}

// SafetyDecision approves or rejects a paused tool invocation.
func (c *Client) SafetyDecision(ctx context.Context, conversationID, reviewID string, approve bool) error {
	decision := "reject"
	if approve {
		decision = "approve"
	}
	body := map[string]string{
		"review_id": reviewID,
		"decision":  decision,
	}
	path := fmt.Sprintf("/api/conversations/%s/safety/decision", conversationID)
	return c.doJSON(ctx, http.MethodPost, path, body, nil)
}

// doJSON performs one request/response API call with retries on transient
// status codes. Streaming requests do not go through here.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	return retry.Do(ctx, func() error {
		var reqBody io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("error marshaling request: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}
		req, err := c.newRequest(ctx, method, path, reqBody)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("error making request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return apiErrorFromResponse(resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
		return nil
	}, retry.WithMaxRetries(c.maxRetries))
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// apiErrorFromResponse builds an APIError from a non-2xx response, using the
// server's detail field when the body carries one.
func apiErrorFromResponse(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != "" {
		apiErr.Detail = payload.Detail
	}
	return apiErr
}
