// Package apiclient talks to a pitchroom daemon over its HTTP API. Client
// satisfies the chat package's collaborator interfaces, so a chat.Session can
// run entirely against a remote daemon.
package apiclient

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

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/feed"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/pkg/auth"
)

const defaultTimeout = 15 * time.Second

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// Config configures a Client.
type Config struct {
	// BaseURL is the daemon's root, e.g. http://127.0.0.1:8420.
	BaseURL string
	// UserID is sent as the caller identity on every API request.
	UserID string
	// Timeout bounds each non-streaming request. Zero uses 15s.
	Timeout time.Duration
	// AckTimeout bounds the wait for an event stream's ready frame when the
	// caller's context has no deadline. Zero uses feed.DefaultAckTimeout.
	AckTimeout time.Duration
	Logger     *logging.Logger
}

// Client is an HTTP client for the pitchroom API.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	// streamClient has no overall timeout; event streams are long-lived.
	streamClient *http.Client
	ackTimeout   time.Duration
	logger       *logging.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if !auth.ValidUserID(cfg.UserID) {
		return nil, fmt.Errorf("invalid user id %q", cfg.UserID)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ackTimeout := cfg.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = feed.DefaultAckTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		userID:       cfg.UserID,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		ackTimeout:   ackTimeout,
		logger:       logger.Named("apiclient"),
	}, nil
}

// UserID returns the identity the client sends.
func (c *Client) UserID() string { return c.userID }

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d)", e.Status)
	}
	return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Code, e.Message)
}

// Errors matched by APIError through errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrRateLimited = errors.New("rate limited")
)

// Is maps the response status to ErrNotFound, ErrForbidden or ErrRateLimited.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, in interface{}) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(auth.HeaderUserID, c.userID)
	return req, nil
}

// do sends one request and decodes a 2xx JSON body into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		apiErr.Code, apiErr.Message = eb.Error.Code, eb.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func conversationPath(conversationID, suffix string) string {
	return "/api/v1/conversations/" + url.PathEscape(conversationID) + suffix
}

type messageRequest struct {
	Content string `json:"content"`
}

// WriteMessage durably stores d. The author is always the client's own
// identity; d.AuthorID is not sent.
func (c *Client) WriteMessage(ctx context.Context, d chat.Draft) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPost, conversationPath(d.ConversationID, "/messages"), messageRequest{Content: d.Content}, &m)
	return m, err
}

// FetchMessages returns every message of a conversation, ascending by
// created_at.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var ms []chat.Message
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "/messages"), nil, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

// EditMessage changes the content of one of the caller's messages.
func (c *Client) EditMessage(ctx context.Context, id, content string) (chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPatch, "/api/v1/messages/"+url.PathEscape(id), messageRequest{Content: content}, &m)
	return m, err
}

// DeleteMessage removes one of the caller's messages.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/messages/"+url.PathEscape(id), nil, nil)
}

// Profile is a participant's public profile.
type Profile struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

// GetProfile returns the profile of user id.
func (c *Client) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(id), nil, &p)
	return p, err
}

// SaveProfile creates or updates the caller's profile.
func (c *Client) SaveProfile(ctx context.Context, p Profile) (Profile, error) {
	p.ID = ""
	var out Profile
	err := c.do(ctx, http.MethodPut, "/api/v1/users/me", p, &out)
	return out, err
}

// LookupAuthor resolves an author id to its display record.
func (c *Client) LookupAuthor(ctx context.Context, authorID string) (chat.Author, error) {
	p, err := c.GetProfile(ctx, authorID)
	if err != nil {
		return chat.Author{}, err
	}
	return chat.Author{Name: p.Name, AvatarURL: p.AvatarURL}, nil
}

// Health checks that the daemon is up.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("daemon reports status %q", resp.Status)
	}
	return nil
}
