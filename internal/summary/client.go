// Package summary requests a digest of user-flagged chat messages from an
// external text-generation endpoint.
//
// The call is opaque and fire-once: no retries, and at most one request in
// flight per Client.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/config"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/pitchroom/internal/summary"

// Request limits applied before sending.
const (
	MaxMessages       = 50
	MaxMessageChars   = 500
	MaxTotalChars     = 10000
	defaultTimeout    = 60 * time.Second
	maxResponseLength = 1 << 20
)

var (
	// ErrNoMessages is returned when no message has both content and an
	// author name.
	ErrNoMessages = errors.New("no valid messages to summarize")

	// ErrInFlight is returned while another Generate call is running.
	ErrInFlight = errors.New("summary generation already in progress")

	// ErrNotConfigured is returned by New without an endpoint.
	ErrNotConfigured = errors.New("summary endpoint not configured")
)

// Redactor scrubs credentials from message content. It returns the
// scrubbed content and the number of secrets replaced.
type Redactor interface {
	Redact(content string) (string, int, error)
}

// Config configures a Client.
type Config struct {
	Endpoint string
	APIKey   config.Secret
	Timeout  time.Duration
	Logger   *logging.Logger
	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
	// Redactor, when set, runs over every message before it is sent.
	Redactor Redactor
}

// Client calls the summary endpoint.
type Client struct {
	endpoint   string
	apiKey     config.Secret
	httpClient *http.Client
	logger     *logging.Logger
	tracer     trace.Tracer
	redactor   Redactor
	running    atomic.Bool
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("summary"),
		tracer:     tracer,
		redactor:   cfg.Redactor,
	}, nil
}

// wireUser and wireMessage mirror the endpoint's expected message shape.
type wireUser struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type wireMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	User      wireUser  `json:"user"`
}

type summaryRequest struct {
	Messages []wireMessage `json:"messages"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Prepare filters and truncates messages the way the endpoint expects:
// messages without content or author name are skipped, at most MaxMessages
// are kept, each is cut to MaxMessageChars and the total content to
// MaxTotalChars.
func Prepare(messages []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, min(len(messages), MaxMessages))
	total := 0
	for _, m := range messages {
		if len(out) == MaxMessages || total >= MaxTotalChars {
			break
		}
		if strings.TrimSpace(m.Content) == "" || m.Author.Name == "" {
			continue
		}
		content := truncate(m.Content, MaxMessageChars)
		content = truncate(content, MaxTotalChars-total)
		total += len([]rune(content))
		m.Content = content
		out = append(out, m)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Generate requests a summary of messages. It returns ErrNoMessages when
// nothing is left after Prepare and ErrInFlight while another call runs.
func (c *Client) Generate(ctx context.Context, messages []chat.Message) (string, error) {
	prepared := Prepare(messages)
	if len(prepared) == 0 {
		return "", ErrNoMessages
	}
	if !c.running.CompareAndSwap(false, true) {
		return "", ErrInFlight
	}
	defer c.running.Store(false)

	ctx, span := c.tracer.Start(ctx, "summary.Generate", trace.WithAttributes(
		attribute.Int("messages.count", len(prepared)),
	))
	defer span.End()

	start := time.Now()
	prepared, err := c.redact(ctx, prepared)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	summary, err := c.doRequest(ctx, prepared)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn(ctx, "summary generation failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return "", err
	}
	c.logger.Info(ctx, "summary generated",
		zap.Int("messages", len(prepared)),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

// redact scrubs every message. Nothing is sent when scrubbing fails.
func (c *Client) redact(ctx context.Context, messages []chat.Message) ([]chat.Message, error) {
	if c.redactor == nil {
		return messages, nil
	}
	total := 0
	for i := range messages {
		content, n, err := c.redactor.Redact(messages[i].Content)
		if err != nil {
			return nil, fmt.Errorf("failed to scrub message %s: %w", messages[i].ID, err)
		}
		messages[i].Content = content
		total += n
	}
	if total > 0 {
		c.logger.Info(ctx, "secrets redacted from summary request", zap.Int("count", total))
	}
	return messages, nil
}

// InFlight reports whether a Generate call is running.
func (c *Client) InFlight() bool {
	return c.running.Load()
}

func (c *Client) doRequest(ctx context.Context, messages []chat.Message) (string, error) {
	req := summaryRequest{Messages: make([]wireMessage, len(messages))}
	for i, m := range messages {
		req.Messages[i] = wireMessage{
			ID:        m.ID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			User:      wireUser{Name: m.Author.Name, AvatarURL: m.Author.AvatarURL},
		}
	}
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey.IsSet() {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey.Value())
	}

	c.logger.Debug(ctx, "requesting summary",
		zap.String("endpoint", c.endpoint),
		logging.Secret("api_key", c.apiKey),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLength))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out summaryResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != "" {
			if out.Details != "" {
				return "", fmt.Errorf("summary error (%d): %s: %s", resp.StatusCode, out.Error, out.Details)
			}
			return "", fmt.Errorf("summary error (%d): %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("summary error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if out.Summary == "" {
		return "", fmt.Errorf("empty summary in response")
	}
	return out.Summary, nil
}
