// Package http provides the pitchroom HTTP API: message CRUD, profiles and a
// server-sent event stream of conversation change events.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/internal/storage"
	"github.com/fyrsmithlabs/pitchroom/pkg/auth"
)

// MessageService is the server-side message service.
type MessageService interface {
	Post(ctx context.Context, d chat.Draft) (chat.Message, error)
	List(ctx context.Context, conversationID string) ([]chat.Message, error)
	Edit(ctx context.Context, id, authorID, content string) (chat.Message, error)
	Delete(ctx context.Context, id, authorID string) error
	Author(ctx context.Context, id string) (storage.User, error)
	SaveProfile(ctx context.Context, u storage.User) (storage.User, error)
}

// Server provides HTTP endpoints for pitchroom.
type Server struct {
	echo    *echo.Echo
	svc     MessageService
	feed    chat.Feed
	limiter *auth.Limiter
	logger  *logging.Logger
	metrics *apiMetrics
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// HeartbeatInterval is the comment frame period on event streams.
	HeartbeatInterval time.Duration

	// MessagesPerSecond and Burst size the per-user posting budget.
	MessagesPerSecond float64
	Burst             int

	// Meter records API metrics. Defaults to the global otel meter.
	Meter metric.Meter
}

func (c *Config) withDefaults() *Config {
	out := Config{Host: "localhost", Port: 8420}
	if c != nil {
		out = *c
	}
	if out.Meter == nil {
		out.Meter = otel.Meter(instrumentationName)
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = 30 * time.Second
	}
	return &out
}

// NewServer creates a new HTTP server. feed may be nil, in which case the
// event stream endpoint answers 503.
func NewServer(svc MessageService, feed chat.Feed, logger *logging.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("message service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	cfg = cfg.withDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		svc:     svc,
		feed:    feed,
		limiter: auth.NewLimiter(cfg.MessagesPerSecond, cfg.Burst),
		logger:  logger.Named("http"),
		metrics: newAPIMetrics(cfg.Meter, logger.Underlying()),
		config:  cfg,
	}
	e.HTTPErrorHandler = s.handleError

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.middleware)
	e.Use(s.requestLogger)

	s.registerRoutes()

	return s, nil
}

// requestLogger carries the request id into the request context and logs
// each request once it completes.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// withIdentity copies the authenticated user id into the request context.
func withIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithUserID(req.Context(), auth.UserID(c))))
		return next(c)
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1", auth.IdentityMiddleware(), withIdentity)
	v1.GET("/conversations/:id/messages", s.handleListMessages)
	v1.POST("/conversations/:id/messages", s.handlePostMessage, s.limiter.Middleware())
	v1.GET("/conversations/:id/feed", s.handleFeed)
	v1.PATCH("/messages/:id", s.handleEditMessage)
	v1.DELETE("/messages/:id", s.handleDeleteMessage)
	v1.GET("/users/:id", s.handleGetUser)
	v1.PUT("/users/me", s.handleSaveProfile)
}

// Mount serves h under path, outside the authenticated API group.
func (s *Server) Mount(path string, h http.Handler) {
	s.echo.GET(path, echo.WrapHandler(h))
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleError renders err as an ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorResponse{Error: detail})
}

func classify(err error) (int, ErrorDetail) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, ErrorDetail{Code: codeForStatus(he.Code), Message: fmt.Sprint(he.Message)}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{Code: "not_found", Message: err.Error()}
	case errors.Is(err, storage.ErrForbidden):
		return http.StatusForbidden, ErrorDetail{Code: "forbidden", Message: err.Error()}
	case errors.Is(err, storage.ErrEmptyContent),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, storage.ErrInvalidRole),
		errors.Is(err, errInvalidConversation):
		return http.StatusBadRequest, ErrorDetail{Code: "invalid_request", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: "internal", Message: "internal server error"}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= http.StatusInternalServerError {
		return "internal"
	}
	return "error"
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
