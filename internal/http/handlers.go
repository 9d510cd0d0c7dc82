package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/feed"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/internal/storage"
	"github.com/fyrsmithlabs/pitchroom/pkg/auth"
)

var errInvalidConversation = errors.New("invalid conversation id")

// MessageRequest is the request body for POST /conversations/:id/messages
// and PATCH /messages/:id.
type MessageRequest struct {
	Content string `json:"content"`
}

// ProfileRequest is the request body for PUT /users/me.
type ProfileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

// UserResponse is the public profile returned by GET /users/:id.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

func toUserResponse(u storage.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL, Role: string(u.Role)}
}

// conversationParam returns the validated :id path parameter.
func conversationParam(c echo.Context) (string, error) {
	id := c.Param("id")
	if err := feed.ValidateConversationID(id); err != nil {
		return "", fmt.Errorf("%w: %q", errInvalidConversation, id)
	}
	return id, nil
}

// handleListMessages returns a conversation's messages ascending by created_at.
func (s *Server) handleListMessages(c echo.Context) error {
	conv, err := conversationParam(c)
	if err != nil {
		return err
	}
	msgs, err := s.svc.List(c.Request().Context(), conv)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

// handlePostMessage stores a message authored by the caller.
func (s *Server) handlePostMessage(c echo.Context) error {
	conv, err := conversationParam(c)
	if err != nil {
		return err
	}
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid message request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := logging.WithConversationID(c.Request().Context(), conv)
	m, err := s.svc.Post(ctx, chat.Draft{
		ConversationID: conv,
		AuthorID:       auth.UserID(c),
		Content:        req.Content,
	})
	if err != nil {
		return err
	}
	s.logger.Debug(ctx, "message posted", zap.String("message.id", m.ID))
	return c.JSON(http.StatusCreated, m)
}

// handleEditMessage changes the content of the caller's own message.
func (s *Server) handleEditMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := s.svc.Edit(c.Request().Context(), c.Param("id"), auth.UserID(c), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// handleDeleteMessage removes the caller's own message.
func (s *Server) handleDeleteMessage(c echo.Context) error {
	if err := s.svc.Delete(c.Request().Context(), c.Param("id"), auth.UserID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleGetUser returns a participant's public profile.
func (s *Server) handleGetUser(c echo.Context) error {
	u, err := s.svc.Author(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}

// handleSaveProfile creates or updates the caller's profile.
func (s *Server) handleSaveProfile(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := s.svc.SaveProfile(c.Request().Context(), storage.User{
		ID:        auth.UserID(c),
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
		Role:      storage.Role(req.Role),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}
