// Package messages is the server-side message service. Every change is
// written to the durable store first and then published on the change feed.
package messages

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
	"github.com/fyrsmithlabs/pitchroom/internal/storage"
)

const instrumentationName = "github.com/fyrsmithlabs/pitchroom/internal/messages"

// Repository is the durable store.
type Repository interface {
	InsertMessage(ctx context.Context, d chat.Draft) (chat.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	UpdateMessage(ctx context.Context, id, authorID, content string) (chat.Message, error)
	DeleteMessage(ctx context.Context, id, authorID string) (chat.Message, error)
	GetUser(ctx context.Context, id string) (storage.User, error)
	UpsertUser(ctx context.Context, u storage.User) (storage.User, error)
}

// Publisher publishes change events.
type Publisher interface {
	Publish(ctx context.Context, ev chat.ChangeEvent) error
}

// Service coordinates durable writes and change-feed publication.
type Service struct {
	repo      Repository
	publisher Publisher
	logger    *logging.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// NewService creates a Service. publisher may be nil, in which case no
// change events are sent.
func NewService(repo Repository, publisher Publisher, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.Named("messages"),
		metrics:   NewMetrics(),
		tracer:    otel.Tracer(instrumentationName),
	}
}

// Post stores a new message and publishes its insert event.
func (s *Service) Post(ctx context.Context, d chat.Draft) (chat.Message, error) {
	ctx, span := s.tracer.Start(ctx, "messages.Post", trace.WithAttributes(
		attribute.String("conversation.id", d.ConversationID),
	))
	defer span.End()

	m, err := s.observe("post", func() (chat.Message, error) { return s.repo.InsertMessage(ctx, d) })
	if err != nil {
		recordError(span, err)
		return chat.Message{}, err
	}
	span.SetAttributes(attribute.String("message.id", m.ID))

	s.publish(ctx, chat.ChangeEvent{Type: chat.EventInsert, ConversationID: m.ConversationID, Message: m})
	return m, nil
}

// List returns a conversation's messages ascending by created_at.
func (s *Service) List(ctx context.Context, conversationID string) ([]chat.Message, error) {
	ctx, span := s.tracer.Start(ctx, "messages.List", trace.WithAttributes(
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	ms, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("messages.count", len(ms)))
	return ms, nil
}

// Edit changes the content of the caller's own message.
func (s *Service) Edit(ctx context.Context, id, authorID, content string) (chat.Message, error) {
	ctx, span := s.tracer.Start(ctx, "messages.Edit", trace.WithAttributes(attribute.String("message.id", id)))
	defer span.End()

	m, err := s.observe("edit", func() (chat.Message, error) { return s.repo.UpdateMessage(ctx, id, authorID, content) })
	if err != nil {
		recordError(span, err)
		return chat.Message{}, err
	}
	s.publish(ctx, chat.ChangeEvent{Type: chat.EventUpdate, ConversationID: m.ConversationID, Message: m})
	return m, nil
}

// Delete removes the caller's own message.
func (s *Service) Delete(ctx context.Context, id, authorID string) error {
	ctx, span := s.tracer.Start(ctx, "messages.Delete", trace.WithAttributes(attribute.String("message.id", id)))
	defer span.End()

	m, err := s.observe("delete", func() (chat.Message, error) { return s.repo.DeleteMessage(ctx, id, authorID) })
	if err != nil {
		recordError(span, err)
		return err
	}
	s.publish(ctx, chat.ChangeEvent{
		Type:           chat.EventDelete,
		ConversationID: m.ConversationID,
		Message:        chat.Message{ID: m.ID, ConversationID: m.ConversationID},
	})
	return nil
}

// Author returns the display record of a user.
func (s *Service) Author(ctx context.Context, id string) (storage.User, error) {
	return s.repo.GetUser(ctx, id)
}

// SaveProfile creates or updates the caller's profile.
func (s *Service) SaveProfile(ctx context.Context, u storage.User) (storage.User, error) {
	return s.repo.UpsertUser(ctx, u)
}

func (s *Service) observe(op string, fn func() (chat.Message, error)) (chat.Message, error) {
	start := time.Now()
	m, err := fn()
	s.metrics.WriteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.WritesTotal.WithLabelValues(op, result).Inc()
	return m, err
}

// publish never fails the caller: the row is already durable.
func (s *Service) publish(ctx context.Context, ev chat.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.metrics.PublishFailuresTotal.WithLabelValues(string(ev.Type)).Inc()
		s.logger.Error(logging.WithConversationID(ctx, ev.ConversationID), "change event publish failed",
			zap.String("event_type", string(ev.Type)),
			zap.String("message.id", ev.Message.ID),
			zap.Error(err),
		)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
