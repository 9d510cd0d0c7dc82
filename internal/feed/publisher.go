package feed

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

// Publisher publishes change events after durable writes.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
}

// NewPublisher creates a Publisher on nc. An empty prefix uses DefaultPrefix.
func NewPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}
}

// Publish sends ev on its conversation subject.
func (p *Publisher) Publish(ctx context.Context, ev chat.ChangeEvent) error {
	if err := ValidateConversationID(ev.ConversationID); err != nil {
		return err
	}
	data, err := Encode(ev)
	if err != nil {
		return err
	}

	subject := Subject(p.prefix, ev.ConversationID, ev.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	p.logger.Trace(ctx, "change event published",
		zap.String("subject", subject),
		zap.String("message.id", ev.Message.ID),
	)
	return nil
}
