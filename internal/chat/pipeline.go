package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pitchroom/internal/logging"
)

// SendFailedText is the notice shown when a durable write fails.
const SendFailedText = "Failed to send message. Please try again."

var (
	// ErrSendFailed wraps every durable write failure returned by Commit.
	ErrSendFailed = errors.New("send failed")

	// ErrAlreadyCommitted is returned by a second Commit of the same send.
	ErrAlreadyCommitted = errors.New("send already committed")
)

// Pipeline turns a compose-box submit into a durably stored message.
type Pipeline struct {
	store    *Store
	writer   MessageWriter
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time
}

// NewPipeline creates a Pipeline appending to store and writing through writer.
func NewPipeline(store *Store, writer MessageWriter, notifier Notifier, logger *logging.Logger) *Pipeline {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		store:    store,
		writer:   writer,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Outgoing is a send whose placeholder is visible but whose durable write
// has not run yet.
type Outgoing struct {
	p         *Pipeline
	tempID    string
	draft     Draft
	committed atomic.Bool
}

// TempID returns the placeholder id.
func (o *Outgoing) TempID() string { return o.tempID }

// Begin validates the send and appends the pending placeholder. It does no
// I/O. It returns false, silently, when content is blank, no conversation
// is selected or who has no user id. Content is stored as typed.
func (p *Pipeline) Begin(conversationID string, who Identity, content string) (*Outgoing, bool) {
	if strings.TrimSpace(content) == "" || conversationID == "" || who.UserID == "" {
		return nil, false
	}

	o := &Outgoing{
		p:      p,
		tempID: NewTempID(),
		draft: Draft{
			ConversationID: conversationID,
			AuthorID:       who.UserID,
			Content:        content,
		},
	}
	ok := p.store.AppendOptimistic(Message{
		ID:             o.tempID,
		ConversationID: conversationID,
		AuthorID:       who.UserID,
		Content:        content,
		CreatedAt:      p.now().UTC(),
		Author:         Author{Name: who.displayName()},
		Pending:        true,
	})
	if !ok {
		return nil, false
	}
	return o, true
}

// Commit issues the durable write once. On success the placeholder is
// replaced by the confirmed row. On failure the placeholder is removed, one
// notice is raised and the returned error wraps ErrSendFailed. There is no
// retry; the user resends by hand.
func (o *Outgoing) Commit(ctx context.Context) (Message, error) {
	if !o.committed.CompareAndSwap(false, true) {
		return Message{}, ErrAlreadyCommitted
	}

	p := o.p
	ctx = logging.WithConversationID(ctx, o.draft.ConversationID)

	confirmed, err := p.writer.WriteMessage(ctx, o.draft)
	if err != nil {
		p.store.Remove(o.tempID)
		p.logger.Error(ctx, "message send failed",
			zap.String("temp_id", o.tempID),
			zap.Error(err),
		)
		p.notifier.Notify(Notice{
			ConversationID: o.draft.ConversationID,
			TempID:         o.tempID,
			Text:           SendFailedText,
			Err:            err,
		})
		return Message{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	if confirmed.ConversationID == "" {
		confirmed.ConversationID = o.draft.ConversationID
	}
	confirmed = withAuthorFallback(confirmed)
	confirmed.Pending = false
	if !p.store.ReconcileInsert(o.tempID, confirmed) {
		p.logger.Debug(ctx, "confirmed message for inactive conversation",
			zap.String("message.id", confirmed.ID))
	}
	p.logger.Trace(ctx, "message confirmed",
		zap.String("temp_id", o.tempID),
		zap.String("message.id", confirmed.ID),
	)
	return confirmed, nil
}

// Send is Begin followed by Commit. A send rejected by Begin returns a zero
// Message and a nil error.
func (p *Pipeline) Send(ctx context.Context, conversationID string, who Identity, content string) (Message, error) {
	o, ok := p.Begin(conversationID, who, content)
	if !ok {
		return Message{}, nil
	}
	return o.Commit(ctx)
}
