package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/pitchroom/internal/chat"
)

const messageColumns = `
	m.id, m.conversation_id, m.author_id, m.content, m.created_at,
	u.name, u.avatar_url`

const messageFrom = `
	FROM messages m
	LEFT JOIN users u ON u.id = m.author_id`

// InsertMessage stores d with a new id and the current UTC time and returns
// the row with its author display joined. Content is stored as given.
func (s *Store) InsertMessage(ctx context.Context, d chat.Draft) (chat.Message, error) {
	if strings.TrimSpace(d.Content) == "" {
		return chat.Message{}, ErrEmptyContent
	}
	if d.ConversationID == "" || d.AuthorID == "" {
		return chat.Message{}, fmt.Errorf("%w: conversation and author are required", ErrInvalidInput)
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, d.ConversationID, d.AuthorID, d.Content, formatTime(s.now()),
	)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: insert message: %v", ErrDatabaseError, err)
	}
	return s.GetMessage(ctx, id)
}

// GetMessage returns one message by id.
func (s *Store) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+messageColumns+messageFrom+` WHERE m.id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Message{}, ErrNotFound
	}
	return m, err
}

// ListMessages returns the conversation's messages ascending by created_at.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+messageColumns+messageFrom+`
		WHERE m.conversation_id = ?
		ORDER BY m.created_at ASC, m.rowid ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	out := []chat.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", ErrDatabaseError, err)
	}
	return out, nil
}

// UpdateMessage replaces the content of a message owned by authorID.
func (s *Store) UpdateMessage(ctx context.Context, id, authorID, content string) (chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return chat.Message{}, ErrEmptyContent
	}
	if err := s.checkOwner(ctx, id, authorID); err != nil {
		return chat.Message{}, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE messages SET content = ? WHERE id = ?`, content, id); err != nil {
		return chat.Message{}, fmt.Errorf("%w: update message: %v", ErrDatabaseError, err)
	}
	return s.GetMessage(ctx, id)
}

// DeleteMessage removes a message owned by authorID and returns the removed row.
func (s *Store) DeleteMessage(ctx context.Context, id, authorID string) (chat.Message, error) {
	m, err := s.GetMessage(ctx, id)
	if err != nil {
		return chat.Message{}, err
	}
	if m.AuthorID != authorID {
		return chat.Message{}, ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return chat.Message{}, fmt.Errorf("%w: delete message: %v", ErrDatabaseError, err)
	}
	return m, nil
}

func (s *Store) checkOwner(ctx context.Context, id, authorID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT author_id FROM messages WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if owner != authorID {
		return ErrForbidden
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(r rowScanner) (chat.Message, error) {
	var (
		m         chat.Message
		createdAt string
		name      sql.NullString
		avatar    sql.NullString
	)
	if err := r.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.Content, &createdAt, &name, &avatar); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Message{}, err
		}
		return chat.Message{}, fmt.Errorf("%w: scan message: %v", ErrDatabaseError, err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return chat.Message{}, err
	}
	m.CreatedAt = t

	if name.Valid && name.String != "" {
		m.Author = chat.Author{Name: name.String, AvatarURL: avatar.String}
	} else {
		m.Author = chat.UnknownAuthor
	}
	return m, nil
}
