package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is a participant's role in the collaboration app.
type Role string

const (
	RolePitcher      Role = "pitcher"
	RoleCollaborator Role = "collaborator"
	RoleProfessional Role = "professional"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePitcher, RoleCollaborator, RoleProfessional:
		return true
	}
	return false
}

// User is a participant profile.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// GetUser returns the profile with id.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var (
		u         User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, avatar_url, role, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.AvatarURL, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("%w: get user: %v", ErrDatabaseError, err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpsertUser creates or updates a profile. CreatedAt is kept on update.
func (s *Store) UpsertUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" || strings.TrimSpace(u.Name) == "" {
		return User{}, fmt.Errorf("%w: user id and name are required", ErrInvalidInput)
	}
	if !u.Role.Valid() {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, avatar_url, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			role = excluded.role`,
		u.ID, u.Name, u.AvatarURL, string(u.Role), formatTime(s.now()),
	)
	if err != nil {
		return User{}, fmt.Errorf("%w: upsert user: %v", ErrDatabaseError, err)
	}
	return s.GetUser(ctx, u.ID)
}
