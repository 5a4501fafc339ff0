package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/storage"
)

// CreateMember persists a new member to the database.
func (s *SQLiteStore) CreateMember(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.JoinedAt == 0 {
		member.JoinedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO members (id, name, email, password_hash, joined_at) VALUES (?, ?, ?, ?, ?)",
		member.ID, member.Name, member.Email, member.PasswordHash, member.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// GetMember retrieves a member by ID.
func (s *SQLiteStore) GetMember(ctx context.Context, id string) (*models.Member, error) {
	return s.getMember(ctx, "id = ?", id)
}

// GetMemberByEmail retrieves a member by email.
func (s *SQLiteStore) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	return s.getMember(ctx, "email = ?", email)
}

func (s *SQLiteStore) getMember(ctx context.Context, where string, arg any) (*models.Member, error) {
	member := &models.Member{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, joined_at FROM members WHERE "+where,
		arg,
	).Scan(&member.ID, &member.Name, &member.Email, &member.PasswordHash, &member.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: member %v", storage.ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}
