// Package service orchestrates the ledger engine over storage: it loads
// snapshots, runs the pure computations, and applies mutations atomically.
package service

import (
	"context"
	"log/slog"

	"github.com/exsplitter/backend/internal/auth"
	"github.com/exsplitter/backend/internal/models"
)

// AuthService handles member registration and login.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Register creates a new member account and returns the member with a session
// token.
func (s *AuthService) Register(ctx context.Context, email, displayName, password string) (*models.Member, string, error) {
	s.logger.Info("Register request", "email", email)

	if email == "" || displayName == "" {
		return nil, "", auth.ErrInvalidCredentials
	}

	member, err := s.authenticator.Register(ctx, email, displayName, password)
	if err != nil {
		s.logger.Error("Registration failed", "email", email, "error", err)
		return nil, "", err
	}

	token, err := s.jwtManager.Generate(member)
	if err != nil {
		s.logger.Error("Failed to generate token", "member_id", member.ID, "error", err)
		return nil, "", err
	}

	s.logger.Info("Member registered", "member_id", member.ID, "email", member.Email)
	return member, token, nil
}

// Login authenticates a member and returns the member with a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Member, string, error) {
	s.logger.Info("Login request", "email", email)

	if email == "" || password == "" {
		return nil, "", auth.ErrInvalidCredentials
	}

	member, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		return nil, "", auth.ErrInvalidCredentials
	}

	token, err := s.jwtManager.Generate(member)
	if err != nil {
		s.logger.Error("Failed to generate token", "member_id", member.ID, "error", err)
		return nil, "", err
	}

	s.logger.Info("Member logged in", "member_id", member.ID)
	return member, token, nil
}
