package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/auth"
	"github.com/jengzang/spotmap-go/internal/models"
	"github.com/jengzang/spotmap-go/internal/repository"
)

// SessionService signs users in and checks their tokens
type SessionService struct {
	users  repository.UserRepository
	issuer *auth.Issuer
	logger *zap.Logger
}

// NewSessionService creates a new session service
func NewSessionService(users repository.UserRepository, issuer *auth.Issuer, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{users: users, issuer: issuer, logger: logger}
}

// SignIn upserts the user and returns a fresh session token
func (s *SessionService) SignIn(ctx context.Context, email string) (*models.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Upsert(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	token, expires, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in", zap.String("email", user.Email))
	return &models.Session{Token: token, Email: user.Email, ExpiresAt: expires}, nil
}

// Verify returns the email behind a token, provided the user still exists
func (s *SessionService) Verify(ctx context.Context, token string) (string, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if _, err := s.users.GetByEmail(ctx, claims.Email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: unknown user", ErrUnauthorized)
		}
		return "", err
	}
	return claims.Email, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: invalid email %q", ErrInvalidInput, raw)
	}
	return strings.ToLower(addr.Address), nil
}
