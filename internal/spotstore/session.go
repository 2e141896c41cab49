package spotstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/models"
)

const (
	keyUserEmail    = "user_email"
	keySessionToken = "session_token"
)

// SessionBackend is the identity side of the backend collaborator
type SessionBackend interface {
	UpsertUser(ctx context.Context, email string) (models.Session, error)
	SessionUser(ctx context.Context) (string, bool, error)
	SetToken(token string)
}

// Session tracks the signed-in user and caches it on the device
type Session struct {
	local   LocalStore
	backend SessionBackend
	opts    Options
	logger  *zap.Logger

	mu    sync.Mutex
	email *string
}

// NewSession creates a signed-out session
func NewSession(local LocalStore, backend SessionBackend, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{local: local, backend: backend, opts: opts, logger: opts.Logger}
}

// Email returns the signed-in email, or nil when signed out
func (s *Session) Email() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.email == nil {
		return nil
	}
	e := *s.email
	return &e
}

// Restore re-validates the cached session with the backend. A session the
// backend rejects is dropped from the cache. A backend that cannot be reached
// leaves the cache alone but the session stays signed out for this run, and
// the error wraps ErrRemoteReadFailed.
func (s *Session) Restore(ctx context.Context) (*string, error) {
	localCtx, cancel := context.WithTimeout(ctx, s.opts.LocalTimeout)
	email, hasEmail, err := s.local.Get(localCtx, keyUserEmail)
	if err == nil && hasEmail {
		var token string
		token, _, err = s.local.Get(localCtx, keySessionToken)
		s.backend.SetToken(token)
	}
	cancel()
	if err != nil {
		s.logger.Warn("cached session unreadable", zap.Error(err))
		return nil, nil
	}
	if !hasEmail {
		return nil, nil
	}

	remoteCtx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	current, ok, err := s.backend.SessionUser(remoteCtx)
	cancel()
	if err != nil {
		s.backend.SetToken("")
		return nil, fmt.Errorf("%w: %w", ErrRemoteReadFailed, err)
	}

	if !ok || !strings.EqualFold(current, email) {
		s.logger.Info("cached session rejected, signing out", zap.String("email", email))
		return nil, s.clear(ctx)
	}

	s.mu.Lock()
	s.email = &current
	s.mu.Unlock()
	return s.Email(), nil
}

// Login signs the email in with the backend and caches the session on the device
func (s *Session) Login(ctx context.Context, email string) (models.Session, error) {
	remoteCtx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	session, err := s.backend.UpsertUser(remoteCtx, email)
	cancel()
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", ErrRemoteWriteFailed, err)
	}

	localCtx, cancel := context.WithTimeout(ctx, s.opts.LocalTimeout)
	defer cancel()
	if err := s.local.Set(localCtx, keySessionToken, session.Token); err != nil {
		s.backend.SetToken("")
		return models.Session{}, fmt.Errorf("%w: %w", ErrLocalWriteFailed, err)
	}
	if err := s.local.Set(localCtx, keyUserEmail, session.Email); err != nil {
		s.backend.SetToken("")
		_ = s.local.Delete(localCtx, keySessionToken)
		return models.Session{}, fmt.Errorf("%w: %w", ErrLocalWriteFailed, err)
	}

	s.mu.Lock()
	e := session.Email
	s.email = &e
	s.mu.Unlock()

	s.logger.Info("signed in", zap.String("email", session.Email))
	return session, nil
}

// Logout forgets the session in memory and on the device
func (s *Session) Logout(ctx context.Context) error {
	return s.clear(ctx)
}

func (s *Session) clear(ctx context.Context) error {
	s.mu.Lock()
	s.email = nil
	s.mu.Unlock()
	s.backend.SetToken("")

	localCtx, cancel := context.WithTimeout(ctx, s.opts.LocalTimeout)
	defer cancel()
	for _, key := range []string{keyUserEmail, keySessionToken} {
		if err := s.local.Delete(localCtx, key); err != nil {
			return fmt.Errorf("%w: %w", ErrLocalWriteFailed, err)
		}
	}
	return nil
}
