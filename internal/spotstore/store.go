// Package spotstore owns the private and public spot collections on the
// device. Private spots live in the local key-value store; public spots are
// published to, and re-read from, the backend.
package spotstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/spotmap-go/internal/models"
)

const keyPrivateSpots = "private_spots"

// LocalStore is the on-device key-value collaborator
type LocalStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// RemoteService is the backend collaborator for public spots
type RemoteService interface {
	ListPublicSpots(ctx context.Context) ([]models.Spot, error)
	InsertPublicSpot(ctx context.Context, spot models.Spot) error
}

// Options tune a Store
type Options struct {
	Locale        models.Locale
	RemoteTimeout time.Duration
	LocalTimeout  time.Duration
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = 10 * time.Second
	}
	if o.LocalTimeout <= 0 {
		o.LocalTimeout = 2 * time.Second
	}
	if o.Locale == "" {
		o.Locale = models.LocaleEnglish
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// CreateRequest carries the user input for a new spot
type CreateRequest struct {
	At          models.Coordinates
	Name        string
	Description string
	Visibility  models.Visibility
	Type        *string
	// User is the signed-in email; required for public spots
	User *string
}

// Store holds both collections. Every operation moves from one consistent
// (memory, persisted) pair to the next; a failed operation leaves both as
// they were.
type Store struct {
	local  LocalStore
	remote RemoteService
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	private []models.Spot
	public  []models.Spot
	// readErr is set when the last LoadAll could not read the stored private
	// collection; private writes would overwrite it, so they are refused.
	readErr error
}

// New creates a store with empty collections; call LoadAll to populate it
func New(local LocalStore, remote RemoteService, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		local:   local,
		remote:  remote,
		opts:    opts,
		logger:  opts.Logger,
		private: []models.Spot{},
		public:  []models.Spot{},
	}
}

// LoadAll reads the private collection from local storage and the public
// collection from the backend, concurrently. Missing or malformed local data
// is an empty collection. Storage that cannot be read, or that was written
// by a newer format, also shows as empty, and private writes are refused with
// ErrLocalWriteFailed until a later LoadAll reads it. A backend failure yields
// an empty public collection and an error wrapping ErrRemoteReadFailed; the
// private result is still valid.
func (s *Store) LoadAll(ctx context.Context) (private, public []models.Spot, err error) {
	var privateErr, publicErr error
	var g errgroup.Group

	g.Go(func() error {
		private, privateErr = s.readPrivate(ctx)
		return nil
	})
	g.Go(func() error {
		public, publicErr = s.fetchPublic(ctx)
		if publicErr != nil {
			public = []models.Spot{}
		}
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	s.private = private
	s.readErr = privateErr
	s.public = public
	s.mu.Unlock()

	return slices.Clone(private), slices.Clone(public), publicErr
}

// Create builds a spot from the request and stores it according to its
// visibility. On a public create whose insert succeeded but whose refresh
// failed, the spot is returned together with an ErrRemoteReadFailed error.
func (s *Store) Create(ctx context.Context, req CreateRequest) (models.Spot, error) {
	if !req.Visibility.Valid() {
		return models.Spot{}, fmt.Errorf("%w: %q", ErrInvalidVisibility, req.Visibility)
	}

	spot := models.NewSpot(s.opts.Locale, req.At, req.Name, req.Description, req.Visibility)
	if req.Type != nil {
		if t := strings.TrimSpace(*req.Type); t != "" {
			spot.Type = &t
		}
	}

	if req.Visibility == models.VisibilityPublic {
		return s.createPublic(ctx, spot, req.User)
	}
	return s.createPrivate(ctx, spot)
}

func (s *Store) createPublic(ctx context.Context, spot models.Spot, user *string) (models.Spot, error) {
	if user == nil || strings.TrimSpace(*user) == "" {
		return models.Spot{}, ErrAuthRequired
	}
	owner := *user
	spot.Owner = &owner

	s.mu.Lock()
	defer s.mu.Unlock()

	insertCtx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	err := s.remote.InsertPublicSpot(insertCtx, spot)
	cancel()
	if err != nil {
		s.logger.Warn("public spot insert failed", zap.Error(err))
		return models.Spot{}, fmt.Errorf("%w: %w", ErrRemoteWriteFailed, err)
	}

	// Re-read the whole collection rather than appending locally.
	public, err := s.fetchPublic(ctx)
	if err != nil {
		s.logger.Warn("public refresh after insert failed", zap.Error(err))
		return spot, err
	}
	s.public = public

	s.logger.Info("public spot created", zap.String("name", spot.Name), zap.Int("public_count", len(public)))
	return spot, nil
}

func (s *Store) createPrivate(ctx context.Context, spot models.Spot) (models.Spot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return models.Spot{}, err
	}
	next := append(slices.Clone(s.private), spot)
	if err := s.commitPrivate(ctx, next); err != nil {
		return models.Spot{}, err
	}

	s.logger.Info("private spot created", zap.String("name", spot.Name), zap.Int("private_count", len(next)))
	return spot, nil
}

// Update replaces the name and description of the private spot at index.
// A blank name falls back to the locale default, as on creation.
func (s *Store) Update(ctx context.Context, index int, name, description string) (models.Spot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return models.Spot{}, err
	}
	if index < 0 || index >= len(s.private) {
		return models.Spot{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(s.private))
	}

	next := slices.Clone(s.private)
	old := next[index]
	updated := models.NewSpot(s.opts.Locale, old.Coordinates(), name, description, models.VisibilityPrivate)
	updated.Type = old.Type
	next[index] = updated

	if err := s.commitPrivate(ctx, next); err != nil {
		return models.Spot{}, err
	}
	return updated, nil
}

// Remove deletes the private spot at index; later spots shift down by one
func (s *Store) Remove(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.private) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(s.private))
	}

	next := slices.Delete(slices.Clone(s.private), index, index+1)
	return s.commitPrivate(ctx, next)
}

// Refresh replaces the public collection with a fresh read from the backend.
// On failure the previous snapshot is kept.
func (s *Store) Refresh(ctx context.Context) ([]models.Spot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	public, err := s.fetchPublic(ctx)
	if err != nil {
		return slices.Clone(s.public), err
	}
	s.public = public
	return slices.Clone(public), nil
}

// Private returns a copy of the private collection
func (s *Store) Private() []models.Spot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.private)
}

// Public returns a copy of the public collection
func (s *Store) Public() []models.Spot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.public)
}

// checkWritable refuses private writes after a failed read. Callers hold s.mu.
func (s *Store) checkWritable() error {
	if s.readErr != nil {
		return fmt.Errorf("%w: stored spots could not be read: %w", ErrLocalWriteFailed, s.readErr)
	}
	return nil
}

// commitPrivate persists next and only then makes it the current collection.
// Callers hold s.mu.
func (s *Store) commitPrivate(ctx context.Context, next []models.Spot) error {
	encoded, err := encodePrivate(next)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLocalWriteFailed, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.opts.LocalTimeout)
	defer cancel()
	if err := s.local.Set(writeCtx, keyPrivateSpots, encoded); err != nil {
		s.logger.Warn("private spots write failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrLocalWriteFailed, err)
	}

	s.private = next
	return nil
}

// readPrivate returns the stored collection. A non-nil error means storage
// may still hold spots this store cannot see; the collection is then empty
// and private writes stay refused until a later read succeeds.
func (s *Store) readPrivate(ctx context.Context) ([]models.Spot, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.opts.LocalTimeout)
	defer cancel()

	raw, ok, err := s.local.Get(readCtx, keyPrivateSpots)
	if err != nil {
		s.logger.Warn("private spots read failed, showing none and refusing changes", zap.Error(err))
		return []models.Spot{}, err
	}
	if !ok {
		return []models.Spot{}, nil
	}

	spots, version, err := decodePrivate(raw)
	switch {
	case errors.Is(err, errUnsupportedVersion):
		s.logger.Warn("private spots written by a newer version, refusing changes", zap.Int("version", version))
		return []models.Spot{}, err
	case err != nil:
		s.logger.Warn("private spots unreadable, starting empty")
		return []models.Spot{}, nil
	}
	if version != formatVersion {
		s.logger.Info("private spots in unversioned layout, will rewrite on next change",
			zap.Int("count", len(spots)))
	}
	return spots, nil
}

func (s *Store) fetchPublic(ctx context.Context) ([]models.Spot, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	defer cancel()

	public, err := s.remote.ListPublicSpots(readCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteReadFailed, err)
	}
	if public == nil {
		public = []models.Spot{}
	}
	return public, nil
}
