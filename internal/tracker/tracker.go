package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/spotmap-go/internal/heading"
	"github.com/jengzang/spotmap-go/internal/models"
)

// Tracker owns the latest position and the smoothed heading
type Tracker struct {
	provider Provider
	logger   *zap.Logger

	// pubMu serialises state changes with their notifications so observers
	// see snapshots in the order they were taken
	pubMu sync.Mutex

	mu       sync.RWMutex
	filter   heading.Filter
	position *models.Position

	obsMu     sync.Mutex
	observers []func(models.TrackerSnapshot)
}

// New creates a tracker over provider
func New(provider Provider, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{provider: provider, logger: logger}
}

// OnUpdate registers fn to receive every new snapshot, in order. fn runs on
// the provider's goroutine and must not block; it may call Snapshot.
func (t *Tracker) OnUpdate(fn func(models.TrackerSnapshot)) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, fn)
}

// Locate asks for permission and reads a single fix
func (t *Tracker) Locate(ctx context.Context) (models.Position, error) {
	if err := t.provider.RequestPermission(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return models.Position{}, err
		}
		return models.Position{}, fmt.Errorf("request permission: %w", err)
	}

	pos, err := t.provider.CurrentPosition(ctx)
	if err != nil {
		return models.Position{}, fmt.Errorf("current position: %w", err)
	}
	t.setPosition(pos)
	return pos, nil
}

// Start locates the device and then follows position and heading until ctx
// ends. The heading starts again from 0. A denied permission returns
// ErrPermissionDenied straight away; a failed first fix is logged and the
// subscriptions start anyway.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	t.filter.Reset()
	t.mu.Unlock()

	if _, err := t.Locate(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			t.logger.Warn("position permission denied, map will show no location")
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		t.logger.Warn("initial position unavailable", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return t.provider.SubscribePosition(gctx, t.setPosition)
	})
	g.Go(func() error {
		return t.provider.SubscribeHeading(gctx, t.setHeading)
	})
	return g.Wait()
}

// Snapshot returns the latest position and smoothed heading
func (t *Tracker) Snapshot() models.TrackerSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() models.TrackerSnapshot {
	snap := models.TrackerSnapshot{Heading: t.filter.Value(), HasFix: t.position != nil}
	if t.position != nil {
		p := *t.position
		snap.Position = &p
	}
	return snap
}

func (t *Tracker) setPosition(p models.Position) {
	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	t.mu.Lock()
	t.position = &p
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

func (t *Tracker) setHeading(raw float64) {
	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	t.mu.Lock()
	t.filter.Update(raw)
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

func (t *Tracker) notify(snap models.TrackerSnapshot) {
	t.obsMu.Lock()
	observers := append(([]func(models.TrackerSnapshot))(nil), t.observers...)
	t.obsMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}
