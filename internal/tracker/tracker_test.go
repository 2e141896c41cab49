package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jengzang/spotmap-go/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedProvider replays fixed readings once, then idles until cancelled
type scriptedProvider struct {
	permErr   error
	posErr    error
	initial   models.Position
	positions []models.Position
	headings  []float64
}

func (s *scriptedProvider) RequestPermission(ctx context.Context) error { return s.permErr }

func (s *scriptedProvider) CurrentPosition(ctx context.Context) (models.Position, error) {
	return s.initial, s.posErr
}

func (s *scriptedProvider) SubscribePosition(ctx context.Context, fn func(models.Position)) error {
	for _, p := range s.positions {
		fn(p)
	}
	<-ctx.Done()
	return nil
}

func (s *scriptedProvider) SubscribeHeading(ctx context.Context, fn func(float64)) error {
	for _, h := range s.headings {
		fn(h)
	}
	<-ctx.Done()
	return nil
}

func runUntil(t *testing.T, tr *Tracker, done func(models.TrackerSnapshot) bool) {
	t.Helper()
	reached := make(chan struct{})
	var once sync.Once
	tr.OnUpdate(func(s models.TrackerSnapshot) {
		if done(s) {
			once.Do(func() { close(reached) })
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tr.Start(ctx) }()

	select {
	case <-reached:
	case <-time.After(2 * time.Second):
		t.Fatal("tracker never reached the expected state")
	}
	cancel()
	require.NoError(t, <-errCh)
}

func TestTrackerSmoothsHeading(t *testing.T) {
	p := &scriptedProvider{
		initial:  models.Position{Latitude: 1, Longitude: 2},
		headings: []float64{350, 350},
	}
	tr := New(p, nil)

	runUntil(t, tr, func(s models.TrackerSnapshot) bool {
		return s.Heading > 356 && s.Heading < 357
	})

	snap := tr.Snapshot()
	// 0 -> 358 -> 356.4 along the short way round
	assert.InDelta(t, 356.4, snap.Heading, 1e-9)
	assert.True(t, snap.HasFix)
	require.NotNil(t, snap.Position)
	assert.Equal(t, 1.0, snap.Position.Latitude)
}

func TestTrackerFollowsPositions(t *testing.T) {
	p := &scriptedProvider{
		initial:   models.Position{Latitude: 1, Longitude: 1},
		positions: []models.Position{{Latitude: 2, Longitude: 2}, {Latitude: 3, Longitude: 3}},
	}
	tr := New(p, nil)

	runUntil(t, tr, func(s models.TrackerSnapshot) bool {
		return s.Position != nil && s.Position.Latitude == 3
	})
	assert.Equal(t, 3.0, tr.Snapshot().Position.Longitude)
}

func TestTrackerPermissionDenied(t *testing.T) {
	tr := New(&scriptedProvider{permErr: ErrPermissionDenied}, nil)

	err := tr.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	snap := tr.Snapshot()
	assert.False(t, snap.HasFix)
	assert.Nil(t, snap.Position)
	assert.Zero(t, snap.Heading)
}

func TestTrackerSurvivesMissingFirstFix(t *testing.T) {
	p := &scriptedProvider{
		posErr:    errors.New("no satellites"),
		positions: []models.Position{{Latitude: 5, Longitude: 5}},
	}
	tr := New(p, nil)
	assert.False(t, tr.Snapshot().HasFix)

	runUntil(t, tr, func(s models.TrackerSnapshot) bool { return s.HasFix })
	assert.Equal(t, 5.0, tr.Snapshot().Position.Latitude)
}

func TestLocate(t *testing.T) {
	tr := New(&scriptedProvider{initial: models.Position{Latitude: 7, Longitude: 8}}, nil)

	pos, err := tr.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Coordinates{Latitude: 7, Longitude: 8}, pos.Coordinates())
	assert.True(t, tr.Snapshot().HasFix)

	_, err = New(&scriptedProvider{permErr: ErrPermissionDenied}, nil).Locate(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestMockProvider(t *testing.T) {
	center := models.Coordinates{Latitude: 46.8, Longitude: -71.2}
	m := NewMockProvider(center, 5*time.Millisecond)
	base := m.start
	m.now = func() time.Time { return base.Add(30 * time.Second) }

	pos, err := m.CurrentPosition(context.Background())
	require.NoError(t, err)
	// a quarter lap: due north of the centre
	assert.InDelta(t, center.Latitude+0.00045, pos.Latitude, 1e-9)
	assert.InDelta(t, center.Longitude, pos.Longitude, 1e-9)
	assert.InDelta(t, 180.0, m.heading(), 1e-9)

	m.Denied = true
	assert.ErrorIs(t, m.RequestPermission(context.Background()), ErrPermissionDenied)
}

func TestTrackerWithMockProvider(t *testing.T) {
	tr := New(NewMockProvider(models.Coordinates{Latitude: 10, Longitude: 10}, 2*time.Millisecond), nil)

	var headings int
	runUntil(t, tr, func(s models.TrackerSnapshot) bool {
		if s.Heading != 0 {
			headings++
		}
		return headings >= 3
	})
	snap := tr.Snapshot()
	assert.True(t, snap.HasFix)
	assert.GreaterOrEqual(t, snap.Heading, 0.0)
	assert.Less(t, snap.Heading, 360.0)
}

func TestTrackerRestartResetsHeading(t *testing.T) {
	p := &scriptedProvider{
		initial:  models.Position{Latitude: 1, Longitude: 1},
		headings: []float64{90},
	}
	tr := New(p, nil)
	runUntil(t, tr, func(s models.TrackerSnapshot) bool { return s.Heading != 0 })
	require.InDelta(t, 18.0, tr.Snapshot().Heading, 1e-9)

	// second run sees only the fix, so the heading must come from a fresh filter
	p.headings = nil
	runUntil(t, tr, func(s models.TrackerSnapshot) bool { return s.HasFix && s.Heading == 0 })
	assert.Zero(t, tr.Snapshot().Heading)
}

func TestTrackerNotifiesInOrder(t *testing.T) {
	const n = 200
	p := &scriptedProvider{}
	for i := 1; i <= n; i++ {
		p.positions = append(p.positions, models.Position{Latitude: float64(i), Longitude: 0})
		p.headings = append(p.headings, float64(i))
	}
	tr := New(p, nil)

	var (
		mu      sync.Mutex
		seen    int
		lastLat float64
		regress []float64
	)
	runUntil(t, tr, func(s models.TrackerSnapshot) bool {
		// observers may read the tracker back
		_ = tr.Snapshot()

		mu.Lock()
		defer mu.Unlock()
		seen++
		if s.Position != nil {
			if s.Position.Latitude < lastLat {
				regress = append(regress, s.Position.Latitude)
			}
			lastLat = s.Position.Latitude
		}
		// first fix plus every position and heading
		return seen == 1+2*n
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, regress, "an older snapshot was delivered after a newer one")
	assert.Equal(t, float64(n), lastLat)
}
