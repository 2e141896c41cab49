package tracker

import (
	"context"
	"math"
	"time"

	"github.com/jengzang/spotmap-go/internal/models"
)

// MockProvider walks a small circle around a centre point and turns slowly.
// Useful for demos and tests without GPS hardware.
type MockProvider struct {
	Center   models.Coordinates
	Interval time.Duration
	Denied   bool

	start time.Time
	now   func() time.Time
}

// NewMockProvider creates a mock source starting now
func NewMockProvider(center models.Coordinates, interval time.Duration) *MockProvider {
	if interval <= 0 {
		interval = time.Second
	}
	return &MockProvider{Center: center, Interval: interval, start: time.Now(), now: time.Now}
}

func (m *MockProvider) RequestPermission(ctx context.Context) error {
	if m.Denied {
		return ErrPermissionDenied
	}
	return ctx.Err()
}

func (m *MockProvider) CurrentPosition(ctx context.Context) (models.Position, error) {
	if err := ctx.Err(); err != nil {
		return models.Position{}, err
	}
	return m.position(), nil
}

func (m *MockProvider) SubscribePosition(ctx context.Context, fn func(models.Position)) error {
	return m.tick(ctx, func() { fn(m.position()) })
}

func (m *MockProvider) SubscribeHeading(ctx context.Context, fn func(float64)) error {
	return m.tick(ctx, func() { fn(m.heading()) })
}

func (m *MockProvider) tick(ctx context.Context, emit func()) error {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			emit()
		}
	}
}

func (m *MockProvider) elapsed() float64 {
	return m.now().Sub(m.start).Seconds()
}

// ~50 m radius, one lap per two minutes
func (m *MockProvider) position() models.Position {
	angle := 2 * math.Pi * m.elapsed() / 120
	return models.Position{
		Latitude:  m.Center.Latitude + 0.00045*math.Sin(angle),
		Longitude: m.Center.Longitude + 0.00045*math.Cos(angle),
		Time:      m.now().UTC(),
	}
}

func (m *MockProvider) heading() float64 {
	return math.Mod(m.elapsed()*30, 360)
}
