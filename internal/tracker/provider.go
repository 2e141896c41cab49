// Package tracker follows the device position and compass heading and keeps
// the latest smoothed snapshot for the map.
package tracker

import (
	"context"
	"errors"
	"sync"

	"github.com/jengzang/spotmap-go/internal/models"
)

// ErrPermissionDenied means the position source refused access. It is not
// fatal: the map keeps working without a position.
var ErrPermissionDenied = errors.New("position permission denied")

// Provider is a source of position fixes and raw compass headings.
// Subscriptions block until ctx ends.
type Provider interface {
	RequestPermission(ctx context.Context) error
	CurrentPosition(ctx context.Context) (models.Position, error)
	SubscribePosition(ctx context.Context, fn func(models.Position)) error
	SubscribeHeading(ctx context.Context, fn func(float64)) error
}

// feed fans decoded readings out to subscribers. Providers that receive data
// on their own goroutine (serial reader, MQTT callbacks) publish through it.
type feed struct {
	mu       sync.Mutex
	last     *models.Position
	fix      chan struct{}
	fixOnce  sync.Once
	nextID   int
	posSubs  map[int]func(models.Position)
	headSubs map[int]func(float64)
}

func newFeed() *feed {
	return &feed{
		fix:      make(chan struct{}),
		posSubs:  make(map[int]func(models.Position)),
		headSubs: make(map[int]func(float64)),
	}
}

func (f *feed) publishPosition(p models.Position) {
	f.mu.Lock()
	f.last = &p
	subs := make([]func(models.Position), 0, len(f.posSubs))
	for _, fn := range f.posSubs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	f.fixOnce.Do(func() { close(f.fix) })
	for _, fn := range subs {
		fn(p)
	}
}

func (f *feed) publishHeading(h float64) {
	f.mu.Lock()
	subs := make([]func(float64), 0, len(f.headSubs))
	for _, fn := range f.headSubs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(h)
	}
}

// currentPosition waits for the first fix
func (f *feed) currentPosition(ctx context.Context) (models.Position, error) {
	select {
	case <-f.fix:
	case <-ctx.Done():
		return models.Position{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.last, nil
}

func (f *feed) subscribePosition(ctx context.Context, fn func(models.Position)) error {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.posSubs[id] = fn
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	delete(f.posSubs, id)
	f.mu.Unlock()
	return nil
}

func (f *feed) subscribeHeading(ctx context.Context, fn func(float64)) error {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.headSubs[id] = fn
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	delete(f.headSubs, id)
	f.mu.Unlock()
	return nil
}
