package repository

import (
	"context"
	"errors"

	"github.com/jengzang/spotmap-go/internal/models"
	"github.com/jengzang/spotmap-go/internal/spatial"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// SpotRepository stores published spots
type SpotRepository interface {
	Create(ctx context.Context, spot *models.PublicSpot) error
	// List returns spots ordered by creation time. A nearby filter is applied
	// as a bounding-box prefilter; callers refine with spatial.Within.
	List(ctx context.Context, filter models.PublicSpotFilter) ([]models.PublicSpot, error)
}

// UserRepository stores accounts
type UserRepository interface {
	Upsert(ctx context.Context, email string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// box is the SQL prefilter rectangle derived from a nearby filter
type box struct {
	minLat, minLon, maxLat, maxLon float64
	// lonWraps is set when the rectangle crosses the antimeridian, in which
	// case longitude is not prefiltered
	lonWraps bool
}

func boxFor(filter models.PublicSpotFilter) (box, bool) {
	if !filter.Nearby() {
		return box{}, false
	}
	c := spatial.Cap(*filter.Latitude, *filter.Longitude, filter.RadiusM)
	minLat, minLon, maxLat, maxLon := spatial.BoundingBox(c)
	return box{
		minLat:   minLat,
		minLon:   minLon,
		maxLat:   maxLat,
		maxLon:   maxLon,
		lonWraps: minLon > maxLon,
	}, true
}

var (
	_ SpotRepository = (*SQLiteSpotRepository)(nil)
	_ SpotRepository = (*GormSpotRepository)(nil)
	_ UserRepository = (*SQLiteUserRepository)(nil)
	_ UserRepository = (*GormUserRepository)(nil)
)
