package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/models"
	"github.com/jengzang/spotmap-go/internal/repository"
	"github.com/jengzang/spotmap-go/internal/spatial"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 2000
	maxTypeLength        = 64
	maxRadiusM           = 100_000
)

// SpotService handles business logic for public spots
type SpotService struct {
	spots  repository.SpotRepository
	users  repository.UserRepository
	logger *zap.Logger
}

// NewSpotService creates a new spot service
func NewSpotService(spots repository.SpotRepository, users repository.UserRepository, logger *zap.Logger) *SpotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpotService{spots: spots, users: users, logger: logger}
}

// List returns every public spot, optionally narrowed to a type and a radius
func (s *SpotService) List(ctx context.Context, filter models.PublicSpotFilter) ([]models.PublicSpot, error) {
	if filter.Latitude != nil || filter.Longitude != nil || filter.RadiusM != 0 {
		if !filter.Nearby() {
			return nil, fmt.Errorf("%w: lat, lon and radius_m must be given together", ErrInvalidInput)
		}
		if !spatial.ValidCoordinates(*filter.Latitude, *filter.Longitude) {
			return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
		}
		if filter.RadiusM > maxRadiusM {
			return nil, fmt.Errorf("%w: radius_m exceeds %d", ErrInvalidInput, maxRadiusM)
		}
	}
	filter.Type = strings.TrimSpace(filter.Type)

	spots, err := s.spots.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list public spots: %w", err)
	}
	if !filter.Nearby() {
		return spots, nil
	}

	c := spatial.Cap(*filter.Latitude, *filter.Longitude, filter.RadiusM)
	within := spots[:0]
	for _, sp := range spots {
		if spatial.Within(c, sp.Latitude, sp.Longitude) {
			within = append(within, sp)
		}
	}
	return within, nil
}

// Publish stores a spot owned by the signed-in email
func (s *SpotService) Publish(ctx context.Context, ownerEmail string, in models.PublicSpotInput) (*models.PublicSpot, error) {
	if _, err := s.users.GetByEmail(ctx, ownerEmail); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", ErrUnauthorized)
		}
		return nil, err
	}

	spot, err := validateInput(in)
	if err != nil {
		return nil, err
	}
	spot.Email = ownerEmail

	if err := s.spots.Create(ctx, spot); err != nil {
		return nil, fmt.Errorf("failed to publish spot: %w", err)
	}

	s.logger.Info("spot published",
		zap.String("id", spot.ID),
		zap.String("owner", ownerEmail),
		zap.Float64("lat", spot.Latitude),
		zap.Float64("lon", spot.Longitude))
	return spot, nil
}

func validateInput(in models.PublicSpotInput) (*models.PublicSpot, error) {
	if in.Latitude == nil || in.Longitude == nil {
		return nil, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidInput)
	}
	if !spatial.ValidCoordinates(*in.Latitude, *in.Longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = models.DefaultSpotName(models.LocaleEnglish, models.VisibilityPublic)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name longer than %d characters", ErrInvalidInput, maxNameLength)
	}

	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, fmt.Errorf("%w: description longer than %d characters", ErrInvalidInput, maxDescriptionLength)
	}

	var spotType *string
	if in.Type != nil {
		t := strings.TrimSpace(*in.Type)
		if utf8.RuneCountInString(t) > maxTypeLength {
			return nil, fmt.Errorf("%w: type longer than %d characters", ErrInvalidInput, maxTypeLength)
		}
		if t != "" {
			spotType = &t
		}
	}

	return &models.PublicSpot{
		Name:        name,
		Description: description,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		Type:        spotType,
	}, nil
}
