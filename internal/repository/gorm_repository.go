package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jengzang/spotmap-go/internal/models"
)

// GormSpotRepository stores public spots in PostgreSQL through gorm
type GormSpotRepository struct {
	db *gorm.DB
}

// NewGormSpotRepository creates a gorm-backed spot repository
func NewGormSpotRepository(db *gorm.DB) *GormSpotRepository {
	return &GormSpotRepository{db: db}
}

// Create inserts a spot, assigning ID and CreatedAt when unset
func (r *GormSpotRepository) Create(ctx context.Context, spot *models.PublicSpot) error {
	if spot.ID == "" {
		spot.ID = uuid.NewString()
	}
	if spot.CreatedAt.IsZero() {
		spot.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(spot).Error; err != nil {
		return fmt.Errorf("failed to create public spot: %w", err)
	}
	return nil
}

// List retrieves public spots with optional type and bounding-box filters
func (r *GormSpotRepository) List(ctx context.Context, filter models.PublicSpotFilter) ([]models.PublicSpot, error) {
	q := r.db.WithContext(ctx).Model(&models.PublicSpot{})

	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if b, ok := boxFor(filter); ok {
		q = q.Where("latitude BETWEEN ? AND ?", b.minLat, b.maxLat)
		if !b.lonWraps {
			q = q.Where("longitude BETWEEN ? AND ?", b.minLon, b.maxLon)
		}
	}

	spots := []models.PublicSpot{}
	if err := q.Order("created_at ASC").Order("id ASC").Find(&spots).Error; err != nil {
		return nil, fmt.Errorf("failed to list public spots: %w", err)
	}
	return spots, nil
}

// GormUserRepository stores users in PostgreSQL through gorm
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a gorm-backed user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Upsert creates the user or refreshes last_seen when the email exists
func (r *GormUserRepository) Upsert(ctx context.Context, email string) (*models.User, error) {
	now := time.Now().UTC()
	u := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: now,
		LastSeen:  now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
	}).Create(u).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return r.GetByEmail(ctx, email)
}

// GetByEmail retrieves a user by email
func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	err := r.db.WithContext(ctx).Where("email = ?", email).First(u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
