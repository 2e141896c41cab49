package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/spotmap-go/internal/models"
)

// SQLiteSpotRepository handles database operations for public spots
type SQLiteSpotRepository struct {
	db *sql.DB
}

// NewSQLiteSpotRepository creates a new spot repository
func NewSQLiteSpotRepository(db *sql.DB) *SQLiteSpotRepository {
	return &SQLiteSpotRepository{db: db}
}

// Create inserts a spot, assigning ID and CreatedAt when unset
func (r *SQLiteSpotRepository) Create(ctx context.Context, spot *models.PublicSpot) error {
	if spot.ID == "" {
		spot.ID = uuid.NewString()
	}
	if spot.CreatedAt.IsZero() {
		spot.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO public_spots (
			id, name, description, latitude, longitude, type, email, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		spot.ID,
		spot.Name,
		spot.Description,
		spot.Latitude,
		spot.Longitude,
		spot.Type,
		spot.Email,
		spot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create public spot: %w", err)
	}

	return nil
}

// List retrieves public spots with optional type and bounding-box filters
func (r *SQLiteSpotRepository) List(ctx context.Context, filter models.PublicSpotFilter) ([]models.PublicSpot, error) {
	query := `SELECT id, name, description, latitude, longitude, type, email, created_at
		FROM public_spots`

	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if b, ok := boxFor(filter); ok {
		conditions = append(conditions, "latitude BETWEEN ? AND ?")
		args = append(args, b.minLat, b.maxLat)
		if !b.lonWraps {
			conditions = append(conditions, "longitude BETWEEN ? AND ?")
			args = append(args, b.minLon, b.maxLon)
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list public spots: %w", err)
	}
	defer rows.Close()

	spots := []models.PublicSpot{}
	for rows.Next() {
		var s models.PublicSpot
		var spotType sql.NullString
		err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.Description,
			&s.Latitude,
			&s.Longitude,
			&spotType,
			&s.Email,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan public spot: %w", err)
		}
		if spotType.Valid {
			t := spotType.String
			s.Type = &t
		}
		spots = append(spots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate public spots: %w", err)
	}
	return spots, nil
}
