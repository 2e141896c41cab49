package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/spotmap-go/internal/models"
)

// SQLiteUserRepository handles database operations for users
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new user repository
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Upsert creates the user or refreshes last_seen when the email exists
func (r *SQLiteUserRepository) Upsert(ctx context.Context, email string) (*models.User, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (id, email, created_at, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET last_seen = excluded.last_seen
	`

	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), email, now, now); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return r.GetByEmail(ctx, email)
}

// GetByEmail retrieves a user by email
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, created_at, last_seen FROM users WHERE email = ?`

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}
