package models

import "time"

// User is an account known to the backend, keyed by email
type User struct {
	ID        string    `json:"id" db:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" db:"email" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	LastSeen  time.Time `json:"last_seen" db:"last_seen"`
}

// TableName keeps the gorm table aligned with the SQLite schema
func (User) TableName() string {
	return "users"
}

// Session is what the backend hands out after a sign-in
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}
