package models

import "time"

// PublicSpot is a spot row as stored by the backend
type PublicSpot struct {
	ID          string    `json:"id" db:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" db:"name" gorm:"not null"`
	Description string    `json:"description" db:"description"`
	Latitude    float64   `json:"latitude" db:"latitude" gorm:"not null"`
	Longitude   float64   `json:"longitude" db:"longitude" gorm:"not null"`
	Type        *string   `json:"type,omitempty" db:"type" gorm:"index"`
	Email       string    `json:"email" db:"email" gorm:"index;not null"` // owner
	CreatedAt   time.Time `json:"created_at" db:"created_at" gorm:"index"`
}

// TableName keeps the gorm table aligned with the SQLite schema
func (PublicSpot) TableName() string {
	return "public_spots"
}

// ToSpot converts the stored row into the client-side spot shape
func (p PublicSpot) ToSpot() Spot {
	owner := p.Email
	return Spot{
		Name:        p.Name,
		Description: p.Description,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Visibility:  VisibilityPublic,
		Owner:       &owner,
		Type:        p.Type,
	}
}

// PublicSpotInput is the body accepted when publishing a spot
type PublicSpotInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude" binding:"required"`
	Longitude   *float64 `json:"longitude" binding:"required"`
	Type        *string  `json:"type,omitempty"`
}

// PublicSpotFilter holds the optional list filters
type PublicSpotFilter struct {
	Latitude  *float64 `form:"lat"`
	Longitude *float64 `form:"lon"`
	RadiusM   float64  `form:"radius_m"`
	Type      string   `form:"type"`
}

// Nearby reports whether the filter asks for a radius search
func (f PublicSpotFilter) Nearby() bool {
	return f.Latitude != nil && f.Longitude != nil && f.RadiusM > 0
}
