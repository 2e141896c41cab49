package models

import "time"

// Position is a single device fix
type Position struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	SpeedKnots float64   `json:"speed_knots,omitempty"`
	CourseDeg  float64   `json:"course_deg,omitempty"`
	Time       time.Time `json:"time"`
}

// Coordinates returns the fix as a coordinate pair
func (p Position) Coordinates() Coordinates {
	return Coordinates{Latitude: p.Latitude, Longitude: p.Longitude}
}

// TrackerSnapshot is the latest position and smoothed heading
type TrackerSnapshot struct {
	Position *Position `json:"position,omitempty"`
	Heading  float64   `json:"heading"`
	HasFix   bool      `json:"has_fix"`
}
