package models

import "strings"

// Visibility decides where a spot lives: on the device only, or on the backend
type Visibility string

// Visibility constants
const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Valid reports whether v is a known visibility
func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Spot is a user-recorded point of interest
type Spot struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Visibility  Visibility `json:"visibility"`
	Owner       *string    `json:"owner,omitempty"` // public only
	Type        *string    `json:"type,omitempty"`  // free-text tag, e.g. "fishing"
}

// Coordinates is a bare latitude/longitude pair in decimal degrees
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinates returns the spot position
func (s Spot) Coordinates() Coordinates {
	return Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}

// Locale selects the default names given to unnamed spots
type Locale string

// Supported locales
const (
	LocaleEnglish Locale = "en"
	LocaleFrench  Locale = "fr"
)

var defaultNames = map[Locale]map[Visibility]string{
	LocaleEnglish: {
		VisibilityPublic:  "Public spot",
		VisibilityPrivate: "Private spot",
	},
	LocaleFrench: {
		VisibilityPublic:  "Spot public",
		VisibilityPrivate: "Spot privé",
	},
}

// DefaultSpotName returns the name used when the user leaves it blank.
// Unknown locales fall back to English.
func DefaultSpotName(locale Locale, v Visibility) string {
	names, ok := defaultNames[locale]
	if !ok {
		names = defaultNames[LocaleEnglish]
	}
	return names[v]
}

// NewSpot builds a spot from user input, trimming text and applying the
// locale default when the name is blank
func NewSpot(locale Locale, at Coordinates, name, description string, v Visibility) Spot {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSpotName(locale, v)
	}
	return Spot{
		Name:        name,
		Description: strings.TrimSpace(description),
		Latitude:    at.Latitude,
		Longitude:   at.Longitude,
		Visibility:  v,
	}
}
