package spotstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jengzang/spotmap-go/internal/models"
)

// formatVersion is written into every persisted private collection
const formatVersion = 1

type persistedSpots struct {
	Version int           `json:"version"`
	Spots   []models.Spot `json:"spots"`
}

// encodePrivate serialises the private collection in the current format
func encodePrivate(spots []models.Spot) (string, error) {
	if spots == nil {
		spots = []models.Spot{}
	}
	buf, err := json.Marshal(persistedSpots{Version: formatVersion, Spots: spots})
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

var (
	errMalformed          = errors.New("malformed private spots")
	errUnsupportedVersion = errors.New("private spots written by a newer format")
)

// decodePrivate parses a persisted collection. A bare array is the
// unversioned layout and is accepted as-is. Unreadable data yields
// errMalformed; a well-formed envelope with a version above formatVersion
// yields errUnsupportedVersion.
func decodePrivate(raw string) (spots []models.Spot, version int, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, 0, errMalformed
	}

	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &spots); err != nil {
			return nil, 0, errMalformed
		}
	} else {
		var p persistedSpots
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, 0, errMalformed
		}
		if p.Version > formatVersion {
			return nil, p.Version, fmt.Errorf("%w: version %d", errUnsupportedVersion, p.Version)
		}
		if p.Version != formatVersion {
			return nil, 0, errMalformed
		}
		spots, version = p.Spots, p.Version
	}

	for i := range spots {
		// the unversioned layout had no visibility field
		spots[i].Visibility = models.VisibilityPrivate
		spots[i].Owner = nil
	}
	if spots == nil {
		spots = []models.Spot{}
	}
	return spots, version, nil
}
