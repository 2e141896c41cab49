package spatial

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius
const EarthRadiusMeters = 6371008.8

// ValidCoordinates reports whether lat/lon are finite and within WGS84 bounds
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return s2.LatLngFromDegrees(lat, lon).IsValid()
}

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Bearing calculates the initial bearing from point 1 to point 2 in degrees [0,360)
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)

	lonDiff := p2.Lng.Radians() - p1.Lng.Radians()
	y := math.Sin(lonDiff) * math.Cos(p2.Lat.Radians())
	x := math.Cos(p1.Lat.Radians())*math.Sin(p2.Lat.Radians()) -
		math.Sin(p1.Lat.Radians())*math.Cos(p2.Lat.Radians())*math.Cos(lonDiff)

	bearingDeg := s1.Angle(math.Atan2(y, x)).Degrees()
	return math.Mod(bearingDeg+360, 360)
}

// Cap returns the spherical cap of the given radius around a point
func Cap(lat, lon, radiusM float64) s2.Cap {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	return s2.CapFromCenterAngle(center, s1.Angle(radiusM/EarthRadiusMeters))
}

// Within reports whether a point lies inside the cap
func Within(c s2.Cap, lat, lon float64) bool {
	return c.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)))
}

// BoundingBox returns the lat/lon rectangle enclosing the cap, for coarse SQL prefiltering
func BoundingBox(c s2.Cap) (minLat, minLon, maxLat, maxLon float64) {
	r := c.RectBound()
	return r.Lo().Lat.Degrees(), r.Lo().Lng.Degrees(), r.Hi().Lat.Degrees(), r.Hi().Lng.Degrees()
}
