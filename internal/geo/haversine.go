package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
const EarthRadiusMeters = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance in meters between two
// coordinates using the haversine formula. Identical points return exactly 0.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Clamp for floating-point drift near antipodal points.
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// WithinRadius reports whether the distance between two coordinates is at
// most radiusMeters.
func WithinRadius(a, b Coordinate, radiusMeters float64) bool {
	return Distance(a, b) <= radiusMeters
}
