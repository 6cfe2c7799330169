package geo

import "math"

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// NormalizeBearing maps an angle in degrees into [0, 360).
func NormalizeBearing(degrees float64) float64 {
	normalized := math.Mod(degrees, 360)
	if normalized < 0 {
		normalized += 360
	}
	return normalized
}
