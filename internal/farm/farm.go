package farm

import (
	"fmt"
	"strings"
	"time"

	"fieldvault/internal/geo"
)

// Farm is a registered plot. Its recorded boundary point anchors the
// proximity check at capture time.
type Farm struct {
	ID           string
	FarmerName   string
	FarmerRef    string
	Phone        string
	CropType     string
	Location     geo.Coordinate
	GPSAccuracy  float64
	RegisteredAt time.Time
}

// Validate checks the fields a registration must carry.
func (f *Farm) Validate() error {
	if strings.TrimSpace(f.FarmerName) == "" {
		return fmt.Errorf("farmer name is required")
	}
	if strings.TrimSpace(f.FarmerRef) == "" {
		return fmt.Errorf("farmer reference is required")
	}
	if strings.TrimSpace(f.CropType) == "" {
		return fmt.Errorf("crop type is required")
	}
	if f.Location.Lat < -90 || f.Location.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", f.Location.Lat)
	}
	if f.Location.Lon < -180 || f.Location.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", f.Location.Lon)
	}
	if f.GPSAccuracy < 0 {
		return fmt.Errorf("gps accuracy must not be negative")
	}
	return nil
}
