package gate

import (
	"fmt"
	"strings"
	"time"

	"fieldvault/internal/geo"
	"fieldvault/internal/sensor"
)

// ReadyReason is the advisory text emitted when every condition passes.
const ReadyReason = "Ready to capture"

// orientationMaxAge bounds how old a fused estimate may be before the gate
// treats the device as having no orientation at all. Quiet sensors fail
// closed instead of riding a frozen estimate.
const orientationMaxAge = 5 * time.Second

// Reading is the transient device state a capture freezes: the fused
// orientation plus the latest location fix.
type Reading struct {
	TiltDegrees    float64
	BearingDegrees float64
	Device         geo.Coordinate
	At             time.Time
}

// Decision is the advisory pass/fail verdict for the shutter. Recomputed on
// every sensor or location update; never persisted.
type Decision struct {
	TiltOK         bool
	ProximityOK    bool
	TiltDegrees    float64
	DistanceMeters float64
	Reason         string
}

// Valid reports whether the shutter may fire.
func (d Decision) Valid() bool {
	return d.TiltOK && d.ProximityOK
}

// Gate is the single authority for whether a capture attempt may proceed.
// It fails closed: missing orientation or location yields an invalid
// decision, never an error.
type Gate struct {
	minTiltDegrees float64
	radiusMeters   float64
}

// New constructs a Gate with the configured thresholds.
func New(minTiltDegrees, radiusMeters float64) *Gate {
	return &Gate{minTiltDegrees: minTiltDegrees, radiusMeters: radiusMeters}
}

// Evaluate produces a Decision for the current device state against the
// registered farm location. orientation and device may be nil when the
// respective stream has not yet delivered a usable value.
func (g *Gate) Evaluate(orientation *sensor.Orientation, device *geo.Coordinate, target geo.Coordinate) Decision {
	var reasons []string
	decision := Decision{}

	switch {
	case orientation == nil:
		reasons = append(reasons, "waiting for orientation data")
	case time.Since(orientation.At) > orientationMaxAge:
		reasons = append(reasons, fmt.Sprintf("orientation %.0fs old, max %.0fs",
			time.Since(orientation.At).Seconds(), orientationMaxAge.Seconds()))
	default:
		decision.TiltDegrees = orientation.TiltDegrees
		decision.TiltOK = orientation.TiltDegrees >= g.minTiltDegrees
		if !decision.TiltOK {
			reasons = append(reasons, fmt.Sprintf("tilt %.1f°, min %.1f°", orientation.TiltDegrees, g.minTiltDegrees))
		}
	}

	switch {
	case device == nil:
		reasons = append(reasons, "waiting for location fix")
	default:
		decision.DistanceMeters = geo.Distance(*device, target)
		decision.ProximityOK = decision.DistanceMeters <= g.radiusMeters
		if !decision.ProximityOK {
			reasons = append(reasons, fmt.Sprintf("%.0fm from farm, max %.0fm", decision.DistanceMeters, g.radiusMeters))
		}
	}

	if len(reasons) == 0 {
		decision.Reason = ReadyReason
	} else {
		decision.Reason = strings.Join(reasons, "; ")
	}
	return decision
}
