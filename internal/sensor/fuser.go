package sensor

import (
	"math"
	"sync"
	"time"

	"fieldvault/internal/geo"
)

// Sample is a single 3-axis sensor reading in device coordinates.
type Sample struct {
	X float64
	Y float64
	Z float64
}

// Orientation is an immutable fused estimate of device attitude.
type Orientation struct {
	TiltDegrees    float64
	BearingDegrees float64
	At             time.Time
}

// Fuser combines accelerometer and magnetometer streams into a continuously
// updated orientation estimate. It is the single writer of the estimate;
// readers receive copies via Snapshot. Updates never block and never fail:
// when a fresh fusion cannot be computed the previous valid estimate is
// retained and the gate treats its absence as invalid.
type Fuser struct {
	mu      sync.RWMutex
	accel   *Sample
	mag     *Sample
	current *Orientation

	now func() time.Time
}

// NewFuser constructs a Fuser with no estimate.
func NewFuser() *Fuser {
	return &Fuser{now: time.Now}
}

// UpdateAccelerometer records the latest acceleration sample and recomputes
// the estimate.
func (f *Fuser) UpdateAccelerometer(s Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accel = &s
	f.recompute()
}

// UpdateMagnetometer records the latest magnetic-field sample and recomputes
// the estimate.
func (f *Fuser) UpdateMagnetometer(s Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mag = &s
	f.recompute()
}

// Snapshot returns the latest orientation estimate. ok is false until both
// axis streams have delivered at least one usable sample.
func (f *Fuser) Snapshot() (Orientation, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return Orientation{}, false
	}
	return *f.current, true
}

// recompute derives tilt and bearing from the gravity and magnetic-field
// vectors via the standard rotation-matrix fusion. Caller holds the lock.
func (f *Fuser) recompute() {
	if f.accel == nil || f.mag == nil {
		return
	}

	gravity := *f.accel
	field := *f.mag

	// East axis: field x gravity. Degenerate when the vectors are parallel
	// (free fall or magnetic interference); keep the previous estimate.
	east, ok := normalize(cross(field, gravity))
	if !ok {
		return
	}
	up, ok := normalize(gravity)
	if !ok {
		return
	}
	north := cross(up, east)

	// Device-to-world rotation matrix rows are [east, north, up]; yaw and
	// pitch fall out of its second column.
	azimuth := math.Atan2(east.Y, north.Y)
	pitch := math.Asin(-up.Y)

	estimate := Orientation{
		TiltDegrees:    math.Abs(degrees(pitch)),
		BearingDegrees: geo.NormalizeBearing(degrees(azimuth)),
		At:             f.now(),
	}
	f.current = &estimate
}

func cross(a, b Sample) Sample {
	return Sample{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func normalize(s Sample) (Sample, bool) {
	norm := math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
	if norm < 1e-6 {
		return Sample{}, false
	}
	return Sample{X: s.X / norm, Y: s.Y / norm, Z: s.Z / norm}, true
}

func degrees(radians float64) float64 {
	return radians * 180 / math.Pi
}
