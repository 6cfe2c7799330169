package gate

import (
	"sync"
	"time"

	"fieldvault/internal/geo"
	"fieldvault/internal/sensor"
)

// Session tracks live device state for one capture attempt against a fixed
// target. The fuser delivers orientation; location fixes arrive through
// UpdateLocation. The session owns the transient reading; consumers only see
// copies.
type Session struct {
	gate   *Gate
	fuser  *sensor.Fuser
	manual *sensor.Orientation
	target geo.Coordinate

	mu     sync.RWMutex
	device *geo.Coordinate
}

// NewSession begins a capture session for the given registered farm location.
func NewSession(g *Gate, fuser *sensor.Fuser, target geo.Coordinate) *Session {
	return &Session{gate: g, fuser: fuser, target: target}
}

// NewManualSession begins a session with a fixed orientation instead of a
// live fuser. Used where no sensors exist, such as desk checks of the
// capture flow from the CLI.
func NewManualSession(g *Gate, orientation sensor.Orientation, target geo.Coordinate) *Session {
	return &Session{gate: g, manual: &orientation, target: target}
}

// UpdateLocation records the latest device GPS fix.
func (s *Session) UpdateLocation(c geo.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = &c
}

// Target returns the registered farm location this session validates against.
func (s *Session) Target() geo.Coordinate {
	return s.target
}

// Decision re-evaluates the gate against the latest orientation and location.
func (s *Session) Decision() Decision {
	orientation, reading := s.currentState()
	return s.gate.Evaluate(orientation, reading, s.target)
}

// Reading snapshots the device state for metadata assembly. ok is false until
// both an orientation estimate and a location fix exist; callers must abort
// the capture rather than assemble a partial record.
func (s *Session) Reading() (Reading, bool) {
	orientation, device := s.currentState()
	if orientation == nil || device == nil {
		return Reading{}, false
	}
	return Reading{
		TiltDegrees:    orientation.TiltDegrees,
		BearingDegrees: orientation.BearingDegrees,
		Device:         *device,
		At:             time.Now().UTC(),
	}, true
}

func (s *Session) currentState() (*sensor.Orientation, *geo.Coordinate) {
	var orientation *sensor.Orientation
	if s.manual != nil {
		copied := *s.manual
		orientation = &copied
	} else if estimate, ok := s.fuser.Snapshot(); ok {
		orientation = &estimate
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var device *geo.Coordinate
	if s.device != nil {
		copied := *s.device
		device = &copied
	}
	return orientation, device
}
