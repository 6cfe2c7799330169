package capture

import (
	"time"

	"fieldvault/internal/classify"
)

// Record is the immutable evidence snapshot frozen at the shutter event.
// Corrections never mutate a record; they produce a new one with a new id.
type Record struct {
	CaptureID  string    `json:"capture_id"`
	FarmID     string    `json:"farm_id"`
	TargetLat  float64   `json:"target_lat"`
	TargetLon  float64   `json:"target_lon"`
	DeviceLat  float64   `json:"device_lat"`
	DeviceLon  float64   `json:"device_lon"`
	Tilt       float64   `json:"device_tilt"`
	Bearing    float64   `json:"device_bearing"`
	CapturedAt time.Time `json:"captured_at"`

	PrimaryLabel      classify.Condition `json:"ml_class"`
	PrimaryConfidence float64            `json:"ml_confidence"`
	TopK              []classify.Ranked  `json:"top_classes"`
	InferenceLatency  time.Duration      `json:"inference_latency_ns"`
}
