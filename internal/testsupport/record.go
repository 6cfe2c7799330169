package testsupport

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"fieldvault/internal/capture"
	"fieldvault/internal/classify"
)

// NewRecord builds a plausible capture record for tests. The capture id is
// fresh per call so enqueued items never collide.
func NewRecord(t testing.TB, farmID string) *capture.Record {
	t.Helper()

	return &capture.Record{
		CaptureID:  uuid.NewString(),
		FarmID:     farmID,
		TargetLat:  -1.2921,
		TargetLon:  36.8219,
		DeviceLat:  -1.29215,
		DeviceLon:  36.82195,
		Tilt:       62.5,
		Bearing:    184.0,
		CapturedAt: time.Now().UTC(),

		PrimaryLabel:      classify.ConditionDrought,
		PrimaryConfidence: 0.91,
		TopK: []classify.Ranked{
			{Label: classify.ConditionDrought, Confidence: 0.91},
			{Label: classify.ConditionHealthy, Confidence: 0.06},
			{Label: classify.ConditionRust, Confidence: 0.02},
		},
		InferenceLatency: 120 * time.Millisecond,
	}
}
