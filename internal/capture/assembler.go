package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fieldvault/internal/classify"
	"fieldvault/internal/gate"
)

// ErrNoReading indicates the device state was incomplete at the shutter
// event; the capture session must abort back to preview.
var ErrNoReading = errors.New("capture: no complete sensor reading at shutter")

// Assembler freezes device state and classifier output into a Record the
// instant a capture is confirmed. No retries: a classifier failure aborts the
// capture with no partial record.
type Assembler struct {
	classifier classify.Classifier
}

// NewAssembler constructs an Assembler around the given classifier.
func NewAssembler(classifier classify.Classifier) *Assembler {
	return &Assembler{classifier: classifier}
}

// Assemble snapshots the session's reading synchronously with the shutter,
// classifies the image, and returns a Record with a fresh capture id. The
// reading is taken before inference so the recorded tilt, bearing, and GPS
// are from the moment of capture, not a later read.
func (a *Assembler) Assemble(ctx context.Context, session *gate.Session, farmID string, image []byte) (*Record, error) {
	reading, ok := session.Reading()
	if !ok {
		return nil, ErrNoReading
	}

	result, err := a.classifier.Classify(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("assemble capture: %w", err)
	}

	target := session.Target()
	capturedAt := reading.At
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	return &Record{
		CaptureID:  uuid.NewString(),
		FarmID:     farmID,
		TargetLat:  target.Lat,
		TargetLon:  target.Lon,
		DeviceLat:  reading.Device.Lat,
		DeviceLon:  reading.Device.Lon,
		Tilt:       reading.TiltDegrees,
		Bearing:    reading.BearingDegrees,
		CapturedAt: capturedAt.UTC(),

		PrimaryLabel:      result.Primary,
		PrimaryConfidence: result.Confidence,
		TopK:              result.TopK,
		InferenceLatency:  result.Latency,
	}, nil
}
