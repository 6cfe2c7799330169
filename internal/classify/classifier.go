package classify

import (
	"context"
	"strings"
	"time"
)

// Condition is a crop-condition class the on-device model can emit.
type Condition string

const (
	ConditionHealthy  Condition = "healthy"
	ConditionDrought  Condition = "drought_stress"
	ConditionBlight   Condition = "northern_leaf_blight"
	ConditionRust     Condition = "common_rust"
	ConditionArmyworm Condition = "fall_armyworm"
	ConditionOther    Condition = "other"
)

var allConditions = []Condition{
	ConditionHealthy,
	ConditionDrought,
	ConditionBlight,
	ConditionRust,
	ConditionArmyworm,
	ConditionOther,
}

// AllConditions returns the ordered list of known crop conditions.
func AllConditions() []Condition {
	cp := make([]Condition, len(allConditions))
	copy(cp, allConditions)
	return cp
}

// ParseCondition converts a string into a known Condition.
func ParseCondition(value string) (Condition, bool) {
	normalized := Condition(strings.ToLower(strings.TrimSpace(value)))
	for _, c := range allConditions {
		if c == normalized {
			return c, true
		}
	}
	return "", false
}

// Ranked pairs a condition with the model's confidence in it.
type Ranked struct {
	Label      Condition `json:"label"`
	Confidence float64   `json:"confidence"`
}

// Result is the ranked output of one inference pass.
type Result struct {
	Primary    Condition `json:"primary"`
	Confidence float64   `json:"confidence"`
	TopK       []Ranked  `json:"top_k"`
	Latency    time.Duration
}

// Classifier is the black-box contract for the on-device model: image bytes
// in, ranked class list out. Implementations must honor the context deadline;
// the capture session aborts on error or timeout.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Result, error)
}
