package testsupport

import (
	"path/filepath"
	"testing"

	"fieldvault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.KeyFilePath = filepath.Join(base, "keys", "master.key")
	cfgVal.Intake.URL = "http://127.0.0.1:0/claims"
	cfgVal.Intake.APIToken = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithIntakeURL points the test config at the given intake endpoint.
func WithIntakeURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Intake.URL = url
	}
}

// WithCaptureRules overrides the capture validation thresholds.
func WithCaptureRules(minTilt, radiusMeters float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.MinTiltDegrees = minTilt
		b.cfg.Capture.GeofenceRadiusMeters = radiusMeters
	}
}

// WithMaxAttempts sets the sync attempt ceiling on the test config.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.MaxAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
