package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	KeyFilePath string `toml:"key_file_path"`
}

// Capture contains the anti-fraud gate thresholds.
type Capture struct {
	MinTiltDegrees       float64 `toml:"min_tilt_degrees"`
	GeofenceRadiusMeters float64 `toml:"geofence_radius_meters"`
}

// Classifier contains configuration for the on-device crop classifier sidecar.
type Classifier struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Intake contains configuration for the remote claim-intake service.
type Intake struct {
	URL            string `toml:"url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Sync contains configuration for the background synchronizer.
type Sync struct {
	IntervalMinutes    int `toml:"interval_minutes"`
	MaxAttempts        int `toml:"max_attempts"`
	PacingSeconds      int `toml:"pacing_seconds"`
	BackoffBaseSeconds int `toml:"backoff_base_seconds"`
	BackoffMaxSeconds  int `toml:"backoff_max_seconds"`
}

// Network contains configuration for the reachability probe that gates
// the periodic sync trigger.
type Network struct {
	ProbeAddress         string `toml:"probe_address"`
	ProbeIntervalSeconds int    `toml:"probe_interval_seconds"`
	ProbeTimeoutSeconds  int    `toml:"probe_timeout_seconds"`
}

// Notifications contains configuration for ntfy operator notifications.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	CaptureEnqueued bool   `toml:"capture_enqueued"`
	SyncSummary     bool   `toml:"sync_summary"`
	RetryExhausted  bool   `toml:"retry_exhausted"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for fieldvault.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the managed key file
//   - Capture: gate thresholds (tilt, geofence radius)
//   - Classifier: crop-condition classifier sidecar
//   - Intake: remote claim-intake endpoint
//   - Sync: synchronizer intervals, retry ceiling, pacing
//   - Network: reachability probe gating periodic sync
//   - Notifications: ntfy operator notifications
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Classifier    Classifier    `toml:"classifier"`
	Intake        Intake        `toml:"intake"`
	Sync          Sync          `toml:"sync"`
	Network       Network       `toml:"network"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fieldvault/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fieldvault.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.KeyFilePath) == "" {
		c.Paths.KeyFilePath = defaultKeyFilePath
	}
	if c.Paths.KeyFilePath, err = expandPath(c.Paths.KeyFilePath); err != nil {
		return fmt.Errorf("paths.key_file_path: %w", err)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	if envURL := strings.TrimSpace(os.Getenv("FIELDVAULT_INTAKE_URL")); envURL != "" {
		c.Intake.URL = envURL
	}
	if envToken := strings.TrimSpace(os.Getenv("FIELDVAULT_INTAKE_TOKEN")); envToken != "" {
		c.Intake.APIToken = envToken
	}

	if strings.TrimSpace(c.Network.ProbeAddress) == "" {
		c.Network.ProbeAddress = probeAddressFromURL(c.Intake.URL)
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.KeyFilePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the durable queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

func probeAddressFromURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	defaultPort := "443"
	if rest, ok := strings.CutPrefix(trimmed, "https://"); ok {
		trimmed = rest
	} else if rest, ok := strings.CutPrefix(trimmed, "http://"); ok {
		trimmed = rest
		defaultPort = "80"
	}
	if idx := strings.IndexAny(trimmed, "/?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, ":") {
		trimmed += ":" + defaultPort
	}
	return trimmed
}
