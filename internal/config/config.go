package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// API contains the presentation HTTP server settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Classifier contains configuration for the external image classifier.
type Classifier struct {
	URL             string `toml:"url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	FrameIntervalMS int    `toml:"frame_interval_ms"`
}

// Camera contains configuration for the video device feeding the classifier.
type Camera struct {
	Device  string `toml:"device"`
	Monitor bool   `toml:"monitor"`
}

// Detection contains the debouncer thresholds.
type Detection struct {
	Threshold      float64  `toml:"threshold"`
	CooldownMS     int      `toml:"cooldown_ms"`
	SentinelLabels []string `toml:"sentinel_labels"`
}

// Catalog contains the static price table. Items are keyed by the exact,
// case-sensitive classifier label. When File is set its [items] table is
// used instead of Items.
type Catalog struct {
	File  string           `toml:"file"`
	Items map[string]int64 `toml:"items"`
}

// Payment contains configuration for the simulated payment screen.
type Payment struct {
	DelaySeconds   int    `toml:"delay_seconds"`
	CurrencySymbol string `toml:"currency_symbol"`
	QRSize         int    `toml:"qr_size"`
}

// Receipts contains configuration for the completed-payment journal.
type Receipts struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	UnknownItem        bool   `toml:"unknown_item"`
	Checkout           bool   `toml:"checkout"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scancart.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - API: presentation server bind address and bearer token
//   - Classifier: external classifier endpoint and frame pacing
//   - Camera: video device node and hotplug monitoring
//   - Detection: probability threshold, cooldown window, sentinel labels
//   - Catalog: label to price table
//   - Payment: simulated payment delay and QR rendering
//   - Receipts: completed payment journal
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Classifier    Classifier    `toml:"classifier"`
	Camera        Camera        `toml:"camera"`
	Detection     Detection     `toml:"detection"`
	Catalog       Catalog       `toml:"catalog"`
	Payment       Payment       `toml:"payment"`
	Receipts      Receipts      `toml:"receipts"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scancart/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

		// A file-provided catalog replaces the default table rather than
		// merging into it.
		cfg.Catalog.Items = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if cfg.Catalog.Items == nil && strings.TrimSpace(cfg.Catalog.File) == "" {
			cfg.Catalog.Items = DefaultCatalogItems()
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
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/scancart/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scancart.toml")
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

// EnsureDirectories creates required directories for kiosk operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Receipts.Enabled && strings.TrimSpace(c.Receipts.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Receipts.Path), 0o755); err != nil {
			return fmt.Errorf("create receipts directory: %w", err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "scancart.lock")
}

// FrameInterval returns the pause between classifier requests.
func (c *Config) FrameInterval() time.Duration {
	if c.Classifier.FrameIntervalMS <= 0 {
		return 0
	}
	return time.Duration(c.Classifier.FrameIntervalMS) * time.Millisecond
}

// ClassifierTimeout returns the per-request classifier timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

// Cooldown returns the same-label cooldown window.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Detection.CooldownMS) * time.Millisecond
}

// PaymentDelay returns how long the simulated payment takes to complete.
func (c *Config) PaymentDelay() time.Duration {
	return time.Duration(c.Payment.DelaySeconds) * time.Second
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

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
