package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeClassifier()
	c.normalizeDetection()
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizePayment()
	if err := c.normalizeReceipts(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("SCANCART_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeClassifier() {
	if value, ok := os.LookupEnv("SCANCART_CLASSIFIER_URL"); ok && strings.TrimSpace(value) != "" {
		c.Classifier.URL = value
	}
	c.Classifier.URL = strings.TrimSpace(c.Classifier.URL)
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeout
	}
	if c.Classifier.FrameIntervalMS < 0 {
		c.Classifier.FrameIntervalMS = 0
	}
}

// normalizeDetection trims sentinel labels and folds them to lower case since
// the debouncer compares them case-insensitively.
func (c *Config) normalizeDetection() {
	if c.Detection.SentinelLabels == nil {
		c.Detection.SentinelLabels = DefaultSentinelLabels()
	}
	labels := make([]string, 0, len(c.Detection.SentinelLabels))
	seen := make(map[string]struct{}, len(c.Detection.SentinelLabels))
	for _, label := range c.Detection.SentinelLabels {
		normalized := strings.ToLower(strings.TrimSpace(label))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		labels = append(labels, normalized)
	}
	c.Detection.SentinelLabels = labels
}

// normalizeCatalog expands the catalog file path. Item keys are left exactly
// as written because catalog lookup is case-sensitive and exact.
func (c *Config) normalizeCatalog() error {
	c.Catalog.File = strings.TrimSpace(c.Catalog.File)
	if c.Catalog.File == "" {
		return nil
	}
	expanded, err := expandPath(c.Catalog.File)
	if err != nil {
		return fmt.Errorf("catalog.file: %w", err)
	}
	c.Catalog.File = expanded
	return nil
}

func (c *Config) normalizePayment() {
	if strings.TrimSpace(c.Payment.CurrencySymbol) == "" {
		c.Payment.CurrencySymbol = defaultCurrencySymbol
	}
	if c.Payment.QRSize <= 0 {
		c.Payment.QRSize = defaultQRSize
	}
}

func (c *Config) normalizeReceipts() error {
	if !c.Receipts.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Receipts.Path) == "" {
		c.Receipts.Path = defaultReceiptsPath
	}
	expanded, err := expandPath(c.Receipts.Path)
	if err != nil {
		return fmt.Errorf("receipts.path: %w", err)
	}
	c.Receipts.Path = expanded
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
