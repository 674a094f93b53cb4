package testsupport

import (
	"path/filepath"
	"testing"

	"scancart/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The API binds to an ephemeral port, the camera monitor is off, payments
// complete without delay, and notifications are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Receipts.Path = filepath.Join(base, "state", "receipts.db")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.API.Token = ""
	cfgVal.Camera.Monitor = false
	cfgVal.Payment.DelaySeconds = 0
	cfgVal.Notifications.NtfyTopic = ""

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

// WithCatalog replaces the catalog items on the test config.
func WithCatalog(items map[string]int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.File = ""
		b.cfg.Catalog.Items = items
	}
}

// WithAPIToken sets the bearer token required by the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithClassifierURL points the classifier client at url.
func WithClassifierURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Classifier.URL = url
	}
}

// WithPaymentDelay sets the simulated payment delay in seconds.
func WithPaymentDelay(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Payment.DelaySeconds = seconds
	}
}

// WithReceiptsDisabled turns off the receipt journal.
func WithReceiptsDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Receipts.Enabled = false
	}
}

// WithNtfyTopic enables notifications against topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
