package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validatePayment(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Classifier.URL)
	if err != nil {
		return fmt.Errorf("classifier.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("classifier.url must use http or https, got %q", c.Classifier.URL)
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.Threshold < 0 || c.Detection.Threshold >= 1 {
		return errors.New("detection.threshold must be in [0, 1)")
	}
	if c.Detection.CooldownMS < 0 {
		return errors.New("detection.cooldown_ms must not be negative")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.File != "" {
		return nil
	}
	if len(c.Catalog.Items) == 0 {
		return errors.New("catalog.items must list at least one product when catalog.file is not set")
	}
	for label, price := range c.Catalog.Items {
		if strings.TrimSpace(label) == "" {
			return errors.New("catalog.items contains an empty label")
		}
		if price <= 0 {
			return fmt.Errorf("catalog.items[%q] must have a positive price, got %d", label, price)
		}
	}
	return nil
}

func (c *Config) validatePayment() error {
	if c.Payment.DelaySeconds < 0 {
		return errors.New("payment.delay_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
