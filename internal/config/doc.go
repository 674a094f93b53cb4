// Package config loads, normalizes, and validates scancart configuration data.
//
// It supplies repository defaults (including the stock product catalog),
// expands user paths (including tilde shortcuts), reads TOML files, and honours
// environment fallbacks such as SCANCART_API_TOKEN and SCANCART_CLASSIFIER_URL.
// The Config type centralizes every knob the kiosk and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, lower-cased sentinel labels, and clear validation errors.
package config
