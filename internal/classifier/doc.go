// Package classifier provides the frame sources the scanner loop polls: an
// HTTP client for the model sidecar and a JSONL replay used for offline runs
// and tests.
package classifier
