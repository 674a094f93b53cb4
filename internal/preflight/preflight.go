package preflight

import (
	"context"
	"path/filepath"

	"scancart/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every applicable check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Receipts.Enabled && cfg.Receipts.Path != "" {
		results = append(results, CheckDirectoryAccess("Receipts directory", filepath.Dir(cfg.Receipts.Path)))
	}
	results = append(results, CheckCatalog(cfg))
	if cfg.Camera.Device != "" {
		results = append(results, CheckCameraDevice(cfg.Camera.Device))
	}
	results = append(results, CheckClassifier(ctx, cfg))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
