package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scancart/internal/api"
	"scancart/internal/config"
	"scancart/internal/kiosk"
	"scancart/internal/logging"
	"scancart/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	kiosk      *kiosk.Kiosk
	hub        *logging.StreamHub
	server     *httptest.Server
	configPath string
}

// setupCLITestEnv serves a real kiosk over httptest. Payments complete on
// the wall clock with no delay.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCANCART_API_TOKEN", "")

	opts = append([]testsupport.ConfigOption{
		testsupport.WithCatalog(map[string]int64{"Lays": 20, "Fanta": 35, "oreo": 45}),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Camera.Device = ""
	configPath := filepath.Join(testsupport.BaseDir(cfg), "scancart.toml")
	writeTestConfig(t, configPath, cfg)

	hub := logging.NewStreamHub(64)
	logger, err := logging.New(logging.Options{
		Level:       "info",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "test.log")},
		Stream:      hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	k, err := kiosk.New(cfg, logger, kiosk.WithClassifier(idleClassifier()))
	if err != nil {
		t.Fatalf("kiosk.New: %v", err)
	}
	srv := httptest.NewServer(api.NewServer(cfg, k, hub, logger).Handler())

	t.Cleanup(func() {
		srv.Close()
		_ = k.Close()
	})
	return &cliTestEnv{cfg: cfg, kiosk: k, hub: hub, server: srv, configPath: configPath}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.server.URL, e.configPath)
}

func runCLI(t *testing.T, args []string, apiURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiURL != "" {
		flags = append(flags, "--api", apiURL)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
