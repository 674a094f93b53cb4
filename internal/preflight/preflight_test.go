package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scancart/internal/config"
	"scancart/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCameraDevice(t *testing.T) {
	missing := CheckCameraDevice(filepath.Join(t.TempDir(), "video9"))
	if missing.Passed || !strings.Contains(missing.Detail, "not present") {
		t.Fatalf("expected missing device failure, got %+v", missing)
	}

	regular := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(regular, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	notChar := CheckCameraDevice(regular)
	if notChar.Passed || !strings.Contains(notChar.Detail, "not a character device") {
		t.Fatalf("expected character device failure, got %+v", notChar)
	}
}

func TestCheckCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCatalog(map[string]int64{"Lays": 20}))
	if result := CheckCatalog(cfg); !result.Passed || !strings.HasPrefix(result.Detail, "1 items") {
		t.Fatalf("expected catalog pass, got %+v", result)
	}

	cfg.Catalog.File = filepath.Join(t.TempDir(), "missing.toml")
	if result := CheckCatalog(cfg); result.Passed {
		t.Fatal("expected failure for missing catalog file")
	}
}

func TestCheckClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithClassifierURL(srv.URL))
	if result := CheckClassifier(context.Background(), cfg); !result.Passed {
		t.Fatalf("expected classifier pass, got %+v", result)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	cfg.Classifier.URL = down.URL
	result := CheckClassifier(context.Background(), cfg)
	if result.Passed || !strings.Contains(result.Detail, "503") {
		t.Fatalf("expected 503 failure, got %+v", result)
	}

	cfg.Classifier.URL = ""
	if result := CheckClassifier(context.Background(), cfg); result.Passed {
		t.Fatal("expected failure without url")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyKiosk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithClassifierURL(srv.URL))
	cfg.Camera.Device = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	// state, logs, receipts, catalog, classifier
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_ReportsMissingCamera(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Receipts.Enabled = false
	cfg.Camera.Device = filepath.Join(t.TempDir(), "video0")
	cfg.Classifier.URL = ""

	failed := Failed(RunAll(context.Background(), &cfg))
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Name)
	}
	if got := strings.Join(names, ","); got != "Camera,Classifier" {
		t.Fatalf("unexpected failures: %s", got)
	}
}
