package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"scancart/internal/catalog"
	"scancart/internal/classifier"
	"scancart/internal/config"
)

const classifierCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCatalog loads the configured catalog and reports its size.
func CheckCatalog(cfg *config.Config) Result {
	const name = "Catalog"
	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if cat.Len() == 0 {
		return Result{Name: name, Detail: "no items"}
	}
	source := "config"
	if cfg.Catalog.File != "" {
		source = cfg.Catalog.File
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d items from %s", cat.Len(), source)}
}

// CheckCameraDevice verifies the capture node exists, is a character device,
// and is readable by this process.
func CheckCameraDevice(device string) Result {
	const name = "Camera"
	info, err := os.Stat(device)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (not present)", device)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", device, err)}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (not a character device)", device)}
	}
	if err := unix.Access(device, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (not readable: %v; is the user in the video group?)", device, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (present)", device)}
}

// CheckClassifier sends a single warmup request to the classifier sidecar.
func CheckClassifier(ctx context.Context, cfg *config.Config) Result {
	const name = "Classifier"
	url := strings.TrimSpace(cfg.Classifier.URL)
	if url == "" {
		return Result{Name: name, Detail: "url not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, classifierCheckTimeout)
	defer cancel()

	client := classifier.NewHTTPClient(classifier.HTTPConfig{
		URL:            url,
		Device:         cfg.Camera.Device,
		TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
	})
	if err := client.Init(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeClassifierError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", url)}
}

func summarizeClassifierError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out (classifier unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out (classifier unreachable)"
	}
	return err.Error()
}
