package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// archivePattern matches log files moved aside by RotateLogFile.
const archivePattern = "scancart-*.log"

// RotateLogFile moves an existing scancart.log in dir to a timestamped
// archive so each kiosk run starts with a fresh file. A missing file is not
// an error. It returns the archive path, or "" when nothing was moved.
func RotateLogFile(dir string, now time.Time) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", nil
	}
	current := filepath.Join(dir, LogFileName)
	info, err := os.Stat(current)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() == 0 {
		return "", nil
	}
	archive := filepath.Join(dir, "scancart-"+now.UTC().Format("20060102T150405Z")+".log")
	if err := os.Rename(current, archive); err != nil {
		return "", fmt.Errorf("archive log file: %w", err)
	}
	return archive, nil
}

// CleanupOldLogs removes archived logs in dir whose modification time is
// older than retentionDays. A retentionDays value of 0 disables pruning.
// The live scancart.log is never removed.
func CleanupOldLogs(logger *slog.Logger, dir string, retentionDays int, now time.Time) int {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if matched, _ := filepath.Match(archivePattern, name); !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		fullPath := filepath.Join(dir, name)
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Info("log pruned",
				String("path", fullPath),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
	return removed
}
