package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"biolabel/internal/logging"
)

// CleanResult contains the outcome of a temp file sweep.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a file path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// IsTempName reports whether name looks like an unfinished atomic write
// (".<target>.<random>.tmp").
func IsTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp") && len(name) > len(".x.tmp")
}

// CleanStale removes unfinished atomic-write temp files older than maxAge
// from each directory in dirs. Missing directories are ignored.
func CleanStale(ctx context.Context, dirs []string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	cutoff := time.Now().Add(-maxAge)

	for _, dir := range dirs {
		if ctx.Err() != nil {
			return result
		}
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !IsTempName(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				if logger != nil {
					logger.Warn("failed to remove stale temp file",
						logging.String("path", path),
						logging.Error(err),
						logging.String(logging.FieldEventType, "temp_cleanup_failed"),
						logging.String(logging.FieldErrorHint, "check output directory permissions"),
						logging.String(logging.FieldImpact, "disk space not reclaimed"),
					)
				}
				continue
			}
			result.Removed = append(result.Removed, path)
			if logger != nil {
				logger.Info("removed stale temp file",
					logging.String("path", path),
					logging.Duration("age", time.Since(info.ModTime())),
					logging.String(logging.FieldEventType, "temp_cleanup"),
				)
			}
		}
	}
	return result
}
