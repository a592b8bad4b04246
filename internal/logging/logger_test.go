package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"biolabel/internal/config"
	"biolabel/internal/logging"
)

func newLogPath(t *testing.T) (string, func() string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	read := func() string {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
	return path, read
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "biolabel.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
	if strings.Contains(string(content), "\x1b[") {
		t.Fatalf("expected no ANSI codes in log file, got %q", content)
	}
}

func TestConsoleLoggerPrefixesComponentAndStage(t *testing.T) {
	path, read := newLogPath(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithStage(context.Background(), "align")
	ctx = logging.WithRunID(ctx, "run-123")
	stageLogger := logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline"))
	stageLogger.Info("rows aligned", logging.Int("rows", 30), logging.String("modality", "eeg"))

	line := read()
	if !strings.Contains(line, "INFO pipeline/align: rows aligned") {
		t.Fatalf("expected component/stage prefix, got %q", line)
	}
	for _, fragment := range []string{"rows=30", "modality=eeg", "run_id=run-123"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	path, read := newLogPath(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("debug with caller")

	if !strings.Contains(read(), "logger_test.go:") {
		t.Fatal("expected caller information in debug logs")
	}
}

func TestJSONLoggerUsesStableKeys(t *testing.T) {
	path, read := newLogPath(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "rows excluded", "exclusions", logging.Int("dropped", 2))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &record); err != nil {
		t.Fatalf("decode json record: %v", err)
	}
	if record["level"] != "warn" || record["msg"] != "rows excluded" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected %s to be injected, got %v", key, record)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	path, read := newLogPath(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logging.ErrorWithContext(logger, "visible", "stage_failure", logging.Error(errors.New("boom")))

	content := read()
	if strings.Contains(content, "hidden") {
		t.Fatalf("expected info to be filtered, got %q", content)
	}
	if !strings.Contains(content, "ERROR visible") || !strings.Contains(content, "error=boom") {
		t.Fatalf("expected error record, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
