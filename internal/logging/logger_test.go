package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"puhuri/internal/config"
	"puhuri/internal/logging"
	"puhuri/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("startup message")

	logPath := filepath.Join(cfg.Paths.LogDir, "puhuri.log")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "startup message") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console-info.log")

	opts := logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	}

	logger, err := logging.New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console-debug.log")

	opts := logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	}

	logger, err := logging.New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	scoped := logging.NewComponentLogger(logger, "synthesize")
	scoped.Info("clip rendered", logging.String("engine", "piper"), logging.Int("section", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(content))
	if !strings.Contains(line, "INFO synthesize: clip rendered") {
		t.Fatalf("expected component prefix in %q", line)
	}
	if !strings.Contains(line, "engine=piper") || !strings.Contains(line, "section=3") {
		t.Fatalf("expected key=value fields in %q", line)
	}
}

func TestNewJSONLoggerEmitsCanonicalKeys(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "json.log")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if payload["msg"] != "json message" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if payload["k"] != "v" {
		t.Fatalf("unexpected field: %v", payload["k"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatal("expected ts field")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "level.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "invalid",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("visible")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") {
		t.Fatalf("expected debug suppressed at info level, got %q", content)
	}
	if !strings.Contains(string(content), "visible") {
		t.Fatalf("expected info logged, got %q", content)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "ctx.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := context.Background()
	ctx = services.WithItemID(ctx, 123)
	ctx = services.WithStage(ctx, "translate")
	ctx = services.WithRequestID(ctx, "req-xyz")

	logging.WithContext(ctx, logger).Info("contextual log")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"item_id=123", "stage=translate", "correlation_id=req-xyz"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestCleanupOldLogsPrunesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	newPath := filepath.Join(dir, "new.log")
	keepPath := filepath.Join(dir, "puhuri.log")
	for _, path := range []string{oldPath, newPath, keepPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(keepPath, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logging.CleanupOldLogs(logging.NewNop(), 7, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "*.log",
		Exclude: []string{keepPath},
	})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected recent log kept: %v", err)
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Fatalf("expected excluded log kept: %v", err)
	}
}
