package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCLIVersion(t *testing.T) {
	out, _, err := runCLI(t, []string{"version"}, "")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "puhuri dev")
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Configuration")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "Queue Status")
	requireContains(t, out, "Queue is empty")
	requireContains(t, out, env.configPath)
	requireContains(t, out, "Disabled (translation files only)")
	requireContains(t, out, "Staging usage")
	requireContains(t, out, "No item directories")
}

func TestCLIStatusReportsStagingUsage(t *testing.T) {
	env := setupCLITestEnv(t)

	itemDir := filepath.Join(env.cfg.Paths.StagingDir, "3-kappale-3")
	if err := os.MkdirAll(itemDir, 0o755); err != nil {
		t.Fatalf("mkdir staging item: %v", err)
	}
	if err := os.WriteFile(filepath.Join(itemDir, "section.wav"), make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write staging file: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "1 item directories, 2.0 KiB")
}

func TestCLIEnginesCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"engines"}, env.configPath)
	if err != nil {
		t.Fatalf("engines: %v", err)
	}
	for _, engine := range []string{"piper", "espeak", "gtts"} {
		requireContains(t, out, engine)
	}
	requireContains(t, out, "default")
	requireContains(t, out, "fallback")
}

func TestCLICheckCommandReportsMissingBinaries(t *testing.T) {
	env := setupCLITestEnv(t)
	// An empty PATH makes every engine binary and ffmpeg unresolvable.
	t.Setenv("PATH", t.TempDir())

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "check(s) failed") {
		t.Fatalf("expected failed checks, got %v", err)
	}
	requireContains(t, out, "Piper")
	requireContains(t, out, "failed")
}
