package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"puhuri/internal/config"
	"puhuri/internal/queue"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ReviewDir = filepath.Join(base, "review")
	cfgVal.TTS.CacheEnabled = false
	cfgVal.TTS.CacheDir = filepath.Join(base, "cache", "clips")
	cfgVal.Translate.Enabled = false

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, &cfgVal)

	return &cliTestEnv{
		cfg:        &cfgVal,
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
output_dir = %q
staging_dir = %q
log_dir = %q
review_dir = %q

[translate]
enabled = %t

[tts]
cache_enabled = %t
cache_dir = %q
`,
		cfg.Paths.OutputDir,
		cfg.Paths.StagingDir,
		cfg.Paths.LogDir,
		cfg.Paths.ReviewDir,
		cfg.Translate.Enabled,
		cfg.TTS.CacheEnabled,
		cfg.TTS.CacheDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func openStore(t *testing.T, env *cliTestEnv) *queue.Store {
	t.Helper()
	store, err := queue.Open(env.cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}
