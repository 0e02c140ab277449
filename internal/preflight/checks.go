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

	"puhuri/internal/config"
	"puhuri/internal/deps"
	"puhuri/internal/services/translate"
)

// CheckTranslator verifies that the translation endpoint is reachable and
// the model answers. It uses a 30-second timeout and a single attempt
// (no retries).
func CheckTranslator(ctx context.Context, cfg *config.Config) Result {
	const name = "Translator"

	if strings.TrimSpace(cfg.Translate.BaseURL) == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	translator := translate.NewTranslator(cfg, nil, translate.WithRetryMaxAttempts(1))
	if err := translator.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeTranslatorError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "endpoint reachable"}
}

// CheckTranslatorFromConfig evaluates translator status from config and
// connectivity for status displays. Disabled translation passes.
func CheckTranslatorFromConfig(cfg *config.Config) Result {
	const name = "Translator"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Translate.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Translate.BaseURL) == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	return CheckTranslator(context.Background(), cfg)
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
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

// CheckEngines reports availability for every binary in the configured
// engine chain. A missing fallback engine passes with a note; a missing
// default engine fails.
func CheckEngines(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		switch {
		case status.Available:
			results = append(results, Result{Name: status.Name, Passed: true, Detail: status.Command})
		case status.Optional:
			results = append(results, Result{Name: status.Name, Passed: true, Detail: status.Detail + " (optional fallback)"})
		default:
			results = append(results, Result{Name: status.Name, Detail: status.Detail})
		}
	}
	return results
}

// CheckFFmpeg reports ffmpeg availability when the configured pipeline can
// touch it. Returns no results when nothing in the chain needs ffmpeg.
func CheckFFmpeg(cfg *config.Config) []Result {
	needed, required := deps.NeedsFFmpeg(cfg)
	if !needed {
		return nil
	}
	status := deps.CheckFFmpeg(cfg.FFmpegBinary())
	switch {
	case status.Available:
		return []Result{{Name: status.Name, Passed: true, Detail: status.Command}}
	case !required:
		return []Result{{Name: status.Name, Passed: true, Detail: status.Detail + " (needed only for fallback engines)"}}
	default:
		return []Result{{Name: status.Name, Detail: status.Detail}}
	}
}

// summarizeTranslatorError produces a human-readable summary for translator
// health check failures.
func summarizeTranslatorError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (translation endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (translation endpoint unreachable)"
	}
	return err.Error()
}
