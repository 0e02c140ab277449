package preflight

import (
	"context"
	"strings"

	"puhuri/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Staging directory (always checked)
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))

	if strings.TrimSpace(cfg.Paths.OutputDir) != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}

	if cfg.Translate.Enabled {
		results = append(results, CheckTranslator(ctx, cfg))
	}

	results = append(results, CheckEngines(cfg)...)
	results = append(results, CheckFFmpeg(cfg)...)

	return results
}

// AllPassed reports whether every result passed. An empty result set passes.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
