package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"puhuri/internal/config"
	"puhuri/internal/deps"
	"puhuri/internal/logging"
	"puhuri/internal/preflight"
	"puhuri/internal/queue"
	"puhuri/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range configurationLines(cfg, ctx.configPath, ctx.configExists, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range dependencyLines(collectDependencyStatuses(cfg), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(out, line)
			}
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func configurationLines(cfg *config.Config, configPath string, configExists bool, colorize bool) []string {
	lines := make([]string, 0, 8)

	if configExists {
		lines = append(lines, renderStatusLine("Config file", statusOK, configPath, colorize))
	} else {
		lines = append(lines, renderStatusLine("Config file", statusWarn, fmt.Sprintf("%s missing; defaults in use", configPath), colorize))
	}

	lines = append(lines, directoryStatusLine("Output directory", cfg.Paths.OutputDir, colorize))
	lines = append(lines, directoryStatusLine("Staging directory", cfg.Paths.StagingDir, colorize))
	lines = append(lines, stagingUsageLine(cfg.Paths.StagingDir, colorize))
	lines = append(lines, directoryStatusLine("Review directory", cfg.Paths.ReviewDir, colorize))

	if cfg.Translate.Enabled {
		lines = append(lines, renderStatusLine("Translator", statusOK, fmt.Sprintf("%s via %s", cfg.Translate.Model, cfg.Translate.BaseURL), colorize))
	} else {
		lines = append(lines, renderStatusLine("Translator", statusWarn, "Disabled (translation files only)", colorize))
	}

	lines = append(lines, renderStatusLine("Engine order", statusInfo, strings.Join(cfg.EngineOrder(), ", "), colorize))
	lines = append(lines, renderStatusLine("Audio output", statusInfo, fmt.Sprintf("%s at %d Hz", strings.ToUpper(strings.TrimSpace(cfg.Audio.Format)), cfg.Audio.SampleRate), colorize))

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, renderStatusLine("Notifications", statusOK, "ntfy topic configured", colorize))
	} else {
		lines = append(lines, renderStatusLine("Notifications", statusInfo, "Disabled", colorize))
	}

	return lines
}

func directoryStatusLine(label, path string, colorize bool) string {
	result := preflight.CheckDirectoryAccess(label, path)
	if result.Passed {
		return renderStatusLine(label, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(label, statusError, result.Detail, colorize)
}

func stagingUsageLine(stagingDir string, colorize bool) string {
	dirs, err := staging.ListDirectories(stagingDir)
	if err != nil {
		return renderStatusLine("Staging usage", statusWarn, err.Error(), colorize)
	}
	if len(dirs) == 0 {
		return renderStatusLine("Staging usage", statusInfo, "No item directories", colorize)
	}
	var total int64
	for _, dir := range dirs {
		total += dir.Size
	}
	detail := fmt.Sprintf("%d item directories, %s", len(dirs), logging.FormatBytes(total))
	return renderStatusLine("Staging usage", statusInfo, detail, colorize)
}

func collectDependencyStatuses(cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	if needed, required := deps.NeedsFFmpeg(cfg); needed {
		ffmpeg := deps.CheckFFmpeg(cfg.FFmpegBinary())
		ffmpeg.Optional = !required
		statuses = append(statuses, ffmpeg)
	}
	return statuses
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+2)

	missing := make([]string, 0)
	requiredMissing := 0
	for _, dep := range statuses {
		if dep.Available {
			continue
		}
		missing = append(missing, dep.Name)
		if !dep.Optional {
			requiredMissing++
		}
	}

	switch {
	case requiredMissing > 0:
		lines = append(lines, renderStatusLine("Summary", statusError, fmt.Sprintf("%d required dependencies missing", requiredMissing), colorize))
	case len(missing) > 0:
		lines = append(lines, renderStatusLine("Summary", statusWarn, "Optional dependencies missing", colorize))
	default:
		lines = append(lines, renderStatusLine("Summary", statusOK, "All dependencies ready", colorize))
	}

	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}

	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
