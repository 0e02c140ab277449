package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"puhuri/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to point output_dir at your audio library and pick TTS voices before running Puhuri.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configFlagValue())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "# resolved from %s\n", path)
			} else {
				fmt.Fprintf(out, "# defaults in use (%s does not exist)\n", path)
			}
			printResolvedConfig(out, cfg)
			return nil
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the resolved configuration file path",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, exists, err := config.Load(ctx.configFlagValue())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintln(out, path)
			} else {
				fmt.Fprintf(out, "%s (not created yet; run `puhuri config init`)\n", path)
			}
			return nil
		},
	}
}

func printResolvedConfig(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "[paths]")
	fmt.Fprintf(out, "output_dir = %q\n", cfg.Paths.OutputDir)
	fmt.Fprintf(out, "staging_dir = %q\n", cfg.Paths.StagingDir)
	fmt.Fprintf(out, "log_dir = %q\n", cfg.Paths.LogDir)
	fmt.Fprintf(out, "review_dir = %q\n", cfg.Paths.ReviewDir)
	fmt.Fprintf(out, "overwrite_existing = %t\n", cfg.Paths.OverwriteExisting)
	fmt.Fprintf(out, "staging_retention_days = %d\n", cfg.Paths.StagingRetentionDays)

	fmt.Fprintln(out, "\n[translate]")
	fmt.Fprintf(out, "enabled = %t\n", cfg.Translate.Enabled)
	fmt.Fprintf(out, "base_url = %q\n", cfg.Translate.BaseURL)
	fmt.Fprintf(out, "model = %q\n", cfg.Translate.Model)
	fmt.Fprintf(out, "api_key = %s\n", redactSecret(cfg.Translate.APIKey))
	fmt.Fprintf(out, "timeout_seconds = %d\n", cfg.Translate.TimeoutSeconds)
	fmt.Fprintf(out, "source_language = %q\n", cfg.Translate.SourceLanguage)
	fmt.Fprintf(out, "target_language = %q\n", cfg.Translate.TargetLanguage)
	if strings.TrimSpace(cfg.Translate.File) != "" {
		fmt.Fprintf(out, "file = %q\n", cfg.Translate.File)
	}

	fmt.Fprintln(out, "\n[tts]")
	fmt.Fprintf(out, "default_engine = %q\n", cfg.TTS.DefaultEngine)
	fmt.Fprintf(out, "fallback_order = [%s]\n", quoteList(cfg.TTS.FallbackOrder))
	fmt.Fprintf(out, "max_failures = %d\n", cfg.TTS.MaxFailures)
	fmt.Fprintf(out, "cache_enabled = %t\n", cfg.TTS.CacheEnabled)
	fmt.Fprintf(out, "cache_dir = %q\n", cfg.TTS.CacheDir)

	fmt.Fprintln(out, "\n[audio]")
	fmt.Fprintf(out, "sample_rate = %d\n", cfg.Audio.SampleRate)
	fmt.Fprintf(out, "channels = %d\n", cfg.Audio.Channels)
	fmt.Fprintf(out, "pause_seconds = %g\n", cfg.Audio.PauseSeconds)
	fmt.Fprintf(out, "format = %q\n", cfg.Audio.Format)
	fmt.Fprintf(out, "bitrate = %q\n", cfg.Audio.Bitrate)

	fmt.Fprintln(out, "\n[notifications]")
	fmt.Fprintf(out, "ntfy_topic = %s\n", redactSecret(cfg.Notifications.NtfyTopic))
	fmt.Fprintf(out, "request_timeout = %d\n", cfg.Notifications.RequestTimeout)

	fmt.Fprintln(out, "\n[logging]")
	fmt.Fprintf(out, "format = %q\n", cfg.Logging.Format)
	fmt.Fprintf(out, "level = %q\n", cfg.Logging.Level)
	fmt.Fprintf(out, "retention_days = %d\n", cfg.Logging.RetentionDays)
}

func redactSecret(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unset)"
	}
	return "(set)"
}

func quoteList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, fmt.Sprintf("%q", value))
	}
	return strings.Join(quoted, ", ")
}
