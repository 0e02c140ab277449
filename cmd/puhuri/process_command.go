package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"puhuri/internal/config"
	"puhuri/internal/logging"
	"puhuri/internal/notifications"
	"puhuri/internal/organizer"
	"puhuri/internal/pipeline"
	"puhuri/internal/queue"
	"puhuri/internal/staging"
	"puhuri/internal/tts"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var engineFlag string
	var translationsFlag string
	var force bool
	var keepStaging bool

	cmd := &cobra.Command{
		Use:   "process <file-or-directory>",
		Short: "Translate lessons and synthesize section audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if path := strings.TrimSpace(translationsFlag); path != "" {
				expanded, err := config.ExpandPath(path)
				if err != nil {
					return fmt.Errorf("resolve translation file: %w", err)
				}
				cfg.Translate.File = expanded
			}

			logger, logPath, err := newRunLogger(ctx, cfg)
			if err != nil {
				return err
			}
			if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: unable to update puhuri.log link: %v\n", err)
			}
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
				logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "puhuri-*.log", Exclude: []string{logPath}},
			)

			paths, err := pipeline.Discover(args[0])
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			runner := newPipelineRunner(cfg, store, logger, engineFlag, force, keepStaging)

			out := cmd.OutOrStdout()
			result, err := runner.Enqueue(signalCtx, paths, force)
			printEnqueueResult(out, result)
			if err != nil {
				return err
			}
			if len(result.Added)+len(result.Retried)+len(result.Existing) == 0 {
				fmt.Fprintln(out, "All lessons are already processed; rerun with --force to rebuild them")
				return nil
			}

			summary, err := runner.Run(signalCtx)
			if err != nil {
				return err
			}
			printRunSummary(out, summary)
			pruneStaleStaging(signalCtx, cfg, logger)
			return summary.ExitError()
		},
	}

	cmd.Flags().StringVar(&engineFlag, "engine", "", "Preferred TTS engine for this run")
	cmd.Flags().StringVar(&translationsFlag, "translations", "", "YAML translation file consulted before the LLM")
	cmd.Flags().BoolVar(&force, "force", false, "Ignore translation and clip caches and redo completed lessons")
	cmd.Flags().BoolVar(&keepStaging, "keep-staging", false, "Keep staging directories after lessons complete")
	return cmd
}

func newPipelineRunner(cfg *config.Config, store *queue.Store, logger *slog.Logger, engine string, force, keepStaging bool) *pipeline.Runner {
	manager := tts.NewManager(cfg, logger,
		tts.WithPreferredEngine(engine),
		tts.WithForce(force),
	)
	set := pipeline.StageSet{
		Parse:      pipeline.NewParser(cfg, store, logger),
		Translate:  pipeline.NewTranslator(cfg, store, logger, pipeline.WithForceTranslate(force)),
		Synthesize: pipeline.NewSynthesizer(cfg, store, logger, pipeline.WithTTSManager(manager)),
		Assemble:   pipeline.NewAssembler(cfg, store, logger),
		Organize:   organizer.NewOrganizer(cfg, store, logger),
	}
	return pipeline.NewRunner(cfg, store, logger, notifications.NewService(cfg), set,
		pipeline.WithKeepStaging(keepStaging),
	)
}

// pruneStaleStaging removes staging directories older than the configured
// retention window once a run finishes. Retention of zero disables pruning.
func pruneStaleStaging(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	if cfg.Paths.StagingRetentionDays <= 0 {
		return
	}
	maxAge := time.Duration(cfg.Paths.StagingRetentionDays) * 24 * time.Hour
	staging.CleanStale(ctx, cfg.Paths.StagingDir, maxAge, logger)
}

func newRunLogger(ctx *commandContext, cfg *config.Config) (*slog.Logger, string, error) {
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("puhuri-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            ctx.logLevel(cfg),
		Format:           ctx.logFormat(cfg),
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return nil, "", fmt.Errorf("init logger: %w", err)
	}
	return logger, logPath, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "puhuri.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func printEnqueueResult(out io.Writer, result pipeline.EnqueueResult) {
	for _, item := range result.Added {
		fmt.Fprintf(out, "Queued %s (item #%d)\n", item.LessonTitle, item.ID)
	}
	for _, item := range result.Retried {
		fmt.Fprintf(out, "Requeued %s for retry (item #%d)\n", item.LessonTitle, item.ID)
	}
	for _, item := range result.Existing {
		fmt.Fprintf(out, "Already queued: %s (item #%d)\n", item.LessonTitle, item.ID)
	}
	for _, item := range result.Skipped {
		fmt.Fprintf(out, "Up to date: %s (item #%d)\n", item.LessonTitle, item.ID)
	}
}

func printRunSummary(out io.Writer, summary *pipeline.RunSummary) {
	if summary == nil {
		return
	}
	if len(summary.Outputs) > 0 {
		rows := make([][]string, 0, len(summary.Outputs))
		for _, output := range summary.Outputs {
			destination := output.FinalDir
			if destination == "" {
				destination = "-"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", output.ItemID),
				output.Lesson,
				formatStatusLabel(string(output.Status)),
				fmt.Sprintf("%d", output.Sections),
				formatRunDuration(output.Duration),
				destination,
			})
		}
		table := renderTable(
			[]string{"ID", "Lesson", "Status", "Sections", "Duration", "Output"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		)
		fmt.Fprintln(out, table)

		for _, output := range summary.Outputs {
			if output.Status == queue.StatusCompleted || output.Message == "" {
				continue
			}
			fmt.Fprintf(out, "  %s: %s\n", output.Lesson, output.Message)
		}
	}
	fmt.Fprintf(out, "Processed %d, failed %d, review %d in %s\n",
		summary.Processed, summary.Failed, summary.Review, formatRunDuration(summary.Duration))
}

func formatRunDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
