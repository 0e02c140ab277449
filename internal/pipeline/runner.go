package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"puhuri/internal/config"
	"puhuri/internal/logging"
	"puhuri/internal/notifications"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/stage"
	"puhuri/internal/staging"
)

const lockFileName = "puhuri.lock"

// Runner drains the queue sequentially, advancing each item through the
// configured stages until it completes, fails, or is marked for review.
type Runner struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	stages       []pipelineStage
	stageByStart map[queue.Status]pipelineStage
	startOrder   []queue.Status

	keepStaging bool
}

// Option configures optional Runner behavior.
type Option func(*Runner)

// WithKeepStaging leaves per-item staging directories in place after an item
// completes, for inspection or reuse.
func WithKeepStaging(keep bool) Option {
	return func(r *Runner) {
		r.keepStaging = keep
	}
}

// NewRunner constructs a pipeline runner over the provided stage handlers.
func NewRunner(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, set StageSet, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	stages := buildStages(set)
	byStart := make(map[queue.Status]pipelineStage, len(stages))
	order := make([]queue.Status, 0, len(stages))
	for _, stg := range stages {
		byStart[stg.startStatus] = stg
		order = append(order, stg.startStatus)
	}
	return applyOptions(&Runner{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		notifier:     notifier,
		stages:       stages,
		stageByStart: byStart,
		startOrder:   order,
	}, opts)
}

func applyOptions(r *Runner, opts []Option) *Runner {
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LessonOutput records the final state of one lesson in a run.
type LessonOutput struct {
	ItemID   int64
	Lesson   string
	Status   queue.Status
	Sections int
	FinalDir string
	Message  string
	Duration time.Duration
}

// RunSummary aggregates the outcome of one batch run.
type RunSummary struct {
	Processed int
	Failed    int
	Review    int
	Skipped   int
	Duration  time.Duration
	Outputs   []LessonOutput
}

// ExitError reports whether the run outcome should produce a non-zero exit.
func (s *RunSummary) ExitError() error {
	if s == nil {
		return nil
	}
	if s.Failed > 0 {
		return fmt.Errorf("%d lesson(s) failed", s.Failed)
	}
	if s.Review > 0 {
		return fmt.Errorf("%d lesson(s) need review", s.Review)
	}
	return nil
}

// Run processes every queued item until the queue has no more startable work.
// Stage failures are absorbed into the summary; the returned error reports
// run-level problems such as lock contention, queue access failures, or
// context cancellation.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	runStart := time.Now()
	summary := &RunSummary{}

	lock := flock.New(filepath.Join(r.cfg.Paths.StagingDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return summary, errors.New("another puhuri process is already running")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("release run lock failed", logging.Error(err))
		}
	}()

	if reset, err := r.store.ResetStuckProcessing(ctx); err != nil {
		r.logger.Warn("reset interrupted items failed", logging.Error(err))
	} else if reset > 0 {
		r.logger.Info("reset interrupted items", logging.Int64("count", reset))
	}

	startable, err := r.store.List(ctx, r.startOrder...)
	if err != nil {
		return summary, fmt.Errorf("list queue items: %w", err)
	}
	if len(startable) == 0 {
		summary.Duration = time.Since(runStart)
		r.logger.Info("queue empty, nothing to process")
		return summary, nil
	}

	r.logger.Info("run started", logging.Int("lessons", len(startable)))
	if r.notifier != nil {
		if err := r.notifier.NotifyRunStarted(ctx, len(startable)); err != nil {
			r.logger.Debug("run start notification failed", logging.Error(err))
		}
	}

	itemStarts := make(map[int64]time.Time, len(startable))
	for {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(runStart)
			return summary, err
		}

		item, err := r.store.NextForStatuses(ctx, r.startOrder...)
		if err != nil {
			summary.Duration = time.Since(runStart)
			return summary, fmt.Errorf("fetch next queue item: %w", err)
		}
		if item == nil {
			break
		}

		if _, seen := itemStarts[item.ID]; !seen {
			itemStarts[item.ID] = time.Now()
		}
		if err := r.processItem(ctx, item); err != nil {
			summary.Duration = time.Since(runStart)
			return summary, err
		}
		r.recordOutcome(ctx, summary, item, itemStarts[item.ID])
	}

	summary.Duration = time.Since(runStart)
	r.logger.Info("run finished",
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Int("review", summary.Review),
		logging.Duration("run_duration", summary.Duration),
	)
	if r.notifier != nil {
		if err := r.notifier.NotifyRunCompleted(ctx, summary.Processed, summary.Failed+summary.Review, summary.Duration); err != nil {
			r.logger.Debug("run completion notification failed", logging.Error(err))
		}
	}
	return summary, nil
}

// processItem runs the stage matching the item's current status with the
// one-shot transition semantics: persist the processing status, Prepare,
// persist, Execute, persist the done status. Stage failures are persisted on
// the item and reported through the notifier; only infrastructure failures
// (queue persistence, cancellation) are returned.
func (r *Runner) processItem(ctx context.Context, item *queue.Item) error {
	stg, ok := r.stageByStart[item.Status]
	if !ok {
		return fmt.Errorf("no stage configured for status %q", item.Status)
	}
	if stg.handler == nil {
		r.failItem(ctx, stg.name, item, services.Wrap(
			services.ErrConfiguration, stg.name, "dispatch",
			fmt.Sprintf("Stage %s has no handler configured", stg.name), nil))
		return nil
	}

	stageCtx := services.WithRequestID(services.WithStage(services.WithItemID(ctx, item.ID), stg.name), uuid.NewString())
	stageLogger := logging.WithContext(stageCtx, r.logger)
	if aware, ok := stg.handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String(logging.FieldLesson, strings.TrimSpace(item.LessonTitle)),
		logging.String("source_file", strings.TrimSpace(item.SourcePath)),
	)

	setItemProcessingState(item, stg.processingStatus)
	if err := r.store.Update(stageCtx, item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := stg.handler.Prepare(stageCtx, item); err != nil {
		r.failItem(stageCtx, stg.name, item, err)
		return nil
	}
	if err := r.store.Update(stageCtx, item); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := stg.handler.Execute(stageCtx, item); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}
		r.failItem(stageCtx, stg.name, item, err)
		return nil
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	item.LastHeartbeat = nil
	if item.Status == queue.StatusCompleted {
		if item.ProgressPercent < 100 {
			item.ProgressPercent = 100
		}
		if strings.TrimSpace(item.ProgressMessage) == "" {
			item.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
	}
	if err := r.store.Update(stageCtx, item); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info("stage completed",
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// failItem maps the stage error to a failed or review status, persists it,
// and notifies. Persistence problems are logged, not returned, so the run
// can move on to the next lesson.
func (r *Runner) failItem(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	logger := logging.WithContext(ctx, r.logger)

	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	resolved := services.FailureStatus(stageErr)
	if resolved == queue.StatusReview {
		item.SetReview(message)
	} else {
		item.SetFailed(message)
	}

	logger.Error("stage failed",
		logging.String("resolved_status", string(resolved)),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	if err := r.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("run shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	if r.notifier == nil {
		return
	}
	if resolved == queue.StatusReview {
		if err := r.notifier.NotifyReviewRequired(ctx, item.LessonTitle, message); err != nil {
			logger.Debug("review notification failed", logging.Error(err))
		}
		return
	}
	contextLabel := fmt.Sprintf("%s (item #%d)", stageName, item.ID)
	if err := r.notifier.NotifyError(ctx, stageErr, contextLabel); err != nil {
		logger.Debug("stage error notification failed", logging.Error(err))
	}
}

// recordOutcome folds finished items into the summary. Items still moving
// through intermediate statuses are picked up again by the next loop turn.
func (r *Runner) recordOutcome(ctx context.Context, summary *RunSummary, item *queue.Item, startedAt time.Time) {
	switch item.Status {
	case queue.StatusCompleted:
		summary.Processed++
	case queue.StatusFailed:
		summary.Failed++
	case queue.StatusReview:
		summary.Review++
	default:
		return
	}

	output := LessonOutput{
		ItemID:   item.ID,
		Lesson:   item.LessonTitle,
		Status:   item.Status,
		Sections: item.SectionCount,
		FinalDir: item.FinalDir,
		Duration: time.Since(startedAt),
	}
	if item.Status != queue.StatusCompleted {
		output.Message = item.ErrorMessage
	}
	summary.Outputs = append(summary.Outputs, output)

	if item.Status != queue.StatusCompleted {
		return
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyLessonCompleted(ctx, item.LessonTitle, item.SectionCount, output.Duration); err != nil {
			r.logger.Debug("lesson completion notification failed", logging.Error(err))
		}
	}
	if !r.keepStaging && item.StagingDir != "" {
		if err := (staging.Dirs{Root: item.StagingDir}).Remove(); err != nil {
			r.logger.Warn("staging cleanup failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String("path", item.StagingDir),
				logging.Error(err),
			)
		}
	}
}

func setItemProcessingState(item *queue.Item, processing queue.Status) {
	now := time.Now().UTC()
	item.Status = processing
	item.ProgressStage = deriveStageLabel(processing)
	if item.ProgressMessage == "" {
		item.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(processing))
	}
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	item.LastHeartbeat = &now
}
