package organizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"puhuri/internal/audio"
	"puhuri/internal/config"
	"puhuri/internal/lesson"
	"puhuri/internal/logging"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/stage"
	"puhuri/internal/staging"
	"puhuri/internal/textutil"
)

const progressStageOrganizing = "Organizing"

// Organizer publishes the rendered section tracks of a lesson from item
// staging into the output library.
type Organizer struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// NewOrganizer constructs the organize stage.
func NewOrganizer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Organizer {
	return &Organizer{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "organize"),
	}
}

// SetLogger routes stage logs through the run-scoped logger.
func (o *Organizer) SetLogger(logger *slog.Logger) {
	if o == nil {
		return
	}
	o.logger = logging.NewComponentLogger(logger, "organize")
}

// Prepare primes queue progress fields before executing the stage.
func (o *Organizer) Prepare(ctx context.Context, item *queue.Item) error {
	if o == nil || o.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "organize", "prepare", "Organize stage is not configured", nil)
	}
	if o.store == nil {
		return services.Wrap(services.ErrConfiguration, "organize", "prepare", "Queue store unavailable", nil)
	}
	item.InitProgress(progressStageOrganizing, "Publishing rendered tracks")
	return o.store.UpdateProgress(ctx, item)
}

// Execute copies every rendered section track into
// <output_dir>/<lesson-slug>/ with verified writes. When the library
// filesystem is unreachable the tracks are parked in the review directory
// instead of failing the lesson.
func (o *Organizer) Execute(ctx context.Context, item *queue.Item) error {
	stageStart := time.Now()
	if item == nil {
		return services.Wrap(services.ErrValidation, "organize", "execute", "Queue item is nil", nil)
	}
	if item.StagingDir == "" {
		return services.Wrap(services.ErrValidation, "organize", "execute",
			"Item has no staging directory; rerun parse", nil)
	}
	outputDir := strings.TrimSpace(o.cfg.Paths.OutputDir)
	if outputDir == "" {
		return services.Wrap(services.ErrConfiguration, "organize", "execute",
			"Output directory not configured; set output_dir in your puhuri config", nil)
	}
	logger := logging.WithContext(ctx, o.logger)

	dirs := staging.Dirs{Root: item.StagingDir}
	sections, err := stage.LoadSections(dirs)
	if err != nil {
		return err
	}
	tracks, err := collectTracks(dirs, sections, audio.TrackExt(o.cfg.Audio.Format))
	if err != nil {
		return err
	}

	lessonDir := filepath.Join(outputDir, textutil.SafeFilename(item.LessonTitle))
	if err := os.MkdirAll(lessonDir, 0o755); err != nil {
		if libraryUnavailable(err) {
			return o.routeToReview(ctx, item, "Output library unavailable", tracks, err)
		}
		return services.Wrap(services.ErrConfiguration, "organize", "ensure lesson dir",
			fmt.Sprintf("Failed to create lesson directory %s", lessonDir), err)
	}

	published := make([]string, 0, len(tracks))
	for i, src := range tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.store.UpdateHeartbeat(ctx, item.ID); err != nil {
			logger.Warn("heartbeat update failed", logging.Error(err))
		}

		target, err := o.placeTrack(src, lessonDir)
		if err != nil {
			if libraryUnavailable(err) {
				return o.routeToReview(ctx, item, "Output library unavailable", tracks[i:], err)
			}
			return services.Wrap(services.ErrTransient, "organize", "publish track",
				fmt.Sprintf("Failed to publish %s", filepath.Base(src)), err)
		}
		published = append(published, target)

		logger.Debug("track published", logging.String("track", filepath.Base(target)))
		o.updateProgress(ctx, item,
			fmt.Sprintf("Published track %d/%d", i+1, len(tracks)),
			float64(i+1)/float64(len(tracks))*100)
	}

	item.FinalDir = lessonDir
	item.SetProgressComplete(progressStageOrganizing,
		fmt.Sprintf("Published %d tracks to %s", len(published), lessonDir))
	if err := o.store.UpdateProgress(ctx, item); err != nil {
		return services.Wrap(services.ErrTransient, "organize", "persist progress",
			"Failed to persist organize progress", err)
	}

	logger.Info("lesson published",
		logging.String(logging.FieldLesson, item.LessonTitle),
		logging.Int("tracks", len(published)),
		logging.String("final_dir", lessonDir),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// collectTracks verifies every section has a rendered track before the
// library is touched, returning staged paths in section order.
func collectTracks(dirs staging.Dirs, sections []lesson.Section, ext string) ([]string, error) {
	tracks := make([]string, 0, len(sections))
	for _, sec := range sections {
		path := dirs.TrackFile(sec.Index, sec.Slug(), ext)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, services.Wrap(services.ErrValidation, "organize", "collect tracks",
					fmt.Sprintf("Section %d track is missing; rerun assemble", sec.Index), err)
			}
			return nil, services.Wrap(services.ErrTransient, "organize", "collect tracks",
				fmt.Sprintf("Section %d track is unreadable", sec.Index), err)
		}
		if info.IsDir() || info.Size() == 0 {
			return nil, services.Wrap(services.ErrValidation, "organize", "collect tracks",
				fmt.Sprintf("Section %d track is empty; rerun assemble", sec.Index), nil)
		}
		tracks = append(tracks, path)
	}
	return tracks, nil
}

func (o *Organizer) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	item.SetProgress(progressStageOrganizing, message, percent)
	if err := o.store.UpdateProgress(ctx, item); err != nil {
		logging.WithContext(ctx, o.logger).Warn("progress update failed", logging.Error(err))
	}
}

// HealthCheck reports readiness for the organize stage.
func (o *Organizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "organize"
	if o == nil || o.cfg == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if o.store == nil {
		return stage.Unhealthy(name, "queue store unavailable")
	}
	if strings.TrimSpace(o.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy(name, "output_dir not configured")
	}
	return stage.Healthy(name)
}
