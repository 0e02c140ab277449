package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"puhuri/internal/audio"
	"puhuri/internal/config"
	"puhuri/internal/deps"
	"puhuri/internal/logging"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/stage"
	"puhuri/internal/staging"
)

const progressStageAssembling = "Assembling"

// Assembler joins the synthesized clips of each section into one track with
// silence gaps and renders it in the configured output format.
type Assembler struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	asm    *audio.Assembler
	source string
	target string
}

// NewAssembler constructs the assemble stage.
func NewAssembler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Assembler {
	return &Assembler{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "assemble"),
		asm:    audio.NewAssembler(cfg, deps.ResolveFFmpegPath(cfg.FFmpegBinary()), logger),
		source: normalizedLanguage(cfg.Translate.SourceLanguage),
		target: normalizedLanguage(cfg.Translate.TargetLanguage),
	}
}

// SetLogger routes stage logs through the run-scoped logger.
func (a *Assembler) SetLogger(logger *slog.Logger) {
	if a == nil {
		return
	}
	a.logger = logging.NewComponentLogger(logger, "assemble")
}

// Prepare primes queue progress fields before executing the stage.
func (a *Assembler) Prepare(ctx context.Context, item *queue.Item) error {
	if a == nil || a.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "assemble", "prepare", "Assemble stage is not configured", nil)
	}
	if a.store == nil {
		return services.Wrap(services.ErrConfiguration, "assemble", "prepare", "Queue store unavailable", nil)
	}
	item.InitProgress(progressStageAssembling, "Collecting synthesized clips")
	return a.store.UpdateProgress(ctx, item)
}

// Execute concatenates each section's clips in pair order with the
// configured pause and renders one track per section.
func (a *Assembler) Execute(ctx context.Context, item *queue.Item) error {
	stageStart := time.Now()
	if item == nil {
		return services.Wrap(services.ErrValidation, "assemble", "execute", "Queue item is nil", nil)
	}
	if item.StagingDir == "" {
		return services.Wrap(services.ErrValidation, "assemble", "execute",
			"Item has no staging directory; rerun parse", nil)
	}
	logger := logging.WithContext(ctx, a.logger)

	dirs := staging.Dirs{Root: item.StagingDir}
	sections, err := stage.LoadSections(dirs)
	if err != nil {
		return err
	}

	var total time.Duration
	for i, sec := range sections {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.store.UpdateHeartbeat(ctx, item.ID); err != nil {
			logger.Warn("heartbeat update failed", logging.Error(err))
		}

		pairs, err := stage.LoadSectionPairs(dirs, sec)
		if err != nil {
			return err
		}
		clips, err := a.loadSectionClips(dirs, sec.Index, len(pairs))
		if err != nil {
			return err
		}

		track, err := a.asm.Assemble(clips)
		if err != nil {
			return services.Wrap(services.ErrValidation, "assemble", "join clips",
				fmt.Sprintf("Section %d clips could not be joined", sec.Index), err)
		}
		trackPath := dirs.TrackFile(sec.Index, sec.Slug(), a.asm.OutputExt())
		if err := a.asm.WriteTrack(ctx, track, trackPath); err != nil {
			return services.Wrap(services.ErrExternalTool, "assemble", "render track",
				fmt.Sprintf("Section %d track could not be rendered", sec.Index), err)
		}
		total += track.Duration()

		logger.Debug("section track rendered",
			logging.Int(logging.FieldSection, sec.Index),
			logging.Int("segments", track.Segments),
			logging.Duration("track_duration", track.Duration()),
		)
		a.updateProgress(ctx, item,
			fmt.Sprintf("Assembled section %d/%d", i+1, len(sections)),
			float64(i+1)/float64(len(sections))*100)
	}

	item.SetProgressComplete(progressStageAssembling,
		fmt.Sprintf("Rendered %d tracks (%s total)", len(sections), total.Round(time.Second)))
	if err := a.store.UpdateProgress(ctx, item); err != nil {
		return services.Wrap(services.ErrTransient, "assemble", "persist progress",
			"Failed to persist assembly progress", err)
	}

	logger.Info("lesson assembled",
		logging.String(logging.FieldLesson, item.LessonTitle),
		logging.Int("tracks", len(sections)),
		logging.Duration("audio_duration", total),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// loadSectionClips reads the section's clips in playback order: the source
// language segment then its translation, pair by pair.
func (a *Assembler) loadSectionClips(dirs staging.Dirs, sectionIndex, pairCount int) ([]*audio.Clip, error) {
	clipDir := dirs.ClipDir(sectionIndex)
	clips := make([]*audio.Clip, 0, pairCount*2)
	langs := []string{a.source, a.target}
	for pair := 1; pair <= pairCount; pair++ {
		for i, lang := range langs {
			slot := i + 1
			path := clipPath(clipDir, pair, slot, lang)
			data, err := os.ReadFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, services.Wrap(services.ErrValidation, "assemble", "load clips",
						fmt.Sprintf("Section %d is missing clip %d-%d; rerun synthesize", sectionIndex, pair, slot), err)
				}
				return nil, services.Wrap(services.ErrTransient, "assemble", "load clips",
					fmt.Sprintf("Section %d clip %d-%d is unreadable", sectionIndex, pair, slot), err)
			}
			clip, err := audio.DecodeWAVBytes(data)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "assemble", "decode clip",
					fmt.Sprintf("Section %d clip %d-%d is corrupt; rerun synthesize", sectionIndex, pair, slot), err)
			}
			clips = append(clips, clip)
		}
	}
	return clips, nil
}

func (a *Assembler) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	item.SetProgress(progressStageAssembling, message, percent)
	if err := a.store.UpdateProgress(ctx, item); err != nil {
		logging.WithContext(ctx, a.logger).Warn("progress update failed", logging.Error(err))
	}
}

// HealthCheck reports readiness for the assemble stage.
func (a *Assembler) HealthCheck(ctx context.Context) stage.Health {
	const name = "assemble"
	if a == nil || a.cfg == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if a.store == nil {
		return stage.Unhealthy(name, "queue store unavailable")
	}
	if a.asm.OutputExt() != "wav" {
		status := deps.CheckFFmpeg(a.cfg.FFmpegBinary())
		if !status.Available {
			return stage.Unhealthy(name, fmt.Sprintf("%s output needs ffmpeg: %s", a.cfg.Audio.Format, status.Detail))
		}
	}
	return stage.Healthy(name)
}
