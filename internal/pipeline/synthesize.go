package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"puhuri/internal/audio"
	"puhuri/internal/config"
	"puhuri/internal/fileutil"
	"puhuri/internal/language"
	"puhuri/internal/logging"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/services/translate"
	"puhuri/internal/stage"
	"puhuri/internal/staging"
	"puhuri/internal/tts"
)

const progressStageSynthesizing = "Synthesizing"

// Synthesizer renders every sentence pair into source and target language
// clips through the engine fallback chain.
type Synthesizer struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	manager *tts.Manager
	source  string
	target  string
}

// SynthesizerOption configures optional synthesize stage behavior.
type SynthesizerOption func(*Synthesizer)

// WithTTSManager overrides the engine manager, for tests and CLI overrides.
func WithTTSManager(manager *tts.Manager) SynthesizerOption {
	return func(s *Synthesizer) {
		s.manager = manager
	}
}

// NewSynthesizer constructs the synthesize stage.
func NewSynthesizer(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "synthesize"),
		source: normalizedLanguage(cfg.Translate.SourceLanguage),
		target: normalizedLanguage(cfg.Translate.TargetLanguage),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.manager == nil {
		s.manager = tts.NewManager(cfg, logger)
	}
	return s
}

func normalizedLanguage(code string) string {
	normalized, err := language.Normalize(code)
	if err != nil {
		return code
	}
	return normalized
}

// SetLogger routes stage logs through the run-scoped logger.
func (s *Synthesizer) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "synthesize")
}

// Prepare primes queue progress fields before executing the stage.
func (s *Synthesizer) Prepare(ctx context.Context, item *queue.Item) error {
	if s == nil || s.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "synthesize", "prepare", "Synthesize stage is not configured", nil)
	}
	if s.store == nil {
		return services.Wrap(services.ErrConfiguration, "synthesize", "prepare", "Queue store unavailable", nil)
	}
	item.InitProgress(progressStageSynthesizing, "Loading sentence pairs")
	return s.store.UpdateProgress(ctx, item)
}

// Execute synthesizes two clips per sentence pair, source language first,
// writing them into the per-section clip directory.
func (s *Synthesizer) Execute(ctx context.Context, item *queue.Item) error {
	stageStart := time.Now()
	if item == nil {
		return services.Wrap(services.ErrValidation, "synthesize", "execute", "Queue item is nil", nil)
	}
	if item.StagingDir == "" {
		return services.Wrap(services.ErrValidation, "synthesize", "execute",
			"Item has no staging directory; rerun parse", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	dirs := staging.Dirs{Root: item.StagingDir}
	sections, err := stage.LoadSections(dirs)
	if err != nil {
		return err
	}

	pairsBySection := make([][]translate.Pair, len(sections))
	totalSegments := 0
	for i, sec := range sections {
		pairs, err := stage.LoadSectionPairs(dirs, sec)
		if err != nil {
			return err
		}
		pairsBySection[i] = pairs
		totalSegments += len(pairs) * 2
	}

	doneSegments := 0
	engineUse := make(map[string]int)
	for i, sec := range sections {
		clipDir := dirs.ClipDir(sec.Index)
		if err := os.MkdirAll(clipDir, 0o755); err != nil {
			return services.Wrap(services.ErrTransient, "synthesize", "create clip dir",
				fmt.Sprintf("Could not create clip directory for section %d", sec.Index), err)
		}

		for pairIdx, pair := range pairsBySection[i] {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.store.UpdateHeartbeat(ctx, item.ID); err != nil {
				logger.Warn("heartbeat update failed", logging.Error(err))
			}

			segments := []struct {
				slot int
				lang string
				text string
			}{
				{1, s.source, pair.Finnish},
				{2, s.target, pair.English},
			}
			for _, seg := range segments {
				engine, err := s.renderSegment(ctx, clipDir, pairIdx+1, seg.slot, seg.lang, seg.text)
				if err != nil {
					return services.Wrap(services.ErrExternalTool, "synthesize", "render segment",
						fmt.Sprintf("Section %d pair %d (%s) failed", sec.Index, pairIdx+1, seg.lang), err)
				}
				engineUse[engine]++
				doneSegments++
			}

			s.updateProgress(ctx, item,
				fmt.Sprintf("Synthesized %d/%d segments", doneSegments, totalSegments),
				float64(doneSegments)/float64(totalSegments)*100)
		}
		logger.Debug("section synthesized",
			logging.Int(logging.FieldSection, sec.Index),
			logging.Int("pairs", len(pairsBySection[i])),
		)
	}

	item.SetProgressComplete(progressStageSynthesizing,
		fmt.Sprintf("Synthesized %d segments across %d sections", doneSegments, len(sections)))
	if err := s.store.UpdateProgress(ctx, item); err != nil {
		return services.Wrap(services.ErrTransient, "synthesize", "persist progress",
			"Failed to persist synthesis progress", err)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldLesson, item.LessonTitle),
		logging.Int("segments", doneSegments),
		logging.Duration("stage_duration", time.Since(stageStart)),
	}
	for engine, count := range engineUse {
		attrs = append(attrs, logging.Int("engine_"+engine, count))
	}
	logger.Info("lesson synthesized", logging.Args(attrs...)...)
	return nil
}

// renderSegment synthesizes one text segment and stores it as a WAV clip.
// It returns the name of the engine that produced the audio.
func (s *Synthesizer) renderSegment(ctx context.Context, clipDir string, pair, slot int, lang, text string) (string, error) {
	clip, engine, err := s.manager.Synthesize(ctx, tts.Request{Text: text, Language: lang})
	if err != nil {
		return "", err
	}
	data, err := audio.EncodeWAVBytes(clip)
	if err != nil {
		return "", fmt.Errorf("encode clip: %w", err)
	}
	if err := fileutil.WriteFileAtomic(clipPath(clipDir, pair, slot, lang), data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	return engine, nil
}

// clipPath names a pair segment so the source language clip sorts and plays
// before its translation: <pair>-1-<source>.wav, <pair>-2-<target>.wav.
func clipPath(dir string, pair, slot int, lang string) string {
	return filepath.Join(dir, fmt.Sprintf("%03d-%d-%s.wav", pair, slot, lang))
}

func (s *Synthesizer) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	item.SetProgress(progressStageSynthesizing, message, percent)
	if err := s.store.UpdateProgress(ctx, item); err != nil {
		logging.WithContext(ctx, s.logger).Warn("progress update failed", logging.Error(err))
	}
}

// HealthCheck reports readiness for the synthesize stage.
func (s *Synthesizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "synthesize"
	if s == nil || s.cfg == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if s.store == nil {
		return stage.Unhealthy(name, "queue store unavailable")
	}
	if s.manager == nil {
		return stage.Unhealthy(name, "no synthesis engines configured")
	}
	for _, status := range s.manager.Statuses(ctx) {
		if status.Available {
			return stage.Healthy(name)
		}
	}
	return stage.Unhealthy(name, "no synthesis engine is available")
}
