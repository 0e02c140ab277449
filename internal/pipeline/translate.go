package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"puhuri/internal/config"
	"puhuri/internal/fileutil"
	"puhuri/internal/lesson"
	"puhuri/internal/logging"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/services/translate"
	"puhuri/internal/stage"
	"puhuri/internal/staging"
)

const progressStageTranslating = "Translating"

// sectionTranslator is the LLM surface the translate stage needs; satisfied
// by translate.Translator and stubbed in tests.
type sectionTranslator interface {
	TranslateSection(ctx context.Context, sec lesson.Section) ([]translate.Pair, error)
	HealthCheck(ctx context.Context) error
}

// Translator produces aligned sentence pairs for every staged section,
// preferring a user-supplied translation file, then fresh sidecar records,
// then the LLM.
type Translator struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	svc       sectionTranslator
	transFile *translate.File
	filePath  string
	force     bool
}

// TranslatorOption configures optional translate stage behavior.
type TranslatorOption func(*Translator)

// WithTranslationFile supplies pre-translated sections that bypass the LLM.
func WithTranslationFile(file *translate.File) TranslatorOption {
	return func(t *Translator) {
		t.transFile = file
	}
}

// WithTranslationService overrides the LLM client, for tests.
func WithTranslationService(svc sectionTranslator) TranslatorOption {
	return func(t *Translator) {
		t.svc = svc
	}
}

// WithForceTranslate ignores fresh sidecar records and retranslates.
func WithForceTranslate(force bool) TranslatorOption {
	return func(t *Translator) {
		t.force = force
	}
}

// NewTranslator constructs the translate stage.
func NewTranslator(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...TranslatorOption) *Translator {
	t := &Translator{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "translate"),
		filePath: cfg.Translate.File,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.svc == nil && cfg.Translate.Enabled {
		t.svc = translate.NewTranslator(cfg, logger)
	}
	return t
}

// SetLogger routes stage logs through the run-scoped logger.
func (t *Translator) SetLogger(logger *slog.Logger) {
	if t == nil {
		return
	}
	t.logger = logging.NewComponentLogger(logger, "translate")
}

// Prepare primes queue progress fields before executing the stage.
func (t *Translator) Prepare(ctx context.Context, item *queue.Item) error {
	if t == nil || t.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "translate", "prepare", "Translate stage is not configured", nil)
	}
	if t.store == nil {
		return services.Wrap(services.ErrConfiguration, "translate", "prepare", "Queue store unavailable", nil)
	}
	item.InitProgress(progressStageTranslating, "Loading staged sections")
	return t.store.UpdateProgress(ctx, item)
}

// Execute translates every staged section into sentence pairs and persists
// them as sidecar records keyed by the section body hash.
func (t *Translator) Execute(ctx context.Context, item *queue.Item) error {
	stageStart := time.Now()
	if item == nil {
		return services.Wrap(services.ErrValidation, "translate", "execute", "Queue item is nil", nil)
	}
	if item.StagingDir == "" {
		return services.Wrap(services.ErrValidation, "translate", "execute",
			"Item has no staging directory; rerun parse", nil)
	}
	logger := logging.WithContext(ctx, t.logger)

	dirs := staging.Dirs{Root: item.StagingDir}
	sections, err := stage.LoadSections(dirs)
	if err != nil {
		return err
	}
	if err := t.ensureTranslationFile(); err != nil {
		return err
	}

	var translated, cached, fromFile int
	for i, sec := range sections {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.store.UpdateHeartbeat(ctx, item.ID); err != nil {
			logger.Warn("heartbeat update failed", logging.Error(err))
		}

		sourceHash := fileutil.HashBytes([]byte(sec.Body()))
		recordPath := dirs.TranslationFile(sec.Index, sec.Slug())

		if filePairs := t.transFile.SectionPairs(sec.Index, sec.Title); len(filePairs) > 0 {
			if err := t.storeRecord(recordPath, item, sec, sourceHash, "file", filePairs); err != nil {
				return err
			}
			fromFile++
			logger.Debug("section translated from file",
				logging.Int(logging.FieldSection, sec.Index),
				logging.Int("pairs", len(filePairs)),
			)
		} else if rec := t.freshRecord(recordPath, sourceHash, logger); rec != nil {
			cached++
			logger.Debug("translation cache hit",
				logging.Int(logging.FieldSection, sec.Index),
				logging.Int("pairs", len(rec.Pairs)),
			)
		} else {
			pairs, err := t.translateSection(ctx, sec)
			if err != nil {
				return err
			}
			if err := t.storeRecord(recordPath, item, sec, sourceHash, t.cfg.Translate.Model, pairs); err != nil {
				return err
			}
			translated++
		}

		t.updateProgress(ctx, item,
			fmt.Sprintf("Translated section %d/%d", i+1, len(sections)),
			float64(i+1)/float64(len(sections))*100)
	}

	item.SetProgressComplete(progressStageTranslating,
		fmt.Sprintf("Translated %d sections (%d cached, %d from file)", len(sections), cached, fromFile))
	if err := t.store.UpdateProgress(ctx, item); err != nil {
		return services.Wrap(services.ErrTransient, "translate", "persist progress",
			"Failed to persist translation progress", err)
	}

	logger.Info("lesson translated",
		logging.String(logging.FieldLesson, item.LessonTitle),
		logging.Int("sections", len(sections)),
		logging.Int("llm_calls", translated),
		logging.Int("cache_hits", cached),
		logging.Int("file_sections", fromFile),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

func (t *Translator) translateSection(ctx context.Context, sec lesson.Section) ([]translate.Pair, error) {
	if t.svc == nil {
		return nil, services.Wrap(services.ErrConfiguration, "translate", "translate section",
			fmt.Sprintf("Translation is disabled and section %d (%s) is not covered by a translation file", sec.Index, sec.Title), nil)
	}
	pairs, err := t.svc.TranslateSection(ctx, sec)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "translate", "translate section",
			fmt.Sprintf("Section %d (%s) failed to translate", sec.Index, sec.Title), err)
	}
	if len(pairs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "translate", "translate section",
			fmt.Sprintf("Section %d (%s) produced no sentence pairs", sec.Index, sec.Title), nil)
	}
	return pairs, nil
}

// freshRecord returns the existing sidecar when it can satisfy the section.
// Read errors degrade to a retranslation, not a stage failure.
func (t *Translator) freshRecord(path, sourceHash string, logger *slog.Logger) *translate.Record {
	if t.force {
		return nil
	}
	rec, err := translate.LoadRecord(path)
	if err != nil {
		logger.Warn("translation record unreadable, retranslating", logging.Error(err))
		return nil
	}
	if rec.Fresh(sourceHash) {
		return rec
	}
	return nil
}

func (t *Translator) storeRecord(path string, item *queue.Item, sec lesson.Section, sourceHash, model string, pairs []translate.Pair) error {
	rec := &translate.Record{
		Lesson:       item.LessonTitle,
		SectionIndex: sec.Index,
		SectionTitle: sec.Title,
		SectionType:  string(sec.Type),
		SourceHash:   sourceHash,
		Model:        model,
		CreatedAt:    time.Now().UTC(),
		Pairs:        pairs,
	}
	if err := translate.StoreRecord(path, rec); err != nil {
		return services.Wrap(services.ErrTransient, "translate", "store record",
			fmt.Sprintf("Could not persist translation for section %d", sec.Index), err)
	}
	return nil
}

func (t *Translator) ensureTranslationFile() error {
	if t.transFile != nil || t.filePath == "" {
		return nil
	}
	file, err := translate.LoadFile(t.filePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "translate", "load translation file",
			fmt.Sprintf("Translation file %s is invalid", t.filePath), err)
	}
	t.transFile = file
	return nil
}

func (t *Translator) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	item.SetProgress(progressStageTranslating, message, percent)
	if err := t.store.UpdateProgress(ctx, item); err != nil {
		logging.WithContext(ctx, t.logger).Warn("progress update failed", logging.Error(err))
	}
}

// HealthCheck reports readiness for the translate stage.
func (t *Translator) HealthCheck(ctx context.Context) stage.Health {
	const name = "translate"
	if t == nil || t.cfg == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if t.store == nil {
		return stage.Unhealthy(name, "queue store unavailable")
	}
	if t.svc == nil {
		if t.transFile != nil || t.filePath != "" {
			return stage.Healthy(name)
		}
		return stage.Unhealthy(name, "translation disabled and no translation file configured")
	}
	if err := t.svc.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
