package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"puhuri/internal/config"
	"puhuri/internal/lesson"
	"puhuri/internal/logging"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/stage"
	"puhuri/internal/staging"
)

const progressStageParsing = "Parsing"

// Parser reads the lesson markdown source and stages its sections.
type Parser struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// NewParser constructs the parse stage.
func NewParser(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Parser {
	return &Parser{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "parse"),
	}
}

// SetLogger routes stage logs through the run-scoped logger.
func (p *Parser) SetLogger(logger *slog.Logger) {
	if p == nil {
		return
	}
	p.logger = logging.NewComponentLogger(logger, "parse")
}

// Prepare primes queue progress fields before executing the stage.
func (p *Parser) Prepare(ctx context.Context, item *queue.Item) error {
	if p == nil || p.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "parse", "prepare", "Parse stage is not configured", nil)
	}
	if p.store == nil {
		return services.Wrap(services.ErrConfiguration, "parse", "prepare", "Queue store unavailable", nil)
	}
	item.InitProgress(progressStageParsing, "Reading lesson source")
	return p.store.UpdateProgress(ctx, item)
}

// Execute parses the markdown source into typed sections and stages them as
// JSON for the later stages.
func (p *Parser) Execute(ctx context.Context, item *queue.Item) error {
	stageStart := time.Now()
	if item == nil {
		return services.Wrap(services.ErrValidation, "parse", "execute", "Queue item is nil", nil)
	}
	logger := logging.WithContext(ctx, p.logger)

	sourcePath := item.SourcePath
	if sourcePath == "" {
		return services.Wrap(services.ErrValidation, "parse", "execute", "Queue item has no source path", nil)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "parse", "stat source",
				fmt.Sprintf("Lesson file %s no longer exists", sourcePath), err)
		}
		return services.Wrap(services.ErrTransient, "parse", "stat source",
			fmt.Sprintf("Lesson file %s is unreadable", sourcePath), err)
	}

	parsed, err := lesson.ParseFile(sourcePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "parse", "parse markdown",
			fmt.Sprintf("Lesson file %s could not be parsed", sourcePath), err)
	}
	if len(parsed.Sections) == 0 {
		return services.Wrap(services.ErrValidation, "parse", "split sections",
			fmt.Sprintf("Lesson %s has no usable content sections", parsed.Title), nil)
	}
	item.LessonTitle = parsed.Title

	dirs := staging.ForItem(p.cfg.Paths.StagingDir, item.ID, parsed.Title)
	// A reprocessed lesson may have shrunk; stale section files would leak
	// into later stages, so the sections dir is rebuilt from scratch.
	if err := os.RemoveAll(dirs.Sections()); err != nil {
		return services.Wrap(services.ErrTransient, "parse", "reset sections dir",
			"Could not clear previously staged sections", err)
	}
	if err := dirs.Ensure(); err != nil {
		return services.Wrap(services.ErrConfiguration, "parse", "create staging dirs",
			"Staging directory is not writable", err)
	}

	for _, sec := range parsed.Sections {
		if err := stage.WriteSection(dirs, sec); err != nil {
			return services.Wrap(services.ErrTransient, "parse", "stage section",
				fmt.Sprintf("Could not stage section %d (%s)", sec.Index, sec.Title), err)
		}
		logger.Debug("section staged",
			logging.Int(logging.FieldSection, sec.Index),
			logging.String("section_type", string(sec.Type)),
			logging.String("section_title", sec.Title),
			logging.Int("lines", len(sec.Lines)),
		)
	}

	item.StagingDir = dirs.Root
	item.SectionCount = len(parsed.Sections)
	item.SetProgressComplete(progressStageParsing, fmt.Sprintf("Parsed %d sections", len(parsed.Sections)))
	if err := p.store.UpdateProgress(ctx, item); err != nil {
		return services.Wrap(services.ErrTransient, "parse", "persist progress",
			"Failed to persist parse progress", err)
	}

	logger.Info("lesson parsed",
		logging.String(logging.FieldLesson, parsed.Title),
		logging.Int("sections", len(parsed.Sections)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// HealthCheck reports readiness for the parse stage.
func (p *Parser) HealthCheck(ctx context.Context) stage.Health {
	const name = "parse"
	if p == nil || p.cfg == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if p.store == nil {
		return stage.Unhealthy(name, "queue store unavailable")
	}
	return stage.Healthy(name)
}
