package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"puhuri/internal/lesson"
	"puhuri/internal/logging"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/stage"
	"puhuri/internal/staging"
	"puhuri/internal/testsupport"
)

const storefrontLesson = `# Kappale 5: Kaupassa

## Dialogi

Myyjä: Hyvää päivää!
Asiakas: Saisinko maitoa?

## Sanasto

maito
kauppa
`

func TestParserExecuteStagesSections(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteLesson(t, t.TempDir(), "kappale-05.md", storefrontLesson)
	item := testsupport.NewLesson(t, store, path, "kappale 05", "fp-parse-1")

	parser := NewParser(cfg, store, logging.NewNop())
	if err := parser.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := parser.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.LessonTitle != "Kappale 5: Kaupassa" {
		t.Errorf("lesson title = %q, want the H1 heading", item.LessonTitle)
	}
	if item.SectionCount != 2 {
		t.Errorf("section count = %d, want 2", item.SectionCount)
	}
	wantDir := staging.ForItem(cfg.Paths.StagingDir, item.ID, "Kappale 5: Kaupassa").Root
	if item.StagingDir != wantDir {
		t.Errorf("staging dir = %q, want %q", item.StagingDir, wantDir)
	}
	if item.ProgressPercent != 100 || item.ProgressMessage != "Parsed 2 sections" {
		t.Errorf("progress = %.0f %q, want completion", item.ProgressPercent, item.ProgressMessage)
	}

	sections, err := stage.LoadSections(staging.Dirs{Root: item.StagingDir})
	if err != nil {
		t.Fatalf("LoadSections: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("staged sections = %d, want 2", len(sections))
	}
	if sections[0].Type != lesson.SectionDialogue || sections[0].Title != "Dialogi" {
		t.Errorf("section 1 = %s %q, want dialogue Dialogi", sections[0].Type, sections[0].Title)
	}
	if sections[1].Type != lesson.SectionVocabulary || len(sections[1].Lines) != 2 {
		t.Errorf("section 2 = %s with %d lines, want vocabulary with 2 lines", sections[1].Type, len(sections[1].Lines))
	}
}

func TestParserExecuteMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewLesson(t, store, filepath.Join(t.TempDir(), "gone.md"), "Gone", "fp-parse-2")

	parser := NewParser(cfg, store, logging.NewNop())
	err := parser.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Execute = %v, want not found marker", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Errorf("failure status = %s, want review", services.FailureStatus(err))
	}
	if !strings.Contains(err.Error(), "no longer exists") {
		t.Errorf("error = %q, want a message naming the missing file", err)
	}
}

func TestParserExecuteEmptyLesson(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := testsupport.WriteLesson(t, t.TempDir(), "tyhja.md", "# Tyhjä\n")
	item := testsupport.NewLesson(t, store, path, "tyhja", "fp-parse-3")

	err := NewParser(cfg, store, logging.NewNop()).Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute = %v, want validation marker", err)
	}
	if !strings.Contains(err.Error(), "no usable content") {
		t.Errorf("error = %q, want empty-lesson message", err)
	}
}

func TestParserExecuteClearsStaleSections(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	long := storefrontLesson + "\n## Harjoitus 1\n\nKirjoita oma lause.\n"
	dir := t.TempDir()
	path := testsupport.WriteLesson(t, dir, "kappale-05.md", long)
	item := testsupport.NewLesson(t, store, path, "kappale 05", "fp-parse-4")

	parser := NewParser(cfg, store, logging.NewNop())
	if err := parser.Execute(context.Background(), item); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if item.SectionCount != 3 {
		t.Fatalf("section count = %d, want 3", item.SectionCount)
	}

	// The lesson shrinks between runs; the rerun must not leave the dropped
	// section staged.
	testsupport.WriteLesson(t, dir, "kappale-05.md", storefrontLesson)
	if err := parser.Execute(context.Background(), item); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if item.SectionCount != 2 {
		t.Fatalf("section count after rerun = %d, want 2", item.SectionCount)
	}

	entries, err := os.ReadDir(staging.Dirs{Root: item.StagingDir}.Sections())
	if err != nil {
		t.Fatalf("read sections dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("staged section files = %d, want 2 after rerun", len(entries))
	}
}
