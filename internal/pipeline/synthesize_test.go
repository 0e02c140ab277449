package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"puhuri/internal/audio"
	"puhuri/internal/fileutil"
	"puhuri/internal/lesson"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/services/translate"
	"puhuri/internal/staging"
	"puhuri/internal/testsupport"
	"puhuri/internal/tts"
)

// fakeEngine produces silence clips and counts synthesis calls.
type fakeEngine struct {
	name     string
	rate     int
	channels int
	clipLen  time.Duration
	calls    int
	fail     error
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return audio.Silence(f.clipLen, f.rate, f.channels), nil
}

func (f *fakeEngine) Available(ctx context.Context) error { return nil }

func (f *fakeEngine) Voices() []tts.Voice { return nil }

// writeSectionRecord stores a translation sidecar the way the translate
// stage would, so synthesize and assemble tests can start mid-pipeline.
func writeSectionRecord(t *testing.T, dirs staging.Dirs, lessonTitle string, sec lesson.Section, pairs []translate.Pair) {
	t.Helper()
	rec := &translate.Record{
		Lesson:       lessonTitle,
		SectionIndex: sec.Index,
		SectionTitle: sec.Title,
		SectionType:  string(sec.Type),
		SourceHash:   fileutil.HashBytes([]byte(sec.Body())),
		Model:        "test",
		CreatedAt:    time.Now().UTC(),
		Pairs:        pairs,
	}
	if err := translate.StoreRecord(dirs.TranslationFile(sec.Index, sec.Slug()), rec); err != nil {
		t.Fatalf("store record %d: %v", sec.Index, err)
	}
}

func TestSynthesizerExecuteWritesClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TTS.CacheEnabled = false
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewLesson(t, store, "kappale-01.md", "Kappale 1", "fp-syn-1")

	secs := sampleSections()[:1]
	dirs := stageItemSections(t, cfg, store, item, secs)
	writeSectionRecord(t, dirs, item.LessonTitle, secs[0], samplePairs())

	fake := &fakeEngine{name: "piper", rate: cfg.Audio.SampleRate, channels: cfg.Audio.Channels, clipLen: 300 * time.Millisecond}
	manager := tts.NewManager(cfg, nil, tts.WithEngines(map[string]tts.Engine{"piper": fake}))
	syn := NewSynthesizer(cfg, store, nil, WithTTSManager(manager))

	if err := syn.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := syn.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fake.calls != 4 {
		t.Fatalf("engine calls = %d, want 2 pairs x 2 languages", fake.calls)
	}

	clipDir := dirs.ClipDir(1)
	for pair := 1; pair <= 2; pair++ {
		for slot, lang := range map[int]string{1: syn.source, 2: syn.target} {
			path := clipPath(clipDir, pair, slot, lang)
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("clip %s missing: %v", path, err)
			}
			clip, err := audio.DecodeWAVBytes(data)
			if err != nil {
				t.Fatalf("decode clip %s: %v", path, err)
			}
			if clip.SampleRate != cfg.Audio.SampleRate || clip.Channels != cfg.Audio.Channels {
				t.Errorf("clip %s format = %dHz/%dch", path, clip.SampleRate, clip.Channels)
			}
			if clip.Duration() != 300*time.Millisecond {
				t.Errorf("clip %s duration = %s, want 300ms", path, clip.Duration())
			}
		}
	}
	if item.ProgressMessage != "Synthesized 4 segments across 1 sections" {
		t.Errorf("progress message = %q", item.ProgressMessage)
	}
}

func TestSynthesizerFallsBackToNextEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TTS.CacheEnabled = false
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewLesson(t, store, "kappale-02.md", "Kappale 2", "fp-syn-2")

	secs := sampleSections()[:1]
	dirs := stageItemSections(t, cfg, store, item, secs)
	writeSectionRecord(t, dirs, item.LessonTitle, secs[0], samplePairs())

	primary := &fakeEngine{name: "piper", fail: errors.New("voice model missing")}
	fallback := &fakeEngine{name: "espeak", rate: cfg.Audio.SampleRate, channels: cfg.Audio.Channels, clipLen: 250 * time.Millisecond}
	manager := tts.NewManager(cfg, nil, tts.WithEngines(map[string]tts.Engine{
		"piper":  primary,
		"espeak": fallback,
	}))

	syn := NewSynthesizer(cfg, store, nil, WithTTSManager(manager))
	if err := syn.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if fallback.calls != 4 {
		t.Fatalf("fallback calls = %d, want every segment", fallback.calls)
	}
	// The third consecutive failure sidelines the primary for the rest of
	// the run, so the fourth segment skips it entirely.
	if primary.calls != cfg.TTS.MaxFailures {
		t.Errorf("primary calls = %d, want %d before sidelining", primary.calls, cfg.TTS.MaxFailures)
	}
	if _, err := os.Stat(clipPath(dirs.ClipDir(1), 2, 2, syn.target)); err != nil {
		t.Errorf("last clip missing after fallback: %v", err)
	}
}

func TestSynthesizerClipCacheSkipsEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewLesson(t, store, "kappale-03.md", "Kappale 3", "fp-syn-3")

	secs := sampleSections()[:1]
	dirs := stageItemSections(t, cfg, store, item, secs)
	writeSectionRecord(t, dirs, item.LessonTitle, secs[0], samplePairs())

	first := &fakeEngine{name: "piper", rate: cfg.Audio.SampleRate, channels: cfg.Audio.Channels, clipLen: 200 * time.Millisecond}
	syn := NewSynthesizer(cfg, store, nil,
		WithTTSManager(tts.NewManager(cfg, nil, tts.WithEngines(map[string]tts.Engine{"piper": first}))))
	if err := syn.Execute(context.Background(), item); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.calls != 4 {
		t.Fatalf("first run calls = %d, want 4", first.calls)
	}
	firstClip, err := os.ReadFile(clipPath(dirs.ClipDir(1), 1, 1, syn.source))
	if err != nil {
		t.Fatalf("read first-run clip: %v", err)
	}

	// A rerun with a fresh manager must be served from the clip cache and
	// produce byte-identical audio.
	second := &fakeEngine{name: "piper", rate: cfg.Audio.SampleRate, channels: cfg.Audio.Channels, clipLen: 200 * time.Millisecond}
	rerun := NewSynthesizer(cfg, store, nil,
		WithTTSManager(tts.NewManager(cfg, nil, tts.WithEngines(map[string]tts.Engine{"piper": second}))))
	if err := rerun.Execute(context.Background(), item); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("second run calls = %d, want all segments cached", second.calls)
	}
	secondClip, err := os.ReadFile(clipPath(dirs.ClipDir(1), 1, 1, syn.source))
	if err != nil {
		t.Fatalf("read second-run clip: %v", err)
	}
	if len(firstClip) != len(secondClip) {
		t.Errorf("rerun clip size = %d, want %d", len(secondClip), len(firstClip))
	}
}

func TestSynthesizerExecuteMissingTranslation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TTS.CacheEnabled = false
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewLesson(t, store, "kappale-04.md", "Kappale 4", "fp-syn-4")
	stageItemSections(t, cfg, store, item, sampleSections()[:1])

	fake := &fakeEngine{name: "piper", rate: cfg.Audio.SampleRate, channels: cfg.Audio.Channels, clipLen: 100 * time.Millisecond}
	syn := NewSynthesizer(cfg, store, nil,
		WithTTSManager(tts.NewManager(cfg, nil, tts.WithEngines(map[string]tts.Engine{"piper": fake}))))

	err := syn.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute = %v, want validation marker", err)
	}
	if !strings.Contains(err.Error(), "rerun translate") {
		t.Errorf("error = %q", err)
	}
	if fake.calls != 0 {
		t.Errorf("engine called %d times with no translation staged", fake.calls)
	}
}

func TestSynthesizerExecuteAllEnginesFail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TTS.CacheEnabled = false
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewLesson(t, store, "kappale-05.md", "Kappale 5", "fp-syn-5")

	secs := sampleSections()[:1]
	dirs := stageItemSections(t, cfg, store, item, secs)
	writeSectionRecord(t, dirs, item.LessonTitle, secs[0], samplePairs())

	broken := &fakeEngine{name: "piper", fail: errors.New("binary not found")}
	syn := NewSynthesizer(cfg, store, nil,
		WithTTSManager(tts.NewManager(cfg, nil, tts.WithEngines(map[string]tts.Engine{"piper": broken}))))

	err := syn.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Execute = %v, want external tool marker", err)
	}
	if services.FailureStatus(err) != queue.StatusFailed {
		t.Errorf("failure status = %s, want failed", services.FailureStatus(err))
	}
}
