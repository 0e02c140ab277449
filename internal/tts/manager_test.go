package tts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"puhuri/internal/audio"
	"puhuri/internal/config"
)

type stubEngine struct {
	name       string
	clip       *audio.Clip
	err        error
	availErr   error
	calls      int
	availCalls int
	voices     []Voice
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Synthesize(ctx context.Context, req Request) (*audio.Clip, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.clip, nil
}

func (s *stubEngine) Available(ctx context.Context) error {
	s.availCalls++
	return s.availErr
}

func (s *stubEngine) Voices() []Voice { return s.voices }

func newManagerConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.TTS.CacheEnabled = false
	return cfg
}

func testClip(marker byte) *audio.Clip {
	return &audio.Clip{Data: []byte{marker, 0x00, marker, 0x00}, SampleRate: 22050, Channels: 1}
}

func TestManagerUsesDefaultEngineFirst(t *testing.T) {
	cfg := newManagerConfig(t)
	piper := &stubEngine{name: "piper", clip: testClip(1)}
	espeak := &stubEngine{name: "espeak", clip: testClip(2)}
	mgr := NewManager(&cfg, nil, WithEngines(map[string]Engine{"piper": piper, "espeak": espeak}))

	clip, engine, err := mgr.Synthesize(context.Background(), Request{Text: "moi", Language: "fi"})
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if engine != "piper" {
		t.Fatalf("engine = %q, want piper", engine)
	}
	if clip.Data[0] != 1 {
		t.Fatal("clip did not come from the default engine")
	}
	if espeak.calls != 0 {
		t.Fatalf("fallback engine was called %d times", espeak.calls)
	}
}

func TestManagerFallsBackWhenPrimaryFails(t *testing.T) {
	cfg := newManagerConfig(t)
	piper := &stubEngine{name: "piper", err: errors.New("model load failed")}
	espeak := &stubEngine{name: "espeak", clip: testClip(2)}
	mgr := NewManager(&cfg, nil, WithEngines(map[string]Engine{"piper": piper, "espeak": espeak}))

	clip, engine, err := mgr.Synthesize(context.Background(), Request{Text: "moi", Language: "fi"})
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if engine != "espeak" {
		t.Fatalf("engine = %q, want espeak", engine)
	}
	if clip.Data[0] != 2 {
		t.Fatal("clip did not come from the fallback engine")
	}
}

func TestManagerSkipsUnavailableEngineAndMemoizes(t *testing.T) {
	cfg := newManagerConfig(t)
	piper := &stubEngine{name: "piper", availErr: errors.New("binary not found")}
	espeak := &stubEngine{name: "espeak", clip: testClip(2)}
	mgr := NewManager(&cfg, nil, WithEngines(map[string]Engine{"piper": piper, "espeak": espeak}))

	for i := 0; i < 3; i++ {
		_, engine, err := mgr.Synthesize(context.Background(), Request{Text: "moi", Language: "fi"})
		if err != nil {
			t.Fatalf("Synthesize returned error: %v", err)
		}
		if engine != "espeak" {
			t.Fatalf("engine = %q, want espeak", engine)
		}
	}
	if piper.availCalls != 1 {
		t.Fatalf("availability checked %d times, want 1", piper.availCalls)
	}
	if piper.calls != 0 {
		t.Fatalf("unavailable engine was invoked %d times", piper.calls)
	}
}

func TestManagerSidelinesEngineAfterMaxFailures(t *testing.T) {
	cfg := newManagerConfig(t)
	cfg.TTS.MaxFailures = 2
	piper := &stubEngine{name: "piper", err: errors.New("boom")}
	espeak := &stubEngine{name: "espeak", clip: testClip(2)}
	mgr := NewManager(&cfg, nil, WithEngines(map[string]Engine{"piper": piper, "espeak": espeak}))

	for i := 0; i < 3; i++ {
		if _, _, err := mgr.Synthesize(context.Background(), Request{Text: "moi", Language: "fi"}); err != nil {
			t.Fatalf("Synthesize %d returned error: %v", i, err)
		}
	}
	if piper.calls != 2 {
		t.Fatalf("sidelined engine was invoked %d times, want 2", piper.calls)
	}
}

func TestManagerExhaustionListsEveryFailure(t *testing.T) {
	cfg := newManagerConfig(t)
	piper := &stubEngine{name: "piper", err: errors.New("model missing")}
	espeak := &stubEngine{name: "espeak", err: errors.New("binary crashed")}
	mgr := NewManager(&cfg, nil, WithEngines(map[string]Engine{"piper": piper, "espeak": espeak}))

	_, _, err := mgr.Synthesize(context.Background(), Request{Text: "moi kaikki", Language: "fi"})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	for _, want := range []string{"piper: model missing", "espeak: binary crashed", "gtts: not configured"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("exhaustion error missing %q: %v", want, err)
		}
	}
}

func TestManagerPreferredEngineWins(t *testing.T) {
	cfg := newManagerConfig(t)
	piper := &stubEngine{name: "piper", clip: testClip(1)}
	gtts := &stubEngine{name: "gtts", clip: testClip(3)}
	mgr := NewManager(&cfg, nil,
		WithEngines(map[string]Engine{"piper": piper, "gtts": gtts}),
		WithPreferredEngine("gtts"))

	_, engine, err := mgr.Synthesize(context.Background(), Request{Text: "moi", Language: "fi"})
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if engine != "gtts" {
		t.Fatalf("engine = %q, want gtts", engine)
	}
	if piper.calls != 0 {
		t.Fatal("default engine should not run when preferred succeeds")
	}
}

func TestManagerServesRepeatsFromCache(t *testing.T) {
	cfg := newManagerConfig(t)
	piper := &stubEngine{name: "piper", clip: testClip(1)}
	cache := NewCache(t.TempDir())
	mgr := NewManager(&cfg, nil,
		WithEngines(map[string]Engine{"piper": piper}),
		WithCache(cache))

	req := Request{Text: "moi", Language: "fi"}
	if _, _, err := mgr.Synthesize(context.Background(), req); err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}
	clip, engine, err := mgr.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("second Synthesize: %v", err)
	}
	if piper.calls != 1 {
		t.Fatalf("engine called %d times, want 1 (second call should hit cache)", piper.calls)
	}
	if engine != "piper" {
		t.Fatalf("cached clip attributed to %q", engine)
	}
	if clip.Duration() != testClip(1).Duration() {
		t.Fatalf("cached clip duration = %v", clip.Duration())
	}
}

func TestManagerForceBypassesCacheReads(t *testing.T) {
	cfg := newManagerConfig(t)
	piper := &stubEngine{name: "piper", clip: testClip(1)}
	cache := NewCache(t.TempDir())
	mgr := NewManager(&cfg, nil,
		WithEngines(map[string]Engine{"piper": piper}),
		WithCache(cache),
		WithForce(true))

	req := Request{Text: "moi", Language: "fi"}
	for i := 0; i < 2; i++ {
		if _, _, err := mgr.Synthesize(context.Background(), req); err != nil {
			t.Fatalf("Synthesize %d: %v", i, err)
		}
	}
	if piper.calls != 2 {
		t.Fatalf("engine called %d times, want 2 under --force", piper.calls)
	}
}

func TestManagerStatuses(t *testing.T) {
	cfg := newManagerConfig(t)
	piper := &stubEngine{name: "piper"}
	espeak := &stubEngine{name: "espeak", availErr: errors.New("binary not found")}
	extra := &stubEngine{name: "elevenlabs"}
	mgr := NewManager(&cfg, nil, WithEngines(map[string]Engine{
		"piper": piper, "espeak": espeak, "elevenlabs": extra,
	}))

	statuses := mgr.Statuses(context.Background())
	byName := make(map[string]EngineStatus, len(statuses))
	for _, status := range statuses {
		byName[status.Name] = status
	}

	if got := byName["piper"]; !got.Available || got.Role != "default" {
		t.Fatalf("piper status = %+v", got)
	}
	if got := byName["espeak"]; got.Available || got.Role != "fallback" || got.Detail != "binary not found" {
		t.Fatalf("espeak status = %+v", got)
	}
	if got := byName["gtts"]; got.Detail != "not configured" {
		t.Fatalf("gtts status = %+v", got)
	}
	if got := byName["elevenlabs"]; got.Role != "extra" {
		t.Fatalf("elevenlabs status = %+v", got)
	}
}

func TestKeyVariesWithInputs(t *testing.T) {
	base := Key("piper", "fi_FI-harri-medium", "fi", 22050, "moi")
	cases := map[string]string{
		"engine": Key("espeak", "fi_FI-harri-medium", "fi", 22050, "moi"),
		"voice":  Key("piper", "other", "fi", 22050, "moi"),
		"rate":   Key("piper", "fi_FI-harri-medium", "fi", 44100, "moi"),
		"text":   Key("piper", "fi_FI-harri-medium", "fi", 22050, "hei"),
	}
	for field, key := range cases {
		if key == base {
			t.Fatalf("key did not change with %s", field)
		}
	}
	if again := Key("piper", "fi_FI-harri-medium", "fi", 22050, "moi"); again != base {
		t.Fatal("key is not deterministic")
	}
}
