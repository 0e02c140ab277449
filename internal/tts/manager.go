package tts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"puhuri/internal/audio"
	"puhuri/internal/config"
	"puhuri/internal/logging"
)

// Manager walks the configured engine chain until one produces a clip.
// Engines that fail max_failures times in a row are sidelined for the rest
// of the run. The pipeline is sequential, so Manager is not safe for
// concurrent use.
type Manager struct {
	engines     map[string]Engine
	order       []string
	preferred   string
	maxFailures int
	force       bool
	cache       *Cache
	sampleRate  int
	channels    int
	logger      *slog.Logger

	failures     map[string]int
	sidelined    map[string]bool
	availability map[string]error
}

// ManagerOption adjusts manager construction.
type ManagerOption func(*Manager)

// WithEngines replaces the constructed engine set, primarily for tests.
func WithEngines(engines map[string]Engine) ManagerOption {
	return func(m *Manager) {
		m.engines = engines
	}
}

// WithPreferredEngine puts one engine at the front of the candidate order
// for the whole run.
func WithPreferredEngine(name string) ManagerOption {
	return func(m *Manager) {
		m.preferred = strings.ToLower(strings.TrimSpace(name))
	}
}

// WithForce bypasses clip cache reads so every sentence is resynthesized.
// Fresh clips are still written back to the cache.
func WithForce(force bool) ManagerOption {
	return func(m *Manager) {
		m.force = force
	}
}

// WithCache replaces the disk cache. A nil cache disables caching.
func WithCache(cache *Cache) ManagerOption {
	return func(m *Manager) {
		m.cache = cache
	}
}

// NewManager builds a manager from configuration. Engine availability is
// checked when an engine is first attempted, not here.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		order:        cfg.EngineOrder(),
		maxFailures:  cfg.TTS.MaxFailures,
		sampleRate:   cfg.Audio.SampleRate,
		channels:     cfg.Audio.Channels,
		logger:       logger.With(logging.String(logging.FieldComponent, "tts")),
		failures:     make(map[string]int),
		sidelined:    make(map[string]bool),
		availability: make(map[string]error),
	}
	if cfg.TTS.CacheEnabled {
		m.cache = NewCache(cfg.TTS.CacheDir)
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engines == nil {
		m.engines = BuildEngines(cfg)
	}
	return m
}

// candidates returns the engine attempt order: the preferred engine, the
// configured default and fallbacks, then any remaining registered engines.
func (m *Manager) candidates() []string {
	seen := make(map[string]struct{}, len(m.engines)+1)
	out := make([]string, 0, len(m.engines)+1)
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	add(m.preferred)
	for _, name := range m.order {
		add(name)
	}
	rest := make([]string, 0, len(m.engines))
	for name := range m.engines {
		if _, dup := seen[name]; !dup {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		add(name)
	}
	return out
}

// Synthesize renders one utterance, walking the candidate engines until one
// succeeds. It returns the clip and the name of the engine that produced it.
func (m *Manager) Synthesize(ctx context.Context, req Request) (*audio.Clip, string, error) {
	if err := validateRequest(req); err != nil {
		return nil, "", err
	}
	lang := normalizeLanguage(req.Language)

	var failures []string
	for _, name := range m.candidates() {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		engine := m.engines[name]
		if engine == nil {
			failures = append(failures, name+": not configured")
			continue
		}
		if m.sidelined[name] {
			failures = append(failures, name+": sidelined after repeated failures")
			continue
		}
		if err := m.available(ctx, name, engine); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		voice := voiceFor(engine, req)
		key := Key(name, voice, lang, m.sampleRate, req.Text)
		if m.cache != nil && !m.force {
			clip, ok, err := m.cache.Load(key)
			if err != nil {
				m.logger.Warn("clip cache read failed",
					logging.String(logging.FieldEngine, name), logging.Error(err))
			} else if ok {
				m.logger.Debug("clip cache hit",
					logging.String(logging.FieldEngine, name),
					logging.String("text", snippet(req.Text)))
				return clip, name, nil
			}
		}

		clip, err := engine.Synthesize(ctx, req)
		if err != nil {
			m.recordFailure(name, err)
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		m.failures[name] = 0
		if m.cache != nil {
			if err := m.cache.Store(key, clip); err != nil {
				m.logger.Warn("clip cache write failed",
					logging.String(logging.FieldEngine, name), logging.Error(err))
			}
		}
		return clip, name, nil
	}
	return nil, "", fmt.Errorf("tts: all engines failed for %q: %s", snippet(req.Text), strings.Join(failures, "; "))
}

// available memoizes each engine's availability for the run.
func (m *Manager) available(ctx context.Context, name string, engine Engine) error {
	if err, checked := m.availability[name]; checked {
		return err
	}
	err := engine.Available(ctx)
	m.availability[name] = err
	if err != nil {
		m.logger.Warn("engine unavailable",
			logging.String(logging.FieldEngine, name), logging.Error(err))
	}
	return err
}

func (m *Manager) recordFailure(name string, err error) {
	m.failures[name]++
	m.logger.Warn("engine synthesis failed",
		logging.String(logging.FieldEngine, name),
		logging.Int("consecutive_failures", m.failures[name]),
		logging.Error(err))
	if m.maxFailures > 0 && m.failures[name] >= m.maxFailures && !m.sidelined[name] {
		m.sidelined[name] = true
		m.logger.Warn("engine sidelined for this run",
			logging.String(logging.FieldEngine, name),
			logging.Int("failures", m.failures[name]))
	}
}

// EngineStatus describes one candidate engine for status displays.
type EngineStatus struct {
	Name      string
	Role      string
	Available bool
	Detail    string
	Voices    []Voice
}

// Statuses reports every candidate engine in attempt order.
func (m *Manager) Statuses(ctx context.Context) []EngineStatus {
	names := m.candidates()
	out := make([]EngineStatus, 0, len(names))
	for _, name := range names {
		status := EngineStatus{Name: name, Role: m.role(name)}
		engine := m.engines[name]
		if engine == nil {
			status.Detail = "not configured"
			out = append(out, status)
			continue
		}
		if err := engine.Available(ctx); err != nil {
			status.Detail = err.Error()
		} else {
			status.Available = true
			status.Detail = "ready"
		}
		status.Voices = engine.Voices()
		out = append(out, status)
	}
	return out
}

func (m *Manager) role(name string) string {
	if name == m.preferred && m.preferred != "" {
		return "preferred"
	}
	for i, candidate := range m.order {
		if candidate == name {
			if i == 0 {
				return "default"
			}
			return "fallback"
		}
	}
	return "extra"
}
