// Package tts synthesizes sentence audio through interchangeable engines.
// Each engine wraps one external synthesizer (a local binary or a cloud
// API) and returns clips normalized to the configured output format. The
// Manager walks the configured fallback chain until one engine produces a
// clip, sidelining engines that keep failing.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"puhuri/internal/audio"
	"puhuri/internal/config"
	"puhuri/internal/language"
)

// Request describes one utterance to synthesize.
type Request struct {
	Text     string
	Language string
	// Voice overrides the configured voice for the request's language.
	Voice string
	// Slow asks for a slower reading where the engine supports it.
	Slow bool
}

// Voice identifies one selectable engine voice.
type Voice struct {
	ID       string
	Language string
	Name     string
}

// Engine is a single synthesis backend. Synthesize returns a clip already
// at the configured sample rate and channel count.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*audio.Clip, error)
	Available(ctx context.Context) error
	Voices() []Voice
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return errors.New("tts: request text is empty")
	}
	if strings.TrimSpace(req.Language) == "" {
		return errors.New("tts: request language is empty")
	}
	return nil
}

// configuredVoices turns a language→voice map into a sorted voice list.
func configuredVoices(voices map[string]string) []Voice {
	out := make([]Voice, 0, len(voices))
	for lang, id := range voices {
		out = append(out, Voice{ID: id, Language: lang, Name: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}

// voiceFor resolves the voice for a request: an explicit override wins,
// otherwise the engine's configured voice for the language.
func voiceFor(engine Engine, req Request) string {
	if v := strings.TrimSpace(req.Voice); v != "" {
		return v
	}
	lang := normalizeLanguage(req.Language)
	for _, voice := range engine.Voices() {
		if normalizeLanguage(voice.Language) == lang {
			return voice.ID
		}
	}
	return ""
}

func normalizeLanguage(code string) string {
	normalized, err := language.Normalize(code)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(code))
	}
	return normalized
}

// snippet shortens text for error messages and logs.
func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= 40 {
		return text
	}
	return text[:40] + "..."
}

// BuildEngines constructs every engine the configuration can drive. Local
// binary engines are always built; cloud engines require an API key.
func BuildEngines(cfg *config.Config) map[string]Engine {
	engines := map[string]Engine{
		"piper":  NewPiperEngine(cfg),
		"espeak": NewEspeakEngine(cfg),
		"gtts":   NewGTTSEngine(cfg),
	}
	if strings.TrimSpace(cfg.TTS.OpenAI.APIKey) != "" {
		engines["openai"] = NewOpenAIEngine(cfg)
	}
	if strings.TrimSpace(cfg.TTS.ElevenLabs.APIKey) != "" {
		engines["elevenlabs"] = NewElevenLabsEngine(cfg)
	}
	return engines
}

// normalizeClip brings an engine's native output to the configured format.
// Matching clips pass through without touching ffmpeg.
func normalizeClip(ctx context.Context, ffmpegBinary string, clip *audio.Clip, sampleRate, channels int) (*audio.Clip, error) {
	if clip == nil || len(clip.Data) == 0 {
		return nil, errors.New("tts: engine produced no audio")
	}
	normalized, err := audio.ResamplePCM(ctx, ffmpegBinary, clip, sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("tts: normalize clip: %w", err)
	}
	return normalized, nil
}
