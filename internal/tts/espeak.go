package tts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"puhuri/internal/audio"
	"puhuri/internal/config"
	"puhuri/internal/language"
)

// EspeakEngine drives eSpeak NG, the formant synthesizer that works offline
// with no voice models to download. Output quality is robotic but it is the
// most dependable fallback.
type EspeakEngine struct {
	binary     string
	voices     map[string]string
	rate       int
	pitch      int
	ffmpegBin  string
	sampleRate int
	channels   int
}

// NewEspeakEngine builds the engine from configuration.
func NewEspeakEngine(cfg *config.Config) *EspeakEngine {
	return &EspeakEngine{
		binary:     cfg.TTS.Espeak.Binary,
		voices:     cfg.TTS.Espeak.Voices,
		rate:       cfg.TTS.Espeak.Rate,
		pitch:      cfg.TTS.Espeak.Pitch,
		ffmpegBin:  cfg.FFmpegBinary(),
		sampleRate: cfg.Audio.SampleRate,
		channels:   cfg.Audio.Channels,
	}
}

func (e *EspeakEngine) Name() string { return "espeak" }

func (e *EspeakEngine) Voices() []Voice { return configuredVoices(e.voices) }

func (e *EspeakEngine) Available(ctx context.Context) error {
	return lookupBinary("espeak-ng", e.binary)
}

func espeakArgs(voice string, rate, pitch int) []string {
	return []string{
		"-v", voice,
		"-s", strconv.Itoa(rate),
		"-p", strconv.Itoa(pitch),
		"--stdout",
	}
}

func (e *EspeakEngine) voice(req Request) string {
	if v := strings.TrimSpace(req.Voice); v != "" {
		return v
	}
	if v := e.voices[normalizeLanguage(req.Language)]; v != "" {
		return v
	}
	return language.EspeakVoice(req.Language)
}

func (e *EspeakEngine) Synthesize(ctx context.Context, req Request) (*audio.Clip, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	data, err := runCommand(ctx, e.binary, espeakArgs(e.voice(req), e.rate, e.pitch), req.Text)
	if err != nil {
		return nil, fmt.Errorf("espeak: %w", err)
	}
	clip, err := audio.DecodeWAVBytes(data)
	if err != nil {
		return nil, fmt.Errorf("espeak: %w", err)
	}
	return normalizeClip(ctx, e.ffmpegBin, clip, e.sampleRate, e.channels)
}

var _ Engine = (*EspeakEngine)(nil)
