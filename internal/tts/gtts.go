package tts

import (
	"context"
	"fmt"
	"strings"

	"puhuri/internal/audio"
	"puhuri/internal/config"
	"puhuri/internal/language"
)

// GTTSEngine drives gtts-cli, the free Google Translate voice. It needs
// network access and ffmpeg, since the output is MP3.
type GTTSEngine struct {
	binary     string
	slow       bool
	tld        string
	ffmpegBin  string
	sampleRate int
	channels   int
}

// NewGTTSEngine builds the engine from configuration.
func NewGTTSEngine(cfg *config.Config) *GTTSEngine {
	return &GTTSEngine{
		binary:     cfg.TTS.GTTS.Binary,
		slow:       cfg.TTS.GTTS.Slow,
		tld:        cfg.TTS.GTTS.TLD,
		ffmpegBin:  cfg.FFmpegBinary(),
		sampleRate: cfg.Audio.SampleRate,
		channels:   cfg.Audio.Channels,
	}
}

func (e *GTTSEngine) Name() string { return "gtts" }

// Voices reports the language codes gtts substitutes for voices; the service
// has exactly one voice per language.
func (e *GTTSEngine) Voices() []Voice {
	return []Voice{
		{ID: "fi", Language: "fi", Name: "Google Translate Finnish"},
		{ID: "en", Language: "en", Name: "Google Translate English"},
	}
}

func (e *GTTSEngine) Available(ctx context.Context) error {
	return lookupBinary("gtts-cli", e.binary)
}

func gttsArgs(text, langCode string, slow bool, tld string) []string {
	args := []string{text, "-l", langCode}
	if slow {
		args = append(args, "--slow")
	}
	if tld != "" && tld != "com" {
		args = append(args, "--tld", tld)
	}
	return append(args, "-o", "-")
}

func (e *GTTSEngine) Synthesize(ctx context.Context, req Request) (*audio.Clip, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	langCode, err := language.GTTSCode(req.Language)
	if err != nil {
		return nil, fmt.Errorf("gtts: %w", err)
	}
	slow := e.slow || req.Slow
	data, err := runCommand(ctx, e.binary, gttsArgs(strings.TrimSpace(req.Text), langCode, slow, e.tld), "")
	if err != nil {
		return nil, fmt.Errorf("gtts: %w", err)
	}
	clip, err := audio.DecodeToPCM(ctx, e.ffmpegBin, data, e.sampleRate, e.channels)
	if err != nil {
		return nil, fmt.Errorf("gtts: %w", err)
	}
	return clip, nil
}

var _ Engine = (*GTTSEngine)(nil)
