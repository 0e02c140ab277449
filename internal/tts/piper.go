package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"puhuri/internal/audio"
	"puhuri/internal/config"
)

// PiperEngine drives the piper neural synthesizer. Piper writes raw s16le
// PCM at the voice model's native rate, so no container parsing is needed.
type PiperEngine struct {
	binary      string
	modelDir    string
	voices      map[string]string
	modelRate   int
	lengthScale float64
	ffmpegBin   string
	sampleRate  int
	channels    int
}

// NewPiperEngine builds the engine from configuration.
func NewPiperEngine(cfg *config.Config) *PiperEngine {
	return &PiperEngine{
		binary:      cfg.TTS.Piper.Binary,
		modelDir:    cfg.TTS.Piper.ModelDir,
		voices:      cfg.TTS.Piper.Voices,
		modelRate:   cfg.TTS.Piper.SampleRate,
		lengthScale: cfg.TTS.Piper.LengthScale,
		ffmpegBin:   cfg.FFmpegBinary(),
		sampleRate:  cfg.Audio.SampleRate,
		channels:    cfg.Audio.Channels,
	}
}

func (e *PiperEngine) Name() string { return "piper" }

func (e *PiperEngine) Voices() []Voice { return configuredVoices(e.voices) }

func (e *PiperEngine) Available(ctx context.Context) error {
	return lookupBinary("piper", e.binary)
}

func piperArgs(modelPath, configPath string, lengthScale float64) []string {
	args := []string{"--model", modelPath, "--config", configPath, "--output_raw"}
	if lengthScale > 0 && lengthScale != 1.0 {
		args = append(args, "--length_scale", strconv.FormatFloat(lengthScale, 'f', -1, 64))
	}
	return args
}

// voiceModel resolves the onnx model and its sidecar config for a request.
// Voice names follow the piper convention (fi_FI-harri-medium); absolute
// paths are honored as-is.
func (e *PiperEngine) voiceModel(req Request) (modelPath, configPath string, err error) {
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = e.voices[normalizeLanguage(req.Language)]
	}
	if voice == "" {
		return "", "", fmt.Errorf("piper: no voice configured for language %q", req.Language)
	}
	modelPath = voice
	if !strings.HasSuffix(modelPath, ".onnx") {
		modelPath += ".onnx"
	}
	if !filepath.IsAbs(modelPath) {
		modelPath = filepath.Join(e.modelDir, modelPath)
	}
	return modelPath, modelPath + ".json", nil
}

func (e *PiperEngine) Synthesize(ctx context.Context, req Request) (*audio.Clip, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	modelPath, configPath, err := e.voiceModel(req)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("piper: voice model %s: %w", filepath.Base(modelPath), err)
	}

	data, err := runCommand(ctx, e.binary, piperArgs(modelPath, configPath, e.lengthScale), req.Text)
	if err != nil {
		return nil, fmt.Errorf("piper: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("piper: no audio produced")
	}
	clip := &audio.Clip{Data: data, SampleRate: e.modelRate, Channels: 1}
	return normalizeClip(ctx, e.ffmpegBin, clip, e.sampleRate, e.channels)
}

var _ Engine = (*PiperEngine)(nil)
