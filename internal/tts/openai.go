package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"puhuri/internal/audio"
	"puhuri/internal/config"
	"puhuri/internal/language"
)

// OpenAIEngine synthesizes through the OpenAI speech API. WAV responses are
// decoded in-process; any other configured format goes through ffmpeg.
type OpenAIEngine struct {
	client     *openai.Client
	model      string
	voices     map[string]string
	format     string
	speed      float64
	ffmpegBin  string
	sampleRate int
	channels   int
}

// OpenAIOption adjusts engine construction.
type OpenAIOption func(*OpenAIEngine)

// WithOpenAIClient substitutes the API client, primarily for tests pointing
// at a local server.
func WithOpenAIClient(client *openai.Client) OpenAIOption {
	return func(e *OpenAIEngine) {
		e.client = client
	}
}

// NewOpenAIEngine builds the engine from configuration. Without an API key
// the engine reports itself unavailable.
func NewOpenAIEngine(cfg *config.Config, opts ...OpenAIOption) *OpenAIEngine {
	e := &OpenAIEngine{
		model:      cfg.TTS.OpenAI.Model,
		voices:     cfg.TTS.OpenAI.Voices,
		format:     strings.ToLower(strings.TrimSpace(cfg.TTS.OpenAI.Format)),
		speed:      cfg.TTS.OpenAI.Speed,
		ffmpegBin:  cfg.FFmpegBinary(),
		sampleRate: cfg.Audio.SampleRate,
		channels:   cfg.Audio.Channels,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		if key := strings.TrimSpace(cfg.TTS.OpenAI.APIKey); key != "" {
			e.client = openai.NewClient(key)
		}
	}
	return e
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Voices() []Voice { return configuredVoices(e.voices) }

func (e *OpenAIEngine) Available(ctx context.Context) error {
	if e.client == nil {
		return errors.New("openai api key not configured")
	}
	return nil
}

func (e *OpenAIEngine) voice(req Request) string {
	if v := strings.TrimSpace(req.Voice); v != "" {
		return v
	}
	if v := e.voices[normalizeLanguage(req.Language)]; v != "" {
		return v
	}
	return language.OpenAIVoice(req.Language)
}

func (e *OpenAIEngine) Synthesize(ctx context.Context, req Request) (*audio.Clip, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if e.client == nil {
		return nil, errors.New("openai: api key not configured")
	}

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(e.voice(req)),
		ResponseFormat: openai.SpeechResponseFormat(e.format),
		Speed:          e.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create speech: %w", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech response: %w", err)
	}

	if e.format == "wav" {
		clip, err := audio.DecodeWAVBytes(data)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		return normalizeClip(ctx, e.ffmpegBin, clip, e.sampleRate, e.channels)
	}
	clip, err := audio.DecodeToPCM(ctx, e.ffmpegBin, data, e.sampleRate, e.channels)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return clip, nil
}

var _ Engine = (*OpenAIEngine)(nil)
