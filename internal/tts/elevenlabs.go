package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"puhuri/internal/audio"
	"puhuri/internal/config"
)

const elevenLabsTimeout = 60 * time.Second

// ElevenLabsEngine synthesizes through the ElevenLabs text-to-speech API.
// Responses are MP3 and always pass through ffmpeg.
type ElevenLabsEngine struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	modelID    string
	voices     map[string]string
	stability  float64
	similarity float64
	ffmpegBin  string
	sampleRate int
	channels   int
}

// NewElevenLabsEngine builds the engine from configuration.
func NewElevenLabsEngine(cfg *config.Config) *ElevenLabsEngine {
	return &ElevenLabsEngine{
		httpClient: &http.Client{Timeout: elevenLabsTimeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.TTS.ElevenLabs.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.TTS.ElevenLabs.APIKey),
		modelID:    cfg.TTS.ElevenLabs.ModelID,
		voices:     cfg.TTS.ElevenLabs.Voices,
		stability:  cfg.TTS.ElevenLabs.Stability,
		similarity: cfg.TTS.ElevenLabs.SimilarityBoost,
		ffmpegBin:  cfg.FFmpegBinary(),
		sampleRate: cfg.Audio.SampleRate,
		channels:   cfg.Audio.Channels,
	}
}

func (e *ElevenLabsEngine) Name() string { return "elevenlabs" }

func (e *ElevenLabsEngine) Voices() []Voice { return configuredVoices(e.voices) }

func (e *ElevenLabsEngine) Available(ctx context.Context) error {
	if e.apiKey == "" {
		return errors.New("elevenlabs api key not configured")
	}
	return nil
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsPayload struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

func (e *ElevenLabsEngine) voiceID(req Request) (string, error) {
	if v := strings.TrimSpace(req.Voice); v != "" {
		return v, nil
	}
	if v := e.voices[normalizeLanguage(req.Language)]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("elevenlabs: no voice configured for language %q", req.Language)
}

func (e *ElevenLabsEngine) Synthesize(ctx context.Context, req Request) (*audio.Clip, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if e.apiKey == "" {
		return nil, errors.New("elevenlabs: api key not configured")
	}
	voiceID, err := e.voiceID(req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(elevenLabsPayload{
		Text:    req.Text,
		ModelID: e.modelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.similarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	endpoint := e.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	clip, err := audio.DecodeToPCM(ctx, e.ffmpegBin, data, e.sampleRate, e.channels)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}
	return clip, nil
}

var _ Engine = (*ElevenLabsEngine)(nil)
