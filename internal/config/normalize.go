package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTranslate(); err != nil {
		return err
	}
	if err := c.normalizeTTS(); err != nil {
		return err
	}
	if err := c.normalizeAudio(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("OUTPUT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputDir = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	if c.Paths.StagingRetentionDays < 0 {
		c.Paths.StagingRetentionDays = 0
	}
	return nil
}

func (c *Config) normalizeTranslate() error {
	if value, ok := os.LookupEnv("PUHURI_TRANSLATE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Translate.BaseURL = strings.TrimSpace(value)
	} else if value, ok := os.LookupEnv("OLLAMA_URL"); ok && strings.TrimSpace(value) != "" {
		c.Translate.BaseURL = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("OLLAMA_MODEL"); ok && strings.TrimSpace(value) != "" {
		c.Translate.Model = strings.TrimSpace(value)
	}
	c.Translate.BaseURL = strings.TrimSpace(c.Translate.BaseURL)
	if c.Translate.BaseURL == "" {
		c.Translate.BaseURL = defaultTranslateBaseURL
	}
	c.Translate.BaseURL = ensureChatCompletionsURL(c.Translate.BaseURL)
	c.Translate.Model = strings.TrimSpace(c.Translate.Model)
	if c.Translate.Model == "" {
		c.Translate.Model = defaultTranslateModel
	}
	c.Translate.APIKey = strings.TrimSpace(c.Translate.APIKey)
	c.Translate.SourceLanguage = strings.ToLower(strings.TrimSpace(c.Translate.SourceLanguage))
	if c.Translate.SourceLanguage == "" {
		c.Translate.SourceLanguage = defaultSourceLanguage
	}
	c.Translate.TargetLanguage = strings.ToLower(strings.TrimSpace(c.Translate.TargetLanguage))
	if c.Translate.TargetLanguage == "" {
		c.Translate.TargetLanguage = defaultTargetLanguage
	}
	c.Translate.File = strings.TrimSpace(c.Translate.File)
	if c.Translate.File != "" {
		expanded, err := expandPath(c.Translate.File)
		if err != nil {
			return fmt.Errorf("translate.file: %w", err)
		}
		c.Translate.File = expanded
	}
	return nil
}

// ensureChatCompletionsURL appends the OpenAI-compatible chat completions path
// when the configured URL points at a bare server root, so OLLAMA_URL style
// values (http://localhost:11434) keep working.
func ensureChatCompletionsURL(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	if strings.HasSuffix(trimmed, "/chat/completions") {
		return trimmed
	}
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed + "/chat/completions"
	}
	return trimmed + "/v1/chat/completions"
}

func (c *Config) normalizeTTS() error {
	if value, ok := os.LookupEnv("TTS_ENGINE"); ok && strings.TrimSpace(value) != "" {
		c.TTS.DefaultEngine = strings.TrimSpace(value)
	}
	c.TTS.DefaultEngine = strings.ToLower(strings.TrimSpace(c.TTS.DefaultEngine))
	if c.TTS.DefaultEngine == "" {
		c.TTS.DefaultEngine = defaultEngine
	}

	order := make([]string, 0, len(c.TTS.FallbackOrder))
	seen := make(map[string]struct{}, len(c.TTS.FallbackOrder))
	for _, name := range c.TTS.FallbackOrder {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		order = append(order, normalized)
	}
	c.TTS.FallbackOrder = order

	var err error
	if strings.TrimSpace(c.TTS.CacheDir) == "" {
		c.TTS.CacheDir = defaultCacheDir()
	}
	if c.TTS.CacheDir, err = expandPath(c.TTS.CacheDir); err != nil {
		return fmt.Errorf("tts.cache_dir: %w", err)
	}

	if strings.TrimSpace(c.TTS.Piper.Binary) == "" {
		c.TTS.Piper.Binary = defaultPiperBinary
	}
	if strings.TrimSpace(c.TTS.Piper.ModelDir) == "" {
		c.TTS.Piper.ModelDir = defaultPiperModelDir
	}
	if c.TTS.Piper.ModelDir, err = expandPath(c.TTS.Piper.ModelDir); err != nil {
		return fmt.Errorf("tts.piper.model_dir: %w", err)
	}
	if c.TTS.Piper.SampleRate <= 0 {
		c.TTS.Piper.SampleRate = defaultPiperSampleRate
	}
	if c.TTS.Piper.LengthScale <= 0 {
		c.TTS.Piper.LengthScale = 1.0
	}

	if strings.TrimSpace(c.TTS.Espeak.Binary) == "" {
		c.TTS.Espeak.Binary = defaultEspeakBinary
	}
	if c.TTS.Espeak.Rate <= 0 {
		c.TTS.Espeak.Rate = defaultEspeakRate
	}
	if c.TTS.Espeak.Pitch <= 0 {
		c.TTS.Espeak.Pitch = defaultEspeakPitch
	}

	if strings.TrimSpace(c.TTS.GTTS.Binary) == "" {
		c.TTS.GTTS.Binary = defaultGTTSBinary
	}
	if strings.TrimSpace(c.TTS.GTTS.TLD) == "" {
		c.TTS.GTTS.TLD = defaultGTTSTLD
	}

	if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.TTS.OpenAI.APIKey = strings.TrimSpace(value)
	}
	c.TTS.OpenAI.APIKey = strings.TrimSpace(c.TTS.OpenAI.APIKey)
	if strings.TrimSpace(c.TTS.OpenAI.Model) == "" {
		c.TTS.OpenAI.Model = defaultOpenAIModel
	}
	c.TTS.OpenAI.Format = strings.ToLower(strings.TrimSpace(c.TTS.OpenAI.Format))
	if c.TTS.OpenAI.Format == "" {
		c.TTS.OpenAI.Format = defaultOpenAIFormat
	}
	if c.TTS.OpenAI.Speed <= 0 {
		c.TTS.OpenAI.Speed = 1.0
	}

	if value, ok := os.LookupEnv("ELEVENLABS_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.TTS.ElevenLabs.APIKey = strings.TrimSpace(value)
	}
	c.TTS.ElevenLabs.APIKey = strings.TrimSpace(c.TTS.ElevenLabs.APIKey)
	c.TTS.ElevenLabs.BaseURL = strings.TrimRight(strings.TrimSpace(c.TTS.ElevenLabs.BaseURL), "/")
	if c.TTS.ElevenLabs.BaseURL == "" {
		c.TTS.ElevenLabs.BaseURL = defaultElevenLabsBaseURL
	}
	if strings.TrimSpace(c.TTS.ElevenLabs.ModelID) == "" {
		c.TTS.ElevenLabs.ModelID = defaultElevenLabsModelID
	}
	if c.TTS.ElevenLabs.Stability <= 0 {
		c.TTS.ElevenLabs.Stability = 0.75
	}
	if c.TTS.ElevenLabs.SimilarityBoost <= 0 {
		c.TTS.ElevenLabs.SimilarityBoost = 0.7
	}
	return nil
}

func (c *Config) normalizeAudio() error {
	if value, ok := os.LookupEnv("SAMPLE_RATE"); ok && strings.TrimSpace(value) != "" {
		rate, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("parse SAMPLE_RATE %q: %w", value, err)
		}
		c.Audio.SampleRate = rate
	}
	if value, ok := os.LookupEnv("PAUSE_DURATION"); ok && strings.TrimSpace(value) != "" {
		pause, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("parse PAUSE_DURATION %q: %w", value, err)
		}
		c.Audio.PauseSeconds = pause
	}
	c.Audio.Format = strings.ToLower(strings.TrimSpace(c.Audio.Format))
	if c.Audio.Format == "" {
		c.Audio.Format = defaultAudioFormat
	}
	c.Audio.Bitrate = strings.TrimSpace(c.Audio.Bitrate)
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = defaultBitrate
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
