package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir            string `toml:"output_dir"`
	StagingDir           string `toml:"staging_dir"`
	LogDir               string `toml:"log_dir"`
	ReviewDir            string `toml:"review_dir"`
	OverwriteExisting    bool   `toml:"overwrite_existing"`
	StagingRetentionDays int    `toml:"staging_retention_days"`
}

// Translate contains configuration for the sentence-pair translation backend.
// BaseURL points at an OpenAI-compatible chat completions endpoint; a bare
// server root (Ollama style) is accepted and normalized.
type Translate struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	SourceLanguage string `toml:"source_language"`
	TargetLanguage string `toml:"target_language"`
	File           string `toml:"file"`
}

// Piper contains configuration for the local piper neural TTS engine.
type Piper struct {
	Binary      string            `toml:"binary"`
	ModelDir    string            `toml:"model_dir"`
	Voices      map[string]string `toml:"voices"`
	SampleRate  int               `toml:"sample_rate"`
	LengthScale float64           `toml:"length_scale"`
}

// Espeak contains configuration for the espeak-ng engine.
type Espeak struct {
	Binary string            `toml:"binary"`
	Voices map[string]string `toml:"voices"`
	Rate   int               `toml:"rate"`
	Pitch  int               `toml:"pitch"`
}

// GTTS contains configuration for the gtts-cli engine.
type GTTS struct {
	Binary string `toml:"binary"`
	Slow   bool   `toml:"slow"`
	TLD    string `toml:"tld"`
}

// OpenAITTS contains configuration for the OpenAI speech API engine.
type OpenAITTS struct {
	APIKey string            `toml:"api_key"`
	Model  string            `toml:"model"`
	Voices map[string]string `toml:"voices"`
	Format string            `toml:"format"`
	Speed  float64           `toml:"speed"`
}

// ElevenLabs contains configuration for the ElevenLabs speech API engine.
type ElevenLabs struct {
	APIKey          string            `toml:"api_key"`
	BaseURL         string            `toml:"base_url"`
	ModelID         string            `toml:"model_id"`
	Voices          map[string]string `toml:"voices"`
	Stability       float64           `toml:"stability"`
	SimilarityBoost float64           `toml:"similarity_boost"`
}

// TTS contains engine selection, fallback order, and per-engine settings.
type TTS struct {
	DefaultEngine string   `toml:"default_engine"`
	FallbackOrder []string `toml:"fallback_order"`
	MaxFailures   int      `toml:"max_failures"`
	CacheEnabled  bool     `toml:"cache_enabled"`
	CacheDir      string   `toml:"cache_dir"`

	Piper      Piper      `toml:"piper"`
	Espeak     Espeak     `toml:"espeak"`
	GTTS       GTTS       `toml:"gtts"`
	OpenAI     OpenAITTS  `toml:"openai"`
	ElevenLabs ElevenLabs `toml:"elevenlabs"`
}

// Audio contains output timing and format configuration.
type Audio struct {
	SampleRate   int     `toml:"sample_rate"`
	Channels     int     `toml:"channels"`
	PauseSeconds float64 `toml:"pause_seconds"`
	Format       string  `toml:"format"`
	Bitrate      string  `toml:"bitrate"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Run            bool   `toml:"run"`
	Lesson         bool   `toml:"lesson"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Puhuri.
//
// Configuration sections by subsystem:
//   - Paths: output, staging, review, and log directories
//   - Translate: chat-completions endpoint for sentence-pair translation
//   - TTS: engine selection, fallback order, and per-engine settings
//   - Audio: sample rate, channels, pause length, and output format
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Translate     Translate     `toml:"translate"`
	TTS           TTS           `toml:"tts"`
	Audio         Audio         `toml:"audio"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/puhuri/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("PUHURI_CONFIG"))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/puhuri/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("puhuri.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
// OutputDir is created on a best-effort basis so inspection commands can run
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.ReviewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	if c.TTS.CacheEnabled && strings.TrimSpace(c.TTS.CacheDir) != "" {
		if err := os.MkdirAll(c.TTS.CacheDir, 0o755); err != nil {
			return fmt.Errorf("create clip cache directory %q: %w", c.TTS.CacheDir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for decode and MP3 encode.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// EngineOrder returns the full ordered candidate list for synthesis:
// the default engine first, then the configured fallback order, deduplicated.
func (c *Config) EngineOrder() []string {
	order := make([]string, 0, 1+len(c.TTS.FallbackOrder))
	seen := make(map[string]struct{}, 1+len(c.TTS.FallbackOrder))
	for _, name := range append([]string{c.TTS.DefaultEngine}, c.TTS.FallbackOrder...) {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		order = append(order, normalized)
	}
	return order
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
