package config

import (
	"errors"
	"fmt"
	"strings"
)

// KnownEngines lists every TTS engine name the pipeline can construct.
var KnownEngines = []string{"piper", "espeak", "gtts", "openai", "elevenlabs"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranslate(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	return nil
}

func (c *Config) validateTranslate() error {
	if !c.Translate.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Translate.BaseURL) == "" {
		return errors.New("translate.base_url must be set when translate.enabled is true")
	}
	if strings.TrimSpace(c.Translate.Model) == "" {
		return errors.New("translate.model must be set when translate.enabled is true")
	}
	if c.Translate.TimeoutSeconds <= 0 {
		return errors.New("translate.timeout_seconds must be positive")
	}
	if c.Translate.SourceLanguage == c.Translate.TargetLanguage {
		return fmt.Errorf("translate.source_language and translate.target_language must differ (both %q)", c.Translate.SourceLanguage)
	}
	return nil
}

func (c *Config) validateTTS() error {
	if !isKnownEngine(c.TTS.DefaultEngine) {
		return fmt.Errorf("tts.default_engine %q is not one of %s", c.TTS.DefaultEngine, strings.Join(KnownEngines, ", "))
	}
	for _, name := range c.TTS.FallbackOrder {
		if !isKnownEngine(name) {
			return fmt.Errorf("tts.fallback_order entry %q is not one of %s", name, strings.Join(KnownEngines, ", "))
		}
	}
	if c.TTS.MaxFailures <= 0 {
		return errors.New("tts.max_failures must be positive")
	}
	for _, name := range c.EngineOrder() {
		switch name {
		case "openai":
			if c.TTS.OpenAI.APIKey == "" {
				return errors.New("tts.openai.api_key must be set when the openai engine is configured (or set OPENAI_API_KEY)")
			}
		case "elevenlabs":
			if c.TTS.ElevenLabs.APIKey == "" {
				return errors.New("tts.elevenlabs.api_key must be set when the elevenlabs engine is configured (or set ELEVENLABS_API_KEY)")
			}
			if len(c.TTS.ElevenLabs.Voices) == 0 {
				return errors.New("tts.elevenlabs.voices must map languages to voice IDs when the elevenlabs engine is configured")
			}
		}
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return errors.New("audio.channels must be 1 or 2")
	}
	if c.Audio.PauseSeconds < 0 {
		return errors.New("audio.pause_seconds must be >= 0")
	}
	switch c.Audio.Format {
	case "mp3", "wav":
	default:
		return fmt.Errorf("audio.format %q must be mp3 or wav", c.Audio.Format)
	}
	if strings.TrimSpace(c.Audio.Bitrate) == "" {
		return errors.New("audio.bitrate must be set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func isKnownEngine(name string) bool {
	for _, known := range KnownEngines {
		if name == known {
			return true
		}
	}
	return false
}
