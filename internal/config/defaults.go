package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultOutputDir               = "~/puhuri"
	defaultStagingDir              = "~/.local/share/puhuri/staging"
	defaultLogDir                  = "~/.local/share/puhuri/logs"
	defaultReviewDir               = "~/.local/share/puhuri/review"
	defaultStagingRetentionDays    = 7
	defaultTranslateBaseURL        = "http://localhost:11434/v1/chat/completions"
	defaultTranslateModel          = "gemma3:12b"
	defaultTranslateTimeoutSeconds = 120
	defaultSourceLanguage          = "fi"
	defaultTargetLanguage          = "en"
	defaultEngine                  = "piper"
	defaultMaxEngineFailures       = 3
	defaultPiperBinary             = "piper"
	defaultPiperModelDir           = "~/.local/share/puhuri/voices"
	defaultPiperSampleRate         = 22050
	defaultEspeakBinary            = "espeak-ng"
	defaultEspeakRate              = 160
	defaultEspeakPitch             = 50
	defaultGTTSBinary              = "gtts-cli"
	defaultGTTSTLD                 = "com"
	defaultOpenAIModel             = "tts-1"
	defaultOpenAIFormat            = "wav"
	defaultElevenLabsBaseURL       = "https://api.elevenlabs.io"
	defaultElevenLabsModelID       = "eleven_multilingual_v2"
	defaultSampleRate              = 22050
	defaultChannels                = 1
	defaultPauseSeconds            = 2.0
	defaultAudioFormat             = "mp3"
	defaultBitrate                 = "128k"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
)

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "puhuri", "clips")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/puhuri/clips"
	}
	return filepath.Join(home, ".cache", "puhuri", "clips")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:            defaultOutputDir,
			StagingDir:           defaultStagingDir,
			LogDir:               defaultLogDir,
			ReviewDir:            defaultReviewDir,
			StagingRetentionDays: defaultStagingRetentionDays,
		},
		Translate: Translate{
			Enabled:        true,
			BaseURL:        defaultTranslateBaseURL,
			Model:          defaultTranslateModel,
			TimeoutSeconds: defaultTranslateTimeoutSeconds,
			SourceLanguage: defaultSourceLanguage,
			TargetLanguage: defaultTargetLanguage,
		},
		TTS: TTS{
			DefaultEngine: defaultEngine,
			FallbackOrder: []string{"espeak", "gtts"},
			MaxFailures:   defaultMaxEngineFailures,
			CacheEnabled:  true,
			CacheDir:      defaultCacheDir(),
			Piper: Piper{
				Binary:   defaultPiperBinary,
				ModelDir: defaultPiperModelDir,
				Voices: map[string]string{
					"fi": "fi_FI-harri-medium",
					"en": "en_US-lessac-medium",
				},
				SampleRate:  defaultPiperSampleRate,
				LengthScale: 1.0,
			},
			Espeak: Espeak{
				Binary: defaultEspeakBinary,
				Voices: map[string]string{
					"fi": "fi",
					"en": "en-us",
				},
				Rate:  defaultEspeakRate,
				Pitch: defaultEspeakPitch,
			},
			GTTS: GTTS{
				Binary: defaultGTTSBinary,
				TLD:    defaultGTTSTLD,
			},
			OpenAI: OpenAITTS{
				Model: defaultOpenAIModel,
				Voices: map[string]string{
					"fi": "nova",
					"en": "alloy",
				},
				Format: defaultOpenAIFormat,
				Speed:  1.0,
			},
			ElevenLabs: ElevenLabs{
				BaseURL:         defaultElevenLabsBaseURL,
				ModelID:         defaultElevenLabsModelID,
				Stability:       0.75,
				SimilarityBoost: 0.7,
			},
		},
		Audio: Audio{
			SampleRate:   defaultSampleRate,
			Channels:     defaultChannels,
			PauseSeconds: defaultPauseSeconds,
			Format:       defaultAudioFormat,
			Bitrate:      defaultBitrate,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Run:            true,
			Lesson:         true,
			Review:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
