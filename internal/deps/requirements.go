package deps

import (
	"strings"

	"puhuri/internal/config"
)

// networkEngines call remote speech services and return encoded audio at
// provider-native sample rates, so their clips pass through ffmpeg before
// concatenation.
var networkEngines = map[string]bool{
	"gtts":       true,
	"openai":     true,
	"elevenlabs": true,
}

// Requirements derives the binary dependency set from the configured engine
// chain. The default engine must resolve for a run to start; fallback
// engines are optional. HTTP engines carry no binary and are validated
// through their API keys instead.
func Requirements(cfg *config.Config) []Requirement {
	order := cfg.EngineOrder()
	reqs := make([]Requirement, 0, len(order))
	for i, engine := range order {
		optional := i > 0
		switch engine {
		case "piper":
			reqs = append(reqs, Requirement{
				Name:        "Piper",
				Command:     cfg.TTS.Piper.Binary,
				Description: "Neural text-to-speech engine",
				Optional:    optional,
			})
		case "espeak":
			reqs = append(reqs, Requirement{
				Name:        "eSpeak NG",
				Command:     cfg.TTS.Espeak.Binary,
				Description: "Formant text-to-speech engine",
				Optional:    optional,
			})
		case "gtts":
			reqs = append(reqs, Requirement{
				Name:        "gTTS",
				Command:     cfg.TTS.GTTS.Binary,
				Description: "Google Translate text-to-speech client",
				Optional:    optional,
			})
		}
	}
	return reqs
}

// NeedsFFmpeg reports whether the configured pipeline touches ffmpeg and
// whether a missing binary is fatal. ffmpeg is required when the output
// format is MP3 or when the default engine emits encoded audio; it is
// recommended but not fatal when only fallback engines would need it.
func NeedsFFmpeg(cfg *config.Config) (needed, required bool) {
	if strings.EqualFold(strings.TrimSpace(cfg.Audio.Format), "mp3") {
		return true, true
	}
	for i, engine := range cfg.EngineOrder() {
		if !networkEngines[engine] {
			continue
		}
		if i == 0 {
			return true, true
		}
		needed = true
	}
	return needed, false
}
