// Package config loads, normalizes, and validates Puhuri configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment surface the
// pipeline inherited: OLLAMA_URL, OLLAMA_MODEL, TTS_ENGINE, OPENAI_API_KEY,
// ELEVENLABS_API_KEY, SAMPLE_RATE, PAUSE_DURATION, and OUTPUT_DIR. The Config
// type centralizes every knob the CLI needs, from staging directories to
// per-engine voice maps.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical engine names, and clear validation errors.
package config
