// Package translate produces aligned sentence pairs for lesson sections.
//
// This package is used by:
//   - Translate stage: turn parsed sections into {original, translation} pairs
//   - Preflight: verify the endpoint and model before a run starts
//
// # Endpoint
//
// The client speaks the OpenAI chat-completions protocol with
// response_format json_object and temperature 0. A local Ollama server
// (http://localhost:11434/v1/chat/completions) is the default; any
// compatible endpoint works. The API key is optional because local servers
// accept unauthenticated requests.
//
// # Wire Format
//
// The model must answer with {"sentences":[{"finnish":...,"english":...}]}.
// System prompts vary by section type: dialogues keep speaker labels,
// vocabulary lists yield term/translation pairs, exercises include
// instructions and answers as separate pairs.
//
// # Entry Points
//
// NewTranslator: construct from config.
// Translator.TranslateSection: section in, validated pairs out.
// LoadFile: user-supplied YAML translations that bypass the LLM.
// LoadRecord/StoreRecord: per-section sidecars keyed by source hash so
// reruns skip completed sections.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
package translate
