// Package language normalizes language codes and maps them to the voice
// identifiers each synthesis engine expects.
package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize returns the canonical ISO 639-1 base form of a language code
// ("FI" and "fi-FI" both normalize to "fi").
func Normalize(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("language code is empty")
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse language %q: %w", code, err)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// DisplayName returns the English name of a language code for prompts and
// table output ("fi" becomes "Finnish"). Unknown codes are title-cased as-is.
func DisplayName(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return cases.Title(language.Und).String(strings.TrimSpace(code))
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return cases.Title(language.Und).String(strings.TrimSpace(code))
}

// GTTSCode maps a language code to the ISO 639-1 code gtts-cli accepts.
func GTTSCode(code string) (string, error) {
	return Normalize(code)
}

// EspeakVoice returns the default espeak-ng voice for a language when the
// configuration does not name one.
func EspeakVoice(code string) string {
	normalized, err := Normalize(code)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(code))
	}
	if normalized == "en" {
		return "en-us"
	}
	return normalized
}

// OpenAIVoice returns the default OpenAI voice hint for a language when the
// configuration does not name one.
func OpenAIVoice(code string) string {
	normalized, err := Normalize(code)
	if err != nil {
		return "alloy"
	}
	if normalized == "fi" {
		return "nova"
	}
	return "alloy"
}
