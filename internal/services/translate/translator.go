package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"puhuri/internal/config"
	"puhuri/internal/language"
	"puhuri/internal/lesson"
	"puhuri/internal/logging"
)

// Pair is one aligned sentence pair. The key names are the wire contract:
// the model must answer with {"sentences":[{"finnish":...,"english":...}]}
// regardless of the configured language pair, with the original sentence in
// "finnish" and the translation in "english".
type Pair struct {
	Finnish string `json:"finnish" yaml:"finnish"`
	English string `json:"english" yaml:"english"`
}

const systemPromptFormat = `You are a professional %s to %s translator preparing audio for a language lesson.
Translate every sentence in the provided lesson section into natural, accurate %s.

Rules:
- Keep the original sentence order.
- Do not merge, split, or invent sentences.
- Do not include markdown formatting in the output.
- Respond with JSON only, in exactly this shape:
  {"sentences": [{"finnish": "original sentence", "english": "translation"}]}
- Put the original sentence in "finnish" and the translation in "english".
- If the section contains nothing translatable, respond with {"sentences": []}.`

// Translator turns lesson sections into aligned sentence pairs through the
// chat-completions client.
type Translator struct {
	client *Client
	source string
	target string
	logger *slog.Logger
}

// NewTranslator builds a Translator over the configured endpoint. Options
// are forwarded to the underlying client.
func NewTranslator(cfg *config.Config, logger *slog.Logger, opts ...Option) *Translator {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := NewClient(Config{
		APIKey:         cfg.Translate.APIKey,
		BaseURL:        cfg.Translate.BaseURL,
		Model:          cfg.Translate.Model,
		TimeoutSeconds: cfg.Translate.TimeoutSeconds,
	}, opts...)
	return &Translator{
		client: client,
		source: language.DisplayName(cfg.Translate.SourceLanguage),
		target: language.DisplayName(cfg.Translate.TargetLanguage),
		logger: logger.With(logging.String(logging.FieldComponent, "translator")),
	}
}

// HealthCheck verifies the endpoint and model respond.
func (t *Translator) HealthCheck(ctx context.Context) error {
	return t.client.HealthCheck(ctx)
}

// TranslateSection produces aligned sentence pairs for one lesson section.
// An empty pair list is a valid result for sections with no translatable
// content; callers decide whether that warrants review.
func (t *Translator) TranslateSection(ctx context.Context, sec lesson.Section) ([]Pair, error) {
	body := strings.TrimSpace(sec.Body())
	if body == "" {
		return nil, errors.New("translate section: empty section body")
	}

	system := fmt.Sprintf(systemPromptFormat, t.source, t.target, t.target)
	if guidance := sectionGuidance(sec.Type); guidance != "" {
		system += "\n\n" + guidance
	}

	content, err := t.client.CompleteJSON(ctx, system, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Sentences []Pair `json:"sentences"`
	}
	if err := DecodeResponse(content, &payload); err != nil {
		return nil, fmt.Errorf("translate section %q: parse payload: %w", sec.Title, err)
	}
	pairs, err := normalizePairs(payload.Sentences)
	if err != nil {
		return nil, fmt.Errorf("translate section %q: %w", sec.Title, err)
	}
	t.logger.Debug("section translated",
		logging.String(logging.FieldSection, sec.Title),
		logging.Int("pairs", len(pairs)))
	return pairs, nil
}

func sectionGuidance(sectionType lesson.SectionType) string {
	switch sectionType {
	case lesson.SectionDialogue:
		return `The section is a dialogue. Keep each speaker label (such as "Maija:") attached to both the original sentence and its translation.`
	case lesson.SectionVocabulary:
		return `The section is a vocabulary list. Treat each term or phrase as one pair: the term in "finnish", its translation in "english".`
	case lesson.SectionExercise:
		return `The section is an exercise. Include the instructions and every prompt or answer line as separate pairs.`
	case lesson.SectionReading:
		return `The section is reading text. Split it into natural sentences.`
	default:
		return ""
	}
}

// normalizePairs trims pair text, drops fully blank pairs, and rejects pairs
// where only one side is present.
func normalizePairs(pairs []Pair) ([]Pair, error) {
	out := make([]Pair, 0, len(pairs))
	for i, pair := range pairs {
		original := strings.TrimSpace(pair.Finnish)
		translation := strings.TrimSpace(pair.English)
		if original == "" && translation == "" {
			continue
		}
		if original == "" || translation == "" {
			return nil, fmt.Errorf("misaligned sentence pair at index %d", i)
		}
		out = append(out, Pair{Finnish: original, English: translation})
	}
	return out, nil
}
