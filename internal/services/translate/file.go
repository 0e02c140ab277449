package translate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is a user-supplied translation file. Sections it covers bypass the
// LLM entirely, which keeps reruns deterministic and lets users correct
// machine output by hand.
type File struct {
	Lesson   string        `yaml:"lesson"`
	Sections []FileSection `yaml:"sections"`
}

// FileSection carries pre-translated sentence pairs for one section. A
// positive Index matches by position; otherwise Title matches
// case-insensitively.
type FileSection struct {
	Title     string `yaml:"title"`
	Index     int    `yaml:"index"`
	Sentences []Pair `yaml:"sentences"`
}

// LoadFile parses and validates a YAML translation file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read translation file: %w", err)
	}
	var parsed File
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse translation file %s: %w", filepath.Base(path), err)
	}
	if len(parsed.Sections) == 0 {
		return nil, fmt.Errorf("translation file %s has no sections", filepath.Base(path))
	}
	for i, sec := range parsed.Sections {
		label := strings.TrimSpace(sec.Title)
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if strings.TrimSpace(sec.Title) == "" && sec.Index <= 0 {
			return nil, fmt.Errorf("translation file section %s needs a title or index", label)
		}
		if len(sec.Sentences) == 0 {
			return nil, fmt.Errorf("translation file section %s has no sentences", label)
		}
		if _, err := normalizePairs(sec.Sentences); err != nil {
			return nil, fmt.Errorf("translation file section %s: %w", label, err)
		}
	}
	return &parsed, nil
}

// SectionPairs returns the pre-translated pairs for the given section, or
// nil when the file does not cover it. Index matches win over title matches.
func (f *File) SectionPairs(index int, title string) []Pair {
	if f == nil {
		return nil
	}
	for _, sec := range f.Sections {
		if sec.Index > 0 && sec.Index == index {
			pairs, _ := normalizePairs(sec.Sentences)
			return pairs
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	for _, sec := range f.Sections {
		if sec.Index <= 0 && strings.EqualFold(strings.TrimSpace(sec.Title), title) {
			pairs, _ := normalizePairs(sec.Sentences)
			return pairs
		}
	}
	return nil
}
