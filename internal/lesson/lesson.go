// Package lesson parses markdown lesson files into ordered content sections.
//
// A lesson file carries one H1 title and any number of H2 sections. Body
// lines are cleaned of markdown decorations so later stages see plain
// sentences; sections with no usable content are dropped.
package lesson

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"puhuri/internal/textutil"
)

// SectionType classifies a section for translation prompting and display.
type SectionType string

const (
	SectionDialogue   SectionType = "dialogue"
	SectionReading    SectionType = "reading"
	SectionVocabulary SectionType = "vocabulary"
	SectionExercise   SectionType = "exercise"
	SectionText       SectionType = "text"
)

// Section is one numbered unit of lesson content.
type Section struct {
	Index int         `json:"index"`
	Type  SectionType `json:"type"`
	Title string      `json:"title"`
	Lines []string    `json:"lines"`
}

// Slug returns the filesystem-safe form of the section title.
func (s Section) Slug() string {
	return textutil.SafeFilename(s.Title)
}

// Body returns the section content as a single newline-joined string.
func (s Section) Body() string {
	return strings.Join(s.Lines, "\n")
}

// Lesson is a parsed lesson file.
type Lesson struct {
	Title      string    `json:"title"`
	SourcePath string    `json:"source_path,omitempty"`
	Sections   []Section `json:"sections"`
}

// ParseFile parses the markdown file at path. The lesson title falls back to
// a cleaned form of the filename when the file has no H1 heading.
func ParseFile(path string) (*Lesson, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lesson: %w", err)
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	parsed.SourcePath = path
	if parsed.Title == "" {
		parsed.Title = TitleFromFilename(path)
		for i := range parsed.Sections {
			if parsed.Sections[i].Title == "" {
				parsed.Sections[i].Title = parsed.Title
			}
		}
	}
	return parsed, nil
}

type rawSection struct {
	title string
	lines []string
}

// Parse reads markdown lesson content. The first H1 becomes the lesson
// title; every later H1 or H2 starts a new section. Content between the
// title and the first section heading forms an untitled preamble section.
func Parse(r io.Reader) (*Lesson, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		title   string
		raw     []rawSection
		current rawSection
		started bool
		inFence bool
	)
	firstLine := true

	flush := func() {
		if started {
			raw = append(raw, current)
		}
		current = rawSection{}
		started = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		if firstLine {
			line = strings.TrimPrefix(line, "\uFEFF")
			firstLine = false
		}

		trimmed := strings.TrimSpace(line)
		if isFenceMarker(trimmed) {
			inFence = !inFence
			continue
		}
		if inFence {
			if trimmed != "" {
				current.lines = append(current.lines, trimmed)
				started = true
			}
			continue
		}

		if level, text := headingLine(trimmed); level > 0 {
			switch {
			case level == 1 && title == "":
				title = text
			case level <= 2:
				flush()
				current.title = text
				started = true
			default:
				if cleaned := cleanLine(text); cleaned != "" {
					current.lines = append(current.lines, cleaned)
					started = true
				}
			}
			continue
		}

		if cleaned := cleanLine(trimmed); cleaned != "" {
			current.lines = append(current.lines, cleaned)
			started = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lesson: %w", err)
	}
	flush()

	parsed := &Lesson{Title: title}
	for _, section := range raw {
		if len(section.lines) == 0 {
			continue
		}
		sectionTitle := section.title
		sectionType := Classify(sectionTitle)
		if sectionTitle == "" {
			// Preamble between the H1 and the first section heading.
			sectionTitle = title
			sectionType = SectionReading
		}
		parsed.Sections = append(parsed.Sections, Section{
			Index: len(parsed.Sections) + 1,
			Type:  sectionType,
			Title: sectionTitle,
			Lines: section.lines,
		})
	}
	return parsed, nil
}

// Classify maps a section heading to its content type using Finnish and
// English keyword sets.
func Classify(title string) SectionType {
	t := strings.ToLower(strings.TrimSpace(title))
	switch {
	case strings.Contains(t, "harjoitus"), strings.Contains(t, "tehtävä"), strings.Contains(t, "exercise"):
		return SectionExercise
	case strings.Contains(t, "sanasto"), strings.Contains(t, "vocabulary"), strings.Contains(t, "useful"), strings.Contains(t, "phrase"):
		return SectionVocabulary
	case strings.Contains(t, "dialogi"), strings.Contains(t, "keskustelu"), strings.Contains(t, "dialogue"), strings.Contains(t, "conversation"):
		return SectionDialogue
	case strings.HasPrefix(t, "s."), strings.Contains(t, "sivu"), strings.Contains(t, "page"),
		strings.Contains(t, "kappale"), strings.Contains(t, "luku"), strings.Contains(t, "chapter"),
		strings.Contains(t, "teksti"), strings.Contains(t, "reading"):
		return SectionReading
	default:
		return SectionText
	}
}

// TitleFromFilename derives a lesson title from the file name, replacing
// separators with spaces.
func TitleFromFilename(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(base, "_", " "), "-", " "))
	if cleaned == "" {
		return "Untitled Lesson"
	}
	return cleaned
}

var (
	listMarkerPattern = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
	linkPattern       = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	emphasisReplacer  = strings.NewReplacer("**", "", "__", "", "`", "")
)

func headingLine(line string) (int, string) {
	if !strings.HasPrefix(line, "#") {
		return 0, ""
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	rest := line[level:]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return 0, ""
	}
	return level, strings.TrimSpace(rest)
}

func isFenceMarker(line string) bool {
	return strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~")
}

func isHorizontalRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	marker := rune(line[0])
	if marker != '-' && marker != '*' && marker != '_' {
		return false
	}
	for _, r := range line {
		if r != marker && r != ' ' {
			return false
		}
	}
	return true
}

func isTableSeparator(cells []string) bool {
	for _, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}
	return true
}

func cleanLine(line string) string {
	s := strings.TrimSpace(line)
	if s == "" || isHorizontalRule(s) {
		return ""
	}

	for strings.HasPrefix(s, ">") {
		s = strings.TrimSpace(strings.TrimPrefix(s, ">"))
	}
	s = listMarkerPattern.ReplaceAllString(s, "")

	if strings.HasPrefix(s, "|") {
		cells := strings.Split(strings.Trim(s, "|"), "|")
		if isTableSeparator(cells) {
			return ""
		}
		kept := make([]string, 0, len(cells))
		for _, cell := range cells {
			if cell = strings.TrimSpace(cell); cell != "" {
				kept = append(kept, cell)
			}
		}
		s = strings.Join(kept, " - ")
	}

	s = linkPattern.ReplaceAllString(s, "$1")
	s = emphasisReplacer.Replace(s)
	if len(s) > 1 && (s[0] == '*' || s[0] == '_') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
