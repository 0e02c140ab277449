package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"puhuri/internal/fileutil"
	"puhuri/internal/lesson"
	"puhuri/internal/services"
	"puhuri/internal/services/translate"
	"puhuri/internal/staging"
)

// WriteSection persists one parsed section into the item staging directory.
func WriteSection(dirs staging.Dirs, sec lesson.Section) error {
	data, err := json.MarshalIndent(sec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode section %d: %w", sec.Index, err)
	}
	data = append(data, '\n')
	path := dirs.SectionFile(sec.Index, sec.Slug())
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write section %d: %w", sec.Index, err)
	}
	return nil
}

// LoadSections reads the parsed sections an earlier stage staged for the item.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func LoadSections(dirs staging.Dirs) ([]lesson.Section, error) {
	entries, err := os.ReadDir(dirs.Sections())
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load sections",
			"Parsed sections missing or unreadable; rerun parse", err)
	}

	sections := make([]lesson.Section, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dirs.Sections(), entry.Name()))
		if err != nil {
			return nil, services.Wrap(
				services.ErrValidation, "stage", "load sections",
				fmt.Sprintf("Section file %s unreadable; rerun parse", entry.Name()), err)
		}
		var sec lesson.Section
		if err := json.Unmarshal(data, &sec); err != nil {
			return nil, services.Wrap(
				services.ErrValidation, "stage", "load sections",
				fmt.Sprintf("Section file %s invalid; rerun parse", entry.Name()), err)
		}
		sections = append(sections, sec)
	}
	if len(sections) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load sections",
			"No parsed sections staged for item; rerun parse", nil)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Index < sections[j].Index })
	return sections, nil
}

// LoadSectionPairs reads the translated sentence pairs staged for one section.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func LoadSectionPairs(dirs staging.Dirs, sec lesson.Section) ([]translate.Pair, error) {
	path := dirs.TranslationFile(sec.Index, sec.Slug())
	rec, err := translate.LoadRecord(path)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load translation",
			fmt.Sprintf("Translation for section %d invalid; rerun translate", sec.Index), err)
	}
	if rec == nil || len(rec.Pairs) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load translation",
			fmt.Sprintf("Translation for section %d missing; rerun translate", sec.Index), nil)
	}
	return rec.Pairs, nil
}
