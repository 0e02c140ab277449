// Package staging lays out and cleans per-item staging directories.
//
// Every queue item works inside <staging_dir>/<id>-<lesson-slug>/ with one
// subdirectory per pipeline artifact: parsed sections, translated sentence
// pairs, synthesized clips, and rendered tracks.
package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"puhuri/internal/textutil"
)

// Dirs addresses the artifact subdirectories of one item's staging root.
type Dirs struct {
	Root string
}

// ForItem returns the staging layout for a queue item.
func ForItem(stagingRoot string, itemID int64, lessonTitle string) Dirs {
	name := fmt.Sprintf("%d-%s", itemID, textutil.SafeFilename(lessonTitle))
	return Dirs{Root: filepath.Join(stagingRoot, name)}
}

// Sections returns the directory holding parsed section JSON files.
func (d Dirs) Sections() string { return filepath.Join(d.Root, "sections") }

// Translated returns the directory holding translated sentence pair JSON files.
func (d Dirs) Translated() string { return filepath.Join(d.Root, "translated") }

// Clips returns the directory holding synthesized clips.
func (d Dirs) Clips() string { return filepath.Join(d.Root, "clips") }

// ClipDir returns the clip directory for one section.
func (d Dirs) ClipDir(sectionIndex int) string {
	return filepath.Join(d.Clips(), fmt.Sprintf("%02d", sectionIndex))
}

// Render returns the directory holding assembled per-section tracks.
func (d Dirs) Render() string { return filepath.Join(d.Root, "render") }

// SectionFile returns the JSON path for one parsed section.
func (d Dirs) SectionFile(index int, slug string) string {
	return filepath.Join(d.Sections(), fmt.Sprintf("%02d-%s.json", index, slug))
}

// TranslationFile returns the JSON path for one translated section.
func (d Dirs) TranslationFile(index int, slug string) string {
	return filepath.Join(d.Translated(), fmt.Sprintf("%02d-%s.json", index, slug))
}

// TrackFile returns the rendered track path for one section.
func (d Dirs) TrackFile(index int, slug, ext string) string {
	return filepath.Join(d.Render(), fmt.Sprintf("%02d-%s.%s", index, slug, ext))
}

// Ensure creates the staging root and all artifact subdirectories.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Root, d.Sections(), d.Translated(), d.Clips(), d.Render()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create staging directory %q: %w", dir, err)
		}
	}
	return nil
}

// Remove deletes the item's entire staging tree.
func (d Dirs) Remove() error {
	if d.Root == "" {
		return nil
	}
	return os.RemoveAll(d.Root)
}
