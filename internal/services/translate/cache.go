package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"puhuri/internal/fileutil"
)

// Record is the persisted sidecar for one translated section. SourceHash is
// the sha256 of the section body the pairs were produced from; a matching
// hash on a later run means the LLM call can be skipped.
type Record struct {
	Lesson       string    `json:"lesson,omitempty"`
	SectionIndex int       `json:"section_index"`
	SectionTitle string    `json:"section_title"`
	SectionType  string    `json:"section_type"`
	SourceHash   string    `json:"source_hash"`
	Model        string    `json:"model,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Pairs        []Pair    `json:"sentences"`
}

// Fresh reports whether the record can satisfy a section whose body hashes
// to sourceHash.
func (r *Record) Fresh(sourceHash string) bool {
	return r != nil && r.SourceHash != "" && r.SourceHash == sourceHash && len(r.Pairs) > 0
}

// LoadRecord reads a translation sidecar. A missing file returns (nil, nil).
func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read translation record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse translation record %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// StoreRecord writes a translation sidecar atomically.
func StoreRecord(path string, rec *Record) error {
	if rec == nil {
		return errors.New("store translation record: nil record")
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode translation record: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write translation record: %w", err)
	}
	return nil
}
