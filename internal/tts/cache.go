package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"puhuri/internal/audio"
	"puhuri/internal/fileutil"
)

// Cache stores synthesized clips on disk as WAV files so re-renders of
// unchanged lessons skip engine calls entirely. Entries survive across runs.
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir. An empty dir disables the cache.
func NewCache(dir string) *Cache {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	return &Cache{dir: dir}
}

// Key derives the cache file name from everything that shapes the audio:
// the engine, the resolved voice, the language, the output rate, and the
// text itself.
func Key(engine, voice, language string, sampleRate int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s", engine, voice, language, sampleRate, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

// Load returns the cached clip for key. A miss is (nil, false, nil).
func (c *Cache) Load(key string) (*audio.Clip, bool, error) {
	if c == nil || key == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("clip cache: read entry: %w", err)
	}
	clip, err := audio.DecodeWAVBytes(data)
	if err != nil {
		return nil, false, fmt.Errorf("clip cache: decode entry %s: %w", key, err)
	}
	return clip, true, nil
}

// Store writes the clip under key.
func (c *Cache) Store(key string, clip *audio.Clip) error {
	if c == nil || key == "" {
		return nil
	}
	data, err := audio.EncodeWAVBytes(clip)
	if err != nil {
		return fmt.Errorf("clip cache: encode entry: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("clip cache: ensure directory: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.path(key), data, 0o644); err != nil {
		return fmt.Errorf("clip cache: write entry: %w", err)
	}
	return nil
}
