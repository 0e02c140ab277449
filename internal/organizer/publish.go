package organizer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"puhuri/internal/fileutil"
)

// placeTrack copies one rendered track into the lesson directory. The data
// lands under a temporary name and is renamed into place after a verified
// copy and fsync, so the library never exposes a partial track.
func (o *Organizer) placeTrack(src, lessonDir string) (string, error) {
	target := filepath.Join(lessonDir, filepath.Base(src))
	if !o.cfg.Paths.OverwriteExisting {
		resolved, err := nextAvailablePath(target)
		if err != nil {
			return "", err
		}
		target = resolved
	}

	tmp := filepath.Join(lessonDir, "."+filepath.Base(target)+".partial")
	if err := fileutil.CopyFileVerified(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := syncFile(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return target, nil
}

// syncFile flushes a freshly copied file to disk before it is renamed into
// the library.
func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// nextAvailablePath returns path when nothing occupies it, otherwise the
// first "<name>-N<ext>" variant that is free, so earlier runs' output stays
// intact when overwriting is disabled.
func nextAvailablePath(path string) (string, error) {
	const maxAttempts = 10000
	taken, err := pathExists(path)
	if err != nil {
		return "", err
	}
	if !taken {
		return path, nil
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for attempt := 2; attempt <= maxAttempts; attempt++ {
		candidate := fmt.Sprintf("%s-%d%s", base, attempt, ext)
		taken, err := pathExists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("exhausted filename slots for %s", path)
}

func pathExists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
