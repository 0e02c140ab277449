package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"puhuri/internal/logging"
)

// CleanStaleResult contains the outcome of a staging cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes staging directories older than maxAge.
// It returns the list of removed directories and any errors encountered.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(dirPath); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
				if logger != nil {
					logger.Warn("failed to remove stale staging directory",
						logging.String("path", dirPath),
						logging.Error(err),
					)
				}
			} else {
				result.Removed = append(result.Removed, dirPath)
				if logger != nil {
					logger.Info("removed stale staging directory",
						logging.String("path", dirPath),
						logging.Duration("age", time.Since(info.ModTime())),
					)
				}
			}
		}
	}

	return result
}

// CleanOrphaned removes item staging directories whose leading queue ID is
// no longer active. Directories that do not follow the <id>-<slug> naming
// are left for stale cleanup.
func CleanOrphaned(ctx context.Context, stagingDir string, activeIDs map[int64]struct{}, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id, ok := parseItemID(entry.Name())
		if !ok {
			continue
		}
		if _, active := activeIDs[id]; active {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned staging directory",
					logging.String("path", dirPath),
					logging.Error(err),
				)
			}
		} else {
			result.Removed = append(result.Removed, dirPath)
			if logger != nil {
				logger.Info("removed orphaned staging directory",
					logging.String("path", dirPath),
					logging.Int64("item_id", id),
				)
			}
		}
	}

	return result
}

func parseItemID(dirName string) (int64, bool) {
	idPart, _, found := strings.Cut(dirName, "-")
	if !found {
		idPart = dirName
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListDirectories returns all directories in the staging directory with their metadata.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		size, _ := dirSize(dirPath)

		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}

	return dirs, nil
}

// DirInfo contains metadata about a staging directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
