package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"puhuri/internal/fileutil"
	"puhuri/internal/lesson"
	"puhuri/internal/logging"
	"puhuri/internal/queue"
)

// Discover returns the lesson markdown files rooted at path, sorted by name.
// A file path is returned as-is; a directory is scanned one level deep for
// markdown files.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("lesson path %s does not exist", path)
		}
		return nil, fmt.Errorf("stat lesson path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read lesson directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".md", ".markdown":
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no markdown lessons found in %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// EnqueueResult reports how each discovered lesson file was registered.
type EnqueueResult struct {
	// Added are newly created queue items.
	Added []*queue.Item
	// Retried are previously failed or review items reset to pending.
	Retried []*queue.Item
	// Existing are items already queued for processing.
	Existing []*queue.Item
	// Skipped are items already completed for identical content.
	Skipped []*queue.Item
}

// Enqueue registers lesson files on the queue, matching reruns by content
// fingerprint. Completed content is skipped unless force is set; failed and
// review items are reset to pending.
func (r *Runner) Enqueue(ctx context.Context, paths []string, force bool) (EnqueueResult, error) {
	var result EnqueueResult
	for _, path := range paths {
		item, disposition, err := r.enqueueOne(ctx, path, force)
		if err != nil {
			return result, err
		}
		switch disposition {
		case enqueueAdded:
			result.Added = append(result.Added, item)
		case enqueueRetried:
			result.Retried = append(result.Retried, item)
		case enqueueExisting:
			result.Existing = append(result.Existing, item)
		case enqueueSkipped:
			result.Skipped = append(result.Skipped, item)
		}
	}
	return result, nil
}

type enqueueDisposition int

const (
	enqueueAdded enqueueDisposition = iota
	enqueueRetried
	enqueueExisting
	enqueueSkipped
)

func (r *Runner) enqueueOne(ctx context.Context, path string, force bool) (*queue.Item, enqueueDisposition, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve lesson path: %w", err)
	}
	fingerprint, err := fileutil.HashFile(absPath)
	if err != nil {
		return nil, 0, fmt.Errorf("fingerprint lesson %s: %w", filepath.Base(absPath), err)
	}

	existing, err := r.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, 0, err
	}
	if existing == nil {
		item, err := r.store.NewLesson(ctx, absPath, lesson.TitleFromFilename(absPath), fingerprint)
		if err != nil {
			return nil, 0, err
		}
		r.logger.Info("lesson queued",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldLesson, item.LessonTitle),
		)
		return item, enqueueAdded, nil
	}

	// The same content may have moved on disk between runs.
	if existing.SourcePath != absPath {
		existing.SourcePath = absPath
		if err := r.store.Update(ctx, existing); err != nil {
			return nil, 0, err
		}
	}

	switch existing.Status {
	case queue.StatusFailed, queue.StatusReview:
		if _, err := r.store.RetryFailed(ctx, existing.ID); err != nil {
			return nil, 0, err
		}
		item, err := r.store.GetByID(ctx, existing.ID)
		if err != nil {
			return nil, 0, err
		}
		r.logger.Info("lesson requeued after failure",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldLesson, item.LessonTitle),
		)
		return item, enqueueRetried, nil
	case queue.StatusCompleted:
		if !force {
			r.logger.Debug("lesson already completed, skipping",
				logging.Int64(logging.FieldItemID, existing.ID),
				logging.String(logging.FieldLesson, existing.LessonTitle),
			)
			return existing, enqueueSkipped, nil
		}
		existing.Status = queue.StatusPending
		existing.ErrorMessage = ""
		existing.NeedsReview = false
		existing.ReviewReason = ""
		existing.SetProgress("", "Reprocess requested", 0)
		if err := r.store.Update(ctx, existing); err != nil {
			return nil, 0, err
		}
		r.logger.Info("lesson requeued for reprocessing",
			logging.Int64(logging.FieldItemID, existing.ID),
			logging.String(logging.FieldLesson, existing.LessonTitle),
		)
		return existing, enqueueRetried, nil
	default:
		if existing.IsProcessing() {
			// Left mid-stage by an interrupted run; the runner rolls it
			// back before draining.
			r.logger.Debug("lesson found mid-stage, will resume",
				logging.Int64(logging.FieldItemID, existing.ID),
				logging.String("status", string(existing.Status)),
			)
		}
		return existing, enqueueExisting, nil
	}
}
