package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"puhuri/internal/fileutil"
	"puhuri/internal/logging"
	"puhuri/internal/queue"
	"puhuri/internal/services"
	"puhuri/internal/textutil"
)

// libraryUnavailableErrors lists syscall errors that mean the output library
// filesystem dropped out rather than the item being bad.
var libraryUnavailableErrors = []error{
	syscall.ENODEV,
	syscall.ENOTCONN,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
	syscall.EIO,
	syscall.ESTALE,
}

// libraryUnavailable reports whether an error indicates an unreachable
// output library, typically a network mount that went away mid-run.
func libraryUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	for _, target := range libraryUnavailableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// routeToReview parks the staged tracks in the review directory and completes
// the item with a review flag so the queue surfaces it for manual handling.
func (o *Organizer) routeToReview(ctx context.Context, item *queue.Item, reason string, tracks []string, cause error) error {
	logger := logging.WithContext(ctx, o.logger)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Manual review required"
	}

	reviewDir := strings.TrimSpace(o.cfg.Paths.ReviewDir)
	if reviewDir == "" {
		return services.Wrap(services.ErrConfiguration, "organize", "resolve review dir",
			"Review directory not configured; set review_dir in your puhuri config", nil)
	}
	if err := os.MkdirAll(reviewDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "organize", "ensure review dir",
			"Failed to create review directory", err)
	}

	prefix := reviewFilenamePrefix(item)
	moved := 0
	for _, src := range tracks {
		target, err := nextAvailablePath(filepath.Join(reviewDir, prefix+"-"+filepath.Base(src)))
		if err != nil {
			return services.Wrap(services.ErrTransient, "organize", "allocate review filename",
				"Unable to allocate review filename", err)
		}
		if err := fileutil.MoveFile(src, target); err != nil {
			return services.Wrap(services.ErrTransient, "organize", "move to review",
				fmt.Sprintf("Failed to move %s into review directory", filepath.Base(src)), err)
		}
		moved++
		logger.Debug("track parked for review", logging.String("track", filepath.Base(target)))
	}
	if moved == 0 {
		return services.Wrap(services.ErrValidation, "organize", "move to review",
			"No rendered tracks available for review routing", nil)
	}

	item.NeedsReview = true
	item.ReviewReason = reason
	if strings.TrimSpace(item.ErrorMessage) == "" {
		if cause != nil {
			item.ErrorMessage = fmt.Sprintf("%s: %v", reason, cause)
		} else {
			item.ErrorMessage = reason
		}
	}
	item.FinalDir = reviewDir
	item.Status = queue.StatusCompleted
	item.SetProgress("Manual review", fmt.Sprintf("Moved %d tracks to review directory", moved), 100)

	logger.Warn("lesson parked for review",
		logging.String(logging.FieldLesson, item.LessonTitle),
		logging.String("reason", reason),
		logging.Int("tracks", moved),
		logging.Error(cause),
	)
	return nil
}

// reviewFilenamePrefix builds a stable prefix for parked tracks from the
// lesson slug and source fingerprint so lessons never collide in the shared
// review directory.
func reviewFilenamePrefix(item *queue.Item) string {
	prefix := textutil.SafeFilename(item.LessonTitle)
	fp := strings.TrimSpace(item.Fingerprint)
	if len(fp) > 8 {
		fp = fp[:8]
	}
	if fp != "" {
		prefix += "-" + fp
	}
	return prefix
}
