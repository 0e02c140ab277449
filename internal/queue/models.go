package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending      Status = "pending"
	StatusParsing      Status = "parsing"
	StatusParsed       Status = "parsed"
	StatusTranslating  Status = "translating"
	StatusTranslated   Status = "translated"
	StatusSynthesizing Status = "synthesizing"
	StatusSynthesized  Status = "synthesized"
	StatusAssembling   Status = "assembling"
	StatusAssembled    Status = "assembled"
	StatusOrganizing   Status = "organizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusReview       Status = "review"
)

var allStatuses = []Status{
	StatusPending,
	StatusParsing,
	StatusParsed,
	StatusTranslating,
	StatusTranslated,
	StatusSynthesizing,
	StatusSynthesized,
	StatusAssembling,
	StatusAssembled,
	StatusOrganizing,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusParsing:      {},
	StatusTranslating:  {},
	StatusSynthesizing: {},
	StatusAssembling:   {},
	StatusOrganizing:   {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions maps each in-flight status back to the completed
// status that precedes it, so interrupted items resume at the right stage.
var stageRollbackTransitions = []statusTransition{
	{from: StatusParsing, to: StatusPending},
	{from: StatusTranslating, to: StatusParsed},
	{from: StatusSynthesizing, to: StatusTranslated},
	{from: StatusAssembling, to: StatusSynthesized},
	{from: StatusOrganizing, to: StatusAssembled},
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID              int64
	SourcePath      string
	LessonTitle     string
	Status          Status
	Fingerprint     string
	StagingDir      string
	FinalDir        string
	SectionCount    int
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	NeedsReview     bool
	ReviewReason    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
// ProgressMessage is set to message, ProgressPercent is reset to 0, and
// ErrorMessage is cleared.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
// Use this instead of setting ProgressStage, ProgressPercent, and ProgressMessage individually.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
// Convenience method for stage completion.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// SetReview marks the item as needing manual attention with the given reason.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.ErrorMessage = reason
	i.ProgressPercent = 0
	i.ProgressMessage = reason
	i.LastHeartbeat = nil
	i.ProgressStage = "Review"
}
