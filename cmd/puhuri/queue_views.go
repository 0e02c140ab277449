package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"puhuri/internal/queue"
)

// buildQueueStatusRows lists counts in lifecycle order; statuses outside the
// known set (from older schema versions) sort alphabetically at the end.
func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	remaining := make(map[queue.Status]int, len(stats))
	for status, count := range stats {
		remaining[status] = count
	}

	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := remaining[status]
		if !ok {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(string(status)), fmt.Sprintf("%d", count)})
		delete(remaining, status)
	}

	extras := make([]string, 0, len(remaining))
	for status := range remaining {
		extras = append(extras, string(status))
	}
	sort.Strings(extras)
	for _, status := range extras {
		rows = append(rows, []string{formatStatusLabel(status), fmt.Sprintf("%d", remaining[queue.Status(status)])})
	}
	return rows
}

func buildQueueListRows(items []*queue.Item) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]*queue.Item, len(items))
	copy(sorted, items)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		title := strings.TrimSpace(item.LessonTitle)
		if title == "" {
			source := strings.TrimSpace(item.SourcePath)
			if source != "" {
				title = filepath.Base(source)
			} else {
				title = "Unknown"
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			title,
			formatStatusLabel(string(item.Status)),
			formatDisplayTime(item.CreatedAt),
			formatFingerprint(item.Fingerprint),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format("2006-01-02 15:04")
}

func formatFingerprint(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if len(value) > 12 {
		return value[:12]
	}
	return value
}
