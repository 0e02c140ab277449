package main

import (
	"testing"

	"puhuri/internal/queue"
)

func TestBuildQueueStatusRowsLifecycleOrder(t *testing.T) {
	stats := map[queue.Status]int{
		queue.StatusCompleted:    2,
		queue.StatusPending:      3,
		queue.StatusReview:       1,
		queue.Status("archived"): 9,
	}

	rows := buildQueueStatusRows(stats)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}

	want := [][]string{
		{"Pending", "3"},
		{"Completed", "2"},
		{"Review", "1"},
		{"Archived", "9"},
	}
	for i, row := range rows {
		if row[0] != want[i][0] || row[1] != want[i][1] {
			t.Fatalf("row %d = %v, want %v", i, row, want[i])
		}
	}
}

func TestBuildQueueStatusRowsEmpty(t *testing.T) {
	if rows := buildQueueStatusRows(nil); rows != nil {
		t.Fatalf("expected nil rows for empty stats, got %v", rows)
	}
}

func TestBuildQueueListRowsNewestFirst(t *testing.T) {
	items := []*queue.Item{
		{ID: 1, LessonTitle: "Kappale 1", Status: queue.StatusCompleted},
		{ID: 2, LessonTitle: "Kappale 2", Status: queue.StatusPending},
	}

	rows := buildQueueListRows(items)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "2" || rows[1][0] != "1" {
		t.Fatalf("expected newest item first, got %v", rows)
	}
	if rows[0][4] != "-" {
		t.Fatalf("expected placeholder fingerprint, got %q", rows[0][4])
	}
}
