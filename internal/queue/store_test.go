package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"puhuri/internal/queue"
	"puhuri/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewLesson(ctx, "/lessons/kappale-1.md", "Kappale 1", "fingerprint-1")
	if err != nil {
		t.Fatalf("NewLesson failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.LessonTitle != "Kappale 1" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}

	found, err := store.FindByFingerprint(ctx, "fingerprint-1")
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found == nil || found.ID != item.ID {
		t.Fatalf("expected to find inserted item, got %#v", found)
	}
}

func TestNewLessonRequiresFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewLesson(ctx, "/lessons/no-fp.md", "No Fingerprint", ""); err == nil {
		t.Fatal("expected error when fingerprint missing")
	}
}

func TestNewLessonInfersTitleFromPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewLesson(ctx, "/lessons/kappale_02-ravintolassa.md", "", "fp-title")
	if err != nil {
		t.Fatalf("NewLesson failed: %v", err)
	}
	if item.LessonTitle != "kappale 02 ravintolassa" {
		t.Fatalf("unexpected inferred title: %q", item.LessonTitle)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"parsing", queue.StatusParsing, queue.StatusPending},
		{"translating", queue.StatusTranslating, queue.StatusParsed},
		{"synthesizing", queue.StatusSynthesizing, queue.StatusTranslated},
		{"assembling", queue.StatusAssembling, queue.StatusSynthesized},
		{"organizing", queue.StatusOrganizing, queue.StatusAssembled},
	}
	var ids []int64
	for i, tc := range cases {
		item, err := store.NewLesson(ctx, fmt.Sprintf("/lessons/%s.md", tc.name), fmt.Sprintf("Lesson-%s", tc.name), fmt.Sprintf("fingerprint-reset-%d", i))
		if err != nil {
			t.Fatalf("NewLesson failed: %v", err)
		}
		item.Status = tc.initialStatus
		item.ProgressStage = tc.name
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d items reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestItemsByStatusOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewLesson(ctx, "/lessons/a.md", "Lesson A", "fp-a"); err != nil {
		t.Fatalf("NewLesson failed: %v", err)
	}
	b, err := store.NewLesson(ctx, "/lessons/b.md", "Lesson B", "fp-b")
	if err != nil {
		t.Fatalf("NewLesson failed: %v", err)
	}
	b.Status = queue.StatusParsed
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	items, err := store.ItemsByStatus(ctx, queue.StatusParsed)
	if err != nil {
		t.Fatalf("ItemsByStatus failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one parsed item, got %d", len(items))
	}
	if items[0].LessonTitle != "Lesson B" {
		t.Fatalf("expected Lesson B, got %s", items[0].LessonTitle)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a, err := store.NewLesson(ctx, "/lessons/a.md", "Lesson A", "fp-a")
	if err != nil {
		t.Fatalf("NewLesson failed: %v", err)
	}
	b, err := store.NewLesson(ctx, "/lessons/b.md", "Lesson B", "fp-b")
	if err != nil {
		t.Fatalf("NewLesson failed: %v", err)
	}
	b.Status = queue.StatusParsed
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	c, err := store.NewLesson(ctx, "/lessons/c.md", "Lesson C", "fp-c")
	if err != nil {
		t.Fatalf("NewLesson failed: %v", err)
	}
	c.Status = queue.StatusFailed
	c.ErrorMessage = "boom"
	if err := store.Update(ctx, c); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != a.ID || items[1].ID != b.ID || items[2].ID != c.ID {
		t.Fatalf("expected order A,B,C, got IDs %d,%d,%d", items[0].ID, items[1].ID, items[2].ID)
	}

	filtered, err := store.List(ctx, queue.StatusParsed, queue.StatusFailed)
	if err != nil {
		t.Fatalf("Filtered list failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 items, got %d", len(filtered))
	}
	if filtered[0].ID != b.ID || filtered[1].ID != c.ID {
		t.Fatalf("unexpected filtered order: got %d,%d", filtered[0].ID, filtered[1].ID)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a, err := store.NewLesson(ctx, "/lessons/a.md", "ItemA", "fp-a")
	if err != nil {
		t.Fatalf("NewLesson: %v", err)
	}
	b, err := store.NewLesson(ctx, "/lessons/b.md", "ItemB", "fp-b")
	if err != nil {
		t.Fatalf("NewLesson: %v", err)
	}
	for _, item := range []*queue.Item{a, b} {
		item.Status = queue.StatusFailed
		item.ErrorMessage = "boom"
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 items retried, got %d", updated)
	}

	item, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected item A pending, got %s", item.Status)
	}
	if item.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", item.ErrorMessage)
	}

	// Mark B failed again and retry targeted selection.
	b.Status = queue.StatusFailed
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, err = store.RetryFailed(ctx, b.ID)
	if err != nil {
		t.Fatalf("RetryFailed targeted: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 item retried, got %d", updated)
	}
}

func TestRetryFailedIncludesReviewItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewLesson(ctx, "/lessons/review.md", "Needs Review", "fp-review")
	if err != nil {
		t.Fatalf("NewLesson: %v", err)
	}
	item.SetReview("section 2 has no sentences")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 item retried, got %d", updated)
	}

	after, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", after.Status)
	}
	if after.NeedsReview || after.ReviewReason != "" {
		t.Fatalf("expected review flags cleared, got needsReview=%v reason=%q", after.NeedsReview, after.ReviewReason)
	}
}

func TestUpdateHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewLesson(ctx, "/lessons/hb.md", "Heartbeat", "hb")
	if err != nil {
		t.Fatalf("NewLesson: %v", err)
	}
	item.Status = queue.StatusParsing
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.LastHeartbeat == nil {
		t.Fatal("expected last heartbeat to be set")
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	t.Run("all statuses", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)

		ctx := context.Background()
		past := time.Now().Add(-2 * time.Hour).UTC()
		cases := []struct {
			name       string
			processing queue.Status
			expected   queue.Status
		}{
			{"parsing", queue.StatusParsing, queue.StatusPending},
			{"translating", queue.StatusTranslating, queue.StatusParsed},
			{"synthesizing", queue.StatusSynthesizing, queue.StatusTranslated},
			{"assembling", queue.StatusAssembling, queue.StatusSynthesized},
			{"organizing", queue.StatusOrganizing, queue.StatusAssembled},
		}
		var ids []int64
		for i, tc := range cases {
			item, err := store.NewLesson(ctx, fmt.Sprintf("/lessons/stale-%s.md", tc.name), fmt.Sprintf("Stale-%s", tc.name), fmt.Sprintf("stale-%d", i))
			if err != nil {
				t.Fatalf("NewLesson: %v", err)
			}
			item.Status = tc.processing
			item.LastHeartbeat = &past
			if err := store.Update(ctx, item); err != nil {
				t.Fatalf("Update: %v", err)
			}
			ids = append(ids, item.ID)
		}

		count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-1*time.Hour))
		if err != nil {
			t.Fatalf("ReclaimStaleProcessing: %v", err)
		}
		if int(count) != len(cases) {
			t.Fatalf("expected %d items reclaimed, got %d", len(cases), count)
		}

		for idx, tc := range cases {
			updated, err := store.GetByID(ctx, ids[idx])
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if updated.Status != tc.expected {
				t.Fatalf("%s: expected status %s after reclaim, got %s", tc.name, tc.expected, updated.Status)
			}
			if updated.LastHeartbeat != nil {
				t.Fatalf("%s: expected heartbeat cleared, got %v", tc.name, updated.LastHeartbeat)
			}
		}
	})

	t.Run("filtered statuses", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)

		ctx := context.Background()
		past := time.Now().Add(-2 * time.Hour).UTC()

		translating, err := store.NewLesson(ctx, "/lessons/stale-translating.md", "Stale-Translating", "stale-translating")
		if err != nil {
			t.Fatalf("NewLesson translating: %v", err)
		}
		translating.Status = queue.StatusTranslating
		translating.LastHeartbeat = &past
		if err := store.Update(ctx, translating); err != nil {
			t.Fatalf("Update translating: %v", err)
		}

		synthesizing, err := store.NewLesson(ctx, "/lessons/stale-synthesizing.md", "Stale-Synthesizing", "stale-synthesizing")
		if err != nil {
			t.Fatalf("NewLesson synthesizing: %v", err)
		}
		synthesizing.Status = queue.StatusSynthesizing
		synthesizing.LastHeartbeat = &past
		if err := store.Update(ctx, synthesizing); err != nil {
			t.Fatalf("Update synthesizing: %v", err)
		}

		count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-1*time.Hour), queue.StatusSynthesizing)
		if err != nil {
			t.Fatalf("ReclaimStaleProcessing filtered: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 item reclaimed, got %d", count)
		}

		reclaimed, err := store.GetByID(ctx, synthesizing.ID)
		if err != nil {
			t.Fatalf("GetByID synthesizing: %v", err)
		}
		if reclaimed.Status != queue.StatusTranslated {
			t.Fatalf("expected synthesizing item rolled back to translated, got %s", reclaimed.Status)
		}
		if reclaimed.LastHeartbeat != nil {
			t.Fatalf("expected synthesizing heartbeat cleared, got %v", reclaimed.LastHeartbeat)
		}

		unchanged, err := store.GetByID(ctx, translating.ID)
		if err != nil {
			t.Fatalf("GetByID translating: %v", err)
		}
		if unchanged.Status != queue.StatusTranslating {
			t.Fatalf("expected translating item untouched, got %s", unchanged.Status)
		}
		if unchanged.LastHeartbeat == nil || !unchanged.LastHeartbeat.Equal(past) {
			t.Fatalf("expected translating heartbeat unchanged, got %v", unchanged.LastHeartbeat)
		}
	})
}

func TestUpdateProgressPreservesHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewLesson(ctx, "/lessons/hb-progress.md", "Heartbeat Progress", "hb-progress")
	if err != nil {
		t.Fatalf("NewLesson: %v", err)
	}
	item.Status = queue.StatusSynthesizing
	past := time.Now().Add(-5 * time.Minute).UTC()
	item.LastHeartbeat = &past
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	before, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID before progress: %v", err)
	}
	if before.LastHeartbeat == nil {
		t.Fatal("expected heartbeat set before progress update")
	}
	origHeartbeat := *before.LastHeartbeat

	before.ProgressStage = "Synthesize"
	before.ProgressPercent = 42.5
	before.ProgressMessage = "Rendering clips"
	if err := store.UpdateProgress(ctx, before); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	after, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID after progress: %v", err)
	}
	if after.LastHeartbeat == nil {
		t.Fatal("expected heartbeat preserved after progress update")
	}
	if !after.LastHeartbeat.Equal(origHeartbeat) {
		t.Fatalf("expected heartbeat unchanged, before %v after %v", origHeartbeat, after.LastHeartbeat)
	}
	if after.ProgressStage != "Synthesize" || after.ProgressMessage != "Rendering clips" {
		t.Fatalf("expected progress fields persisted, got stage=%q message=%q", after.ProgressStage, after.ProgressMessage)
	}
	if after.ProgressPercent != 42.5 {
		t.Fatalf("expected progress percent 42.5, got %f", after.ProgressPercent)
	}
}

func TestStatsAndHealthAggregateStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	seed := []struct {
		title  string
		status queue.Status
	}{
		{"Pending", queue.StatusPending},
		{"Working", queue.StatusSynthesizing},
		{"Done", queue.StatusCompleted},
		{"Broken", queue.StatusFailed},
		{"Attention", queue.StatusReview},
	}
	for i, entry := range seed {
		item, err := store.NewLesson(ctx, fmt.Sprintf("/lessons/%d.md", i), entry.title, fmt.Sprintf("fp-health-%d", i))
		if err != nil {
			t.Fatalf("NewLesson: %v", err)
		}
		item.Status = entry.status
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != len(seed) {
		t.Fatalf("expected total %d, got %d", len(seed), health.Total)
	}
	if health.Pending != 1 || health.Processing != 1 || health.Completed != 1 || health.Failed != 1 || health.Review != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}

func TestCheckHealthReportsIntegrity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewLesson(ctx, "/lessons/a.md", "Lesson A", "fp-a"); err != nil {
		t.Fatalf("NewLesson: %v", err)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("expected healthy database, got %+v", health)
	}
	if !health.IntegrityCheck {
		t.Fatalf("expected integrity check to pass, got %+v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", health.MissingColumns)
	}
	if health.TotalItems != 1 {
		t.Fatalf("expected 1 item, got %d", health.TotalItems)
	}
}

func TestClearVariants(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{queue.StatusPending, queue.StatusCompleted, queue.StatusFailed}
	for i, status := range statuses {
		item, err := store.NewLesson(ctx, fmt.Sprintf("/lessons/%d.md", i), fmt.Sprintf("Lesson-%d", i), fmt.Sprintf("fp-clear-%d", i))
		if err != nil {
			t.Fatalf("NewLesson: %v", err)
		}
		item.Status = status
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 completed removed, got %d", removed)
	}

	removed, err = store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 failed removed, got %d", removed)
	}

	removed, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 remaining item removed, got %d", removed)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Synthesizing "); !ok || status != queue.StatusSynthesizing {
		t.Fatalf("expected synthesizing, got %q ok=%v", status, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, ok := queue.ParseStatus(""); ok {
		t.Fatal("expected empty status to be rejected")
	}
}
