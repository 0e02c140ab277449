package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"puhuri/internal/config"
	"puhuri/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunStarted(context.Background(), 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "run started",
			notify: func(svc notifications.Service) error {
				return svc.NotifyRunStarted(context.Background(), 3)
			},
			expectTitle:   "Puhuri - Run Started",
			expectMessage: "Started processing 3 lessons",
			expectTags:    "puhuri,run,started",
		},
		{
			name: "single lesson run",
			notify: func(svc notifications.Service) error {
				return svc.NotifyRunStarted(context.Background(), 1)
			},
			expectTitle:   "Puhuri - Run Started",
			expectMessage: "Started processing 1 lesson",
			expectTags:    "puhuri,run,started",
		},
		{
			name: "lesson completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyLessonCompleted(context.Background(), "Kappale 6", 4, 95*time.Second)
			},
			expectTitle:   "Puhuri - Lesson Complete",
			expectMessage: "🔊 Kappale 6: 4 sections rendered in 1m35s",
			expectTags:    "puhuri,lesson,completed",
		},
		{
			name: "run completed clean",
			notify: func(svc notifications.Service) error {
				return svc.NotifyRunCompleted(context.Background(), 2, 0, 3*time.Minute)
			},
			expectTitle:   "Puhuri - Run Complete",
			expectMessage: "Run complete: 2 lessons processed in 3m0s",
			expectTags:    "puhuri,run,completed",
		},
		{
			name: "run completed with failures",
			notify: func(svc notifications.Service) error {
				return svc.NotifyRunCompleted(context.Background(), 2, 1, 3*time.Minute)
			},
			expectTitle:   "Puhuri - Run Complete (with errors)",
			expectMessage: "Run complete: 2 succeeded, 1 failed in 3m0s",
			expectTags:    "puhuri,run,completed",
		},
		{
			name: "review required",
			notify: func(svc notifications.Service) error {
				return svc.NotifyReviewRequired(context.Background(), "Kappale 7", "no sections found")
			},
			expectTitle:   "Puhuri - Review Required",
			expectMessage: "Needs review: Kappale 7\nReason: no sections found",
			expectTags:    "puhuri,review",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("engine unavailable"), "synthesize")
			},
			expectTitle:    "Puhuri - Error",
			expectMessage:  "❌ Error with synthesize: engine unavailable",
			expectTags:     "puhuri,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Run = false
	cfg.Notifications.Lesson = false
	cfg.Notifications.Review = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyRunStarted(ctx, 1); err != nil {
		t.Fatalf("disabled run event: %v", err)
	}
	if err := svc.NotifyLessonCompleted(ctx, "Kappale 1", 2, time.Minute); err != nil {
		t.Fatalf("disabled lesson event: %v", err)
	}
	if err := svc.NotifyRunCompleted(ctx, 1, 0, time.Minute); err != nil {
		t.Fatalf("disabled run completed event: %v", err)
	}
	if err := svc.NotifyReviewRequired(ctx, "Kappale 1", "reason"); err != nil {
		t.Fatalf("disabled review event: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "stage"); err != nil {
		t.Fatalf("disabled error event: %v", err)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
