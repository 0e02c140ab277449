package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"puhuri/internal/config"
)

const userAgent = "Puhuri/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRunStarted(ctx context.Context, count int) error
	NotifyLessonCompleted(ctx context.Context, title string, sections int, duration time.Duration) error
	NotifyRunCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyReviewRequired(ctx context.Context, title, reason string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
		events: eventToggles{
			run:    cfg.Notifications.Run,
			lesson: cfg.Notifications.Lesson,
			review: cfg.Notifications.Review,
			errors: cfg.Notifications.Errors,
		},
	}
}

type eventToggles struct {
	run    bool
	lesson bool
	review bool
	errors bool
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	events   eventToggles
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, count int) error {
	if !n.events.run {
		return nil
	}
	noun := "lessons"
	if count == 1 {
		noun = "lesson"
	}
	data := payload{
		title:   "Puhuri - Run Started",
		message: fmt.Sprintf("Started processing %d %s", count, noun),
		tags:    []string{"puhuri", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLessonCompleted(ctx context.Context, title string, sections int, duration time.Duration) error {
	if !n.events.lesson {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Puhuri - Lesson Complete",
		message: fmt.Sprintf("🔊 %s: %d sections rendered in %s", title, sections, durationText(duration)),
		tags:    []string{"puhuri", "lesson", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.events.run {
		return nil
	}

	var message string
	var title string
	if failed == 0 {
		title = "Puhuri - Run Complete"
		message = fmt.Sprintf("Run complete: %d lessons processed in %s", processed, durationText(duration))
	} else {
		title = "Puhuri - Run Complete (with errors)"
		message = fmt.Sprintf("Run complete: %d succeeded, %d failed in %s", processed, failed, durationText(duration))
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"puhuri", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewRequired(ctx context.Context, title, reason string) error {
	if !n.events.review {
		return nil
	}
	title = strings.TrimSpace(title)
	reason = strings.TrimSpace(reason)
	message := fmt.Sprintf("Needs review: %s", title)
	if reason != "" {
		message = fmt.Sprintf("%s\nReason: %s", message, reason)
	}
	data := payload{
		title:   "Puhuri - Review Required",
		message: message,
		tags:    []string{"puhuri", "review"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.events.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Puhuri - Error",
		message:  builder.String(),
		tags:     []string{"puhuri", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Puhuri - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"puhuri", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func durationText(duration time.Duration) string {
	duration = duration.Round(time.Second)
	if duration <= 0 {
		return "0s"
	}
	return duration.String()
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, int) error { return nil }
func (noopService) NotifyLessonCompleted(context.Context, string, int, time.Duration) error {
	return nil
}
func (noopService) NotifyRunCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyReviewRequired(context.Context, string, string) error        { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
