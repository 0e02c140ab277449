package testsupport

import (
	"context"
	"testing"

	"puhuri/internal/config"
	"puhuri/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewLesson creates a new lesson item for tests using the provided store.
func NewLesson(t testing.TB, store *queue.Store, sourcePath, title, fingerprint string) *queue.Item {
	t.Helper()

	item, err := store.NewLesson(context.Background(), sourcePath, title, fingerprint)
	if err != nil {
		t.Fatalf("store.NewLesson: %v", err)
	}
	return item
}
