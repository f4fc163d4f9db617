package testsupport

import (
	"context"
	"fmt"
	"testing"

	"kpid/internal/config"
	"kpid/internal/queue"
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

// NewModeration enqueues a moderation record for tests using the provided store.
func NewModeration(t testing.TB, store *queue.Store, userID, videoKey string) *queue.Item {
	t.Helper()

	item, err := store.NewModeration(context.Background(), queue.Submission{
		UserID:   userID,
		Filename: fmt.Sprintf("%s.mp4", videoKey),
		VideoKey: videoKey,
	})
	if err != nil {
		t.Fatalf("store.NewModeration: %v", err)
	}
	return item
}
