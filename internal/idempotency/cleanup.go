// Package idempotency deduplicates transcription submissions that carry an
// Idempotency-Key header, caching the first response for replay.
package idempotency

import (
	"log/slog"
	"time"
)

// DefaultExpiry is how long a cached submission response stays replayable.
// A day comfortably outlives any client retry loop.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys deletes idempotency keys older than expiry so the store
// does not grow with every transcription ever submitted. Returns the number
// of keys deleted.
func CleanupOldKeys(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("failed to cleanup old idempotency keys", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.Info("cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
	}

	return deleted, nil
}

// RunPeriodicCleanup runs CleanupOldKeys on a ticker until stopChan closes.
// It blocks, so the server starts it in a goroutine and closes the channel
// during shutdown. An initial sweep runs immediately to clear keys that
// accumulated while the server was down.
func RunPeriodicCleanup(repo Repository, interval time.Duration, expiry time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldKeys(repo, expiry); err != nil {
		slog.Error("initial cleanup failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldKeys(repo, expiry); err != nil {
				slog.Error("periodic cleanup failed", "error", err)
			}
		case <-stopChan:
			slog.Info("stopping periodic cleanup")
			return
		}
	}
}
