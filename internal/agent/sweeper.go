package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/unichat/internal/store"
)

const sweepInterval = 5 * time.Minute

// StartSessionSweeper runs a background goroutine that periodically deletes
// chat sessions idle for longer than ttl and drops idle rate limiters.
func StartSessionSweeper(ctx context.Context, repo store.Repository, ttl time.Duration, limiter *RateLimiter) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpiredSessions(ctx, repo, ttl, limiter)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, repo store.Repository, ttl time.Duration, limiter *RateLimiter) {
	deleted, err := repo.CleanupExpiredSessions(ctx, ttl)
	if err != nil {
		slog.Error("Session sweeper failed to delete expired sessions", "error", err)
	} else if deleted > 0 {
		slog.Info("Session sweeper removed expired sessions", "count", deleted)
	}

	if evicted := limiter.Evict(); evicted > 0 {
		slog.Debug("Session sweeper evicted idle rate limiters", "count", evicted)
	}
}
