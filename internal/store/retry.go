package store

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// isConflictError reports SQLITE_BUSY or "database is locked" errors, both of
// which clear once the competing writer finishes.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withConflictRetry runs op up to attempts times, backing off exponentially
// from baseDelay while the database reports a lock conflict.
func withConflictRetry(ctx context.Context, name string, attempts int, baseDelay time.Duration, op func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil || !isConflictError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("database locked, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
