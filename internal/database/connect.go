package database

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxRetries = 3
	retryDelay = 1 * time.Second
)

// transientMarkers identify transport-level faults worth retrying. Anything
// else (constraint violations, malformed SQL, bad credentials) propagates
// immediately.
var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"timeout",
	"connection is closed",
	"database is locked",
	"bad connection",
}

// IsRetryable reports whether an error looks like a transient transport
// fault rather than a permanent one.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ConnectWithRetry opens a gorm connection to the named database, retrying
// transient failures up to maxRetries attempts with a linear backoff of
// retryDelay * attempt between them.
func ConnectWithRetry(ctx context.Context, name, dsn string) (*gorm.DB, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			delay := retryDelay * time.Duration(attempt-1)
			log.Printf("Database %s: retrying connect (attempt %d/%d) after %v: %v",
				name, attempt, maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err == nil {
			return db, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// RunWithRetry applies the connect retry policy to a single database
// operation. Non-retryable errors short-circuit.
func RunWithRetry(ctx context.Context, name string, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			delay := retryDelay * time.Duration(attempt-1)
			log.Printf("Database %s: retrying operation (attempt %d/%d) after %v: %v",
				name, attempt, maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := op()
		if err == nil {
			return nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}

	return lastErr
}
