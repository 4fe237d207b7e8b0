package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
)

// isRetryable determines if an error is transient and warrants a retry.
// Throttling and server-side codes are retried; request errors (bad
// parameters, missing resources, permission failures) fail fast.
func isRetryable(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "RequestLimitExceeded",
			"Throttling",
			"ThrottlingException",
			"SnapshotCreationPerVolumeRateExceeded",
			"InternalError",
			"ServiceUnavailable",
			"RequestTimeout":
			return true
		}
		return request.IsErrorThrottle(err) || request.IsErrorRetryable(err)
	}
	// No SDK error code (e.g. DNS failure, connection reset): assume a
	// transient network issue and retry.
	return true
}

// providerError wraps a failed call into a cloud.ProviderError, preserving
// the SDK error code when one exists.
func providerError(op string, err error) *cloud.ProviderError {
	pe := &cloud.ProviderError{Op: op, Message: err.Error(), Err: err}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		pe.Code = aerr.Code()
		pe.Message = aerr.Message()
	}
	return pe
}

// ExecuteAction wraps a function with retry logic: exponential backoff,
// jitter and a per-operation timeout.
//
// opName is used for logging and debugging purposes.
// operation is the function to execute; it must accept a context to support
// cancellation.
func ExecuteAction(ctx context.Context, cfg cloud.RetryConfig, opName string, operation func(ctx context.Context) error) error {
	// Enforce the global operation timeout so the retry loop cannot run
	// indefinitely.
	ctx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()

	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%s timed out before attempt %d: %w", opName, attempt+1, ctx.Err())
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr // Permanent error, fail fast.
		}

		if attempt == cfg.MaxRetries {
			break
		}

		slog.Warn("Transient error detected, scheduling retry",
			"operation", opName,
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"error", lastErr)

		// Exponential backoff with jitter to avoid thundering-herd retry
		// storms across concurrent workers.
		backoff := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		sleepDuration := time.Duration(backoff) + jitter
		sleepDuration = min(sleepDuration, cfg.MaxDelay)

		select {
		case <-time.After(sleepDuration):
			continue
		case <-ctx.Done():
			return fmt.Errorf("%s context cancelled during backoff: %w", opName, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d retries: %w", opName, cfg.MaxRetries, lastErr)
}
