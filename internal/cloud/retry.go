package cloud

import "time"

// RetryConfig defines the parameters for the exponential backoff and retry
// mechanism used by provider implementations.
type RetryConfig struct {
	// MaxRetries is the maximum number of additional attempts after the
	// initial failure.
	MaxRetries int

	// BaseDelay is the initial wait time before the first retry. It grows
	// exponentially with each attempt (BaseDelay * 2^attempt).
	BaseDelay time.Duration

	// MaxDelay caps the sleep duration between retries.
	MaxDelay time.Duration

	// OperationTimeout is the total time limit for one operation including
	// all of its retries.
	OperationTimeout time.Duration
}
