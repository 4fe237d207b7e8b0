package cloud

import "fmt"

// ProviderError represents a failed provider API call after the backend's
// retry policy has been exhausted. Code carries the provider-specific error
// code (e.g. an AWS error code) when one is available.
type ProviderError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
