package policy

import (
	"errors"
	"fmt"
)

// ErrNotManaged signals that an instance carries no affirmative
// Shutter-Enable tag and must be skipped entirely by the caller.
var ErrNotManaged = errors.New("instance is not managed by shutter")

// ConfigError reports a malformed or unrecognized policy override. The
// instance that produced it is skipped, never silently defaulted: a typo
// must not revert a value the operator explicitly tried to change.
type ConfigError struct {
	Tag    string // offending tag or field name
	Value  string // raw value as seen on the instance / in the config
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid policy override %s=%q: %s", e.Tag, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid policy configuration for %s: %s", e.Tag, e.Reason)
}

// PolicyValidationError reports an offsite policy that is structurally
// parseable but semantically unusable (e.g. encrypt without a key id).
// Only the offsite step is skipped; local steps proceed.
type PolicyValidationError struct {
	Field  string
	Reason string
}

func (e *PolicyValidationError) Error() string {
	return fmt.Sprintf("offsite policy invalid (%s): %s", e.Field, e.Reason)
}
