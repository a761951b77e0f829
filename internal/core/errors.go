package core

import (
	"errors"
	"fmt"
)

// ErrPricingUnavailable marks a live pricing fetch that was required and failed.
var ErrPricingUnavailable = errors.New("pricing data unavailable")

// ConfigError reports an explicitly supplied setting that cannot be used,
// such as a malformed directory override or an unreadable settings file.
type ConfigError struct {
	Setting string
	Value   string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid %s %q: %s", e.Setting, e.Value, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InputError reports a user-supplied parameter rejected before processing.
type InputError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }
