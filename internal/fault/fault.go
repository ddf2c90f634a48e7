// Package fault attaches package-level sentinel errors to underlying causes.
//
// A wrapped error matches both its sentinel and its cause under [errors.Is]
// and [errors.As], so callers can branch on the coarse category (e.g.
// build.ErrBuild) while the message keeps the full diagnostic chain.
//
//	if err := ctr.Stop(ctx); err != nil {
//	    return fault.Wrap(runtime.ErrRuntime, err)
//	}
package fault

import (
	"errors"
	"fmt"
)

// An error that belongs to a sentinel category and carries a cause.
type wrapped struct {
	sentinel error
	cause    error
}

// Wraps err under the given sentinel.
//
// Returns nil when err is nil. The message has the form "sentinel: cause".
func Wrap(sentinel, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{sentinel: sentinel, cause: err}
}

// Formats a cause and wraps it under the given sentinel.
//
// The format string follows [fmt.Errorf] rules, so a %w verb keeps the
// formatted argument in the chain as well.
func Wrapf(sentinel error, format string, args ...any) error {
	return &wrapped{sentinel: sentinel, cause: fmt.Errorf(format, args...)}
}

// Returns the sentinel message followed by the cause.
func (w *wrapped) Error() string {
	return w.sentinel.Error() + ": " + w.cause.Error()
}

// Exposes both the sentinel and the cause to [errors.Is] and [errors.As].
func (w *wrapped) Unwrap() []error {
	return []error{w.sentinel, w.cause}
}

// Reports whether err belongs to any of the given sentinels.
func IsAny(err error, sentinels ...error) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
