// Package flow implements the purchase steps: login, favorites selection,
// cart, checkout and payment confirmation. Steps drive the page exclusively
// through the locator package so they stay testable against fakes.
package flow

import (
	"errors"
	"fmt"

	"github.com/rmaia-dev/lotobot/internal/locator"
)

// Error is an automation failure: the site did not present what the flow
// needed to advance. It is expected and mapped to its own exit code, unlike
// programming errors or crashes.
type Error struct {
	Step   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Reason)
}

// failf builds a step failure.
func failf(step, format string, args ...interface{}) *Error {
	return &Error{Step: step, Reason: fmt.Sprintf(format, args...)}
}

// wrapFatal maps a dead page to a step failure and passes context errors
// through untouched.
func wrapFatal(step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, locator.ErrPageClosed) {
		return failf(step, "page closed: %v", err)
	}
	return err
}
