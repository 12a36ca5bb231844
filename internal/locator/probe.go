package locator

import (
	"context"
	"time"
)

// Condition is a point-in-time check polled by WaitUntil. It returns outcome
// true to stop waiting; an error aborts the wait immediately.
type Condition func(ctx context.Context) (bool, error)

// WaitUntil polls cond at the given interval until it succeeds or the budget
// expires. A final re-check runs after the last sleep so a condition that
// becomes true exactly at the deadline still counts. The page liveness check
// belongs inside cond; WaitUntil itself is transport-agnostic.
func WaitUntil(ctx context.Context, budget, interval time.Duration, cond Condition) (bool, error) {
	deadline := time.Now().Add(budget)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
	}
}
