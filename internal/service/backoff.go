package service

import (
	"context"
	"errors"
	"time"
)

// errWaitBudgetExhausted is returned when a polled operation did not reach a
// terminal value within the configured total wait budget.
var errWaitBudgetExhausted = errors.New("confirmation wait budget exhausted")

// pollUntil polls fn with exponential backoff (initial doubling up to a ceiling)
// until fn reports done, fn fails, the context ends, or the total budget is
// exhausted. Waiting for a backend confirmation is the only suspension point
// in the saga; it is bounded, never indefinite.
func pollUntil(ctx context.Context, initial, maxDelay, budget time.Duration, fn func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(budget)
	delay := initial

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().Add(delay).After(deadline) {
			return errWaitBudgetExhausted
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
