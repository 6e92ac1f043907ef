package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned by WaitUntil when a resource is still in a
// transient status after the attempt budget is spent.
var ErrWaitTimeout = errors.New("timed out waiting for resource to settle")

// WaitPolicy bounds a polling wait: a fixed sleep between re-fetches and a
// maximum number of fetch attempts.
type WaitPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Default waits for Lambda function state transitions. Creation and updates
// normally settle within seconds; the cap exists so a wedged function
// surfaces as an explicit failure instead of hanging forever.
var (
	DefaultCreateWait = WaitPolicy{Interval: time.Second, MaxAttempts: 300}
	DefaultUpdateWait = WaitPolicy{Interval: time.Second, MaxAttempts: 300}
	DefaultReadyWait  = WaitPolicy{Interval: 10 * time.Second, MaxAttempts: 10}
)

// WaitUntil sleeps for the policy interval, re-fetches, and repeats until
// settled returns true. Exhausting the attempt budget is a failure wrapping
// ErrWaitTimeout. Fetch errors propagate immediately.
func WaitUntil[T any](ctx context.Context, policy WaitPolicy, fetch func(context.Context) (T, error), settled func(T) bool) (T, error) {
	var last T
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := sleep(ctx, policy.Interval); err != nil {
			return last, err
		}
		var err error
		last, err = fetch(ctx)
		if err != nil {
			return last, err
		}
		if settled(last) {
			return last, nil
		}
	}
	return last, fmt.Errorf("%w after %d attempts", ErrWaitTimeout, policy.MaxAttempts)
}

// WaitUntilLast polls like WaitUntil but starts from an already-observed
// value and never fails on exhaustion: it returns the last observed value,
// which may still be transitioning. Callers opting into this variant accept
// acting on possibly stale state.
func WaitUntilLast[T any](ctx context.Context, policy WaitPolicy, initial T, fetch func(context.Context) (T, error), settled func(T) bool) (T, error) {
	current := initial
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if settled(current) {
			return current, nil
		}
		if err := sleep(ctx, policy.Interval); err != nil {
			return current, err
		}
		var err error
		current, err = fetch(ctx)
		if err != nil {
			return current, err
		}
	}
	return current, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait cancelled: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
