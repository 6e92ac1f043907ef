package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastWait = WaitPolicy{Interval: time.Millisecond, MaxAttempts: 5}

func TestWaitUntilSettles(t *testing.T) {
	attempts := 0
	got, err := WaitUntil(context.Background(), fastWait,
		func(ctx context.Context) (string, error) {
			attempts++
			if attempts < 3 {
				return "Pending", nil
			}
			return "Active", nil
		},
		func(s string) bool { return s == "Active" },
	)
	require.NoError(t, err)
	assert.Equal(t, "Active", got)
	assert.Equal(t, 3, attempts)
}

func TestWaitUntilExhaustionFails(t *testing.T) {
	_, err := WaitUntil(context.Background(), fastWait,
		func(ctx context.Context) (string, error) { return "Pending", nil },
		func(s string) bool { return false },
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestWaitUntilFetchErrorPropagates(t *testing.T) {
	boom := fmt.Errorf("throttled")
	_, err := WaitUntil(context.Background(), fastWait,
		func(ctx context.Context) (string, error) { return "", boom },
		func(s string) bool { return true },
	)
	assert.ErrorIs(t, err, boom)
}

func TestWaitUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitUntil(ctx, WaitPolicy{Interval: time.Minute, MaxAttempts: 5},
		func(ctx context.Context) (string, error) { return "Pending", nil },
		func(s string) bool { return false },
	)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitUntilLastSettledInitialSkipsFetch(t *testing.T) {
	fetches := 0
	got, err := WaitUntilLast(context.Background(), fastWait, "Enabled",
		func(ctx context.Context) (string, error) {
			fetches++
			return "Enabled", nil
		},
		func(s string) bool { return s == "Enabled" },
	)
	require.NoError(t, err)
	assert.Equal(t, "Enabled", got)
	assert.Zero(t, fetches)
}

func TestWaitUntilLastExhaustionReturnsLastObserved(t *testing.T) {
	got, err := WaitUntilLast(context.Background(), fastWait, "Creating",
		func(ctx context.Context) (string, error) { return "Creating", nil },
		func(s string) bool { return s == "Enabled" },
	)
	require.NoError(t, err)
	assert.Equal(t, "Creating", got)
}

func TestWaitUntilLastFetchErrorPropagates(t *testing.T) {
	boom := errors.New("gone")
	_, err := WaitUntilLast(context.Background(), fastWait, "Creating",
		func(ctx context.Context) (string, error) { return "", boom },
		func(s string) bool { return s == "Enabled" },
	)
	assert.ErrorIs(t, err, boom)
}
