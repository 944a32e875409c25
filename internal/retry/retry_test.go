package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/surveydriver/internal/browser"
)

func TestDoSucceedsAfterTransientErrors(t *testing.T) {
	var slept []time.Duration
	var retried []int
	p := Policy{
		Backoff: 50 * time.Millisecond,
		Sleep:   func(d time.Duration) { slept = append(slept, d) },
		OnRetry: func(attempt int, err error) {
			retried = append(retried, attempt)
			assert.ErrorIs(t, err, browser.ErrStale)
		},
	}

	calls := 0
	err := p.Do(func(attempt int) error {
		assert.Equal(t, calls, attempt)
		calls++
		if calls < 3 {
			return fmt.Errorf("row: %w", browser.ErrStale)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond}, slept)
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	err := Policy{}.Do(func(int) error {
		calls++
		return browser.ErrNotFound
	})

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, DefaultAttempts, ex.Attempts)
	assert.Equal(t, DefaultAttempts, calls)
	assert.ErrorIs(t, err, browser.ErrNotFound)
	assert.Contains(t, err.Error(), "gave up after 5 attempts")
}

func TestDoStopsOnPermanentError(t *testing.T) {
	boom := errors.New("javascript exception")
	calls := 0
	err := Policy{Attempts: 3}.Do(func(int) error {
		calls++
		return boom
	})

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestDoCustomRetryable(t *testing.T) {
	calls := 0
	err := Policy{
		Attempts:  2,
		Retryable: func(err error) bool { return errors.Is(err, browser.ErrStale) },
	}.Do(func(int) error {
		calls++
		return browser.ErrNotFound
	})

	assert.ErrorIs(t, err, browser.ErrNotFound)
	var ex *ExhaustedError
	assert.False(t, errors.As(err, &ex))
	assert.Equal(t, 1, calls)
}
