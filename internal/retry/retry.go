// Package retry holds the one retry policy used for re-resolving page
// elements: a small attempt budget spent on transient browser errors.
package retry

import (
	"fmt"
	"time"

	"github.com/v0xg/surveydriver/internal/browser"
)

// DefaultAttempts is the retry budget for one operation
const DefaultAttempts = 5

// ExhaustedError means every attempt in the budget failed transiently
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Policy decides how often and on which errors to retry
type Policy struct {
	Attempts int
	Backoff  time.Duration
	Sleep    func(time.Duration)
	// Retryable defaults to browser.IsTransient
	Retryable func(error) bool
	// OnRetry runs before each attempt after the first
	OnRetry func(attempt int, err error)
}

// Do calls fn with attempt numbers starting at 0 until it succeeds,
// returns an error that is not retryable, or the budget is spent.
func (p Policy) Do(fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = browser.IsTransient
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, err)
			}
			if p.Backoff > 0 {
				sleep(p.Backoff)
			}
		}
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: err}
}
