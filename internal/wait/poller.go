package wait

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/v0xg/surveydriver/internal/browser"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// ErrTimedOut is matched by every *TimeoutError
var ErrTimedOut = errors.New("timed out")

// TimeoutError reports a condition that never became true
type TimeoutError struct {
	Condition string
	URL       string
	Elapsed   time.Duration
	// Last is the most recent error raised by the predicate, if any
	Last error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s in %s", e.Elapsed, e.Condition, e.URL)
	if e.Last != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.Last)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimedOut
}

// Options configures a Poller
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Clock    Clock
	Logger   *slog.Logger
}

// Poller evaluates conditions against one driver until they hold
type Poller struct {
	driver browser.Driver
	opts   Options
}

// NewPoller fills unset options with defaults
func NewPoller(d browser.Driver, opts Options) *Poller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Poller{driver: d, opts: opts}
}

func (p *Poller) Clock() Clock            { return p.opts.Clock }
func (p *Poller) Timeout() time.Duration  { return p.opts.Timeout }
func (p *Poller) Interval() time.Duration { return p.opts.Interval }

// Since returns the time elapsed since t on the poller's clock
func (p *Poller) Since(t time.Time) time.Duration {
	return p.opts.Clock.Now().Sub(t)
}

// Await evaluates c immediately and then once per interval until it holds
// or the timeout elapses. Predicate errors count as "not yet" unless they
// mean the session is gone or the condition declares them final.
func (p *Poller) Await(c Condition) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = p.opts.Timeout
	}
	interval := c.Interval
	if interval <= 0 {
		interval = p.opts.Interval
	}

	clock := p.opts.Clock
	start := clock.Now()
	var last error
	for polls := 1; ; polls++ {
		ok, err := c.eval(p.driver)
		switch {
		case err == nil && ok:
			p.opts.Logger.Debug("condition met", "condition", c.desc, "polls", polls)
			return nil
		case err != nil && browser.IsSessionLost(err):
			return fmt.Errorf("waiting for %s: %w", c.desc, err)
		case err != nil && c.stop != nil && c.stop(err):
			return fmt.Errorf("waiting for %s: %w", c.desc, err)
		case err != nil:
			last = err
		}

		elapsed := clock.Now().Sub(start)
		if elapsed >= timeout {
			url, _ := p.driver.URL()
			return &TimeoutError{Condition: c.desc, URL: url, Elapsed: elapsed, Last: last}
		}
		sleep := interval
		if remaining := timeout - elapsed; remaining < sleep {
			sleep = remaining
		}
		clock.Sleep(sleep)
	}
}
