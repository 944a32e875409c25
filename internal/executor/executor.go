package executor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/locate"
	"github.com/v0xg/surveydriver/internal/retry"
	"github.com/v0xg/surveydriver/internal/wait"
)

// Options configures execution behavior
type Options struct {
	Policy retry.Policy
	// BlockerID names an element that swallows clicks while it is shown
	BlockerID string
	// InputTag is the tag of the text box that TypeAndSubmit waits for
	InputTag string
	// InputTimeout bounds the wait for that text box; zero means the poller's timeout
	InputTimeout time.Duration
	// RebuildMarker is the console message the page logs when it rebuilds its table
	RebuildMarker string
	// Out receives verdict lines, stdout by default
	Out    io.Writer
	Logger *slog.Logger
}

// Stats counts logical actions, not protocol calls
type Stats struct {
	Clicks   int
	Submits  int
	Retries  int
	Warnings int
}

// Executor performs actions against targets on one page
type Executor struct {
	locator *locate.Locator
	poller  *wait.Poller
	driver  browser.Driver
	opts    Options
	latch   *StartLatch
	stats   Stats
}

func New(d browser.Driver, loc *locate.Locator, p *wait.Poller, opts Options) *Executor {
	if opts.InputTag == "" {
		opts.InputTag = "input"
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{driver: d, locator: loc, poller: p, opts: opts, latch: &StartLatch{}}
}

// Latch returns the first-click latch of the current iteration
func (x *Executor) Latch() *StartLatch { return x.latch }

// ResetLatch starts a new iteration
func (x *Executor) ResetLatch() { x.latch = &StartLatch{} }

func (x *Executor) Stats() Stats { return x.stats }

// Do resolves the action's target and acts on it
func (x *Executor) Do(a Action, url string) error {
	el, err := x.locator.Locate(a.Target)
	if err != nil {
		return &StepError{Action: a, URL: url, Err: err}
	}
	return x.Act(el, a, url)
}

// Act waits for el to be clickable, clicks it and, for TypeAndSubmit,
// fills in the text box that appears afterwards. Failures entering text
// are returned as *SoftError.
func (x *Executor) Act(el browser.Element, a Action, url string) error {
	log := x.opts.Logger.With("row", a.Target.RowKey, "cell", a.Target.Cell, "tag", a.Target.Tag)

	el, err := x.awaitClickable(el, a.Target)
	if err != nil {
		return &StepError{Action: a, URL: url, Err: err}
	}
	if x.opts.BlockerID != "" {
		if err := x.poller.Await(wait.Hidden(browser.ByID, x.opts.BlockerID)); err != nil {
			return &StepError{Action: a, URL: url, Err: err}
		}
	}
	if err := x.click(el, a.Target, log); err != nil {
		return &StepError{Action: a, URL: url, Err: err}
	}

	switch a.Type {
	case Click:
		x.stats.Clicks++
		return nil
	case TypeAndSubmit:
		if err := x.enter(a, url); err != nil {
			return err
		}
		x.stats.Submits++
		return nil
	default:
		return &StepError{Action: a, URL: url, Err: fmt.Errorf("unknown action type: %s", a.Type)}
	}
}

// relocatable reports errors a fresh lookup may cure. A failed lookup
// has already spent its own budget and is final.
func relocatable(err error) bool {
	var f *locate.Failure
	if errors.As(err, &f) {
		return false
	}
	return browser.IsTransient(err) || errors.Is(err, wait.ErrTimedOut)
}

func (x *Executor) policy(retryable func(error) bool, onRetry func(int, error)) retry.Policy {
	p := x.opts.Policy
	p.Retryable = retryable
	p.OnRetry = func(attempt int, err error) {
		x.stats.Retries++
		onRetry(attempt, err)
	}
	return p
}

func (x *Executor) awaitClickable(el browser.Element, t locate.Target) (browser.Element, error) {
	p := x.policy(relocatable, func(attempt int, err error) {
		x.opts.Logger.Info("element not clickable, re-locating", "target", t.String(), "attempt", attempt, "error", err)
	})
	err := p.Do(func(attempt int) error {
		if attempt > 0 {
			fresh, err := x.locator.Locate(t)
			if err != nil {
				return err
			}
			el = fresh
		}
		return x.poller.Await(wait.Clickable(el, "row "+t.RowKey+" "+t.Cell+" "+t.Tag))
	})
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (x *Executor) click(el browser.Element, t locate.Target, log *slog.Logger) error {
	stale := func(err error) bool {
		var f *locate.Failure
		return !errors.As(err, &f) && errors.Is(err, browser.ErrStale)
	}
	p := x.policy(stale, func(attempt int, err error) {
		log.Info("click hit a stale element, re-locating", "attempt", attempt)
		if x.opts.RebuildMarker == "" {
			return
		}
		if entries, cerr := x.driver.ConsoleLog(); cerr == nil {
			log.Info("table rebuilds logged", "count", browser.CountContaining(entries, x.opts.RebuildMarker))
		}
	})
	err := p.Do(func(attempt int) error {
		if attempt > 0 {
			fresh, err := x.locator.Locate(t)
			if err != nil {
				return err
			}
			el = fresh
		}
		at := x.poller.Clock().Now()
		if err := el.Click(); err != nil {
			return err
		}
		if x.latch.Mark(at) {
			log.Debug("first click of iteration")
		}
		return nil
	})
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		fmt.Fprintf(x.opts.Out, "❗ Click failed for %s after %d attempts\n", t, exhausted.Attempts)
	}
	return err
}

// enter fills the text box inserted into the target's cell after the click
func (x *Executor) enter(a Action, url string) error {
	what := fmt.Sprintf("cell %s of row %s", a.Target.Cell, a.Target.RowKey)
	var input browser.Element
	cond := wait.Present(func() (browser.Element, error) {
		return x.locator.Cell(a.Target)
	}, browser.ByTag, x.opts.InputTag, what, &input)
	if x.opts.InputTimeout > 0 {
		cond = cond.Within(x.opts.InputTimeout)
	}
	if err := x.poller.Await(cond); err != nil {
		return x.soft(a, url, fmt.Errorf("input box never appeared: %w", err))
	}

	inputTarget := locate.Target{RowKey: a.Target.RowKey, Cell: a.Target.Cell, Tag: x.opts.InputTag}
	input, err := x.awaitClickable(input, inputTarget)
	if err != nil {
		return x.soft(a, url, fmt.Errorf("input box not clickable: %w", err))
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"clear", input.Clear},
		{"focus", input.Click},
		{"type", func() error { return input.Type(a.Text) }},
		{"submit", input.Submit},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return x.soft(a, url, fmt.Errorf("%s input box: %w", s.name, err))
		}
	}
	return nil
}

func (x *Executor) soft(a Action, url string, err error) error {
	if browser.IsSessionLost(err) {
		return &StepError{Action: a, URL: url, Err: err}
	}
	x.stats.Warnings++
	return &SoftError{Action: a, URL: url, Err: err}
}
