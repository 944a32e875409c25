package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/executor"
	"github.com/v0xg/surveydriver/internal/retry"
	"github.com/v0xg/surveydriver/internal/wait"
)

// State is the phase of one fast-vote iteration
type State int

const (
	NotStarted State = iota
	PageLoading
	Ready
	Stepping
	Settling
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case PageLoading:
		return "page-loading"
	case Ready:
		return "ready"
	case Stepping:
		return "stepping"
	case Settling:
		return "settling"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AbortError ends a whole run
type AbortError struct {
	Scenario  string
	Iteration int
	State     State
	Err       error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s aborted in iteration %d while %s: %v", e.Scenario, e.Iteration, e.State, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Report summarizes a fast-vote run
type Report struct {
	Iterations int
	Passed     int
	// Restarts counts iterations abandoned because the page was rebuilt
	Restarts int
	Warnings int
	Clicks   int
	Submits  int
	// Elapsed holds, per passed iteration, the time from the first click
	// until no row was pending any more
	Elapsed []time.Duration
}

// Mean returns the average of Elapsed
func (r Report) Mean() time.Duration {
	if len(r.Elapsed) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range r.Elapsed {
		sum += d
	}
	return sum / time.Duration(len(r.Elapsed))
}

// Iteration is the outcome of one pass over the page. On failure State
// is the phase that failed.
type Iteration struct {
	Index   int
	State   State
	Step    int
	Elapsed time.Duration
}

// PageRebuilt reports whether err is a staleness that escaped every inner
// retry without spending a retry budget. The iteration is restarted
// instead of failing the run.
func PageRebuilt(err error) bool {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return false
	}
	return errors.Is(err, browser.ErrStale)
}

// FastVote logs in and repeats steps on the configured page for the
// configured number of iterations
func (r *Runner) FastVote(steps []Step) (*Report, error) {
	fv := r.cfg.FastVote
	if len(steps) == 0 {
		return nil, errors.New("fast vote: no steps")
	}
	for i, s := range steps {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("fast vote: step %d: %w", i+1, err)
		}
	}
	if err := r.Login(); err != nil {
		return nil, err
	}

	url := r.cfg.PageURL(fv.Locale, fv.Page)
	_, x := r.engine(r.cfg.Page.RowPrefix, browser.ByClass)
	report := &Report{}
	defer func() {
		st := x.Stats()
		report.Clicks, report.Submits, report.Warnings = st.Clicks, st.Submits, st.Warnings
	}()

	for i := 0; i < fv.Iterations; i++ {
		r.log.Info("fast vote iteration", "iteration", i, "url", url)
		report.Iterations++
		it, err := r.RunIteration(i, x, steps, url, fv.Page)
		switch {
		case err == nil:
			report.Passed++
			report.Elapsed = append(report.Elapsed, it.Elapsed)
		case PageRebuilt(err):
			report.Restarts++
			r.log.Info("page rebuilt during iteration, starting over", "iteration", i, "state", it.State.String(), "error", err)
		default:
			r.printf("❌ Fast vote test failed in %s: %v\n", url, err)
			inc := Incident{Scenario: "fast-vote", URL: url, Iteration: i, State: it.State, Target: failedTarget(err), Err: err}
			rowID := ""
			if inc.Target != nil {
				rowID = r.cfg.Page.RowPrefix + inc.Target.RowKey
			}
			r.report(inc, rowID)
			return report, &AbortError{Scenario: "fast vote", Iteration: i, State: it.State, Err: err}
		}
	}
	r.printf("✅ Fast vote test passed for %s, %s\n", fv.Locale, fv.Page)
	return report, nil
}

// RunIteration loads the page, waits until it is ready, performs every
// step and waits for the server to acknowledge them. A step whose new
// value could not be entered is logged and skipped.
func (r *Runner) RunIteration(index int, x *executor.Executor, steps []Step, url, title string) (Iteration, error) {
	it := Iteration{Index: index, State: NotStarted}
	fail := func(err error) (Iteration, error) {
		r.log.Debug("iteration failed", "iteration", index, "state", it.State.String(), "error", err)
		return it, err
	}

	it.State = PageLoading
	if err := r.driver.Navigate(url); err != nil {
		return fail(fmt.Errorf("navigate: %w", err))
	}
	if err := r.gate.Check(title); err != nil {
		return fail(err)
	}

	it.State = Ready
	if !r.coverageChosen {
		if err := r.ChooseCoverage(url); err != nil {
			return fail(err)
		}
		r.coverageChosen = true
	}

	it.State = Stepping
	x.ResetLatch()
	for i, s := range steps {
		it.Step = i
		r.log.Info("step", "iteration", index, "step", s.String())
		err := x.Do(s.Action(), url)
		r.afterStep(index, s, r.cfg.Page.RowPrefix+s.Row, err)
		var soft *executor.SoftError
		switch {
		case err == nil:
		case errors.As(err, &soft):
			r.printf("⚠ Warning: continuing, %v\n", soft)
		default:
			return fail(err)
		}
	}

	it.State = Settling
	pending := r.cfg.Page.PendingClass
	if err := r.poller.Await(wait.CountEquals(browser.ByClass, pending, 0)); err != nil {
		return fail(err)
	}

	if start, ok := x.Latch().Time(); ok {
		it.Elapsed = r.poller.Since(start)
		r.printf("Total time elapsed since first click = %.3f sec\n", it.Elapsed.Seconds())
	}
	it.State = Done
	return it, nil
}
