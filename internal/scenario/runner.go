// Package scenario drives whole Survey Tool test scenarios: logging in,
// repeated fast voting on one page, console sweeps over many pages and the
// vetting-table comparison.
package scenario

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/config"
	"github.com/v0xg/surveydriver/internal/executor"
	"github.com/v0xg/surveydriver/internal/gate"
	"github.com/v0xg/surveydriver/internal/locate"
	"github.com/v0xg/surveydriver/internal/retry"
	"github.com/v0xg/surveydriver/internal/wait"
)

// Incident describes a failure that ended a scenario
type Incident struct {
	Scenario  string
	URL       string
	Iteration int
	State     State
	Target    *locate.Target
	// Bounds is the box of the target's row, empty if it could not be found
	Bounds     image.Rectangle
	Err        error
	Console    []browser.LogEntry
	Screenshot []byte
	At         time.Time
}

// IncidentHandler receives incidents, e.g. to write snapshots
type IncidentHandler interface {
	HandleIncident(inc Incident) error
}

// Options configures a Runner
type Options struct {
	Clock     wait.Clock
	Logger    *slog.Logger
	Incidents []IncidentHandler
	// Out receives the human-readable verdict lines, stdout by default
	Out io.Writer
	// AfterStep, if set, runs after every step with the id of the step's
	// row and the step's outcome
	AfterStep func(iteration int, s Step, rowID string, err error)
}

// Runner executes scenarios against one browser session
type Runner struct {
	driver browser.Driver
	cfg    config.Config
	opts   Options
	log    *slog.Logger
	poller *wait.Poller
	gate   *gate.Gate

	coverageChosen bool
}

func NewRunner(d browser.Driver, cfg config.Config, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = wait.RealClock{}
	}
	poller := wait.NewPoller(d, wait.Options{
		Timeout:  cfg.Timeout,
		Interval: cfg.PollInterval,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
	})
	g := gate.New(d, poller, gate.Options{
		LoadingID:    cfg.Page.LoadingID,
		SidebarID:    cfg.Page.SidebarID,
		DraggerID:    cfg.Page.DraggerID,
		OverlayID:    cfg.Page.OverlayID,
		CloseScript:  cfg.Page.CloseScript,
		CloseTimeout: gate.DefaultOptions().CloseTimeout,
		Out:          opts.Out,
		Logger:       opts.Logger,
	})
	return &Runner{driver: d, cfg: cfg, opts: opts, log: opts.Logger, poller: poller, gate: g}
}

// Poller exposes the runner's poller, mainly for elapsed-time checks
func (r *Runner) Poller() *wait.Poller { return r.poller }

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.opts.Out, format, args...)
}

// policy spaces attempts one poll interval apart so that a row the server
// is still inserting has time to appear
func (r *Runner) policy() retry.Policy {
	return retry.Policy{Attempts: r.cfg.RetryBudget, Backoff: r.cfg.PollInterval, Sleep: r.opts.Clock.Sleep}
}

// engine builds a locator and executor for rows addressed as
// rowPrefix+key with cells found by cellBy
func (r *Runner) engine(rowPrefix string, cellBy browser.By) (*locate.Locator, *executor.Executor) {
	loc := locate.New(r.driver, locate.Options{
		RowPrefix: rowPrefix,
		CellBy:    cellBy,
		Policy:    r.policy(),
		Logger:    r.log,
	})
	x := executor.New(r.driver, loc, r.poller, executor.Options{
		Policy:        r.policy(),
		BlockerID:     r.cfg.Page.OverlayID,
		InputTag:      "input",
		RebuildMarker: r.cfg.Page.RebuildMarker,
		Out:           r.opts.Out,
		Logger:        r.log,
	})
	return loc, x
}

// Login opens the login URL of the configured user and waits until the
// page shows the signed-in marker
func (r *Runner) Login() error {
	creds, err := r.cfg.CredentialsForUser(r.cfg.User)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	url := config.LoginURL(r.cfg.BaseURL, creds)
	r.printf("→ Logging in as %s... ", creds.Email)
	if err := r.driver.Navigate(url); err != nil {
		r.printf("failed\n")
		return fmt.Errorf("login: navigate: %w", err)
	}
	if err := r.gate.Loaded(r.cfg.Page.LoginTitle); err != nil {
		r.printf("failed\n")
		return fmt.Errorf("login: %w", err)
	}
	marker := r.cfg.Page.LoginMarkerClass
	if err := r.poller.Await(wait.CountAtLeast(browser.ByClass, marker, 1)); err != nil {
		r.printf("failed\n")
		r.printf("❌ Login failed, %s icon never appeared in %s\n", marker, r.cfg.BaseURL)
		return fmt.Errorf("login: %w", err)
	}
	r.printf("done\n")
	return nil
}

// ChooseCoverage opens the coverage menu and picks the configured level
func (r *Runner) ChooseCoverage(url string) error {
	id := r.cfg.Page.CoverageMenuID
	menu, err := r.driver.Find(browser.ByID, id)
	if err != nil {
		return fmt.Errorf("coverage menu: %w", err)
	}
	if err := r.poller.Await(wait.Clickable(menu, "coverage menu")); err != nil {
		return fmt.Errorf("coverage menu: %w", err)
	}
	if err := menu.Click(); err != nil {
		return fmt.Errorf("open coverage menu: %w", err)
	}
	sel := fmt.Sprintf("option[value='%s']", r.cfg.Page.CoverageLevel)
	item, err := menu.Find(browser.ByCSS, sel)
	if err != nil {
		return fmt.Errorf("coverage %s: %w", r.cfg.Page.CoverageLevel, err)
	}
	if err := r.poller.Await(wait.Clickable(item, "coverage "+r.cfg.Page.CoverageLevel)); err != nil {
		return fmt.Errorf("coverage %s: %w", r.cfg.Page.CoverageLevel, err)
	}
	if err := item.Click(); err != nil {
		return fmt.Errorf("choose coverage %s: %w", r.cfg.Page.CoverageLevel, err)
	}
	r.log.Info("coverage chosen", "level", r.cfg.Page.CoverageLevel, "url", url)
	return nil
}

// report hands a failure to every incident handler. Snapshot data is best
// effort; a dead session yields an incident without it.
func (r *Runner) report(inc Incident, rowID string) {
	if len(r.opts.Incidents) == 0 {
		return
	}
	inc.At = r.opts.Clock.Now()
	if !browser.IsSessionLost(inc.Err) {
		inc.Console, _ = r.driver.ConsoleLog()
		inc.Screenshot, _ = r.driver.Screenshot()
		if rowID != "" {
			if el, err := r.driver.Find(browser.ByID, rowID); err == nil {
				inc.Bounds, _ = el.Bounds()
			}
		}
	}
	for _, h := range r.opts.Incidents {
		if err := h.HandleIncident(inc); err != nil {
			r.log.Warn("incident handler failed", "error", err)
		}
	}
}

func (r *Runner) afterStep(iteration int, s Step, rowID string, err error) {
	if r.opts.AfterStep != nil {
		r.opts.AfterStep(iteration, s, rowID, err)
	}
}

// failedTarget extracts the target of a failed step, if any
func failedTarget(err error) *locate.Target {
	var se *executor.StepError
	if errors.As(err, &se) {
		t := se.Action.Target
		return &t
	}
	var f *locate.Failure
	if errors.As(err, &f) {
		t := f.Target
		return &t
	}
	return nil
}
