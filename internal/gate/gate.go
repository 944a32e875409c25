// Package gate holds the readiness checks a freshly navigated page must
// pass before anything clicks on it.
package gate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/wait"
)

// Stage names one step of the readiness sequence
type Stage string

const (
	StageTitle   Stage = "title"
	StageLoading Stage = "loading"
	StageSidebar Stage = "sidebar"
	StageOverlay Stage = "overlay"
)

// StageError reports the first stage that did not pass
type StageError struct {
	Stage   Stage
	Element string
	Err     error
}

func (e *StageError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("page not ready at %s stage: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("page not ready at %s stage (#%s): %v", e.Stage, e.Element, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options names the page elements the gate inspects
type Options struct {
	LoadingID string
	SidebarID string
	DraggerID string
	OverlayID string
	// CloseScript is evaluated when clicking the dragger does not close the sidebar
	CloseScript string
	// CloseTimeout bounds the wait after the dragger click before falling back to CloseScript
	CloseTimeout time.Duration
	// Out receives the not-ready verdict, stdout by default
	Out    io.Writer
	Logger *slog.Logger
}

// DefaultOptions returns the element ids of the Survey Tool page
func DefaultOptions() Options {
	return Options{
		LoadingID:    "LoadingMessageSection",
		SidebarID:    "left-sidebar",
		DraggerID:    "dragger",
		OverlayID:    "overlay",
		CloseScript:  "hideOverlayAndSidebar()",
		CloseTimeout: 2 * time.Second,
	}
}

// Gate runs the readiness sequence on one driver
type Gate struct {
	driver browser.Driver
	poller *wait.Poller
	opts   Options
}

func New(d browser.Driver, p *wait.Poller, opts Options) *Gate {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gate{driver: d, poller: p, opts: opts}
}

// Loaded waits for the title and for the loading indicator to disappear
func (g *Gate) Loaded(title string) error {
	if err := g.poller.Await(wait.TitleContains(title)); err != nil {
		return &StageError{Stage: StageTitle, Err: err}
	}
	if g.opts.LoadingID != "" {
		if err := g.poller.Await(wait.StyleEquals(g.opts.LoadingID, "display", "none")); err != nil {
			return &StageError{Stage: StageLoading, Element: g.opts.LoadingID, Err: err}
		}
	}
	return nil
}

// Check runs every stage in order and stops at the first failure.
// On a page that is already ready it only reads state.
func (g *Gate) Check(title string) error {
	if err := g.Loaded(title); err != nil {
		return err
	}
	if g.opts.SidebarID != "" {
		if err := g.closeSidebar(); err != nil {
			return &StageError{Stage: StageSidebar, Element: g.opts.SidebarID, Err: err}
		}
	}
	if g.opts.OverlayID != "" {
		if err := g.poller.Await(wait.Inactive(g.opts.OverlayID)); err != nil {
			return &StageError{Stage: StageOverlay, Element: g.opts.OverlayID, Err: err}
		}
	}
	return nil
}

// Ready is Check reduced to a verdict; the failing stage is logged
func (g *Gate) Ready(title, url string) bool {
	err := g.Check(title)
	if err == nil {
		return true
	}
	var se *StageError
	if errors.As(err, &se) {
		g.opts.Logger.Error("page not ready", "url", url, "stage", string(se.Stage), "element", se.Element, "error", se.Err)
	}
	fmt.Fprintf(g.opts.Out, "❌ Page not ready: %s\n", url)
	return false
}

func (g *Gate) closeSidebar() error {
	inactive := wait.Inactive(g.opts.SidebarID)
	if ok, err := inactive.Check(g.driver); err == nil && ok {
		return nil
	}

	log := g.opts.Logger.With("stage", string(StageSidebar))
	if g.opts.DraggerID != "" {
		if err := g.clickDragger(); err != nil {
			log.Debug("dragger click failed", "error", err)
		} else if g.poller.Await(inactive.Within(g.opts.CloseTimeout)) == nil {
			return nil
		}
	}
	if g.opts.CloseScript == "" {
		return g.poller.Await(inactive)
	}
	log.Info("sidebar still open, closing it by script", "script", g.opts.CloseScript)
	if err := g.driver.Eval(g.opts.CloseScript); err != nil {
		return fmt.Errorf("eval %s: %w", g.opts.CloseScript, err)
	}
	return g.poller.Await(inactive)
}

func (g *Gate) clickDragger() error {
	el, err := g.driver.Find(browser.ByID, g.opts.DraggerID)
	if err != nil {
		return err
	}
	if err := g.poller.Await(wait.Clickable(el, "#"+g.opts.DraggerID).Within(g.opts.CloseTimeout)); err != nil {
		return err
	}
	return el.Click()
}
