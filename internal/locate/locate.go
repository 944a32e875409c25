// Package locate resolves (row, cell, tag) targets to live elements,
// starting over from the row whenever any link of the chain goes stale.
package locate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/retry"
)

// Target names an interactive element indirectly. It is re-resolved on
// every attempt and never caches a handle.
type Target struct {
	RowKey string
	Cell   string
	Tag    string
}

func (t Target) String() string {
	return fmt.Sprintf("%s,%s,%s", t.RowKey, t.Cell, t.Tag)
}

// Lookup is one link of a resolution chain
type Lookup struct {
	By    browser.By
	Value string
}

func (l Lookup) String() string {
	return l.By.String() + "=" + l.Value
}

// Failure means a target could not be resolved within the retry budget,
// or resolution hit a non-transient error
type Failure struct {
	Target   Target
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("cannot locate row %s cell %s tag %s after %d attempts: %v",
		f.Target.RowKey, f.Target.Cell, f.Target.Tag, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Options configures how targets map to lookups
type Options struct {
	RowPrefix string     // row element id is RowPrefix + RowKey
	CellBy    browser.By // cells are addressed by class or id
	Policy    retry.Policy
	Logger    *slog.Logger
}

// Locator resolves targets against one driver
type Locator struct {
	driver browser.Driver
	opts   Options
}

func New(d browser.Driver, opts Options) *Locator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Locator{driver: d, opts: opts}
}

// RowID returns the element id of a row key
func (l *Locator) RowID(key string) string {
	return l.opts.RowPrefix + key
}

// Chain returns the lookups for t: row by id, cell, then tag
func (l *Locator) Chain(t Target) []Lookup {
	return []Lookup{
		{By: browser.ByID, Value: l.RowID(t.RowKey)},
		{By: l.opts.CellBy, Value: t.Cell},
		{By: browser.ByTag, Value: t.Tag},
	}
}

// Cell resolves the row and cell of t once, without retries
func (l *Locator) Cell(t Target) (browser.Element, error) {
	return l.walk(l.Chain(t)[:2])
}

// Locate resolves t within the retry budget
func (l *Locator) Locate(t Target) (browser.Element, error) {
	var attempts int
	el, err := l.Resolve(l.Chain(t), func(n int) { attempts = n })
	if err != nil {
		return nil, &Failure{Target: t, Attempts: attempts, Err: err}
	}
	return el, nil
}

// Resolve walks chain from the document root, restarting at the first
// lookup after a transient error until the budget is spent. progress, if
// set, receives the number of attempts made.
func (l *Locator) Resolve(chain []Lookup, progress func(attempts int)) (browser.Element, error) {
	if len(chain) == 0 {
		return nil, errors.New("empty lookup chain")
	}
	policy := l.opts.Policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		l.opts.Logger.Info("re-resolving after transient error",
			"chain", fmt.Sprint(chain), "attempt", attempt, "error", err)
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	var el browser.Element
	err := policy.Do(func(attempt int) error {
		if progress != nil {
			progress(attempt + 1)
		}
		found, err := l.walk(chain)
		if err != nil {
			return err
		}
		el = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (l *Locator) walk(chain []Lookup) (browser.Element, error) {
	el, err := l.driver.Find(chain[0].By, chain[0].Value)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", chain[0], err)
	}
	for _, lk := range chain[1:] {
		el, err = el.Find(lk.By, lk.Value)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", lk, err)
		}
	}
	return el, nil
}
