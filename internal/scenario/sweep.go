package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/config"
)

// ErrSweepFailed is returned when at least one page of a sweep failed
var ErrSweepFailed = errors.New("sweep failed")

// PageResult is the outcome of one locale and page
type PageResult struct {
	Locale string
	Page   string
	URL    string
	// Matches counts console entries containing the search string
	Matches int
	Err     error
}

func (p PageResult) Failed() bool { return p.Err != nil || p.Matches > 0 }

// SweepReport lists every visited page
type SweepReport struct {
	Search string
	Pages  []PageResult
}

// Errors returns the number of failed pages
func (s SweepReport) Errors() int {
	n := 0
	for _, p := range s.Pages {
		if p.Failed() {
			n++
		}
	}
	return n
}

// Sweep visits every locale and page of s and checks that the browser
// console stays free of s.Search. With StopOnError it returns at the
// first failing page; otherwise it visits all pages and fails on the
// total. A lost session always ends the sweep.
func (r *Runner) Sweep(name string, s config.Sweep) (*SweepReport, error) {
	report := &SweepReport{Search: s.Search}
	for _, loc := range s.Locales {
		for _, page := range s.Pages {
			res := r.checkPage(loc, page, s.Search)
			report.Pages = append(report.Pages, res)
			if !res.Failed() {
				continue
			}
			if res.Err != nil && browser.IsSessionLost(res.Err) {
				return report, &AbortError{Scenario: name, Iteration: len(report.Pages) - 1, State: PageLoading, Err: res.Err}
			}
			if s.StopOnError {
				r.report(Incident{Scenario: name, URL: res.URL, Err: pageError(res)}, "")
				return report, fmt.Errorf("%s: %s: %w", name, res.URL, ErrSweepFailed)
			}
		}
	}
	if n := report.Errors(); n > 0 {
		r.printf("❌ Test failed, total %d errors\n", n)
		return report, fmt.Errorf("%s: %d of %d pages: %w", name, n, len(report.Pages), ErrSweepFailed)
	}
	return report, nil
}

func pageError(res PageResult) error {
	if res.Err != nil {
		return res.Err
	}
	return fmt.Errorf("%d console entries matched", res.Matches)
}

func (r *Runner) checkPage(loc, page, search string) PageResult {
	url := r.cfg.PageURL(loc, page)
	res := PageResult{Locale: loc, Page: page, URL: url}

	// drop entries from the previous page
	if _, err := r.driver.ConsoleLog(); err != nil {
		res.Err = err
		return res
	}
	if err := r.driver.Navigate(url); err != nil {
		res.Err = fmt.Errorf("navigate: %w", err)
		return res
	}
	if err := r.gate.Loaded(page); err != nil {
		r.printf("❌ Test failed, maybe timed out, loading %s\n", url)
		res.Err = err
		return res
	}
	entries, err := r.driver.ConsoleLog()
	if err != nil {
		res.Err = err
		return res
	}
	for _, e := range entries {
		if strings.Contains(e.Message, search) {
			r.log.Info("console match", "url", url, "entry", e.String())
		}
	}
	res.Matches = browser.CountContaining(entries, search)
	if res.Matches > 0 {
		r.printf("❌ Test failed: %d occurrences in log of '%s' for %s\n", res.Matches, search, url)
		return res
	}
	r.printf("✅ Test passed: zero occurrences in log of '%s' for %s, %s\n", search, loc, page)
	return res
}
