package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/executor"
	"github.com/v0xg/surveydriver/internal/wait"
)

// ErrTableMismatch is returned when a vetting table differs from its golden file
var ErrTableMismatch = errors.New("vetting table differs from golden")

// tableHookScript makes the page log each rendered table's JSON
const tableHookScript = "window.testTable = function(theTable, reuseTable) { console.log(theTable.json); }"

var tbodyRow = regexp.MustCompile(`<tbody>\s*<tr`)

// NormalizeTable strips the parts of a table's HTML that vary between
// otherwise identical renders
func NormalizeTable(html string) string {
	html = strings.ReplaceAll(html, "fallback_root", "fallback")
	if loc := tbodyRow.FindStringIndex(html); loc != nil {
		html = html[:loc[0]] + "<tbody><tr" + html[loc[1]:]
	}
	html = strings.ReplaceAll(html, " hideCov80", "")
	html = strings.ReplaceAll(html, " hideCov100", "")
	return strings.TrimSpace(html)
}

// VettingSteps are performed between the table snapshots; snapshot i is
// taken before step i
func VettingSteps(row, value string) []Step {
	return []Step{
		{Kind: Vote, Row: row},
		{Kind: Add, Row: row, Value: value},
		{Kind: Abstain, Row: row},
	}
}

// GoldenPath returns the golden file of snapshot i
func GoldenPath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("table%d.txt", i))
}

// LoadGoldens reads n golden tables and checks that consecutive ones differ
func LoadGoldens(dir string, n int) ([]string, error) {
	tables := make([]string, n)
	for i := range tables {
		data, err := os.ReadFile(GoldenPath(dir, i))
		if err != nil {
			return nil, fmt.Errorf("read golden table: %w", err)
		}
		tables[i] = NormalizeTable(string(data))
		if i > 0 && tables[i] == tables[i-1] {
			return nil, fmt.Errorf("golden %s should not be identical to the previous file", GoldenPath(dir, i))
		}
	}
	return tables, nil
}

// TableDiff returns a unified diff of want and got
func TableDiff(want, got string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(splitTags(want)),
		B:        difflib.SplitLines(splitTags(got)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	return diff
}

// splitTags puts every tag on its own line so diffs of one-line HTML stay readable
func splitTags(html string) string {
	return strings.ReplaceAll(html, "><", ">\n<")
}

// VettingTable logs in, votes on one row of the configured page and
// compares the table after each change with golden files. With
// UpdateGoldens the snapshots are written instead.
func (r *Runner) VettingTable() error {
	v := r.cfg.Vetting
	steps := VettingSteps(v.RowKey, v.NewValue)

	var goldens []string
	if !v.UpdateGoldens {
		var err error
		if goldens, err = LoadGoldens(v.DataDir, len(steps)); err != nil {
			return err
		}
	}
	if err := r.Login(); err != nil {
		return err
	}

	url := r.cfg.PageURL(v.Locale, v.Page)
	if err := r.driver.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := r.gate.Check(v.Page); err != nil {
		r.printf("❌ Page not ready: %s\n", url)
		return err
	}
	if err := r.driver.Eval(tableHookScript); err != nil {
		return fmt.Errorf("install table hook: %w", err)
	}

	_, x := r.engine(v.RowPrefix, browser.ByID)
	good := 0
	for i, s := range steps {
		html, err := r.snapshotTable(url)
		if err != nil {
			r.report(Incident{Scenario: "vetting-table", URL: url, Iteration: i, Err: err}, v.RowPrefix+v.RowKey)
			return err
		}
		switch {
		case v.UpdateGoldens:
			if err := os.MkdirAll(v.DataDir, 0755); err != nil {
				return fmt.Errorf("create golden dir: %w", err)
			}
			if err := os.WriteFile(GoldenPath(v.DataDir, i), []byte(html+"\n"), 0644); err != nil {
				return fmt.Errorf("write golden table: %w", err)
			}
			good++
		case goldens[i] == html:
			r.printf("✅ table %d is OK\n", i)
			good++
		default:
			r.printf("❌ table %d is different (%d bytes, expected %d):\n%s\n", i, len(html), len(goldens[i]), TableDiff(goldens[i], html))
		}

		err = x.Do(s.Action(), url)
		r.afterStep(i, s, v.RowPrefix+s.Row, err)
		var soft *executor.SoftError
		switch {
		case err == nil:
		case errors.As(err, &soft):
			r.printf("⚠ Warning: continuing, %v\n", soft)
		default:
			r.printf("❌ Vetting-table test failed, %s for row %s for %s\n", s.Kind, v.RowKey, url)
			r.report(Incident{Scenario: "vetting-table", URL: url, Iteration: i, State: Stepping, Target: failedTarget(err), Err: err}, v.RowPrefix+v.RowKey)
			return err
		}
	}

	if v.UpdateGoldens {
		r.printf("✓ Wrote %d golden tables to %s\n", good, v.DataDir)
		return nil
	}
	if good != len(steps) {
		r.printf("❌ Vetting-table test failed for %s, %s\n", v.Locale, v.Page)
		return fmt.Errorf("%d of %d tables: %w", len(steps)-good, len(steps), ErrTableMismatch)
	}
	r.printf("✅ Vetting-table test passed for %s, %s\n", v.Locale, v.Page)
	return nil
}

// snapshotTable waits until no row is pending and returns the normalized table HTML
func (r *Runner) snapshotTable(url string) (string, error) {
	if err := r.poller.Await(wait.CountEquals(browser.ByClass, r.cfg.Page.PendingClass, 0)); err != nil {
		return "", err
	}
	el, err := r.driver.Find(browser.ByID, r.cfg.Vetting.TableID)
	if err != nil {
		return "", fmt.Errorf("vetting table in %s: %w", url, err)
	}
	html, err := el.OuterHTML()
	if err != nil {
		return "", fmt.Errorf("vetting table in %s: %w", url, err)
	}
	return NormalizeTable(html), nil
}
