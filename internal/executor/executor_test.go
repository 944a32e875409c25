package executor

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/browser/browsertest"
	"github.com/v0xg/surveydriver/internal/locate"
	"github.com/v0xg/surveydriver/internal/retry"
	"github.com/v0xg/surveydriver/internal/wait"
)

const pageURL = "http://localhost:9080/cldr-apps/v#/sr/Languages_A_D"

type rootCounter struct {
	browser.Driver
	finds int
}

func (c *rootCounter) Find(by browser.By, value string) (browser.Element, error) {
	c.finds++
	return c.Driver.Find(by, value)
}

type fixture struct {
	page  *browsertest.Survey
	clock *wait.FakeClock
	x     *Executor
}

func setup(t *testing.T, opts browsertest.SurveyOptions, x Options) *fixture {
	t.Helper()
	if opts.Rows == nil {
		opts.Rows = []string{"aa", "ab"}
	}
	page := browsertest.NewSurvey(opts)
	require.NoError(t, page.Navigate(pageURL))
	return build(page, page, x)
}

func build(page *browsertest.Survey, d browser.Driver, x Options) *fixture {
	clock := wait.NewFakeClock(time.Time{})
	p := wait.NewPoller(d, wait.Options{Clock: clock})
	x.Policy.Sleep = clock.Sleep
	if x.BlockerID == "" {
		x.BlockerID = "overlay"
	}
	loc := locate.New(d, locate.Options{RowPrefix: "row_", CellBy: browser.ByClass, Policy: x.Policy})
	return &fixture{page: page, clock: clock, x: New(d, loc, p, x)}
}

func vote(row string) Action {
	return Action{Type: Click, Target: locate.Target{RowKey: row, Cell: "proposedcell", Tag: "input"}}
}

func add(row, text string) Action {
	return Action{Type: TypeAndSubmit, Target: locate.Target{RowKey: row, Cell: "addcell", Tag: "button"}, Text: text}
}

func TestClickOnce(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{}, Options{})

	require.NoError(t, f.x.Do(vote("aa"), pageURL))

	assert.Equal(t, 1, f.page.Cell("aa", "proposedcell").Children()[0].Clicks)
	assert.Equal(t, []browsertest.Vote{{Row: "aa", Cell: "proposedcell"}}, f.page.Votes)
	assert.Equal(t, Stats{Clicks: 1}, f.x.Stats())
}

func TestStaleClickIsRetriedAsOneLogicalClick(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{}, Options{})
	f.page.Fail("click", "input", 1, browser.ErrStale)

	require.NoError(t, f.x.Do(vote("aa"), pageURL))

	assert.Equal(t, 1, f.page.Cell("aa", "proposedcell").Children()[0].Clicks)
	assert.Len(t, f.page.Votes, 1)
	assert.Equal(t, Stats{Clicks: 1, Retries: 1}, f.x.Stats())
}

func TestStaleClickCountsRebuilds(t *testing.T) {
	var logs bytes.Buffer
	marker := "insertRows: recreating table from scratch"
	f := setup(t, browsertest.SurveyOptions{}, Options{
		RebuildMarker: marker,
		Logger:        slog.New(slog.NewTextHandler(&logs, nil)),
	})
	f.page.Log("log", marker)
	f.page.Log("log", marker)
	f.page.Log("log", "unrelated")
	f.page.Fail("click", "input", 1, browser.ErrStale)

	require.NoError(t, f.x.Do(vote("aa"), pageURL))
	assert.Contains(t, logs.String(), "table rebuilds logged")
	assert.Contains(t, logs.String(), "count=2")
}

func TestClickAfterRowRebuild(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{}, Options{})
	el, err := f.x.locator.Locate(vote("aa").Target)
	require.NoError(t, err)
	f.page.RebuildRow("aa")

	require.NoError(t, f.x.Act(el, vote("aa"), pageURL))

	assert.Zero(t, el.(*browsertest.Element).Node().Clicks)
	assert.Equal(t, 1, f.page.Cell("aa", "proposedcell").Children()[0].Clicks)
	assert.Equal(t, 1, f.x.Stats().Clicks)
	assert.GreaterOrEqual(t, f.x.Stats().Retries, 1)
}

func TestLatchMarkedByFirstClickOnly(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{}, Options{})
	first := f.clock.Now()

	require.NoError(t, f.x.Do(vote("aa"), pageURL))
	f.clock.Advance(3 * time.Second)
	require.NoError(t, f.x.Do(vote("ab"), pageURL))

	at, ok := f.x.Latch().Time()
	require.True(t, ok)
	assert.Equal(t, first, at)

	f.x.ResetLatch()
	_, ok = f.x.Latch().Time()
	assert.False(t, ok)
}

func TestClickExhaustionIsStepError(t *testing.T) {
	var out bytes.Buffer
	f := setup(t, browsertest.SurveyOptions{}, Options{Out: &out})
	f.page.Fail("click", "input", 100, browser.ErrStale)

	err := f.x.Do(vote("aa"), pageURL)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, vote("aa"), se.Action)
	var ex *retry.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, retry.DefaultAttempts, ex.Attempts)
	assert.Zero(t, f.x.Stats().Clicks)
	_, ok := f.x.Latch().Time()
	assert.False(t, ok)
	assert.Equal(t, "❗ Click failed for aa,proposedcell,input after 5 attempts\n", out.String())
}

func TestLocateFailureIsNotRetriedAgain(t *testing.T) {
	page := browsertest.NewSurvey(browsertest.SurveyOptions{Rows: []string{"aa"}})
	require.NoError(t, page.Navigate(pageURL))
	counter := &rootCounter{Driver: page}
	f := build(page, counter, Options{})

	err := f.x.Do(vote("zz"), pageURL)

	var fail *locate.Failure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, retry.DefaultAttempts, fail.Attempts)
	// a single budget of row lookups
	assert.Equal(t, retry.DefaultAttempts, counter.finds)
}

func TestWaitsForBlockerToHide(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{}, Options{})
	f.page.Overlay.Style["display"] = "block"
	f.page.After(10, func() { f.page.Overlay.Style["display"] = "none" })

	require.NoError(t, f.x.Do(vote("aa"), pageURL))
	assert.Greater(t, f.clock.Slept(), time.Duration(0))
	assert.Equal(t, 1, f.x.Stats().Clicks)
}

func TestCoveredTargetIsRelocated(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{}, Options{})
	in := f.page.Cell("aa", "proposedcell").Children()[0]
	in.Covered = true

	err := f.x.Do(vote("aa"), pageURL)

	var ex *retry.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.ErrorIs(t, err, wait.ErrTimedOut)
	assert.Equal(t, retry.DefaultAttempts-1, f.x.Stats().Retries)
	assert.Equal(t, time.Duration(retry.DefaultAttempts)*wait.DefaultTimeout, f.clock.Slept())
}

func TestTypeAndSubmit(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{InputAfter: 3}, Options{})

	require.NoError(t, f.x.Do(add("ab", "Testxyz"), pageURL))

	box := f.page.Cell("ab", "addcell").Children()[1]
	assert.Equal(t, "Testxyz", box.Value)
	assert.Equal(t, 1, box.Clicks)
	assert.Equal(t, []string{"Testxyz"}, f.page.Keystrokes)
	assert.Equal(t, 1, f.page.Submits)
	assert.Equal(t, Stats{Submits: 1}, f.x.Stats())
}

func TestMissingInputIsSoft(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{InputAfter: -1}, Options{InputTimeout: 2 * time.Second})

	err := f.x.Do(add("ab", "Testxyz"), pageURL)

	var soft *SoftError
	require.ErrorAs(t, err, &soft)
	assert.ErrorIs(t, err, wait.ErrTimedOut)
	var se *StepError
	assert.False(t, errors.As(err, &se))
	assert.Equal(t, 2*time.Second, f.clock.Slept())
	assert.Equal(t, Stats{Warnings: 1}, f.x.Stats())
	assert.Zero(t, f.page.Submits)
	assert.Contains(t, soft.Error(), `entering "Testxyz" on row ab`)
}

func TestSessionLostWhileTypingIsTerminal(t *testing.T) {
	f := setup(t, browsertest.SurveyOptions{InputAfter: 0}, Options{})
	f.page.Fail("type", "input", 1, browser.ErrSessionLost)

	err := f.x.Do(add("ab", "Testxyz"), pageURL)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.True(t, browser.IsSessionLost(err))
	assert.Zero(t, f.x.Stats().Warnings)
}

func TestStartLatch(t *testing.T) {
	var l StartLatch
	t0 := time.Unix(10, 0)
	assert.True(t, l.Mark(t0))
	assert.False(t, l.Mark(t0.Add(time.Second)))
	at, ok := l.Time()
	assert.True(t, ok)
	assert.Equal(t, t0, at)
	assert.Equal(t, "type", TypeAndSubmit.String())
}
