package locate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/browser/browsertest"
	"github.com/v0xg/surveydriver/internal/retry"
)

// rootCounter counts lookups that start at the document root
type rootCounter struct {
	browser.Driver
	finds []string
}

func (c *rootCounter) Find(by browser.By, value string) (browser.Element, error) {
	c.finds = append(c.finds, value)
	return c.Driver.Find(by, value)
}

func newSurvey(t *testing.T, rows ...string) *browsertest.Survey {
	t.Helper()
	s := browsertest.NewSurvey(browsertest.SurveyOptions{Rows: rows})
	require.NoError(t, s.Navigate("http://localhost:9080/cldr-apps/v#/sr/Languages_A_D"))
	return s
}

var target = Target{RowKey: "7b8ee7884f773afa", Cell: "proposedcell", Tag: "input"}

func TestLocateResolvesChain(t *testing.T) {
	s := newSurvey(t, target.RowKey)
	l := New(s, Options{RowPrefix: "row_", CellBy: browser.ByClass})

	el, err := l.Locate(target)
	require.NoError(t, err)
	assert.Same(t, s.Cell(target.RowKey, "proposedcell").Children()[0], el.(*browsertest.Element).Node())
	assert.Equal(t, "row_7b8ee7884f773afa", l.RowID(target.RowKey))
	assert.Equal(t, "7b8ee7884f773afa,proposedcell,input", target.String())
}

func TestLocateRestartsFromRow(t *testing.T) {
	s := newSurvey(t, target.RowKey)
	s.Fail("find", "proposedcell", 2, browser.ErrStale)
	counter := &rootCounter{Driver: s}
	l := New(counter, Options{RowPrefix: "row_", CellBy: browser.ByClass})

	_, err := l.Locate(target)
	require.NoError(t, err)
	assert.Equal(t, []string{"row_" + target.RowKey, "row_" + target.RowKey, "row_" + target.RowKey}, counter.finds)
}

func TestLocateRowRebuiltBetweenAttempts(t *testing.T) {
	s := newSurvey(t, target.RowKey)
	old := s.Row(target.RowKey)
	// the first attempt's cell lookup lands in the replaced row
	s.After(2, func() { s.RebuildRow(target.RowKey) })
	l := New(s, Options{RowPrefix: "row_", CellBy: browser.ByClass})

	el, err := l.Locate(target)
	require.NoError(t, err)
	assert.NotSame(t, old, s.Row(target.RowKey))
	_, err = el.Clickable()
	assert.NoError(t, err)
}

func TestLocateExhaustsSharedBudget(t *testing.T) {
	s := newSurvey(t, target.RowKey)
	s.Fail("find", "proposedcell", 3, browser.ErrStale)
	s.Fail("find", "input", 10, browser.ErrStale)
	counter := &rootCounter{Driver: s}
	l := New(counter, Options{RowPrefix: "row_", CellBy: browser.ByClass})

	_, err := l.Locate(target)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, target, f.Target)
	assert.Equal(t, retry.DefaultAttempts, f.Attempts)
	var ex *retry.ExhaustedError
	assert.ErrorAs(t, err, &ex)
	assert.ErrorIs(t, err, browser.ErrStale)
	assert.Len(t, counter.finds, retry.DefaultAttempts)
	assert.Contains(t, f.Error(), "cannot locate row 7b8ee7884f773afa cell proposedcell tag input after 5 attempts")
}

func TestLocateMissingRowIsRetried(t *testing.T) {
	s := newSurvey(t)
	l := New(s, Options{RowPrefix: "row_", CellBy: browser.ByClass})

	_, err := l.Locate(target)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, retry.DefaultAttempts, f.Attempts)
	assert.ErrorIs(t, err, browser.ErrNotFound)
}

func TestLocateStopsOnPermanentError(t *testing.T) {
	s := newSurvey(t, target.RowKey)
	boom := errors.New("javascript exception")
	s.Fail("find", "row_", 1, boom)
	l := New(s, Options{RowPrefix: "row_", CellBy: browser.ByClass})

	_, err := l.Locate(target)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 1, f.Attempts)
	assert.ErrorIs(t, err, boom)
	var ex *retry.ExhaustedError
	assert.False(t, errors.As(err, &ex))
}

func TestLocateSessionLostIsNotRetried(t *testing.T) {
	s := newSurvey(t, target.RowKey)
	require.NoError(t, s.Close())
	l := New(s, Options{RowPrefix: "row_", CellBy: browser.ByClass})

	_, err := l.Locate(target)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 1, f.Attempts)
	assert.True(t, browser.IsSessionLost(err))
}

func TestCellByID(t *testing.T) {
	s := browsertest.NewSurvey(browsertest.SurveyOptions{Rows: []string{target.RowKey}, RowPrefix: "r@", CellByID: true})
	require.NoError(t, s.Navigate("http://localhost:9080/cldr-apps/v#/aa/Numbering_Systems"))
	l := New(s, Options{RowPrefix: "r@", CellBy: browser.ByID})

	cell, err := l.Cell(Target{RowKey: target.RowKey, Cell: "addcell"})
	require.NoError(t, err)
	assert.Same(t, s.Cell(target.RowKey, "addcell"), cell.(*browsertest.Element).Node())
}
