package snapshot

import (
	"errors"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/browser/browsertest"
	"github.com/v0xg/surveydriver/internal/locate"
	"github.com/v0xg/surveydriver/internal/scenario"
)

func incident(t *testing.T) scenario.Incident {
	t.Helper()
	d := browsertest.New("")
	shot, err := d.Screenshot()
	require.NoError(t, err)
	return scenario.Incident{
		Scenario:   "fast vote",
		URL:        "http://localhost:9080/cldr-apps/v#/sr/Languages_A_D",
		Iteration:  12,
		State:      scenario.Stepping,
		Target:     &locate.Target{RowKey: "f3d4397b739b287", Cell: "nocell", Tag: "input"},
		Bounds:     image.Rect(10, 10, 110, 40),
		Err:        errors.New("click on row f3d4397b739b287: gave up after 5 attempts"),
		Console:    []browser.LogEntry{{Time: time.Unix(0, 0).UTC(), Level: "log", Message: "insertRows: recreating table from scratch"}},
		Screenshot: shot,
		At:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriterWritesImageAndReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	w := NewWriter(Options{Dir: dir, RunID: "0f8fad5b-d9cb-469f-a165-70867728950e"})
	inc := incident(t)

	require.NoError(t, w.HandleIncident(inc))

	assert.Equal(t, "0f8fad5b-fast-vote-12", w.Name(inc))
	assert.FileExists(t, filepath.Join(dir, "0f8fad5b-fast-vote-12.png"))
	report, err := os.ReadFile(filepath.Join(dir, "0f8fad5b-fast-vote-12.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "state:     stepping")
	assert.Contains(t, string(report), "target:    f3d4397b739b287,nocell,input")
	assert.Contains(t, string(report), "insertRows: recreating table from scratch")
}

func TestWriterWithoutScreenshot(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(Options{Dir: dir})
	inc := incident(t)
	inc.Screenshot = nil
	inc.Target = nil

	require.NoError(t, w.HandleIncident(inc))

	assert.NoFileExists(t, filepath.Join(dir, "fast-vote-12.png"))
	report, err := os.ReadFile(filepath.Join(dir, "fast-vote-12.txt"))
	require.NoError(t, err)
	assert.NotContains(t, string(report), "target:")
}

func TestWriterRejectsBadScreenshot(t *testing.T) {
	w := NewWriter(Options{Dir: t.TempDir()})
	inc := incident(t)
	inc.Screenshot = []byte("not a png")
	assert.Error(t, w.HandleIncident(inc))
}

func TestShrink(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	assert.Same(t, img, Shrink(img, 800))
	small := Shrink(img, 100)
	assert.Equal(t, 100, small.Bounds().Dx())
	assert.Equal(t, 50, small.Bounds().Dy())
}

func TestRecorder(t *testing.T) {
	page := browsertest.NewSurvey(browsertest.SurveyOptions{Rows: []string{"a"}})
	require.NoError(t, page.Navigate("http://localhost:9080/cldr-apps/v#/sr/Languages_A_D"))
	r := NewRecorder(RecorderOptions{MaxFrames: 2})

	require.NoError(t, r.Capture(page, "row_a"))
	require.NoError(t, r.Capture(page, "row_missing"))
	require.NoError(t, r.Capture(page, ""))
	assert.Equal(t, 2, r.Frames())

	path := filepath.Join(t.TempDir(), "run.gif")
	size, err := r.Save(path)
	require.NoError(t, err)
	assert.Positive(t, size)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)

	require.NoError(t, page.Close())
	assert.Error(t, r.Capture(page, "row_a"))
}
