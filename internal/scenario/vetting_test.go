package scenario

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/surveydriver/internal/browser/browsertest"
)

func TestNormalizeTable(t *testing.T) {
	in := "  <table><tbody>\n   <tr class=\"fallback_root hideCov80\"></tr><tbody>\n <tr class=\"x hideCov100\"></tr></tbody></table>\n"
	want := `<table><tbody><tr class="fallback"></tr><tbody>` + "\n" + ` <tr class="x"></tr></tbody></table>`
	assert.Equal(t, want, NormalizeTable(in))
}

func TestLoadGoldens(t *testing.T) {
	dir := t.TempDir()
	for i, body := range []string{"<table>a</table>", "<table>b</table>\n"} {
		require.NoError(t, os.WriteFile(GoldenPath(dir, i), []byte(body), 0644))
	}

	tables, err := LoadGoldens(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"<table>a</table>", "<table>b</table>"}, tables)

	_, err = LoadGoldens(dir, 3)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(GoldenPath(dir, 1), []byte("<table>a</table>"), 0644))
	_, err = LoadGoldens(dir, 2)
	assert.ErrorContains(t, err, "should not be identical")
}

func TestTableDiff(t *testing.T) {
	diff := TableDiff("<table><tr></tr></table>", "<table><tr class=\"x\"></tr></table>")
	assert.Contains(t, diff, "--- expected")
	assert.Contains(t, diff, "-<tr>")
	assert.Contains(t, diff, `+<tr class="x">`)
	assert.Empty(t, TableDiff("<a></a>", "<a></a>"))
}

func vettingHarness(t *testing.T, dir string, update bool) *harness {
	t.Helper()
	cfg := testConfig()
	cfg.Vetting.DataDir = dir
	cfg.Vetting.UpdateGoldens = update
	return newHarness(t, cfg, browsertest.SurveyOptions{
		Rows:       []string{cfg.Vetting.RowKey},
		RowPrefix:  cfg.Vetting.RowPrefix,
		CellByID:   true,
		PendingFor: 2,
		InputAfter: 1,
	})
}

func TestVettingTableRoundTrip(t *testing.T) {
	dir := t.TempDir()

	h := vettingHarness(t, dir, true)
	require.NoError(t, h.runner.VettingTable())
	assert.Contains(t, h.out.String(), "✓ Wrote 3 golden tables")
	assert.Equal(t, []string{tableHookScript}, h.page.Evals)
	assert.Equal(t, []string{"taml"}, h.page.Keystrokes)

	h = vettingHarness(t, dir, false)
	require.NoError(t, h.runner.VettingTable())
	assert.Contains(t, h.out.String(), "✅ table 2 is OK")
	assert.Contains(t, h.out.String(), "✅ Vetting-table test passed for aa, Numbering_Systems")
}

func TestVettingTableMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, vettingHarness(t, dir, true).runner.VettingTable())
	golden, err := os.ReadFile(GoldenPath(dir, 1))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(GoldenPath(dir, 1), append([]byte("<caption></caption>"), golden...), 0644))

	h := vettingHarness(t, dir, false)
	err = h.runner.VettingTable()

	assert.ErrorIs(t, err, ErrTableMismatch)
	assert.Contains(t, h.out.String(), "❌ table 1 is different")
	assert.Contains(t, h.out.String(), "✅ table 0 is OK")
}

func TestVettingTableNeedsGoldens(t *testing.T) {
	h := vettingHarness(t, t.TempDir(), false)
	assert.Error(t, h.runner.VettingTable())
	assert.Empty(t, h.page.Navigations)
}
