package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/surveydriver/internal/executor"
	"github.com/v0xg/surveydriver/internal/locate"
)

func TestParseSteps(t *testing.T) {
	steps, err := ParseSteps([]byte(`
steps:
  - {kind: abstain, row: f3d4397b739b287}
  - {kind: vote, row: 6899b21f19eef8cc}
  - {kind: add, row: 7d1d3cbd260601a4, value: Testxyz}
`))
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, Step{Kind: Add, Row: "7d1d3cbd260601a4", Value: "Testxyz"}, steps[2])
	assert.Equal(t, `add(7d1d3cbd260601a4,"Testxyz")`, steps[2].String())
	assert.Equal(t, "abstain(f3d4397b739b287)", steps[0].String())
}

func TestParseStepsRejects(t *testing.T) {
	tests := map[string]string{
		"empty":        "steps: []",
		"unknown kind": "steps: [{kind: veto, row: a}]",
		"no row":       "steps: [{kind: vote}]",
		"add no value": "steps: [{kind: add, row: a}]",
		"not yaml":     "steps: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSteps([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - {kind: vote, row: a}\n"), 0644))

	steps, err := LoadSteps(path)
	require.NoError(t, err)
	assert.Equal(t, []Step{{Kind: Vote, Row: "a"}}, steps)

	_, err = LoadSteps(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStepAction(t *testing.T) {
	tests := []struct {
		step Step
		want executor.Action
	}{
		{Step{Kind: Abstain, Row: "a"}, executor.Action{Type: executor.Click, Target: locate.Target{RowKey: "a", Cell: "nocell", Tag: "input"}}},
		{Step{Kind: Vote, Row: "a"}, executor.Action{Type: executor.Click, Target: locate.Target{RowKey: "a", Cell: "proposedcell", Tag: "input"}}},
		{Step{Kind: Add, Row: "a", Value: "x"}, executor.Action{Type: executor.TypeAndSubmit, Target: locate.Target{RowKey: "a", Cell: "addcell", Tag: "button"}, Text: "x"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.step.Action(), tt.step.String())
	}
}
