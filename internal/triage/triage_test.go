package triage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/locate"
	"github.com/v0xg/surveydriver/internal/scenario"
)

type stubProvider struct {
	note string
	err  error
	got  []scenario.Incident
}

func (p *stubProvider) Summarize(ctx context.Context, inc scenario.Incident) (string, error) {
	p.got = append(p.got, inc)
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("no deadline")
	}
	return p.note, p.err
}

func TestHandlerWritesNote(t *testing.T) {
	dir := t.TempDir()
	p := &stubProvider{note: "Likely cause: the table was rebuilt"}
	h := &Handler{Provider: p, Dir: dir, Prefix: "0f8fad5b-"}

	require.NoError(t, h.HandleIncident(scenario.Incident{Scenario: "fast-vote", Iteration: 3}))

	data, err := os.ReadFile(filepath.Join(dir, "0f8fad5b-fast-vote-3-triage.md"))
	require.NoError(t, err)
	assert.Equal(t, "Likely cause: the table was rebuilt\n", string(data))
	assert.Len(t, p.got, 1)
}

func TestHandlerProviderError(t *testing.T) {
	h := &Handler{Provider: &stubProvider{err: errors.New("rate limited")}, Dir: t.TempDir()}
	err := h.HandleIncident(scenario.Incident{Scenario: "sweep"})
	assert.ErrorContains(t, err, "triage: rate limited")
}

func TestBuildPrompt(t *testing.T) {
	var console []browser.LogEntry
	for i := 0; i < 50; i++ {
		console = append(console, browser.LogEntry{Time: time.Unix(0, 0).UTC(), Level: "log", Message: fmt.Sprintf("line %d", i)})
	}
	prompt := buildPrompt(scenario.Incident{
		Scenario:  "fast-vote",
		URL:       "http://localhost:9080/cldr-apps/v#/sr/Languages_A_D",
		Iteration: 7,
		State:     scenario.Settling,
		Target:    &locate.Target{RowKey: "7d1d3cbd260601a4", Cell: "addcell", Tag: "button"},
		Err:       errors.New("timed out"),
		Console:   console,
	})

	assert.Contains(t, prompt, "Phase: settling")
	assert.Contains(t, prompt, "Target (row,cell,tag): 7d1d3cbd260601a4,addcell,button")
	assert.Contains(t, prompt, "line 49")
	assert.Contains(t, prompt, "line 10")
	assert.NotContains(t, prompt, "line 9\n")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("gemini", "")
	assert.ErrorContains(t, err, "unknown provider")
}

func TestNewProviderNeedsKey(t *testing.T) {
	for _, k := range []string{"SURVEYDRIVER_ANTHROPIC_KEY", "ANTHROPIC_API_KEY", "SURVEYDRIVER_OPENAI_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}
	_, err := NewProvider("claude", "")
	assert.Error(t, err)
	_, err = NewProvider("openai", "")
	assert.Error(t, err)
}
