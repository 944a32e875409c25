package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.RetryBudget)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "http://localhost:9080/cldr-apps/v#/sr/Languages_A_D", cfg.PageURL(cfg.FastVote.Locale, cfg.FastVote.Page))
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
base_url: https://st.unicode.org/cldr-apps/
timeout: 45s
fast_vote:
  iterations: 3
  row_keys: [a, b]
browser:
  backend: chromedp
scenarios:
  vetting_table: true
`), Default())
	require.NoError(t, err)

	assert.Equal(t, "https://st.unicode.org/cldr-apps/", cfg.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.FastVote.Iterations)
	assert.Equal(t, []string{"a", "b"}, cfg.FastVote.RowKeys)
	assert.Equal(t, "chromedp", cfg.Browser.Backend)
	assert.True(t, cfg.Scenarios.VettingTable)
	assert.True(t, cfg.Scenarios.FastVoting)
	assert.Equal(t, "sr", cfg.FastVote.Locale)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "row_", cfg.Page.RowPrefix)
}

func TestParseIgnoresPassword(t *testing.T) {
	cfg, err := Parse([]byte("password: hunter2\n"), Default())
	require.NoError(t, err)
	assert.Empty(t, cfg.Password)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "surveydriver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry_budget: 7\n"), 0644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RetryBudget)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("timeout: [\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvBaseURL:  "http://st:8080/cldr-apps/",
		EnvPassword: "secret",
		EnvUser:     "3",
		EnvTriage:   "claude",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "http://st:8080/cldr-apps/", cfg.BaseURL)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.User)
	assert.Equal(t, "claude", cfg.Diagnostics.Triage)

	env[EnvUser] = "three"
	assert.Error(t, cfg.ApplyEnv(lookup))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.BaseURL = " "
	cfg.RetryBudget = 0
	cfg.FastVote.Iterations = 0
	cfg.Browser.Backend = "selenium"
	cfg.Diagnostics.Triage = "gemini"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"base_url", "retry_budget", "fast_vote.iterations", "browser.backend", "diagnostics.triage"} {
		assert.ErrorContains(t, err, want)
	}

	cfg = Default()
	cfg.Scenarios.FastVoting = false
	cfg.FastVote.RowKeys = nil
	assert.NoError(t, cfg.Validate())
}

func TestCredentials(t *testing.T) {
	cfg := Default()
	_, err := cfg.CredentialsForUser(1)
	assert.ErrorIs(t, err, ErrNoPassword)

	cfg.Password = "pw&x"
	creds, err := cfg.CredentialsForUser(2)
	require.NoError(t, err)
	assert.Equal(t, "driver-2@cldr-apps-webdriver.org", creds.Email)
	assert.Equal(t,
		"http://localhost:9080/cldr-apps/survey?email=driver-2%40cldr-apps-webdriver.org&uid=pw%26x",
		LoginURL(cfg.BaseURL, creds))
}

func TestSweepData(t *testing.T) {
	assert.NotEmpty(t, Locales)
	assert.NotEmpty(t, Pages)
	assert.NotEmpty(t, AnnotationPages)
}
