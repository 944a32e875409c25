// Package config holds the explicit run configuration. Nothing in the
// driver reads ambient state; every scenario receives a Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv
const (
	EnvBaseURL  = "SURVEYDRIVER_BASE_URL"
	EnvPassword = "SURVEYDRIVER_PASSWORD"
	EnvUser     = "SURVEYDRIVER_USER"
	EnvTriage   = "SURVEYDRIVER_TRIAGE"
)

type Config struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	RetryBudget  int           `yaml:"retry_budget"`
	User         int           `yaml:"user"`
	// Password is only taken from the environment
	Password string `yaml:"-"`

	Browser     Browser     `yaml:"browser"`
	Scenarios   Scenarios   `yaml:"scenarios"`
	Page        Page        `yaml:"page"`
	FastVote    FastVote    `yaml:"fast_vote"`
	Sweep       Sweep       `yaml:"sweep"`
	Annotations Sweep       `yaml:"annotations"`
	Vetting     Vetting     `yaml:"vetting"`
	Diagnostics Diagnostics `yaml:"diagnostics"`
}

type Browser struct {
	Backend    string        `yaml:"backend"`
	Headless   bool          `yaml:"headless"`
	RemoteURL  string        `yaml:"remote_url"`
	ProfileDir string        `yaml:"profile_dir"`
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	Linger     time.Duration `yaml:"linger"`
}

// Scenarios selects what `run` executes
type Scenarios struct {
	VettingTable     bool `yaml:"vetting_table"`
	FastVoting       bool `yaml:"fast_voting"`
	LocalesAndPages  bool `yaml:"locales_and_pages"`
	AnnotationVoting bool `yaml:"annotation_voting"`
}

// Page names the markup hooks of the Survey Tool
type Page struct {
	RowPrefix        string `yaml:"row_prefix"`
	PendingClass     string `yaml:"pending_class"`
	LoadingID        string `yaml:"loading_id"`
	SidebarID        string `yaml:"sidebar_id"`
	DraggerID        string `yaml:"dragger_id"`
	OverlayID        string `yaml:"overlay_id"`
	CloseScript      string `yaml:"close_script"`
	LoginTitle       string `yaml:"login_title"`
	LoginMarkerClass string `yaml:"login_marker_class"`
	CoverageMenuID   string `yaml:"coverage_menu_id"`
	CoverageLevel    string `yaml:"coverage_level"`
	RebuildMarker    string `yaml:"rebuild_marker"`
}

type FastVote struct {
	Locale     string   `yaml:"locale"`
	Page       string   `yaml:"page"`
	RowKeys    []string `yaml:"row_keys"`
	NewValue   string   `yaml:"new_value"`
	Iterations int      `yaml:"iterations"`
	// StepsFile optionally replaces the built-in plan with a YAML step list
	StepsFile string `yaml:"steps_file"`
}

type Sweep struct {
	Locales     []string `yaml:"locales"`
	Pages       []string `yaml:"pages"`
	Search      string   `yaml:"search"`
	StopOnError bool     `yaml:"stop_on_error"`
}

type Vetting struct {
	Locale        string `yaml:"locale"`
	Page          string `yaml:"page"`
	RowKey        string `yaml:"row_key"`
	RowPrefix     string `yaml:"row_prefix"`
	TableID       string `yaml:"table_id"`
	NewValue      string `yaml:"new_value"`
	DataDir       string `yaml:"data_dir"`
	UpdateGoldens bool   `yaml:"update_goldens"`
}

type Diagnostics struct {
	SnapshotDir string `yaml:"snapshot_dir"`
	RecordGIF   string `yaml:"record_gif"`
	// Triage is "", "claude" or "openai"
	Triage      string `yaml:"triage"`
	TriageModel string `yaml:"triage_model"`
}

// Default returns the configuration of a local Survey Tool instance
func Default() Config {
	return Config{
		BaseURL:      "http://localhost:9080/cldr-apps/",
		Timeout:      30 * time.Second,
		PollInterval: 100 * time.Millisecond,
		RetryBudget:  5,
		User:         1,
		Browser: Browser{
			Backend:  "rod",
			Headless: true,
			Width:    1280,
			Height:   900,
		},
		Scenarios: Scenarios{FastVoting: true},
		Page: Page{
			RowPrefix:        "row_",
			PendingClass:     "tr_checking2",
			LoadingID:        "LoadingMessageSection",
			SidebarID:        "left-sidebar",
			DraggerID:        "dragger",
			OverlayID:        "overlay",
			CloseScript:      "hideOverlayAndSidebar()",
			LoginTitle:       "Locale List",
			LoginMarkerClass: "glyphicon-user",
			CoverageMenuID:   "coverageLevel",
			CoverageLevel:    "comprehensive",
			RebuildMarker:    "insertRows: recreating table from scratch",
		},
		FastVote: FastVote{
			Locale:     "sr",
			Page:       "Languages_A_D",
			RowKeys:    []string{"f3d4397b739b287", "6899b21f19eef8cc", "1660459cc74c9aec", "7d1d3cbd260601a4"},
			NewValue:   "Testxyz",
			Iterations: 1000,
		},
		Sweep: Sweep{
			Locales:     Locales,
			Pages:       Pages,
			Search:      "INHERITANCE_MARKER without inheritedValue",
			StopOnError: true,
		},
		Annotations: Sweep{
			Locales: Locales,
			Pages:   AnnotationPages,
			Search:  "Rounding matters for useKeywordAnnotationVoting",
		},
		Vetting: Vetting{
			Locale:    "aa",
			Page:      "Numbering_Systems",
			RowKey:    "7b8ee7884f773afa",
			RowPrefix: "r@",
			TableID:   "vetting-table",
			NewValue:  "taml",
			DataDir:   "testdata/vetting",
		},
	}
}

// Load reads a YAML file over Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, cfg)
}

// Parse decodes YAML over base; keys missing from data keep base's values
func Parse(data []byte, base Config) (Config, error) {
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from environment variables. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Password = v
	}
	if v, ok := lookup(EnvUser); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUser, err)
		}
		c.User = n
	}
	if v, ok := lookup(EnvTriage); ok {
		c.Diagnostics.Triage = v
	}
	return nil
}

// Validate rejects configurations no scenario can run with
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("base_url must be set"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.RetryBudget <= 0 {
		errs = append(errs, errors.New("retry_budget must be positive"))
	}
	if c.User < 0 {
		errs = append(errs, errors.New("user must not be negative"))
	}
	if c.Scenarios.FastVoting {
		if c.FastVote.Iterations <= 0 {
			errs = append(errs, errors.New("fast_vote.iterations must be positive"))
		}
		if len(c.FastVote.RowKeys) == 0 && c.FastVote.StepsFile == "" {
			errs = append(errs, errors.New("fast_vote.row_keys must be non-empty"))
		}
	}
	switch c.Browser.Backend {
	case "", "rod", "chromedp":
	default:
		errs = append(errs, fmt.Errorf("browser.backend unsupported: %q", c.Browser.Backend))
	}
	switch c.Diagnostics.Triage {
	case "", "claude", "openai":
	default:
		errs = append(errs, fmt.Errorf("diagnostics.triage unsupported: %q", c.Diagnostics.Triage))
	}
	return errors.Join(errs...)
}

// PageURL is the address of one locale and page
func (c Config) PageURL(locale, page string) string {
	return c.BaseURL + "v#/" + locale + "/" + page
}
