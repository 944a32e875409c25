package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/config"
	"github.com/v0xg/surveydriver/internal/scenario"
	"github.com/v0xg/surveydriver/internal/snapshot"
	"github.com/v0xg/surveydriver/internal/triage"
)

var (
	configPath  string
	baseURL     string
	user        int
	timeout     time.Duration
	poll        time.Duration
	budget      int
	backend     string
	remoteURL   string
	headed      bool
	profile     string
	linger      time.Duration
	verbose     bool
	snapshotDir string
	recordGIF   string
	triageWith  string
	triageModel string

	iterations int
	locale     string
	page       string
	stepsFile  string

	locales   []string
	pages     []string
	search    string
	keepGoing bool

	dataDir       string
	updateGoldens bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "surveydriver",
		Short: "Drive the CLDR Survey Tool through a browser like a voting user",
		Long: `surveydriver logs into a Survey Tool instance as a simulated user and
exercises it: fast voting on one page, console checks over many locales and
pages, and vetting-table comparisons against golden files.

Run one process per simulated user to put the server under load:
  surveydriver fastvote --user 1 &
  surveydriver fastvote --user 2 &`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&baseURL, "base-url", "", "Survey Tool base URL (default from config)")
	pf.IntVar(&user, "user", 0, "Simulated user number")
	pf.DurationVar(&timeout, "timeout", 0, "Timeout of every wait")
	pf.DurationVar(&poll, "poll", 0, "Poll interval of every wait")
	pf.IntVar(&budget, "budget", 0, "Retry budget for stale or missing elements")
	pf.StringVar(&backend, "driver", "", "Browser backend: rod, chromedp")
	pf.StringVar(&remoteURL, "remote", "", "DevTools URL of a running browser (grid node)")
	pf.BoolVar(&headed, "headed", false, "Show the browser window")
	pf.StringVar(&profile, "profile", "", "Chrome/Chromium profile directory")
	pf.DurationVar(&linger, "linger", 0, "Keep the browser open this long before closing it")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	pf.StringVar(&snapshotDir, "snapshots", "", "Write failure snapshots to this directory")
	pf.StringVar(&recordGIF, "record", "", "Record a GIF of every step to this file")
	pf.StringVar(&triageWith, "triage", "", "Ask an AI provider for a triage note on failure: claude, openai")
	pf.StringVar(&triageModel, "triage-model", "", "Specific triage model override")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run every scenario enabled in the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withRunner(cfg, func(r *scenario.Runner) error {
				return r.RunAll()
			})
		},
	}

	fastVoteCmd := &cobra.Command{
		Use:   "fastvote",
		Short: "Vote on several rows of one page, over and over, and time the server",
		Args:  cobra.NoArgs,
		RunE:  runFastVote,
	}
	fastVoteCmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Number of passes over the page")
	fastVoteCmd.Flags().StringVar(&locale, "locale", "", "Locale to vote in")
	fastVoteCmd.Flags().StringVar(&page, "page", "", "Page to vote on")
	fastVoteCmd.Flags().StringVar(&stepsFile, "steps", "", "YAML step list replacing the built-in plan")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Open every locale and page and check the browser console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, "locales and pages", func(c *config.Config) *config.Sweep { return &c.Sweep })
		},
	}
	annotationsCmd := &cobra.Command{
		Use:   "annotations",
		Short: "Sweep the annotation pages and count vote rounding messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, "annotation voting", func(c *config.Config) *config.Sweep { return &c.Annotations })
		},
	}
	for _, c := range []*cobra.Command{sweepCmd, annotationsCmd} {
		c.Flags().StringSliceVar(&locales, "locales", nil, "Locales to visit (default from config)")
		c.Flags().StringSliceVar(&pages, "pages", nil, "Pages to visit (default from config)")
		c.Flags().StringVar(&search, "search", "", "Console text that fails a page")
		c.Flags().BoolVar(&keepGoing, "keep-going", false, "Visit every page even after a failure")
	}

	vettingCmd := &cobra.Command{
		Use:   "vetting",
		Short: "Compare the vetting table with golden files while voting on one row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data") {
				cfg.Vetting.DataDir = dataDir
			}
			if updateGoldens {
				cfg.Vetting.UpdateGoldens = true
			}
			return withRunner(cfg, func(r *scenario.Runner) error {
				return r.VettingTable()
			})
		},
	}
	vettingCmd.Flags().StringVar(&dataDir, "data", "", "Directory of table0.txt..table2.txt")
	vettingCmd.Flags().BoolVar(&updateGoldens, "update-goldens", false, "Rewrite the golden files from this run")

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as the simulated user and stop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withRunner(cfg, func(r *scenario.Runner) error {
				if err := r.Login(); err != nil {
					return err
				}
				fmt.Println("✅ Login passed")
				return nil
			})
		},
	}

	rootCmd.AddCommand(runCmd, fastVoteCmd, sweepCmd, annotationsCmd, vettingCmd, loginCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runFastVote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("iterations") {
		cfg.FastVote.Iterations = iterations
	}
	if f.Changed("locale") {
		cfg.FastVote.Locale = locale
	}
	if f.Changed("page") {
		cfg.FastVote.Page = page
	}
	if f.Changed("steps") {
		cfg.FastVote.StepsFile = stepsFile
	}
	cfg.Scenarios.FastVoting = true
	if err := cfg.Validate(); err != nil {
		return err
	}

	return withRunner(cfg, func(r *scenario.Runner) error {
		steps, err := r.FastVoteSteps()
		if err != nil {
			return err
		}
		logVerbose("Plan: %d steps", len(steps))
		for i, s := range steps {
			logVerbose("  [%d] %s", i+1, s)
		}
		report, err := r.FastVote(steps)
		if report != nil {
			fmt.Printf("  %d iterations, %d passed, %d restarted, %d warnings, %d clicks, %d values entered, mean %s\n",
				report.Iterations, report.Passed, report.Restarts, report.Warnings, report.Clicks, report.Submits,
				report.Mean().Round(time.Millisecond))
		}
		return err
	})
}

func runSweep(cmd *cobra.Command, name string, pick func(*config.Config) *config.Sweep) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s := pick(&cfg)
	f := cmd.Flags()
	if f.Changed("locales") {
		s.Locales = locales
	}
	if f.Changed("pages") {
		s.Pages = pages
	}
	if f.Changed("search") {
		s.Search = search
	}
	if f.Changed("keep-going") {
		s.StopOnError = !keepGoing
	}
	return withRunner(cfg, func(r *scenario.Runner) error {
		report, err := r.Sweep(name, *s)
		if report != nil {
			fmt.Printf("  %d pages visited, %d failed\n", len(report.Pages), report.Errors())
		}
		return err
	})
}

// loadConfig layers defaults, the YAML file, the environment and flags
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()
	if f.Changed("base-url") {
		cfg.BaseURL = baseURL
	}
	if f.Changed("user") {
		cfg.User = user
	}
	if f.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if f.Changed("poll") {
		cfg.PollInterval = poll
	}
	if f.Changed("budget") {
		cfg.RetryBudget = budget
	}
	if f.Changed("driver") {
		cfg.Browser.Backend = backend
	}
	if f.Changed("remote") {
		cfg.Browser.RemoteURL = remoteURL
	}
	if headed {
		cfg.Browser.Headless = false
	}
	if f.Changed("profile") {
		cfg.Browser.ProfileDir = profile
	}
	if f.Changed("linger") {
		cfg.Browser.Linger = linger
	}
	if f.Changed("snapshots") {
		cfg.Diagnostics.SnapshotDir = snapshotDir
	}
	if f.Changed("record") {
		cfg.Diagnostics.RecordGIF = recordGIF
	}
	if f.Changed("triage") {
		cfg.Diagnostics.Triage = triageWith
	}
	if f.Changed("triage-model") {
		cfg.Diagnostics.TriageModel = triageModel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withRunner opens a browser session, wires the diagnostics and runs fn.
// The session is released on every path.
func withRunner(cfg config.Config, fn func(r *scenario.Runner) error) error {
	runID := uuid.NewString()
	logger := newLogger().With("run_id", runID)
	slog.SetDefault(logger)

	logVerbose("Starting surveydriver")
	logVerbose("  Run: %s", runID)
	logVerbose("  URL: %s", cfg.BaseURL)
	logVerbose("  User: %d", cfg.User)
	logVerbose("  Browser: %s", cfg.Browser.Backend)

	bopts := browser.Options{
		Backend:       browser.Backend(cfg.Browser.Backend),
		Headless:      cfg.Browser.Headless,
		Width:         cfg.Browser.Width,
		Height:        cfg.Browser.Height,
		RemoteURL:     cfg.Browser.RemoteURL,
		ProfileDir:    cfg.Browser.ProfileDir,
		Linger:        cfg.Browser.Linger,
		ActionTimeout: cfg.Timeout,
		Logger:        logger,
	}

	fmt.Printf("→ Opening browser... ")
	return browser.WithSession(bopts, func(d browser.Driver) error {
		fmt.Println("done")

		opts := scenario.Options{Logger: logger}
		if dir := cfg.Diagnostics.SnapshotDir; dir != "" {
			opts.Incidents = append(opts.Incidents, snapshot.NewWriter(snapshot.Options{Dir: dir, RunID: runID, Logger: logger}))
		}
		if name := cfg.Diagnostics.Triage; name != "" {
			p, err := triage.NewProvider(name, cfg.Diagnostics.TriageModel)
			if err != nil {
				fmt.Printf("⚠ Triage disabled: %v\n", err)
			} else {
				opts.Incidents = append(opts.Incidents, &triage.Handler{
					Provider: p,
					Dir:      cfg.Diagnostics.SnapshotDir,
					Prefix:   runID[:8] + "-",
					Logger:   logger,
				})
			}
		}

		var rec *snapshot.Recorder
		if cfg.Diagnostics.RecordGIF != "" {
			rec = snapshot.NewRecorder(snapshot.RecorderOptions{})
			opts.AfterStep = func(iteration int, s scenario.Step, rowID string, _ error) {
				if err := rec.Capture(d, rowID); err != nil {
					logger.Debug("frame capture failed", "iteration", iteration, "step", s.String(), "error", err)
				}
			}
		}

		err := fn(scenario.NewRunner(d, cfg, opts))

		if rec != nil && rec.Frames() > 0 {
			fmt.Printf("→ Generating GIF (%d frames)... ", rec.Frames())
			size, serr := rec.Save(cfg.Diagnostics.RecordGIF)
			if serr != nil {
				fmt.Println("failed")
				logger.Warn("recording not saved", "error", serr)
			} else {
				fmt.Println("done")
				fmt.Printf("✓ Saved to %s (%.1f MB)\n", cfg.Diagnostics.RecordGIF, float64(size)/(1024*1024))
			}
		}
		return err
	})
}

func logVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}
