package browser

import (
	"fmt"
	"log/slog"
	"time"
)

// Backend names a browser automation library
type Backend string

const (
	BackendRod      Backend = "rod"
	BackendChromedp Backend = "chromedp"
)

// Options configures how a session is acquired
type Options struct {
	Backend    Backend
	Headless   bool
	Width      int
	Height     int
	RemoteURL  string        // DevTools endpoint of an already running browser (grid node)
	ProfileDir string        // Chrome/Chromium profile directory
	Linger     time.Duration // Keep the browser open this long before release

	// ActionTimeout bounds every protocol round trip, including a click
	// waiting for its target to become interactable
	ActionTimeout time.Duration
	Logger        *slog.Logger
}

// DefaultOptions returns a headless rod session with a desktop viewport
func DefaultOptions() Options {
	return Options{
		Backend:       BackendRod,
		Headless:      true,
		Width:         1280,
		Height:        900,
		ActionTimeout: 30 * time.Second,
	}
}

// Open acquires a browser session. A partially acquired session is
// released before an error is returned.
func Open(opts Options) (Driver, error) {
	if opts.Width == 0 || opts.Height == 0 {
		def := DefaultOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultOptions().ActionTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var d Driver
	var err error
	switch opts.Backend {
	case BackendRod, "":
		d, err = openRod(opts)
	case BackendChromedp:
		d, err = openChromedp(opts)
	default:
		return nil, fmt.Errorf("unknown browser backend: %s (supported: rod, chromedp)", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("browser session acquired", "backend", opts.Backend, "remote", opts.RemoteURL)
	if opts.Linger > 0 {
		return &lingeringDriver{Driver: d, linger: opts.Linger, logger: opts.Logger}, nil
	}
	return d, nil
}

// open is replaced in tests
var open = Open

// WithSession opens a session, runs fn, and releases the session on every
// exit path including panics in fn.
func WithSession(opts Options, fn func(Driver) error) (err error) {
	d, err := open(opts)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close browser: %w", cerr)
		}
	}()
	return fn(d)
}

type lingeringDriver struct {
	Driver
	linger time.Duration
	logger *slog.Logger
}

func (l *lingeringDriver) Close() error {
	l.logger.Info("keeping browser open before release", "linger", l.linger)
	time.Sleep(l.linger)
	return l.Driver.Close()
}
