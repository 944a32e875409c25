// Package snapshot saves what the browser showed when something went wrong
package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	"github.com/v0xg/surveydriver/internal/overlay"
	"github.com/v0xg/surveydriver/internal/scenario"
)

// Options configures where and how snapshots are written
type Options struct {
	Dir      string
	RunID    string
	MaxWidth uint
	Logger   *slog.Logger
}

// Writer stores a highlighted screenshot and a text report per incident
type Writer struct {
	opts Options
}

func NewWriter(opts Options) *Writer {
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 1024
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Writer{opts: opts}
}

// Name returns the file name stem of an incident
func (w *Writer) Name(inc scenario.Incident) string {
	id := w.opts.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s-%d", strings.ReplaceAll(inc.Scenario, " ", "-"), inc.Iteration)
	if id != "" {
		name = id + "-" + name
	}
	return name
}

// HandleIncident writes <name>.png (if a screenshot was taken) and <name>.txt
func (w *Writer) HandleIncident(inc scenario.Incident) error {
	if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	base := filepath.Join(w.opts.Dir, w.Name(inc))

	if len(inc.Screenshot) > 0 {
		img, err := png.Decode(bytes.NewReader(inc.Screenshot))
		if err != nil {
			return fmt.Errorf("decode screenshot: %w", err)
		}
		img = Shrink(overlay.Highlight(img, inc.Bounds, false), w.opts.MaxWidth)
		if err := writePNG(base+".png", img); err != nil {
			return err
		}
	}
	if err := os.WriteFile(base+".txt", []byte(Report(inc)), 0644); err != nil {
		return fmt.Errorf("write snapshot report: %w", err)
	}
	w.opts.Logger.Info("snapshot saved", "path", base)
	fmt.Printf("→ Snapshot saved to %s\n", base)
	return nil
}

// Report renders an incident as plain text
func Report(inc scenario.Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario:  %s\n", inc.Scenario)
	fmt.Fprintf(&b, "url:       %s\n", inc.URL)
	fmt.Fprintf(&b, "iteration: %d\n", inc.Iteration)
	fmt.Fprintf(&b, "state:     %s\n", inc.State)
	if inc.Target != nil {
		fmt.Fprintf(&b, "target:    %s\n", inc.Target)
	}
	if !inc.At.IsZero() {
		fmt.Fprintf(&b, "time:      %s\n", inc.At.Format("2006-01-02T15:04:05.000Z07:00"))
	}
	fmt.Fprintf(&b, "error:     %v\n", inc.Err)
	if len(inc.Console) > 0 {
		b.WriteString("\nconsole:\n")
		for _, e := range inc.Console {
			b.WriteString("  " + e.String() + "\n")
		}
	}
	return b.String()
}

// Shrink scales img down to maxWidth keeping its aspect ratio
func Shrink(img image.Image, maxWidth uint) image.Image {
	if maxWidth == 0 || uint(img.Bounds().Dx()) <= maxWidth {
		return img
	}
	return resize.Resize(maxWidth, 0, img, resize.Lanczos3)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
