package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
	"sort"

	"github.com/nfnt/resize"

	"github.com/v0xg/surveydriver/internal/browser"
	"github.com/v0xg/surveydriver/internal/overlay"
)

// RecorderOptions configures GIF recording
type RecorderOptions struct {
	FPS      int
	MaxWidth uint
	// MaxFrames bounds memory; older frames are dropped first
	MaxFrames int
}

// Recorder keeps one frame per captured step and writes them as a GIF
type Recorder struct {
	opts   RecorderOptions
	frames []image.Image
}

func NewRecorder(opts RecorderOptions) *Recorder {
	if opts.FPS <= 0 {
		opts.FPS = 2
	}
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 800
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = 200
	}
	return &Recorder{opts: opts}
}

// Capture screenshots the page, outlines the element with id highlightID
// if it exists, and keeps the frame
func (r *Recorder) Capture(d browser.Driver, highlightID string) error {
	data, err := d.Screenshot()
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}
	if highlightID != "" {
		if el, err := d.Find(browser.ByID, highlightID); err == nil {
			if box, err := el.Bounds(); err == nil {
				img = overlay.Highlight(img, box, true)
			}
		}
	}
	r.Add(img)
	return nil
}

// Add keeps img as the next frame
func (r *Recorder) Add(img image.Image) {
	r.frames = append(r.frames, img)
	if over := len(r.frames) - r.opts.MaxFrames; over > 0 {
		r.frames = append(r.frames[:0], r.frames[over:]...)
	}
}

func (r *Recorder) Frames() int { return len(r.frames) }

// Save writes the frames as a looping GIF and returns its size
func (r *Recorder) Save(outputPath string) (int64, error) {
	if len(r.frames) == 0 {
		return 0, nil
	}

	// in 100ths of a second
	delay := 100 / r.opts.FPS

	bounds := r.frames[0].Bounds()
	outputWidth := r.opts.MaxWidth
	if uint(bounds.Dx()) < outputWidth {
		outputWidth = uint(bounds.Dx())
	}
	aspectRatio := float64(bounds.Dy()) / float64(bounds.Dx())
	outputHeight := uint(float64(outputWidth) * aspectRatio)

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(r.frames)),
		Delay:     make([]int, len(r.frames)),
		LoopCount: 0,
	}
	palette := generatePalette(r.frames[0])
	for i, frame := range r.frames {
		resized := resize.Resize(outputWidth, outputHeight, frame, resize.Lanczos3)
		paletted := image.NewPaletted(resized.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})
		g.Image[i] = paletted
		g.Delay[i] = delay
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := gif.EncodeAll(f, g); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// generatePalette builds a 256-color palette from the most frequent
// colors of a sample of img's pixels, marker colors first
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)
	step := 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}]++
		}
	}
	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool { return counts[colors[i]] > counts[colors[j]] })

	palette := color.Palette{color.RGBA{0, 0, 0, 0}, overlay.TargetColor, overlay.ClickColor}
	for _, c := range colors {
		if len(palette) == 256 {
			break
		}
		if c == overlay.TargetColor || c == overlay.ClickColor {
			continue
		}
		palette = append(palette, c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}
