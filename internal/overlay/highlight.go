// Package overlay draws diagnostic markings on page screenshots
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Colors used for markings
var (
	TargetColor = color.RGBA{220, 38, 38, 255}
	ClickColor  = color.RGBA{66, 133, 244, 255}
)

// BorderWidth is the thickness of the target outline
const BorderWidth = 3

// Highlight returns a copy of frame with box outlined. With click set, a
// ring marks the center of the box where the click landed.
func Highlight(frame image.Image, box image.Rectangle, click bool) image.Image {
	bounds := frame.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, frame, bounds.Min, draw.Src)

	if box.Empty() {
		return result
	}
	for i := 0; i < BorderWidth; i++ {
		drawRect(result, box.Inset(-i), TargetColor)
	}
	if click {
		c := center(box)
		drawClickRipple(result, c.X, c.Y)
	}
	return result
}

func center(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	x1, y1, x2, y2 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	drawLine(img, x1, y1, x2, y1, c)
	drawLine(img, x2, y1, x2, y2, c)
	drawLine(img, x2, y2, x1, y2, c)
	drawLine(img, x1, y2, x1, y1, c)
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func drawClickRipple(img *image.RGBA, x, y int) {
	radius := 12
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		px := x + int(float64(radius)*math.Cos(rad))
		py := y + int(float64(radius)*math.Sin(rad))
		setPixelSafe(img, px, py, ClickColor)
		setPixelSafe(img, px+1, py, ClickColor)
		setPixelSafe(img, px, py+1, ClickColor)
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	bounds := img.Bounds()
	if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
		img.Set(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
