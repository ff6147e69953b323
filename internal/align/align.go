// Package align decides whether a detected hand sits inside the capture guide region.
package align

import (
	"image"

	"github.com/ayusman/palmprint/internal/detector"
)

// Reference capture geometry.
const (
	DefaultFrameWidth  = 480
	DefaultFrameHeight = 320
	DefaultMarginPx    = 4
	DefaultTolerance   = 3
)

// Frame is the pixel size of the capture frame landmarks are projected onto.
type Frame struct {
	Width  int
	Height int
}

// GuideRegion is the target box as fractions of the frame.
type GuideRegion struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultGuide is a 400x240 box centered in a 480x320 frame.
func DefaultGuide() GuideRegion {
	return GuideRegion{
		Left:   40.0 / DefaultFrameWidth,
		Top:    40.0 / DefaultFrameHeight,
		Width:  400.0 / DefaultFrameWidth,
		Height: 240.0 / DefaultFrameHeight,
	}
}

// Rect is an axis-aligned rectangle in pixel space. Bounds are inclusive.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Contains reports whether (x, y) lies within the rectangle, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// Image returns the rectangle rounded to integer pixel coordinates,
// suitable for drawing the guide box.
func (r Rect) Image() image.Rectangle {
	return image.Rect(int(r.Left+0.5), int(r.Top+0.5), int(r.Right+0.5), int(r.Bottom+0.5))
}

// Evaluator checks landmark sets against an inset guide region.
// The zero value is not useful; use NewEvaluator or fill every field.
type Evaluator struct {
	Frame     Frame
	Guide     GuideRegion
	MarginPx  float64
	Tolerance int
}

// NewEvaluator returns an Evaluator with the reference geometry.
func NewEvaluator() Evaluator {
	return Evaluator{
		Frame:     Frame{Width: DefaultFrameWidth, Height: DefaultFrameHeight},
		Guide:     DefaultGuide(),
		MarginPx:  DefaultMarginPx,
		Tolerance: DefaultTolerance,
	}
}

// InsetRect returns the guide region in pixels, shrunk by MarginPx on every side.
func (e Evaluator) InsetRect() Rect {
	w := float64(e.Frame.Width)
	h := float64(e.Frame.Height)
	left := e.Guide.Left * w
	top := e.Guide.Top * h
	return Rect{
		Left:   left + e.MarginPx,
		Top:    top + e.MarginPx,
		Right:  left + e.Guide.Width*w - e.MarginPx,
		Bottom: top + e.Guide.Height*h - e.MarginPx,
	}
}

// Inside counts the landmarks whose projected (x, y) fall within InsetRect.
func (e Evaluator) Inside(hand *detector.HandLandmarks) int {
	if hand == nil {
		return 0
	}

	rect := e.InsetRect()
	w := float64(e.Frame.Width)
	h := float64(e.Frame.Height)

	n := 0
	for _, p := range hand.Points {
		if rect.Contains(p.X*w, p.Y*h) {
			n++
		}
	}
	return n
}

// Aligned reports whether at least NumLandmarks-Tolerance points are inside
// the inset guide region. A nil hand is never aligned.
func (e Evaluator) Aligned(hand *detector.HandLandmarks) bool {
	if hand == nil {
		return false
	}
	return e.Inside(hand) >= detector.NumLandmarks-e.Tolerance
}
