// Package viewport converts between document space and the scaled view
// space shown on screen
package viewport

import "math"

const (
	MinScale     = 0.3
	MaxScale     = 2.0
	DefaultScale = 1.0
	Step         = 0.1
)

// ToView converts a document-space value to view space
func ToView(v, scale float64) float64 {
	return v * scale
}

// ToDocument converts a view-space value back to document space
func ToDocument(v, scale float64) float64 {
	return v / scale
}

// Rect is an axis-aligned box
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectToView scales every component of r into view space
func RectToView(r Rect, scale float64) Rect {
	return Rect{
		X:      ToView(r.X, scale),
		Y:      ToView(r.Y, scale),
		Width:  ToView(r.Width, scale),
		Height: ToView(r.Height, scale),
	}
}

// RectToDocument scales every component of r back into document space
func RectToDocument(r Rect, scale float64) Rect {
	return Rect{
		X:      ToDocument(r.X, scale),
		Y:      ToDocument(r.Y, scale),
		Width:  ToDocument(r.Width, scale),
		Height: ToDocument(r.Height, scale),
	}
}

// Viewport holds the transient zoom factor of an editing session. It is
// never persisted with a template.
type Viewport struct {
	scale float64
}

// New returns a viewport at scale 1.0
func New() *Viewport {
	return &Viewport{scale: DefaultScale}
}

// Scale returns the current zoom factor
func (v *Viewport) Scale() float64 {
	if v == nil || v.scale == 0 {
		return DefaultScale
	}
	return v.scale
}

// SetScale sets the zoom factor, clamped to [MinScale, MaxScale]
func (v *Viewport) SetScale(s float64) float64 {
	v.scale = clamp(s)
	return v.scale
}

// ZoomIn steps the zoom up by Step
func (v *Viewport) ZoomIn() float64 {
	return v.SetScale(round2(v.Scale() + Step))
}

// ZoomOut steps the zoom down by Step
func (v *Viewport) ZoomOut() float64 {
	return v.SetScale(round2(v.Scale() - Step))
}

// Reset returns the zoom to 1.0
func (v *Viewport) Reset() {
	v.scale = DefaultScale
}

// ToView converts a document-space value using the current scale
func (v *Viewport) ToView(d float64) float64 {
	return ToView(d, v.Scale())
}

// ToDocument converts a view-space value using the current scale
func (v *Viewport) ToDocument(d float64) float64 {
	return ToDocument(d, v.Scale())
}

func clamp(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// round2 keeps repeated steps from accumulating float error
func round2(s float64) float64 {
	return math.Round(s*100) / 100
}
