package renderer

import (
	"math"

	"github.com/fogleman/gg"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// drawShape fills and strokes the outline inside the layer box.
// BackgroundColor and BorderColor take precedence over Fill and Stroke.
func drawShape(dc *gg.Context, s *certformat.Shape) {
	fill, hasFill := parseColor(s.BackgroundColor)
	if !hasFill {
		fill, hasFill = parseColor(s.Fill)
	}

	stroke, hasStroke := parseColor(s.BorderColor)
	strokeWidth := s.BorderWidth
	if !hasStroke {
		stroke, hasStroke = parseColor(s.Stroke)
		strokeWidth = s.StrokeWidth
	}
	if strokeWidth <= 0 {
		hasStroke = false
	}

	w, h := float64(dc.Width()), float64(dc.Height())
	inset := 0.0
	if hasStroke {
		inset = strokeWidth / 2
	}

	trace := func() {
		switch s.ShapeType {
		case certformat.ShapeCircle:
			dc.DrawEllipse(w/2, h/2, w/2-inset, h/2-inset)
		case certformat.ShapeStar:
			traceStar(dc, w/2, h/2, w/2-inset, h/2-inset)
		default:
			radius := math.Min(s.BorderRadius, math.Min(w, h)/2)
			if radius > 0 {
				dc.DrawRoundedRectangle(inset, inset, w-2*inset, h-2*inset, radius)
			} else {
				dc.DrawRectangle(inset, inset, w-2*inset, h-2*inset)
			}
		}
	}

	if hasFill {
		trace()
		dc.SetColor(fill)
		dc.Fill()
	}
	if hasStroke {
		trace()
		dc.SetColor(stroke)
		dc.SetLineWidth(strokeWidth)
		dc.Stroke()
	}
}

// traceStar adds a five point star inscribed in the ellipse rx, ry
func traceStar(dc *gg.Context, cx, cy, rx, ry float64) {
	const points = 5
	const inner = 0.382
	for i := 0; i < points*2; i++ {
		angle := -math.Pi/2 + float64(i)*math.Pi/points
		k := 1.0
		if i%2 == 1 {
			k = inner
		}
		x, y := cx+math.Cos(angle)*rx*k, cy+math.Sin(angle)*ry*k
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
}
