// Package renderer rasterizes resolved certificate templates
package renderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// Renderer paints templates onto a canvas of the template's document size;
// one document unit is one pixel
type Renderer struct {
	fonts  *FontSet
	stamp  Stamp
	client *http.Client
	logger *slog.Logger
}

// Option configures a Renderer
type Option func(*Renderer)

// WithFontDir adds a directory searched for font files before system fonts
func WithFontDir(dir string) Option {
	return func(r *Renderer) { r.fonts = NewFontSet(dir) }
}

// WithStamp enables the verification stamp
func WithStamp(s Stamp) Option {
	return func(r *Renderer) { r.stamp = s }
}

// WithHTTPClient sets the client used for remote images
func WithHTTPClient(c *http.Client) Option {
	return func(r *Renderer) { r.client = c }
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a renderer
func New(opts ...Option) *Renderer {
	r := &Renderer{
		fonts:  NewFontSet(""),
		client: &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderImage paints t. Elements are drawn in z order; a non-empty serial
// adds the verification stamp when one is configured.
func (r *Renderer) RenderImage(ctx context.Context, t *certformat.Template, serial string) (image.Image, error) {
	width, height := int(math.Ceil(t.Width)), int(math.Ceil(t.Height))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas %vx%v", t.Width, t.Height)
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	if t.BackgroundImage != "" {
		if err := r.drawBackground(ctx, dc, t); err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
	}

	for _, e := range certformat.SortedByZ(t) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.drawElement(ctx, dc, e); err != nil {
			return nil, fmt.Errorf("element %s: %w", e.ID, err)
		}
	}

	if serial != "" {
		if err := r.drawStamp(dc, serial); err != nil {
			return nil, fmt.Errorf("stamp: %w", err)
		}
	}

	return dc.Image(), nil
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}

// drawElement paints the element on its own layer and composites the layer
// through the element's rotation and scale about its centre. gg applies the
// transform matrix to images but not to text, so every kind goes through
// a layer.
func (r *Renderer) drawElement(ctx context.Context, dc *gg.Context, e certformat.Element) error {
	w, h := int(math.Ceil(e.Width)), int(math.Ceil(e.Height))
	if w <= 0 || h <= 0 {
		return nil
	}

	layer := gg.NewContext(w, h)
	var err error
	switch c := e.Content.(type) {
	case *certformat.StaticText:
		err = r.drawText(layer, c.Text, c.TextStyle)
	case *certformat.DynamicText:
		err = r.drawText(layer, c.Text, c.TextStyle)
	case *certformat.Image:
		err = r.drawImage(ctx, layer, c)
	case *certformat.Shape:
		drawShape(layer, c)
	default:
		err = fmt.Errorf("unsupported element kind: %s", e.Kind())
	}
	if err != nil {
		return err
	}

	img := withAlpha(layer.Image(), e.Alpha())

	cx, cy := e.X+e.Width/2, e.Y+e.Height/2
	sx, sy := e.Scale()

	dc.Push()
	defer dc.Pop()
	if e.Rotation != 0 {
		dc.RotateAbout(gg.Radians(e.Rotation), cx, cy)
	}
	if sx != 1 || sy != 1 {
		dc.ScaleAbout(sx, sy, cx, cy)
	}
	dc.Translate(e.X, e.Y)
	dc.DrawImage(img, 0, 0)
	return nil
}

// withAlpha scales the alpha channel of img by a in [0,1]
func withAlpha(img image.Image, a float64) image.Image {
	if a >= 1 {
		return img
	}
	if a < 0 {
		a = 0
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.A = uint8(math.Round(float64(c.A) * a))
		return c
	})
}
