package editor

import (
	"fmt"

	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// Patch is a partial element update. Nil fields are left unchanged.
type Patch struct {
	// Geometry, ignored on locked elements
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`

	ZIndex   *int     `json:"zIndex,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	ScaleX   *float64 `json:"scaleX,omitempty"`
	ScaleY   *float64 `json:"scaleY,omitempty"`

	// Text kinds
	Text           *string                `json:"text,omitempty"`
	BindingField   *string                `json:"bindingField,omitempty"`
	FontFamily     *string                `json:"fontFamily,omitempty"`
	FontSize       *float64               `json:"fontSize,omitempty"`
	FontWeight     *certformat.FontWeight `json:"fontWeight,omitempty"`
	FontStyle      *string                `json:"fontStyle,omitempty"`
	TextDecoration *string                `json:"textDecoration,omitempty"`
	Color          *string                `json:"color,omitempty"`
	TextAlign      *certformat.Align      `json:"textAlign,omitempty"`

	// Image
	Src *string `json:"src,omitempty"`

	// Shape
	ShapeType       *certformat.ShapeType `json:"shapeType,omitempty"`
	Fill            *string               `json:"fill,omitempty"`
	Stroke          *string               `json:"stroke,omitempty"`
	StrokeWidth     *float64              `json:"strokeWidth,omitempty"`
	BackgroundColor *string               `json:"backgroundColor,omitempty"`
	BorderColor     *string               `json:"borderColor,omitempty"`
	BorderWidth     *float64              `json:"borderWidth,omitempty"`
	BorderRadius    *float64              `json:"borderRadius,omitempty"`
}

func (p *Patch) hasText() bool {
	return p.Text != nil || p.BindingField != nil || p.FontFamily != nil || p.FontSize != nil ||
		p.FontWeight != nil || p.FontStyle != nil || p.TextDecoration != nil || p.Color != nil ||
		p.TextAlign != nil
}

func (p *Patch) hasShape() bool {
	return p.ShapeType != nil || p.Fill != nil || p.Stroke != nil || p.StrokeWidth != nil ||
		p.BackgroundColor != nil || p.BorderColor != nil || p.BorderWidth != nil || p.BorderRadius != nil
}

// apply merges p into e. Geometry is skipped when e is locked.
func (p *Patch) apply(e *certformat.Element) error {
	if err := p.checkApplicable(e.Kind()); err != nil {
		return err
	}
	if (p.Width != nil && *p.Width < 0) || (p.Height != nil && *p.Height < 0) {
		return fmt.Errorf("negative size: %w", certformat.ErrInvalidTemplate)
	}
	if p.Opacity != nil && (*p.Opacity < 0 || *p.Opacity > 1) {
		return fmt.Errorf("opacity %v out of range 0-1: %w", *p.Opacity, certformat.ErrInvalidTemplate)
	}

	if !e.IsLocked() {
		setFloat(&e.X, p.X)
		setFloat(&e.Y, p.Y)
		setFloat(&e.Width, p.Width)
		setFloat(&e.Height, p.Height)
	}

	if p.ZIndex != nil {
		z := *p.ZIndex
		e.ZIndex = &z
	}
	if p.Opacity != nil {
		o := *p.Opacity
		e.Opacity = &o
	}
	setFloat(&e.Rotation, p.Rotation)
	setFloat(&e.ScaleX, p.ScaleX)
	setFloat(&e.ScaleY, p.ScaleY)

	switch c := e.Content.(type) {
	case *certformat.StaticText:
		setString(&c.Text, p.Text)
		p.applyStyle(&c.TextStyle)
	case *certformat.DynamicText:
		setString(&c.Text, p.Text)
		setString(&c.BindingField, p.BindingField)
		p.applyStyle(&c.TextStyle)
	case *certformat.Image:
		setString(&c.Src, p.Src)
	case *certformat.Shape:
		if p.ShapeType != nil {
			c.ShapeType = *p.ShapeType
		}
		setString(&c.Fill, p.Fill)
		setString(&c.Stroke, p.Stroke)
		setFloat(&c.StrokeWidth, p.StrokeWidth)
		setString(&c.BackgroundColor, p.BackgroundColor)
		setString(&c.BorderColor, p.BorderColor)
		setFloat(&c.BorderWidth, p.BorderWidth)
		setFloat(&c.BorderRadius, p.BorderRadius)
	}

	return nil
}

func (p *Patch) checkApplicable(kind certformat.Kind) error {
	switch kind {
	case certformat.KindStaticText:
		if p.BindingField != nil {
			return fmt.Errorf("bindingField on %s: %w", kind, certformat.ErrInapplicable)
		}
		if p.Src != nil || p.hasShape() {
			return fmt.Errorf("image or shape attributes on %s: %w", kind, certformat.ErrInapplicable)
		}
	case certformat.KindDynamicText:
		if p.Src != nil || p.hasShape() {
			return fmt.Errorf("image or shape attributes on %s: %w", kind, certformat.ErrInapplicable)
		}
	case certformat.KindImage:
		if p.hasText() || p.hasShape() {
			return fmt.Errorf("text or shape attributes on %s: %w", kind, certformat.ErrInapplicable)
		}
	case certformat.KindShape:
		if p.hasText() || p.Src != nil {
			return fmt.Errorf("text or image attributes on %s: %w", kind, certformat.ErrInapplicable)
		}
	}
	return nil
}

func (p *Patch) applyStyle(s *certformat.TextStyle) {
	setString(&s.FontFamily, p.FontFamily)
	setFloat(&s.FontSize, p.FontSize)
	if p.FontWeight != nil {
		s.FontWeight = *p.FontWeight
	}
	setString(&s.FontStyle, p.FontStyle)
	setString(&s.TextDecoration, p.TextDecoration)
	setString(&s.Color, p.Color)
	if p.TextAlign != nil {
		s.TextAlign = *p.TextAlign
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Float returns a pointer to v, for building patches
func Float(v float64) *float64 { return &v }

// String returns a pointer to v, for building patches
func String(v string) *string { return &v }
