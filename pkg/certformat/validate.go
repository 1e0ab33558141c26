package certformat

import (
	"fmt"
)

// Validate validates a Template structure
func Validate(t *Template) error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: canvas must be positive, got %vx%v", ErrInvalidTemplate, t.Width, t.Height)
	}

	if t.Orientation != "" && t.Orientation != Portrait && t.Orientation != Landscape {
		return fmt.Errorf("%w: invalid orientation %q (must be portrait or landscape)", ErrInvalidTemplate, t.Orientation)
	}

	if t.BackgroundOpacity != nil && (*t.BackgroundOpacity < 0 || *t.BackgroundOpacity > 100) {
		return fmt.Errorf("%w: backgroundOpacity %d out of range 0-100", ErrInvalidTemplate, *t.BackgroundOpacity)
	}

	if err := checkUniqueIDs(t); err != nil {
		return err
	}

	for i, e := range t.Elements {
		if err := validateElement(&e); err != nil {
			return fmt.Errorf("%w: elements[%d] %q: %v", ErrInvalidTemplate, i, e.ID, err)
		}
	}

	return nil
}

func validateElement(e *Element) error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Content == nil {
		return fmt.Errorf("content is required")
	}
	if e.Width < 0 || e.Height < 0 {
		return fmt.Errorf("negative size %vx%v", e.Width, e.Height)
	}
	if e.Opacity != nil && (*e.Opacity < 0 || *e.Opacity > 1) {
		return fmt.Errorf("opacity %v out of range 0-1", *e.Opacity)
	}

	switch c := e.Content.(type) {
	case *StaticText:
		return validateStyle(&c.TextStyle)
	case *DynamicText:
		return validateStyle(&c.TextStyle)
	case *Image:
		return nil
	case *Shape:
		return validateShape(c)
	default:
		return fmt.Errorf("unknown content %T", c)
	}
}

func validateStyle(s *TextStyle) error {
	if s.FontSize < 0 {
		return fmt.Errorf("negative fontSize %v", s.FontSize)
	}

	if s.TextAlign != "" {
		validAligns := []Align{AlignLeft, AlignCenter, AlignRight}
		valid := false
		for _, a := range validAligns {
			if s.TextAlign == a {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid textAlign '%s' (must be left, center, or right)", s.TextAlign)
		}
	}

	switch s.FontStyle {
	case "", "normal", "italic":
	default:
		return fmt.Errorf("invalid fontStyle '%s'", s.FontStyle)
	}

	switch s.TextDecoration {
	case "", "none", "underline", "line-through":
	default:
		return fmt.Errorf("invalid textDecoration '%s'", s.TextDecoration)
	}

	return nil
}

func validateShape(s *Shape) error {
	switch s.ShapeType {
	case "", ShapeRectangle, ShapeCircle, ShapeStar:
	default:
		return fmt.Errorf("invalid shapeType '%s' (must be rectangle, circle, or star)", s.ShapeType)
	}
	if s.StrokeWidth < 0 || s.BorderWidth < 0 || s.BorderRadius < 0 {
		return fmt.Errorf("negative stroke, border or radius")
	}
	return nil
}
