package certformat

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FontWeight accepts both "bold" and 700 on input and keeps the textual form
type FontWeight string

// UnmarshalJSON implements json.Unmarshaler
func (w *FontWeight) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*w = FontWeight(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("fontWeight must be a string or number: %s", string(data))
	}
	*w = FontWeight(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}

// IsBold reports whether the weight renders as bold
func (w FontWeight) IsBold() bool {
	switch w {
	case "bold", "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}

// wireElement is the flat on-disk shape of an element. Kind-specific fields
// are only populated for the matching type tag.
type wireElement struct {
	ID       string   `json:"id"`
	Type     Kind     `json:"type"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Rotation float64  `json:"rotation,omitempty"`
	ZIndex   *int     `json:"zIndex,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	ScaleX   float64  `json:"scaleX,omitempty"`
	ScaleY   float64  `json:"scaleY,omitempty"`
	Locked   bool     `json:"locked,omitempty"`

	// Text
	Text           string     `json:"text,omitempty"`
	BindingField   string     `json:"bindingField,omitempty"`
	FontFamily     string     `json:"fontFamily,omitempty"`
	FontSize       float64    `json:"fontSize,omitempty"`
	FontWeight     FontWeight `json:"fontWeight,omitempty"`
	FontStyle      string     `json:"fontStyle,omitempty"`
	TextDecoration string     `json:"textDecoration,omitempty"`
	Color          string     `json:"color,omitempty"`
	TextAlign      Align      `json:"textAlign,omitempty"`

	// Image
	Src string `json:"src,omitempty"`

	// Shape
	ShapeType       ShapeType `json:"shapeType,omitempty"`
	Fill            string    `json:"fill,omitempty"`
	Stroke          string    `json:"stroke,omitempty"`
	StrokeWidth     float64   `json:"strokeWidth,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BorderWidth     float64   `json:"borderWidth,omitempty"`
	BorderRadius    float64   `json:"borderRadius,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (e Element) MarshalJSON() ([]byte, error) {
	w := wireElement{
		ID:       e.ID,
		Type:     e.Kind(),
		X:        e.X,
		Y:        e.Y,
		Width:    e.Width,
		Height:   e.Height,
		Rotation: e.Rotation,
		ZIndex:   e.ZIndex,
		Opacity:  e.Opacity,
		ScaleX:   e.ScaleX,
		ScaleY:   e.ScaleY,
		Locked:   e.Locked,
	}

	switch c := e.Content.(type) {
	case *StaticText:
		w.Text = c.Text
		w.setStyle(c.TextStyle)
	case *DynamicText:
		w.Text = c.Text
		w.BindingField = c.BindingField
		w.setStyle(c.TextStyle)
	case *Image:
		w.Src = c.Src
	case *Shape:
		w.ShapeType = c.ShapeType
		w.Fill = c.Fill
		w.Stroke = c.Stroke
		w.StrokeWidth = c.StrokeWidth
		w.BackgroundColor = c.BackgroundColor
		w.BorderColor = c.BorderColor
		w.BorderWidth = c.BorderWidth
		w.BorderRadius = c.BorderRadius
	default:
		return nil, fmt.Errorf("element %q: missing content", e.ID)
	}

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Element) UnmarshalJSON(data []byte) error {
	var w wireElement
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	el := Element{
		ID:       w.ID,
		X:        w.X,
		Y:        w.Y,
		Width:    w.Width,
		Height:   w.Height,
		Rotation: w.Rotation,
		ZIndex:   w.ZIndex,
		Opacity:  w.Opacity,
		ScaleX:   w.ScaleX,
		ScaleY:   w.ScaleY,
		Locked:   w.Locked,
	}

	switch w.Type {
	case KindStaticText:
		el.Content = &StaticText{Text: w.Text, TextStyle: w.style()}
	case KindDynamicText:
		el.Content = &DynamicText{Text: w.Text, BindingField: w.BindingField, TextStyle: w.style()}
	case KindImage:
		el.Content = &Image{Src: w.Src}
	case KindShape:
		el.Content = &Shape{
			ShapeType:       w.ShapeType,
			Fill:            w.Fill,
			Stroke:          w.Stroke,
			StrokeWidth:     w.StrokeWidth,
			BackgroundColor: w.BackgroundColor,
			BorderColor:     w.BorderColor,
			BorderWidth:     w.BorderWidth,
			BorderRadius:    w.BorderRadius,
		}
	default:
		return fmt.Errorf("element %q: unknown type %q", w.ID, w.Type)
	}

	if w.BindingField != "" && w.Type != KindDynamicText {
		return fmt.Errorf("element %q: bindingField is only valid on %s", w.ID, KindDynamicText)
	}

	*e = el
	return nil
}

func (w *wireElement) setStyle(s TextStyle) {
	w.FontFamily = s.FontFamily
	w.FontSize = s.FontSize
	w.FontWeight = s.FontWeight
	w.FontStyle = s.FontStyle
	w.TextDecoration = s.TextDecoration
	w.Color = s.Color
	w.TextAlign = s.TextAlign
}

func (w *wireElement) style() TextStyle {
	return TextStyle{
		FontFamily:     w.FontFamily,
		FontSize:       w.FontSize,
		FontWeight:     w.FontWeight,
		FontStyle:      w.FontStyle,
		TextDecoration: w.TextDecoration,
		Color:          w.Color,
		TextAlign:      w.TextAlign,
	}
}
