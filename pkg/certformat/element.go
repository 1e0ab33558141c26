package certformat

import "fmt"

// NewElement creates an element of the given kind with a fresh id and the
// designer defaults for that kind. An unknown kind is a programming error.
func NewElement(kind Kind, ids IDGenerator) Element {
	e := Element{
		ID:     ids(),
		X:      100,
		Y:      100,
		ScaleX: 1,
		ScaleY: 1,
	}

	switch kind {
	case KindStaticText:
		e.Width, e.Height = 200, 50
		e.Content = &StaticText{Text: "New Text", TextStyle: defaultTextStyle()}
	case KindDynamicText:
		e.Width, e.Height = 200, 50
		e.Content = &DynamicText{Text: "{field}", TextStyle: defaultTextStyle()}
	case KindImage:
		e.Width, e.Height = 100, 100
		e.Content = &Image{}
	case KindShape:
		e.Width, e.Height = 100, 100
		e.Content = &Shape{
			ShapeType:   ShapeRectangle,
			Fill:        "#3b82f6",
			Stroke:      "#000000",
			StrokeWidth: 2,
		}
	default:
		panic(fmt.Sprintf("certformat: unknown element kind %q", kind))
	}

	return e
}

// NewDynamicText creates a DynamicText element bound to field
func NewDynamicText(field string, ids IDGenerator) Element {
	e := NewElement(KindDynamicText, ids)
	c := e.Content.(*DynamicText)
	c.BindingField = field
	c.Text = Placeholder(field)
	return e
}

// Placeholder returns the visible marker for an unresolved binding field
func Placeholder(field string) string {
	return "{" + field + "}"
}

func defaultTextStyle() TextStyle {
	return TextStyle{
		FontFamily: "Arial",
		FontSize:   16,
		FontWeight: "normal",
		Color:      "#000000",
		TextAlign:  AlignLeft,
	}
}
