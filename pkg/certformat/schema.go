// Package certformat defines the certificate template document model
package certformat

import "time"

// Default canvas size: A4 at 96 DPI
const (
	DefaultWidth  = 794
	DefaultHeight = 1123
)

// Orientation of the canvas
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Template is a certificate document: a fixed document-space canvas plus an
// ordered collection of elements. Templates are treated as immutable values;
// every mutating operation returns a new Template.
type Template struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Width             float64     `json:"width"`
	Height            float64     `json:"height"`
	Orientation       Orientation `json:"orientation"`
	Elements          []Element   `json:"elements"`
	BackgroundImage   string      `json:"backgroundImage,omitempty"`
	BackgroundOpacity *int        `json:"backgroundOpacity,omitempty"` // 0-100
	BaseThemeID       string      `json:"baseThemeId,omitempty"`
	ThumbnailURL      string      `json:"thumbnailUrl,omitempty"`
	CreatedAt         time.Time   `json:"createdAt,omitempty"`
	UpdatedAt         time.Time   `json:"updatedAt,omitempty"`
}

// Kind tags the element variant
type Kind string

const (
	KindStaticText  Kind = "staticText"
	KindDynamicText Kind = "dynamicText"
	KindImage       Kind = "image"
	KindShape       Kind = "shape"
)

// Align is a horizontal text alignment
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// ShapeType selects the outline drawn for a Shape element
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeStar      ShapeType = "star"
)

// Element is one positioned visual unit on a Template.
//
// Geometry is in document-space units. Kind-specific attributes live in
// Content, which is one of *StaticText, *DynamicText, *Image or *Shape.
type Element struct {
	ID       string
	X        float64
	Y        float64
	Width    float64
	Height   float64
	ZIndex   *int
	Opacity  *float64
	Rotation float64
	ScaleX   float64
	ScaleY   float64
	Locked   bool
	Content  Content
}

// Content is the kind-specific payload of an Element
type Content interface {
	Kind() Kind
	clone() Content
}

// TextStyle holds typography shared by both text kinds
type TextStyle struct {
	FontFamily     string
	FontSize       float64
	FontWeight     FontWeight
	FontStyle      string // normal, italic
	TextDecoration string // none, underline, line-through
	Color          string
	TextAlign      Align
}

// StaticText renders literal text
type StaticText struct {
	Text string
	TextStyle
}

// DynamicText renders the value of BindingField from the current data row
type DynamicText struct {
	Text         string // designer placeholder, replaced on resolve
	BindingField string
	TextStyle
}

// Image renders a bitmap loaded from Src
type Image struct {
	Src string // URL, file path or data: URI
}

// Shape renders a filled/stroked outline
type Shape struct {
	ShapeType       ShapeType
	Fill            string
	Stroke          string
	StrokeWidth     float64
	BackgroundColor string
	BorderColor     string
	BorderWidth     float64
	BorderRadius    float64
}

func (*StaticText) Kind() Kind  { return KindStaticText }
func (*DynamicText) Kind() Kind { return KindDynamicText }
func (*Image) Kind() Kind       { return KindImage }
func (*Shape) Kind() Kind       { return KindShape }

func (c *StaticText) clone() Content  { cp := *c; return &cp }
func (c *DynamicText) clone() Content { cp := *c; return &cp }
func (c *Image) clone() Content       { cp := *c; return &cp }
func (c *Shape) clone() Content       { cp := *c; return &cp }

// Kind returns the element's variant tag
func (e Element) Kind() Kind {
	if e.Content == nil {
		return ""
	}
	return e.Content.Kind()
}

// Clone returns a deep copy of the element
func (e Element) Clone() Element {
	cp := e
	if e.ZIndex != nil {
		z := *e.ZIndex
		cp.ZIndex = &z
	}
	if e.Opacity != nil {
		o := *e.Opacity
		cp.Opacity = &o
	}
	if e.Content != nil {
		cp.Content = e.Content.clone()
	}
	return cp
}

// Z returns the stacking order, 0 when unset
func (e Element) Z() int {
	if e.ZIndex == nil {
		return 0
	}
	return *e.ZIndex
}

// Alpha returns the effective opacity in [0,1]
func (e Element) Alpha() float64 {
	if e.Opacity == nil {
		return 1
	}
	return *e.Opacity
}

// Scale returns the effective scale factors. A zero factor is read as identity.
func (e Element) Scale() (sx, sy float64) {
	sx, sy = e.ScaleX, e.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// IsLocked reports whether the element's geometry is frozen
func (e Element) IsLocked() bool {
	return e.Locked
}

// Text returns the element's text content and true for text kinds
func (e Element) Text() (string, bool) {
	switch c := e.Content.(type) {
	case *StaticText:
		return c.Text, true
	case *DynamicText:
		return c.Text, true
	}
	return "", false
}

// Style returns the typography of a text element
func (e Element) Style() (TextStyle, bool) {
	switch c := e.Content.(type) {
	case *StaticText:
		return c.TextStyle, true
	case *DynamicText:
		return c.TextStyle, true
	}
	return TextStyle{}, false
}

func intPtr(v int) *int { return &v }
