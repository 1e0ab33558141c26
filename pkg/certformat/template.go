package certformat

import (
	"fmt"
	"sort"
	"strings"
)

// Direction for ReorderElement
type Direction string

const (
	Front    Direction = "front"
	Back     Direction = "back"
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// PageSize is a named canvas preset in document-space units (96 DPI)
type PageSize struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var (
	A4Portrait  = PageSize{Name: "a4-portrait", Width: 794, Height: 1123}
	A4Landscape = PageSize{Name: "a4-landscape", Width: 1123, Height: 794}
	Letter      = PageSize{Name: "letter", Width: 816, Height: 1056}
)

// PageSizes lists the presets FindPageSize knows
var PageSizes = []PageSize{A4Portrait, A4Landscape, Letter}

// FindPageSize looks a preset up by name. "a4" names A4 portrait.
func FindPageSize(name string) (PageSize, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "a4" {
		return A4Portrait, true
	}
	for _, ps := range PageSizes {
		if ps.Name == name {
			return ps, true
		}
	}
	return PageSize{}, false
}

// Orientation reports which way the preset faces
func (ps PageSize) Orientation() Orientation {
	if ps.Width > ps.Height {
		return Landscape
	}
	return Portrait
}

// NewTemplate creates an empty template on the default canvas
func NewTemplate(id, name string) *Template {
	return &Template{
		ID:          id,
		Name:        name,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		Orientation: Landscape,
		Elements:    []Element{},
	}
}

// Clone returns a deep copy of the template
func (t *Template) Clone() *Template {
	cp := *t
	cp.Elements = make([]Element, len(t.Elements))
	for i, e := range t.Elements {
		cp.Elements[i] = e.Clone()
	}
	if t.BackgroundOpacity != nil {
		o := *t.BackgroundOpacity
		cp.BackgroundOpacity = &o
	}
	return &cp
}

// SetPageSize returns a copy of t resized to the preset, swapping the sides
// when the orientation demands it
func SetPageSize(t *Template, size PageSize, orientation Orientation) *Template {
	next := t.Clone()
	w, h := size.Width, size.Height
	if (orientation == Landscape && w < h) || (orientation == Portrait && w > h) {
		w, h = h, w
	}
	next.Width, next.Height = w, h
	next.Orientation = orientation
	return next
}

// AddElement returns a new template with e appended. An unset z-index is
// assigned the current element count.
func AddElement(t *Template, e Element) (*Template, error) {
	if _, exists := FindElement(t, e.ID); exists {
		return nil, fmt.Errorf("add element %q: %w", e.ID, ErrDuplicateID)
	}

	el := e.Clone()
	if el.ZIndex == nil {
		el.ZIndex = intPtr(len(t.Elements))
	}

	next := t.Clone()
	next.Elements = append(next.Elements, el)
	mustHaveUniqueIDs(next)
	return next, nil
}

// RemoveElement returns a new template without the element. Removing an
// absent id is a no-op.
func RemoveElement(t *Template, id string) *Template {
	next := t.Clone()
	kept := next.Elements[:0]
	for _, e := range next.Elements {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	next.Elements = kept
	return next
}

// FindElement returns a copy of the element with the given id
func FindElement(t *Template, id string) (Element, bool) {
	for _, e := range t.Elements {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return Element{}, false
}

// ReplaceElement returns a new template with the element of the same id
// swapped for e
func ReplaceElement(t *Template, e Element) (*Template, error) {
	idx := indexOf(t, e.ID)
	if idx < 0 {
		return nil, fmt.Errorf("replace element %q: %w", e.ID, ErrElementNotFound)
	}
	next := t.Clone()
	next.Elements[idx] = e.Clone()
	mustHaveUniqueIDs(next)
	return next, nil
}

// ReorderElement moves an element in the stacking order. Front and back jump
// past the current extremes; forward and backward step by one. Values are
// never compacted, so repeated calls may drift.
func ReorderElement(t *Template, id string, dir Direction) (*Template, error) {
	idx := indexOf(t, id)
	if idx < 0 {
		return nil, fmt.Errorf("reorder element %q: %w", id, ErrElementNotFound)
	}

	minZ, maxZ := zBounds(t)
	next := t.Clone()
	el := &next.Elements[idx]
	z := el.Z()

	switch dir {
	case Front:
		z = maxZ + 1
	case Back:
		z = minZ - 1
	case Forward:
		z++
	case Backward:
		z--
	default:
		return nil, fmt.Errorf("reorder element %q: unknown direction %q", id, dir)
	}

	el.ZIndex = intPtr(z)
	return next, nil
}

// Normalize compacts z-indexes to 0..N-1 keeping the current render order
func Normalize(t *Template) *Template {
	next := t.Clone()
	order := renderOrder(next)
	for z, idx := range order {
		next.Elements[idx].ZIndex = intPtr(z)
	}
	return next
}

// SortedByZ returns the elements in paint order: ascending z-index, ties
// broken by insertion order
func SortedByZ(t *Template) []Element {
	order := renderOrder(t)
	out := make([]Element, len(order))
	for i, idx := range order {
		out[i] = t.Elements[idx].Clone()
	}
	return out
}

// MaxZ returns the highest z-index in use, or -1 for an empty template
func MaxZ(t *Template) int {
	if len(t.Elements) == 0 {
		return -1
	}
	_, maxZ := zBounds(t)
	return maxZ
}

// BindingFields lists the distinct binding fields referenced by the template
func BindingFields(t *Template) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, e := range t.Elements {
		if c, ok := e.Content.(*DynamicText); ok && c.BindingField != "" && !seen[c.BindingField] {
			seen[c.BindingField] = true
			fields = append(fields, c.BindingField)
		}
	}
	return fields
}

func renderOrder(t *Template) []int {
	order := make([]int, len(t.Elements))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.Elements[order[a]].Z() < t.Elements[order[b]].Z()
	})
	return order
}

func zBounds(t *Template) (minZ, maxZ int) {
	for i, e := range t.Elements {
		z := e.Z()
		if i == 0 || z < minZ {
			minZ = z
		}
		if i == 0 || z > maxZ {
			maxZ = z
		}
	}
	return minZ, maxZ
}

func indexOf(t *Template, id string) int {
	for i, e := range t.Elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// mustHaveUniqueIDs panics when two elements share an id
func mustHaveUniqueIDs(t *Template) {
	if err := checkUniqueIDs(t); err != nil {
		panic("certformat: " + err.Error())
	}
}

func checkUniqueIDs(t *Template) error {
	seen := make(map[string]bool, len(t.Elements))
	for i, e := range t.Elements {
		if seen[e.ID] {
			return fmt.Errorf("elements[%d]: %q: %w", i, e.ID, ErrDuplicateID)
		}
		seen[e.ID] = true
	}
	return nil
}
