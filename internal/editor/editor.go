// Package editor implements the interactive mutation operations applied to a
// template while it is being designed. Every operation takes a template and
// returns a new one; inputs are never modified.
package editor

import (
	"fmt"

	"github.com/thereceipt/certificate-engine/internal/viewport"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// DuplicateOffset is how far a duplicate is shifted from its source
const DuplicateOffset = 20

// AlignMode selects the axis for Align
type AlignMode string

const (
	CenterHorizontal AlignMode = "centerHorizontal"
	CenterVertical   AlignMode = "centerVertical"
	CenterBoth       AlignMode = "centerBoth"
)

// Add creates an element of the given kind with designer defaults and
// appends it on top of the stack
func Add(t *certformat.Template, kind certformat.Kind, ids certformat.IDGenerator) (*certformat.Template, certformat.Element, error) {
	e := certformat.NewElement(kind, ids)
	next, err := certformat.AddElement(t, e)
	if err != nil {
		return nil, certformat.Element{}, err
	}
	added, _ := certformat.FindElement(next, e.ID)
	return next, added, nil
}

// Update merges patch into the element. On a locked element the position
// and size fields are silently dropped.
func Update(t *certformat.Template, id string, patch Patch) (*certformat.Template, error) {
	e, ok := certformat.FindElement(t, id)
	if !ok {
		return nil, fmt.Errorf("update %q: %w", id, certformat.ErrElementNotFound)
	}

	if err := patch.apply(&e); err != nil {
		return nil, fmt.Errorf("update %q: %w", id, err)
	}

	return certformat.ReplaceElement(t, e)
}

// Duplicate copies an element under a fresh id, offset down and right, and
// places it above every existing element
func Duplicate(t *certformat.Template, id string, ids certformat.IDGenerator) (*certformat.Template, certformat.Element, error) {
	src, ok := certformat.FindElement(t, id)
	if !ok {
		return nil, certformat.Element{}, fmt.Errorf("duplicate %q: %w", id, certformat.ErrElementNotFound)
	}

	dup := src.Clone()
	dup.ID = ids()
	dup.X += DuplicateOffset
	dup.Y += DuplicateOffset
	z := certformat.MaxZ(t) + 1
	dup.ZIndex = &z

	next, err := certformat.AddElement(t, dup)
	if err != nil {
		return nil, certformat.Element{}, err
	}
	return next, dup, nil
}

// Delete removes an element. Deleting an absent id is a no-op.
func Delete(t *certformat.Template, id string) *certformat.Template {
	return certformat.RemoveElement(t, id)
}

// SetLocked toggles the lock flag; nothing else changes
func SetLocked(t *certformat.Template, id string, locked bool) (*certformat.Template, error) {
	e, ok := certformat.FindElement(t, id)
	if !ok {
		return nil, fmt.Errorf("lock %q: %w", id, certformat.ErrElementNotFound)
	}
	e.Locked = locked
	return certformat.ReplaceElement(t, e)
}

// Align centres an element on the canvas along the chosen axis. Positions are
// computed from the element's own size; rotation and scale are ignored.
func Align(t *certformat.Template, id string, mode AlignMode) (*certformat.Template, error) {
	e, ok := certformat.FindElement(t, id)
	if !ok {
		return nil, fmt.Errorf("align %q: %w", id, certformat.ErrElementNotFound)
	}

	var patch Patch
	switch mode {
	case CenterHorizontal:
		patch.X = Float((t.Width - e.Width) / 2)
	case CenterVertical:
		patch.Y = Float((t.Height - e.Height) / 2)
	case CenterBoth:
		patch.X = Float((t.Width - e.Width) / 2)
		patch.Y = Float((t.Height - e.Height) / 2)
	default:
		return nil, fmt.Errorf("align %q: unknown mode %q", id, mode)
	}

	return Update(t, id, patch)
}

// Reorder changes an element's stacking order
func Reorder(t *certformat.Template, id string, dir certformat.Direction) (*certformat.Template, error) {
	return certformat.ReorderElement(t, id, dir)
}

// Move places an element at a view-space position, converting to document
// space with the viewport's current scale
func Move(t *certformat.Template, id string, viewX, viewY float64, vp *viewport.Viewport) (*certformat.Template, error) {
	return Update(t, id, Patch{
		X: Float(vp.ToDocument(viewX)),
		Y: Float(vp.ToDocument(viewY)),
	})
}

// Resize sets an element's box from a view-space rectangle
func Resize(t *certformat.Template, id string, view viewport.Rect, vp *viewport.Viewport) (*certformat.Template, error) {
	doc := viewport.RectToDocument(view, vp.Scale())
	return Update(t, id, Patch{
		X:      Float(doc.X),
		Y:      Float(doc.Y),
		Width:  Float(doc.Width),
		Height: Float(doc.Height),
	})
}

// SetPageSize resizes the canvas to a named preset. An empty orientation
// keeps the preset's own. Elements keep their positions.
func SetPageSize(t *certformat.Template, name string, orientation certformat.Orientation) (*certformat.Template, error) {
	size, ok := certformat.FindPageSize(name)
	if !ok {
		return nil, fmt.Errorf("page size %q: %w", name, certformat.ErrInvalidTemplate)
	}

	switch orientation {
	case "":
		orientation = size.Orientation()
	case certformat.Portrait, certformat.Landscape:
	default:
		return nil, fmt.Errorf("orientation %q: %w", orientation, certformat.ErrInvalidTemplate)
	}

	return certformat.SetPageSize(t, size, orientation), nil
}
