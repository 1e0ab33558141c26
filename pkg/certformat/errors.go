package certformat

import "errors"

// Error kinds surfaced by the document model and the generation pipeline
var (
	ErrDuplicateID      = errors.New("duplicate element id")
	ErrElementNotFound  = errors.New("element not found")
	ErrInapplicable     = errors.New("attribute not applicable to element kind")
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrNoData           = errors.New("no data rows")
	ErrRowResolution    = errors.New("row resolution failed")
	ErrRender           = errors.New("render failed")
	ErrTemplateNotFound = errors.New("template not found")
)
