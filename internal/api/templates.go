package api

import (
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/thereceipt/certificate-engine/internal/editor"
	"github.com/thereceipt/certificate-engine/internal/viewport"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

const maxTemplateBody = 10 << 20

func (s *Server) handleListTemplates(c *gin.Context) {
	templates, err := s.deps.Templates.List(c.Request.Context())
	if err != nil {
		s.fail(c, err, 500)
		return
	}
	c.JSON(200, gin.H{"templates": templates})
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	t, ok := s.loadTemplate(c)
	if !ok {
		return
	}
	c.JSON(200, t)
}

// readTemplate parses the request body as a template document
func readTemplate(c *gin.Context) (*certformat.Template, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTemplateBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return certformat.Parse(data)
}

func (s *Server) handleCreateTemplate(c *gin.Context) {
	t, err := readTemplate(c)
	if err != nil {
		s.fail(c, err, 400)
		return
	}

	created, err := s.deps.Templates.Create(c.Request.Context(), t)
	if err != nil {
		s.fail(c, err, 500)
		return
	}
	c.JSON(201, created)
}

func (s *Server) handleUpdateTemplate(c *gin.Context) {
	t, err := readTemplate(c)
	if err != nil {
		s.fail(c, err, 400)
		return
	}
	t.ID = c.Param("id")

	updated, err := s.deps.Templates.Update(c.Request.Context(), t)
	if err != nil {
		s.fail(c, err, 500)
		return
	}
	c.JSON(200, updated)
}

func (s *Server) handleDeleteTemplate(c *gin.Context) {
	if err := s.deps.Templates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err, 500)
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleListThemes(c *gin.Context) {
	c.JSON(200, gin.H{"themes": s.deps.Themes})
}

func (s *Server) handleApplyTheme(c *gin.Context) {
	var req struct {
		ThemeID string `json:"themeId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "themeId is required"})
		return
	}

	theme, ok := certformat.FindTheme(s.deps.Themes, req.ThemeID)
	if !ok {
		c.JSON(404, gin.H{"error": fmt.Sprintf("theme not found: %s", req.ThemeID)})
		return
	}

	t, ok := s.loadTemplate(c)
	if !ok {
		return
	}
	s.save(c, certformat.ApplyTheme(t, theme), nil)
}

func (s *Server) handleSetPageSize(c *gin.Context) {
	var req struct {
		Size        string                 `json:"size" binding:"required"`
		Orientation certformat.Orientation `json:"orientation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "size is required"})
		return
	}

	t, ok := s.loadTemplate(c)
	if !ok {
		return
	}
	next, err := editor.SetPageSize(t, req.Size, req.Orientation)
	if err != nil {
		s.fail(c, err, 400)
		return
	}
	s.save(c, next, nil)
}

func (s *Server) handleListPageSizes(c *gin.Context) {
	c.JSON(200, gin.H{"pageSizes": certformat.PageSizes})
}

func (s *Server) loadTemplate(c *gin.Context) (*certformat.Template, bool) {
	t, err := s.deps.Templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, 500)
		return nil, false
	}
	return t, true
}

// save persists next and responds with it, plus the touched element when
// there is one
func (s *Server) save(c *gin.Context, next *certformat.Template, element *certformat.Element) {
	saved, err := s.deps.Templates.Update(c.Request.Context(), next)
	if err != nil {
		s.fail(c, err, 500)
		return
	}
	if element == nil {
		c.JSON(200, saved)
		return
	}
	c.JSON(200, gin.H{"template": saved, "element": element})
}

// edit loads the template, applies op and saves the result
func (s *Server) edit(c *gin.Context, op func(t *certformat.Template) (*certformat.Template, error)) {
	t, ok := s.loadTemplate(c)
	if !ok {
		return
	}
	next, err := op(t)
	if err != nil {
		s.fail(c, err, 400)
		return
	}
	if e, ok := certformat.FindElement(next, c.Param("eid")); ok {
		s.save(c, next, &e)
		return
	}
	s.save(c, next, nil)
}

func (s *Server) handleAddElement(c *gin.Context) {
	var req struct {
		Type         certformat.Kind `json:"type" binding:"required"`
		BindingField string          `json:"bindingField"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "type is required"})
		return
	}

	switch req.Type {
	case certformat.KindStaticText, certformat.KindDynamicText, certformat.KindImage, certformat.KindShape:
	default:
		c.JSON(400, gin.H{"error": fmt.Sprintf("unknown element type: %s", req.Type)})
		return
	}
	if req.BindingField != "" && req.Type != certformat.KindDynamicText {
		s.fail(c, fmt.Errorf("bindingField on %s: %w", req.Type, certformat.ErrInapplicable), 400)
		return
	}

	t, ok := s.loadTemplate(c)
	if !ok {
		return
	}

	var (
		next  *certformat.Template
		added certformat.Element
		err   error
	)
	if req.BindingField != "" {
		added = certformat.NewDynamicText(req.BindingField, s.deps.IDs)
		next, err = certformat.AddElement(t, added)
		added, _ = certformat.FindElement(next, added.ID)
	} else {
		next, added, err = editor.Add(t, req.Type, s.deps.IDs)
	}
	if err != nil {
		s.fail(c, err, 400)
		return
	}
	s.save(c, next, &added)
}

func (s *Server) handleUpdateElement(c *gin.Context) {
	var patch editor.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid patch: %v", err)})
		return
	}
	s.edit(c, func(t *certformat.Template) (*certformat.Template, error) {
		return editor.Update(t, c.Param("eid"), patch)
	})
}

func (s *Server) handleDeleteElement(c *gin.Context) {
	s.edit(c, func(t *certformat.Template) (*certformat.Template, error) {
		return editor.Delete(t, c.Param("eid")), nil
	})
}

func (s *Server) handleDuplicateElement(c *gin.Context) {
	t, ok := s.loadTemplate(c)
	if !ok {
		return
	}
	next, dup, err := editor.Duplicate(t, c.Param("eid"), s.deps.IDs)
	if err != nil {
		s.fail(c, err, 400)
		return
	}
	s.save(c, next, &dup)
}

func (s *Server) handleLockElement(locked bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.edit(c, func(t *certformat.Template) (*certformat.Template, error) {
			return editor.SetLocked(t, c.Param("eid"), locked)
		})
	}
}

func (s *Server) handleAlignElement(c *gin.Context) {
	var req struct {
		Mode editor.AlignMode `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "mode is required"})
		return
	}
	s.edit(c, func(t *certformat.Template) (*certformat.Template, error) {
		return editor.Align(t, c.Param("eid"), req.Mode)
	})
}

func (s *Server) handleReorderElement(c *gin.Context) {
	var req struct {
		Direction certformat.Direction `json:"direction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "direction is required"})
		return
	}
	s.edit(c, func(t *certformat.Template) (*certformat.Template, error) {
		return editor.Reorder(t, c.Param("eid"), req.Direction)
	})
}

// viewRequest carries view-space geometry at the designer's zoom level
type viewRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

func (r viewRequest) viewport() *viewport.Viewport {
	vp := viewport.New()
	if r.Scale != 0 {
		vp.SetScale(r.Scale)
	}
	return vp
}

func (s *Server) handleMoveElement(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid move: %v", err)})
		return
	}
	s.edit(c, func(t *certformat.Template) (*certformat.Template, error) {
		return editor.Move(t, c.Param("eid"), req.X, req.Y, req.viewport())
	})
}

func (s *Server) handleResizeElement(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid resize: %v", err)})
		return
	}
	rect := viewport.Rect{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}
	s.edit(c, func(t *certformat.Template) (*certformat.Template, error) {
		return editor.Resize(t, c.Param("eid"), rect, req.viewport())
	})
}
