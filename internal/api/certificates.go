package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/internal/binding"
	"github.com/thereceipt/certificate-engine/internal/ingest"
	"github.com/thereceipt/certificate-engine/internal/renderer"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// generateRequest names a stored template, or carries one inline, plus the
// data rows. Multipart requests send templateId and format as form fields
// and the rows as a CSV, JSON or XLSX file in "data".
type generateRequest struct {
	TemplateID string          `json:"templateId"`
	Template   json.RawMessage `json:"template"`
	Rows       []binding.Row   `json:"rows"`
	Format     batch.Format    `json:"format"`
}

func (s *Server) bindGenerate(c *gin.Context) (*certformat.Template, []binding.Row, batch.Format, error) {
	var req generateRequest

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.TemplateID = c.PostForm("templateId")
		req.Format = batch.Format(c.PostForm("format"))

		header, err := c.FormFile("data")
		if err != nil {
			return nil, nil, "", fmt.Errorf("data file is required: %w", err)
		}
		f, err := header.Open()
		if err != nil {
			return nil, nil, "", err
		}
		defer f.Close()

		format := ingest.FormatFor(header.Filename, header.Header.Get("Content-Type"))
		table, err := ingest.Read(f, format)
		if err != nil {
			return nil, nil, "", err
		}
		req.Rows = table.Rows
	} else {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			return nil, nil, "", fmt.Errorf("invalid request: %w", err)
		}
	}

	if req.Format == "" {
		req.Format = batch.FormatPDF
	}
	if !req.Format.Valid() {
		return nil, nil, "", fmt.Errorf("unsupported format: %s", req.Format)
	}

	var (
		t   *certformat.Template
		err error
	)
	switch {
	case len(req.Template) > 0 && string(req.Template) != "null":
		t, err = certformat.Parse(req.Template)
	case req.TemplateID != "":
		t, err = s.deps.Templates.Get(c.Request.Context(), req.TemplateID)
	default:
		err = errors.New("templateId or template is required")
	}
	if err != nil {
		return nil, nil, "", err
	}

	return t, req.Rows, req.Format, nil
}

// handleGenerate runs a batch synchronously and returns its report
func (s *Server) handleGenerate(c *gin.Context) {
	t, rows, format, err := s.bindGenerate(c)
	if err != nil {
		s.fail(c, err, 400)
		return
	}

	report, err := s.deps.Generator.Run(c.Request.Context(), t, rows, format)
	if err != nil && report == nil {
		s.fail(c, err, 500)
		return
	}
	c.JSON(200, report)
}

// handleEnqueueRun queues a batch and returns its run id
func (s *Server) handleEnqueueRun(c *gin.Context) {
	t, rows, format, err := s.bindGenerate(c)
	if err != nil {
		s.fail(c, err, 400)
		return
	}

	runID, err := s.deps.Queue.Enqueue(t, rows, format)
	if err != nil {
		s.fail(c, err, 400)
		return
	}
	c.JSON(202, gin.H{"success": true, "runId": runID})
}

func (s *Server) handleListRuns(c *gin.Context) {
	c.JSON(200, gin.H{"runs": s.deps.Queue.ListRuns()})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.deps.Queue.GetRun(c.Param("id"))
	if err != nil {
		s.fail(c, err, 500)
		return
	}
	c.JSON(200, run)
}

func (s *Server) handleCancelRun(c *gin.Context) {
	if err := s.deps.Queue.Cancel(c.Param("id")); err != nil {
		s.fail(c, err, 409)
		return
	}
	c.JSON(200, gin.H{"success": true})
}

// handleListCertificates returns generation history, newest first
func (s *Server) handleListCertificates(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(400, gin.H{"error": fmt.Sprintf("invalid limit: %s", v)})
			return
		}
		limit = n
	}

	records, err := s.deps.History.ListGenerations(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err, 500)
		return
	}
	c.JSON(200, gin.H{"certificates": records})
}

// handlePreview resolves the template against one row. The response is
// the resolved template as JSON, or a PNG when format is png.
func (s *Server) handlePreview(c *gin.Context) {
	var req struct {
		Row    binding.Row `json:"row"`
		Format string      `json:"format"`
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	t, ok := s.loadTemplate(c)
	if !ok {
		return
	}

	resolved, err := binding.Resolve(t, req.Row)
	if err != nil {
		s.fail(c, err, 422)
		return
	}

	if req.Format != "png" {
		c.JSON(200, resolved)
		return
	}

	img, err := s.deps.Renderer.RenderImage(c.Request.Context(), resolved, "")
	if err != nil {
		s.fail(c, fmt.Errorf("%v: %w", err, certformat.ErrRender), 500)
		return
	}
	var buf bytes.Buffer
	if err := renderer.EncodePNG(&buf, img); err != nil {
		s.fail(c, err, 500)
		return
	}
	c.Data(200, "image/png", buf.Bytes())
}
