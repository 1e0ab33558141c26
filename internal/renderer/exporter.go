package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

// Exporter renders certificates to files under a run directory. It is the
// batch.Renderer used by the server and CLI.
type Exporter struct {
	renderer  *Renderer
	outputDir string
	baseURL   string
}

// NewExporter writes into outputDir. When baseURL is set, Render returns
// baseURL joined with the file's path relative to outputDir; otherwise it
// returns the file path.
func NewExporter(r *Renderer, outputDir, baseURL string) *Exporter {
	return &Exporter{renderer: r, outputDir: outputDir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Render implements batch.Renderer
func (x *Exporter) Render(ctx context.Context, req batch.Request) (string, error) {
	img, err := x.renderer.RenderImage(ctx, req.Template, req.Serial)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, certformat.ErrRender)
	}

	dir := filepath.Join(x.outputDir, req.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := fmt.Sprintf("%04d-%s.%s", req.RowIndex, req.Serial, req.Format)
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	switch req.Format {
	case batch.FormatPNG:
		err = EncodePNG(f, img)
	default:
		err = EncodePDF(f, img, req.Template.Width, req.Template.Height)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%v: %w", err, certformat.ErrRender)
	}

	if x.baseURL == "" {
		return path, nil
	}
	return x.baseURL + "/" + req.RunID + "/" + name, nil
}

// OutputDir is the root directory files are written under
func (x *Exporter) OutputDir() string {
	return x.outputDir
}
