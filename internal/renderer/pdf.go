package renderer

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Document units are CSS pixels at 96 DPI; PDF user space is 72 DPI
const pointsPerPixel = 72.0 / 96.0

// EncodePDF writes img as a single page PDF whose page size matches the
// canvas width and height
func EncodePDF(w io.Writer, img image.Image, width, height float64) error {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = &types.Dim{Width: width * pointsPerPixel, Height: height * pointsPerPixel}
	imp.UserDim = true
	imp.Pos = types.Full

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, w, []io.Reader{&buf}, imp, conf); err != nil {
		return fmt.Errorf("failed to build pdf: %w", err)
	}
	return nil
}
