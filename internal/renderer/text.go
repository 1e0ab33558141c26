package renderer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

const (
	defaultFontSize = 16
	lineSpacing     = 1.2
)

// System fonts tried when a family has no file in the font directory
var (
	systemFonts = []string{
		"/System/Library/Fonts/Helvetica.ttc",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	systemBoldFonts = []string{
		"/System/Library/Fonts/Supplemental/Arial Bold.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
		"C:\\Windows\\Fonts\\arialbd.ttf",
	}
)

// FontSet maps a family, weight and slant to a font file
type FontSet struct {
	dir string
}

// NewFontSet searches dir before the system fonts. dir may be empty.
func NewFontSet(dir string) *FontSet {
	return &FontSet{dir: dir}
}

// Path returns the best file for the face, or "" when nothing is installed
func (f *FontSet) Path(family string, bold, italic bool) string {
	if f.dir != "" && family != "" {
		for _, name := range fontFileNames(family, bold, italic) {
			for _, ext := range []string{".ttf", ".otf", ".ttc"} {
				path := filepath.Join(f.dir, name+ext)
				if _, err := os.Stat(path); err == nil {
					return path
				}
			}
		}
	}

	candidates := systemFonts
	if bold {
		candidates = append(append([]string{}, systemBoldFonts...), systemFonts...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// fontFileNames lists base names from most to least specific:
// "Playfair Display" bold italic gives PlayfairDisplay-BoldItalic first and
// PlayfairDisplay last.
func fontFileNames(family string, bold, italic bool) []string {
	bases := []string{strings.ReplaceAll(family, " ", "")}
	if dashed := strings.ReplaceAll(family, " ", "-"); dashed != bases[0] {
		bases = append(bases, dashed)
	}

	var suffixes []string
	switch {
	case bold && italic:
		suffixes = []string{"-BoldItalic", "-Bold", "-Italic"}
	case bold:
		suffixes = []string{"-Bold"}
	case italic:
		suffixes = []string{"-Italic"}
	}
	suffixes = append(suffixes, "-Regular", "")

	var names []string
	for _, suffix := range suffixes {
		for _, base := range bases {
			names = append(names, base+suffix)
		}
	}
	return names
}

// drawText lays text out inside the layer box: wrapped to the layer width,
// aligned horizontally, top anchored
func (r *Renderer) drawText(dc *gg.Context, text string, style certformat.TextStyle) error {
	if text == "" {
		return nil
	}

	size := style.FontSize
	if size <= 0 {
		size = defaultFontSize
	}

	italic := strings.EqualFold(style.FontStyle, "italic")
	if path := r.fonts.Path(style.FontFamily, style.FontWeight.IsBold(), italic); path != "" {
		if err := dc.LoadFontFace(path, size); err != nil {
			r.logger.Warn("failed to load font, using default face", "path", path, "error", err)
		}
	} else {
		r.logger.Warn("no font found, using default face", "family", style.FontFamily)
	}

	col, ok := parseColor(style.Color)
	if !ok {
		col, _ = parseColor("#000000")
	}
	dc.SetColor(col)

	width := float64(dc.Width())
	var align gg.Align
	switch style.TextAlign {
	case certformat.AlignCenter:
		align = gg.AlignCenter
	case certformat.AlignRight:
		align = gg.AlignRight
	default:
		align = gg.AlignLeft
	}
	dc.DrawStringWrapped(text, 0, 0, 0, 0, width, lineSpacing, align)

	decoration := strings.ToLower(style.TextDecoration)
	if decoration != "underline" && decoration != "line-through" {
		return nil
	}

	fh := dc.FontHeight()
	thickness := size / 16
	if thickness < 1 {
		thickness = 1
	}
	dc.SetLineWidth(thickness)

	for i, line := range wrapLines(dc, text, width) {
		lw, _ := dc.MeasureString(line)
		var lx float64
		switch align {
		case gg.AlignCenter:
			lx = (width - lw) / 2
		case gg.AlignRight:
			lx = width - lw
		}

		baseline := float64(i)*fh*lineSpacing + fh
		ly := baseline + thickness*2
		if decoration == "line-through" {
			ly = baseline - fh*0.35
		}
		dc.DrawLine(lx, ly, lx+lw, ly)
		dc.Stroke()
	}
	return nil
}

// wrapLines mirrors the line breaking of DrawStringWrapped
func wrapLines(dc *gg.Context, text string, width float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		lines = append(lines, dc.WordWrap(paragraph, width)...)
	}
	return lines
}
