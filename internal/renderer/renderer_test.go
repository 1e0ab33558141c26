package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

func rgb(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func near(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -3 && d <= 3
}

func shapeElement(ids certformat.IDGenerator, x, y, w, h float64, bg string) certformat.Element {
	e := certformat.NewElement(certformat.KindShape, ids)
	e.X, e.Y, e.Width, e.Height = x, y, w, h
	s := e.Content.(*certformat.Shape)
	s.BackgroundColor = bg
	s.Stroke = ""
	return e
}

func canvas(w, h float64) *certformat.Template {
	t := certformat.NewTemplate("tpl", "Test")
	t.Width, t.Height = w, h
	return t
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want color.NRGBA
	}{
		{"#ff0000", true, color.NRGBA{255, 0, 0, 255}},
		{"#0f0", true, color.NRGBA{0, 255, 0, 255}},
		{"#0000ff80", true, color.NRGBA{0, 0, 255, 128}},
		{"rgb(10, 20, 30)", true, color.NRGBA{10, 20, 30, 255}},
		{"rgba(10,20,30,0)", true, color.NRGBA{10, 20, 30, 0}},
		{"White", true, color.NRGBA{255, 255, 255, 255}},
		{"transparent", false, color.NRGBA{}},
		{"", false, color.NRGBA{}},
		{"#zzz", false, color.NRGBA{}},
		{"rgb(300,0,0)", false, color.NRGBA{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, ok := parseColor(tt.in)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			got := color.NRGBAModel.Convert(c).(color.NRGBA)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFontFileNames(t *testing.T) {
	names := fontFileNames("Playfair Display", true, true)
	if names[0] != "PlayfairDisplay-BoldItalic" {
		t.Errorf("Expected PlayfairDisplay-BoldItalic first, got %s", names[0])
	}
	if names[len(names)-1] != "Playfair-Display" {
		t.Errorf("Expected bare dashed family last, got %s", names[len(names)-1])
	}
}

func TestFontSet_PrefersFontDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Inter-Bold.ttf")
	os.WriteFile(path, []byte("not a real font"), 0644)

	fonts := NewFontSet(dir)
	if got := fonts.Path("Inter", true, false); got != path {
		t.Errorf("Expected %s, got %s", path, got)
	}
	if got := fonts.Path("Inter", false, false); got == path {
		t.Error("Expected regular weight not to resolve to the bold file")
	}
}

func TestRenderImage_CanvasAndFill(t *testing.T) {
	ids := certformat.SequenceGenerator("el")
	tpl := canvas(200, 100)
	tpl, _ = certformat.AddElement(tpl, shapeElement(ids, 0, 0, 100, 100, "#ff0000"))

	img, err := New().RenderImage(context.Background(), tpl, "")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("Expected 200x100 canvas, got %dx%d", b.Dx(), b.Dy())
	}
	if r, g, b := rgb(img, 50, 50); r != 255 || g != 0 || b != 0 {
		t.Errorf("Expected red inside shape, got %d,%d,%d", r, g, b)
	}
	if r, g, b := rgb(img, 150, 50); r != 255 || g != 255 || b != 255 {
		t.Errorf("Expected white background, got %d,%d,%d", r, g, b)
	}
}

func TestRenderImage_ZOrder(t *testing.T) {
	ids := certformat.SequenceGenerator("el")
	tpl := canvas(100, 100)

	top := shapeElement(ids, 0, 0, 100, 100, "#0000ff")
	z := 5
	top.ZIndex = &z
	tpl, _ = certformat.AddElement(tpl, top)
	tpl, _ = certformat.AddElement(tpl, shapeElement(ids, 0, 0, 100, 100, "#ff0000"))

	img, err := New().RenderImage(context.Background(), tpl, "")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if r, g, b := rgb(img, 50, 50); r != 0 || g != 0 || b != 255 {
		t.Errorf("Expected higher zIndex drawn last, got %d,%d,%d", r, g, b)
	}
}

func TestRenderImage_Opacity(t *testing.T) {
	ids := certformat.SequenceGenerator("el")
	e := shapeElement(ids, 0, 0, 100, 100, "#ff0000")
	half := 0.5
	e.Opacity = &half
	tpl, _ := certformat.AddElement(canvas(100, 100), e)

	img, err := New().RenderImage(context.Background(), tpl, "")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if r, g, b := rgb(img, 50, 50); r != 255 || !near(g, 128) || !near(b, 128) {
		t.Errorf("Expected half transparent red over white, got %d,%d,%d", r, g, b)
	}
}

func TestRenderImage_RotationAboutCentre(t *testing.T) {
	ids := certformat.SequenceGenerator("el")
	bar := shapeElement(ids, 50, 45, 100, 10, "#0000ff")
	bar.Rotation = 90
	tpl, _ := certformat.AddElement(canvas(200, 100), bar)

	img, err := New().RenderImage(context.Background(), tpl, "")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if _, _, b := rgb(img, 100, 10); b != 255 {
		t.Error("Expected rotated bar to cover the vertical axis")
	}
	if r, g, b := rgb(img, 60, 50); r != 255 || g != 255 || b != 255 {
		t.Errorf("Expected original horizontal extent to be empty, got %d,%d,%d", r, g, b)
	}
}

func TestRenderImage_Text(t *testing.T) {
	ids := certformat.SequenceGenerator("el")
	e := certformat.NewElement(certformat.KindStaticText, ids)
	e.X, e.Y, e.Width, e.Height = 0, 0, 200, 50
	st := e.Content.(*certformat.StaticText)
	st.Text = "HELLO"
	st.FontSize = 24
	st.TextDecoration = "underline"
	tpl, _ := certformat.AddElement(canvas(200, 50), e)

	img, err := New().RenderImage(context.Background(), tpl, "")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	dark := 0
	for y := 0; y < 50; y++ {
		for x := 0; x < 200; x++ {
			if r, _, _ := rgb(img, x, y); r < 128 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("Expected text pixels on the canvas")
	}
}

func pngDataURI(t *testing.T, c color.Color) string {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRenderImage_ImageElement(t *testing.T) {
	ids := certformat.SequenceGenerator("el")
	e := certformat.NewElement(certformat.KindImage, ids)
	e.X, e.Y, e.Width, e.Height = 10, 10, 40, 40
	e.Content.(*certformat.Image).Src = pngDataURI(t, color.RGBA{0, 255, 0, 255})
	tpl, _ := certformat.AddElement(canvas(100, 100), e)

	img, err := New().RenderImage(context.Background(), tpl, "")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if r, g, b := rgb(img, 30, 30); r != 0 || g != 255 || b != 0 {
		t.Errorf("Expected green image, got %d,%d,%d", r, g, b)
	}
}

func TestRenderImage_MissingImageFails(t *testing.T) {
	ids := certformat.SequenceGenerator("el")
	e := certformat.NewElement(certformat.KindImage, ids)
	e.Content.(*certformat.Image).Src = filepath.Join(t.TempDir(), "missing.png")
	tpl, _ := certformat.AddElement(canvas(100, 100), e)

	if _, err := New().RenderImage(context.Background(), tpl, ""); err == nil {
		t.Error("Expected error for missing image")
	}
}

func TestRenderImage_BackgroundImage(t *testing.T) {
	tpl := canvas(50, 50)
	tpl.BackgroundImage = pngDataURI(t, color.RGBA{0, 0, 0, 255})
	opacity := 50
	tpl.BackgroundOpacity = &opacity

	img, err := New().RenderImage(context.Background(), tpl, "")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if r, _, _ := rgb(img, 25, 25); !near(r, 128) {
		t.Errorf("Expected half opaque black background, got %d", r)
	}
}

func TestRenderImage_Stamp(t *testing.T) {
	r := New(WithStamp(Stamp{Kind: StampQR, BaseURL: "https://verify.example.com/", Size: 64}))
	img, err := r.RenderImage(context.Background(), canvas(300, 200), "serial-1")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	dark := 0
	for y := 200 - 64 - stampMargin; y < 200-stampMargin; y++ {
		for x := 300 - 64 - stampMargin; x < 300-stampMargin; x++ {
			if r, _, _ := rgb(img, x, y); r < 128 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("Expected QR code in the bottom-right corner")
	}
}

func TestStamp_Payload(t *testing.T) {
	qr := Stamp{Kind: StampQR, BaseURL: "https://verify.example.com/"}
	if got := qr.Payload("abc"); got != "https://verify.example.com/abc" {
		t.Errorf("Expected verification URL, got %s", got)
	}
	bar := Stamp{Kind: StampCode128, BaseURL: "https://verify.example.com"}
	if got := bar.Payload("abc"); got != "abc" {
		t.Errorf("Expected bare serial for barcodes, got %s", got)
	}
}

func TestStamp_BarcodeWidth(t *testing.T) {
	for _, kind := range []StampKind{StampCode128, StampCode39} {
		t.Run(string(kind), func(t *testing.T) {
			img, err := Stamp{Kind: kind}.Image("2f1c9a4e-77b1-4c1e-9d0a-0c5e3f2b8a11")
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}
			if img.Bounds().Dx() < 200 || img.Bounds().Dy() != 40 {
				t.Errorf("Unexpected barcode size %v", img.Bounds())
			}
		})
	}

	img, err := Stamp{Kind: StampNone}.Image("x")
	if err != nil || img != nil {
		t.Errorf("Expected no image for disabled stamp, got %v, %v", img, err)
	}
}

func TestParseStampKind(t *testing.T) {
	if k, err := ParseStampKind("QR"); err != nil || k != StampQR {
		t.Errorf("Expected qr, got %s, %v", k, err)
	}
	if k, _ := ParseStampKind(""); k != StampNone {
		t.Errorf("Expected none for empty, got %s", k)
	}
	if _, err := ParseStampKind("datamatrix"); err == nil {
		t.Error("Expected error for unknown stamp kind")
	}
}

func TestEncodePDF(t *testing.T) {
	img, err := New().RenderImage(context.Background(), canvas(200, 100), "")
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	var buf bytes.Buffer
	if err := EncodePDF(&buf, img, 200, 100); err != nil {
		t.Fatalf("Failed to encode pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Error("Expected PDF header")
	}
}

func TestExporter_WritesPNG(t *testing.T) {
	dir := t.TempDir()
	x := NewExporter(New(), dir, "https://cdn.example.com/certs/")

	url, err := x.Render(context.Background(), batch.Request{
		RunID:    "run-1",
		RowIndex: 3,
		Serial:   "abc",
		Template: canvas(120, 80),
		Format:   batch.FormatPNG,
	})
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if url != "https://cdn.example.com/certs/run-1/0003-abc.png" {
		t.Errorf("Unexpected url %s", url)
	}

	f, err := os.Open(filepath.Join(dir, "run-1", "0003-abc.png"))
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if cfg.Width != 120 || cfg.Height != 80 {
		t.Errorf("Expected 120x80, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestExporter_PathWithoutBaseURL(t *testing.T) {
	dir := t.TempDir()
	x := NewExporter(New(), dir, "")

	path, err := x.Render(context.Background(), batch.Request{
		RunID: "run-1", Serial: "abc", Template: canvas(50, 50), Format: batch.FormatPDF,
	})
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if !strings.HasPrefix(path, dir) || filepath.Ext(path) != ".pdf" {
		t.Errorf("Expected pdf path under %s, got %s", dir, path)
	}
}

func TestExporter_RenderErrorWrapped(t *testing.T) {
	x := NewExporter(New(), t.TempDir(), "")

	_, err := x.Render(context.Background(), batch.Request{
		RunID: "run-1", Serial: "abc", Template: canvas(0, 0), Format: batch.FormatPNG,
	})
	if !errors.Is(err, certformat.ErrRender) {
		t.Errorf("Expected ErrRender, got %v", err)
	}
}
