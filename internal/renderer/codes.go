package renderer

import (
	"fmt"
	"image"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/fogleman/gg"
	"github.com/skip2/go-qrcode"
)

// StampKind selects the verification code printed on each certificate
type StampKind string

const (
	StampNone    StampKind = "none"
	StampQR      StampKind = "qr"
	StampCode128 StampKind = "code128"
	StampCode39  StampKind = "code39"
)

const stampMargin = 24

// Stamp encodes the certificate serial, optionally behind a verification
// URL, in the bottom-right corner
type Stamp struct {
	Kind    StampKind
	BaseURL string // QR payload is BaseURL + "/" + serial
	Size    int    // QR side or barcode height in pixels
	Level   string // QR error correction: L, M, Q, H
}

// ParseStampKind accepts the configured names case-insensitively
func ParseStampKind(s string) (StampKind, error) {
	switch k := StampKind(strings.ToLower(s)); k {
	case "", StampNone:
		return StampNone, nil
	case StampQR, StampCode128, StampCode39:
		return k, nil
	}
	return "", fmt.Errorf("unknown stamp kind %q", s)
}

// Payload returns what the code encodes for serial
func (s Stamp) Payload(serial string) string {
	if s.Kind == StampQR && s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/") + "/" + serial
	}
	return serial
}

// Image renders the code for serial; nil when the stamp is disabled
func (s Stamp) Image(serial string) (image.Image, error) {
	switch s.Kind {
	case StampQR:
		return s.qr(serial)
	case StampCode128, StampCode39:
		return s.barcode(serial)
	}
	return nil, nil
}

func (s Stamp) qr(serial string) (image.Image, error) {
	size := s.Size
	if size == 0 {
		size = 96
	}

	level := qrcode.Medium
	switch strings.ToUpper(s.Level) {
	case "L":
		level = qrcode.Low
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	}

	qr, err := qrcode.New(s.Payload(serial), level)
	if err != nil {
		return nil, err
	}
	return qr.Image(size), nil
}

func (s Stamp) barcode(serial string) (image.Image, error) {
	height := s.Size
	if height == 0 {
		height = 40
	}

	var (
		code barcode.Barcode
		err  error
	)
	if s.Kind == StampCode39 {
		code, err = code39.Encode(serial, false, true)
	} else {
		code, err = code128.Encode(serial)
	}
	if err != nil {
		return nil, err
	}

	// barcode.Scale only enlarges by whole modules
	modules := code.Bounds().Dx()
	width := modules
	for width < 200 {
		width += modules
	}
	return barcode.Scale(code, width, height)
}

func (r *Renderer) drawStamp(dc *gg.Context, serial string) error {
	img, err := r.stamp.Image(serial)
	if err != nil || img == nil {
		return err
	}

	b := img.Bounds()
	x := dc.Width() - b.Dx() - stampMargin
	y := dc.Height() - b.Dy() - stampMargin
	if x < 0 || y < 0 {
		r.logger.Warn("canvas too small for verification stamp", "serial", serial)
		return nil
	}
	dc.DrawImage(img, x, y)
	return nil
}
