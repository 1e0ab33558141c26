package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/thereceipt/certificate-engine/pkg/certformat"
)

const maxRemoteImage = 20 << 20

// drawImage covers the layer box with the source image, cropping the
// overflow around the centre. An empty source draws nothing.
func (r *Renderer) drawImage(ctx context.Context, dc *gg.Context, c *certformat.Image) error {
	if c.Src == "" {
		return nil
	}
	img, err := r.loadImage(ctx, c.Src)
	if err != nil {
		return err
	}
	dc.DrawImage(imaging.Fill(img, dc.Width(), dc.Height(), imaging.Center, imaging.Lanczos), 0, 0)
	return nil
}

func (r *Renderer) drawBackground(ctx context.Context, dc *gg.Context, t *certformat.Template) error {
	img, err := r.loadImage(ctx, t.BackgroundImage)
	if err != nil {
		return err
	}
	img = imaging.Fill(img, dc.Width(), dc.Height(), imaging.Center, imaging.Lanczos)

	if t.BackgroundOpacity != nil {
		img = withAlpha(img, float64(*t.BackgroundOpacity)/100)
	}
	dc.DrawImage(img, 0, 0)
	return nil
}

// loadImage reads a data: URI, an http(s) URL or a local file
func (r *Renderer) loadImage(ctx context.Context, src string) (image.Image, error) {
	var (
		rd  io.Reader
		err error
	)
	switch {
	case strings.HasPrefix(src, "data:"):
		rd, err = decodeDataURI(src)
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		var body io.ReadCloser
		body, err = r.fetch(ctx, src)
		if err == nil {
			defer body.Close()
			rd = io.LimitReader(body, maxRemoteImage)
		}
	default:
		var f *os.File
		f, err = os.Open(src)
		if err == nil {
			defer f.Close()
			rd = f
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	img, err := imaging.Decode(rd, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (r *Renderer) fetch(ctx context.Context, src string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", src, resp.Status)
	}
	return resp.Body, nil
}

// decodeDataURI handles both base64 and percent-encoded payloads
func decodeDataURI(uri string) (io.Reader, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URI")
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]

	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(data), nil
}
