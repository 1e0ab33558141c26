package renderer

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var namedColors = map[string]color.NRGBA{
	"black": {0, 0, 0, 255},
	"white": {255, 255, 255, 255},
	"red":   {255, 0, 0, 255},
	"green": {0, 128, 0, 255},
	"blue":  {0, 0, 255, 255},
	"gray":  {128, 128, 128, 255},
	"grey":  {128, 128, 128, 255},
	"gold":  {255, 215, 0, 255},
}

// parseColor understands #rgb, #rrggbb, #rrggbbaa, rgb(), rgba() and a few
// names. ok is false for empty, "transparent" and unparseable values.
func parseColor(s string) (c color.Color, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "transparent" || s == "none":
		return nil, false

	case strings.HasPrefix(s, "#") && len(s) == 9:
		base, err := colorful.Hex(s[:7])
		if err != nil {
			return nil, false
		}
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return nil, false
		}
		r, g, b := base.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: uint8(a)}, true

	case strings.HasPrefix(s, "#"):
		col, err := colorful.Hex(s)
		if err != nil {
			return nil, false
		}
		r, g, b := col.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: 255}, true

	case strings.HasPrefix(s, "rgb"):
		return parseRGBFunc(s)
	}

	if named, exists := namedColors[s]; exists {
		return named, true
	}
	return nil, false
}

func parseRGBFunc(s string) (color.Color, bool) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return nil, false
	}
	parts := strings.Split(s[open+1:end], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return nil, false
	}

	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return nil, false
		}
		rgb[i] = uint8(v)
	}

	alpha := uint8(255)
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return nil, false
		}
		alpha = uint8(a*255 + 0.5)
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: alpha}, true
}
