package render

import (
	"image/color"
	"strconv"
	"strings"
)

var namedColors = map[string]color.NRGBA{
	"black":       {A: 255},
	"white":       {R: 255, G: 255, B: 255, A: 255},
	"red":         {R: 255, A: 255},
	"green":       {G: 128, A: 255},
	"blue":        {B: 255, A: 255},
	"gray":        {R: 128, G: 128, B: 128, A: 255},
	"grey":        {R: 128, G: 128, B: 128, A: 255},
	"transparent": {},
}

// parseColor understands #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(), rgba() and a
// handful of names. Anything else is black. The alpha channel is multiplied
// by opacity.
func parseColor(s string, opacity float64) color.NRGBA {
	c, ok := lookupColor(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		c = color.NRGBA{A: 255}
	}
	c.A = uint8(float64(c.A)*clamp01(opacity) + 0.5)
	return c
}

func lookupColor(s string) (color.NRGBA, bool) {
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	if strings.HasPrefix(s, "rgb") {
		lo, hi := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
		if lo < 0 || hi < lo {
			return color.NRGBA{}, false
		}
		parts := strings.Split(s[lo+1:hi], ",")
		if len(parts) != 3 && len(parts) != 4 {
			return color.NRGBA{}, false
		}
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
			if err != nil {
				return color.NRGBA{}, false
			}
			ch[i] = uint8(max(0, min(255, v)))
		}
		a := 1.0
		if len(parts) == 4 {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil {
				return color.NRGBA{}, false
			}
			a = clamp01(v)
		}
		return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: uint8(a*255 + 0.5)}, true
	}
	return color.NRGBA{}, false
}

func parseHex(h string) (color.NRGBA, bool) {
	switch len(h) {
	case 3, 4:
		var b strings.Builder
		for _, r := range h {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		h = b.String()
	case 6, 8:
	default:
		return color.NRGBA{}, false
	}
	if len(h) == 6 {
		h += "ff"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
