package document

import (
	"fmt"
	"strconv"
	"strings"
)

type FillKind string

const (
	FillNone     FillKind = "none"
	FillSolid    FillKind = "solid"
	FillGradient FillKind = "gradient"
)

// GradientStop is a colour at a relative offset in [0, 1].
type GradientStop struct {
	Color  string  `json:"color" yaml:"color"`
	Offset float64 `json:"offset" yaml:"offset"`
}

// Fill describes an element or slide background. Exactly one of Color (solid)
// or Stops (gradient) is meaningful, selected by Kind.
type Fill struct {
	Kind  FillKind       `json:"kind" yaml:"kind"`
	Color string         `json:"color,omitempty" yaml:"color,omitempty"`
	Angle float64        `json:"angle,omitempty" yaml:"angle,omitempty"` // degrees, CSS convention
	Stops []GradientStop `json:"stops,omitempty" yaml:"stops,omitempty"`
}

func NoFill() Fill { return Fill{Kind: FillNone} }

func SolidFill(color string) Fill { return Fill{Kind: FillSolid, Color: color} }

func LinearGradient(angle float64, stops ...GradientStop) Fill {
	return Fill{Kind: FillGradient, Angle: angle, Stops: stops}
}

// IsZero reports whether the fill paints nothing.
func (f Fill) IsZero() bool {
	switch f.Kind {
	case FillSolid:
		return f.Color == "" || f.Color == "transparent"
	case FillGradient:
		return len(f.Stops) == 0
	}
	return true
}

func (f Fill) Clone() Fill {
	if f.Stops != nil {
		f.Stops = append([]GradientStop(nil), f.Stops...)
	}
	return f
}

// CSS renders the fill as a CSS background value.
func (f Fill) CSS() string {
	switch f.Kind {
	case FillSolid:
		if f.Color == "" {
			return "transparent"
		}
		return f.Color
	case FillGradient:
		parts := make([]string, 0, len(f.Stops)+1)
		parts = append(parts, strconv.FormatFloat(f.Angle, 'f', -1, 64)+"deg")
		for _, s := range f.Stops {
			parts = append(parts, fmt.Sprintf("%s %s%%", s.Color, strconv.FormatFloat(s.Offset*100, 'f', -1, 64)))
		}
		return "linear-gradient(" + strings.Join(parts, ", ") + ")"
	}
	return "transparent"
}

// ParseFill converts a legacy CSS background string into a Fill. Solid colours
// are kept verbatim; linear-gradient() values with an angle or "to <side>"
// direction are decomposed into stops. Unparseable gradients fall back to a
// solid fill of their first colour.
func ParseFill(css string) Fill {
	css = strings.TrimSpace(css)
	switch {
	case css == "" || css == "transparent" || css == "none":
		return NoFill()
	case strings.HasPrefix(css, "linear-gradient(") && strings.HasSuffix(css, ")"):
		return parseLinearGradient(css[len("linear-gradient(") : len(css)-1])
	default:
		return SolidFill(css)
	}
}

var sideAngles = map[string]float64{
	"to top":    0,
	"to right":  90,
	"to bottom": 180,
	"to left":   270,
}

func parseLinearGradient(body string) Fill {
	args := splitTopLevel(body)
	if len(args) == 0 {
		return NoFill()
	}

	angle := 180.0
	first := strings.TrimSpace(args[0])
	if a, ok := sideAngles[first]; ok {
		angle = a
		args = args[1:]
	} else if strings.HasSuffix(first, "deg") {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(first, "deg"), 64); err == nil {
			angle = v
			args = args[1:]
		}
	}

	stops := make([]GradientStop, 0, len(args))
	for i, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		stop := GradientStop{Color: arg}
		positioned := false
		if idx := strings.LastIndex(arg, " "); idx > 0 && strings.HasSuffix(arg, "%") {
			if v, err := strconv.ParseFloat(strings.TrimSuffix(arg[idx+1:], "%"), 64); err == nil {
				stop.Color = strings.TrimSpace(arg[:idx])
				stop.Offset = v / 100
				positioned = true
			}
		}
		if !positioned && len(args) > 1 {
			stop.Offset = float64(i) / float64(len(args)-1)
		}
		stops = append(stops, stop)
	}

	switch len(stops) {
	case 0:
		return NoFill()
	case 1:
		return SolidFill(stops[0].Color)
	}
	return LinearGradient(angle, stops...)
}

// splitTopLevel splits on commas that are not nested inside parentheses, so
// rgba(...) colour stops survive intact.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
