// Package palette resolves the colours used for cycle series.
package palette

import (
	"maps"
	"slices"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"go.trai.ch/zerr"
)

const (
	// Custom names the palette built from the two custom endpoint colours.
	Custom = "custom"

	gradientPrefix = "gradient"
)

var (
	// ErrUnknownPalette is returned by Resolve for a name that is not configured.
	ErrUnknownPalette = zerr.New("unknown palette")

	// ErrInvalidColor is returned for a colour that is not a #rgb or #rrggbb hex string.
	ErrInvalidColor = zerr.New("invalid hex colour")
)

// DefaultColors is the teal palette used when nothing else is configured.
var DefaultColors = []string{"#1b2c2d", "#083c40", "#266E70", "#3C8D8E", "#5BB8BD", "#7DE4E6"}

// Gradient interpolates n colours between start and end in HSL, both ends included.
func Gradient(start, end string, n int) ([]string, error) {
	from, err := parse(start)
	if err != nil {
		return nil, err
	}
	to, err := parse(end)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []string{}, nil
	}
	if n == 1 {
		return []string{from.Hex()}, nil
	}

	h1, s1, l1 := from.Hsl()
	h2, s2, l2 := to.Hsl()
	out := make([]string, n)
	for i := range out {
		t := float64(i) / float64(n-1)
		c := colorful.Hsl(lerp(h1, h2, t), lerp(s1, s2, t), lerp(l1, l2, t))
		out[i] = c.Clamped().Hex()
	}
	return out, nil
}

// Resolve returns n colours for a named palette. Names starting with "gradient" expand their
// first two colours into n; Custom expands the custom endpoints. Any other palette is
// returned as configured.
func Resolve(name string, palettes map[string][]string, custom [2]string, n int) ([]string, error) {
	if name == Custom {
		return Gradient(custom[0], custom[1], n)
	}
	colors, ok := palettes[name]
	if !ok || len(colors) == 0 {
		return nil, zerr.With(zerr.Wrap(ErrUnknownPalette, "resolve palette"), "palette", name)
	}
	if strings.HasPrefix(name, gradientPrefix) {
		if len(colors) < 2 {
			return Gradient(colors[0], colors[0], n)
		}
		return Gradient(colors[0], colors[1], n)
	}
	for _, c := range colors {
		if _, err := parse(c); err != nil {
			return nil, zerr.With(err, "palette", name)
		}
	}
	return slices.Clone(colors), nil
}

// Names returns the configured palette names in order followed by Custom.
func Names(palettes map[string][]string) []string {
	names := slices.Sorted(maps.Keys(palettes))
	return append(names, Custom)
}

// Cycle picks the colour for series i, wrapping around the palette.
func Cycle(colors []string, i int) string {
	if len(colors) == 0 {
		colors = DefaultColors
	}
	if i < 0 {
		i = -i
	}
	return colors[i%len(colors)]
}

func parse(s string) (colorful.Color, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return colorful.Color{}, zerr.With(zerr.Wrap(ErrInvalidColor, "parse colour"), "colour", s)
	}
	return c, nil
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
