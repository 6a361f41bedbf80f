// Package colorutil provides shared color utilities for annotation overlays.
package colorutil

import (
	"image/color"
	"math"
)

// Common overlay colors.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// goldenAngle spreads successive ids around the hue circle.
const goldenAngle = 137.50776405003785

// HSVToRGB converts HSV (H 0-360, S 0-1, V 0-1) to an opaque RGBA color.
func HSVToRGB(h, s, v float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}

// EntityColor returns a stable, saturated color for an entity id. Adjacent
// ids get well separated hues.
func EntityColor(id int) color.RGBA {
	return HSVToRGB(float64(id)*goldenAngle, 0.75, 0.95)
}

// Blend mixes c over dst with the given alpha (0-255).
func Blend(dst, c color.RGBA, alpha uint8) color.RGBA {
	a := uint32(alpha)
	mix := func(d, s uint8) uint8 {
		return uint8((uint32(s)*a + uint32(d)*(255-a) + 127) / 255)
	}
	return color.RGBA{R: mix(dst.R, c.R), G: mix(dst.G, c.G), B: mix(dst.B, c.B), A: 255}
}
