// Package colorscale maps indicator values to display colours.
package colorscale

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Neutral is returned for missing values and empty sample sets.
const Neutral = "#d1d5db"

// Gradient is a piecewise-linear colour ramp over [0, 1].
type Gradient struct {
	stops []colorful.Color
}

func newGradient(hexes ...string) Gradient {
	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic("colorscale: bad gradient stop " + h)
		}
		stops[i] = c
	}
	return Gradient{stops: stops}
}

// Warm is the yellow to red ramp used for magnitudes and densities.
var Warm = newGradient(
	"#ffffcc", "#ffeda0", "#fed976", "#feb24c", "#fd8d3c",
	"#fc4e2a", "#e31a1c", "#bd0026", "#800026",
)

// Diverging is the red to yellow to green ramp used for good/bad indicators.
// Position 0 is the bad end.
var Diverging = newGradient(
	"#a50026", "#d73027", "#f46d43", "#fdae61", "#fee08b", "#ffffbf",
	"#d9ef8b", "#a6d96a", "#66bd63", "#1a9850", "#006837",
)

// At returns the colour at position t, clamped into [0, 1].
func (g Gradient) At(t float64) string {
	if len(g.stops) == 0 || math.IsNaN(t) {
		return Neutral
	}
	t = clamp01(t)
	if len(g.stops) == 1 {
		return g.stops[0].Hex()
	}
	span := float64(len(g.stops) - 1)
	pos := t * span
	i := int(math.Floor(pos))
	if i >= len(g.stops)-1 {
		return g.stops[len(g.stops)-1].Hex()
	}
	return g.stops[i].BlendRgb(g.stops[i+1], pos-float64(i)).Clamped().Hex()
}

func clamp01(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}
