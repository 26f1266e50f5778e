package colorscale

import (
	"math"

	"github.com/dustin/go-humanize"

	"github.com/sells-group/lagekarte/internal/indicator"
)

// DefaultLegendStops is used when a caller asks for zero or fewer stops.
const DefaultLegendStops = 5

// Stop is one legend entry.
type Stop struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
	Label string  `json:"label"`
}

// Legend returns numStops entries evenly spaced in the scale's transformed
// space (square-root space for sequential, quantile space for semantic) and
// mapped back to raw values, so the stops look evenly spaced on screen.
func (s *Scale) Legend(numStops int) []Stop {
	if s.Empty() {
		return nil
	}
	if numStops <= 0 {
		numStops = DefaultLegendStops
	}

	stops := make([]Stop, numStops)
	for i := range stops {
		p := 0.0
		if numStops > 1 {
			p = float64(i) / float64(numStops-1)
		}
		v := s.invert(p)
		stops[i] = Stop{Value: v, Color: s.Color(v), Label: label(v)}
	}
	return stops
}

// invert maps a position p in [0, 1] of the transformed space to a raw value.
func (s *Scale) invert(p float64) float64 {
	if s.discipline == indicator.Semantic {
		return quantile(s.sorted, p)
	}
	if p == 0 {
		return s.min
	}
	root := s.sqrtMin + p*s.span
	return root * root
}

func label(v float64) string {
	switch a := math.Abs(v); {
	case a >= 100:
		return humanize.FormatFloat("#,###.", v)
	case a >= 10:
		return humanize.FormatFloat("#,###.#", v)
	default:
		return humanize.FormatFloat("#,###.##", v)
	}
}
