package colorscale

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/indicator"
)

const (
	// capPercentile clamps outliers so one huge city does not flatten the ramp.
	capPercentile = 0.95
	// sequentialFloor keeps the lowest values off the near-white end.
	sequentialFloor = 0.1
)

// semanticBreaks are the gradient positions of the seven quantile buckets.
var semanticBreaks = [...]float64{0.1, 0.25, 0.4, 0.55, 0.7, 0.85, 1.0}

// Scale is an immutable value-to-colour mapping built from one sample set.
type Scale struct {
	discipline     indicator.Discipline
	higherIsBetter bool

	// sorted holds the finite samples in ascending order.
	sorted []float64

	// sequential
	min, cap      float64
	sqrtMin, span float64

	// semantic; thresholds[i] is the lower bound of bucket i+1
	thresholds []float64
}

// New builds a scale for the given discipline.
func New(d indicator.Discipline, samples []float64, higherIsBetter bool) *Scale {
	if d == indicator.Semantic {
		return NewSemantic(samples, higherIsBetter)
	}
	return NewSequential(samples)
}

// NewSequential builds a magnitude scale: values are clamped to the 95th
// percentile, square-root transformed and mapped onto the warm ramp.
func NewSequential(samples []float64) *Scale {
	s := &Scale{discipline: indicator.Sequential, sorted: sortedFinite(samples)}
	n := len(s.sorted)
	if n == 0 {
		return s
	}
	s.min = s.sorted[0]
	idx := int(math.Floor(float64(n) * capPercentile))
	if idx > n-1 {
		idx = n - 1
	}
	s.cap = s.sorted[idx]
	s.sqrtMin = safeSqrt(s.min)
	s.span = safeSqrt(s.cap) - s.sqrtMin
	return s
}

// NewSemantic builds a good/bad scale over seven equal-count quantile
// buckets. When higherIsBetter is false the ramp is inverted so that bad
// values are always red.
func NewSemantic(samples []float64, higherIsBetter bool) *Scale {
	s := &Scale{
		discipline:     indicator.Semantic,
		higherIsBetter: higherIsBetter,
		sorted:         sortedFinite(samples),
	}
	if len(s.sorted) == 0 {
		return s
	}
	buckets := len(semanticBreaks)
	s.thresholds = make([]float64, buckets-1)
	for i := 1; i < buckets; i++ {
		s.thresholds[i-1] = quantile(s.sorted, float64(i)/float64(buckets))
	}
	return s
}

// Discipline reports how the scale maps values.
func (s *Scale) Discipline() indicator.Discipline {
	return s.discipline
}

// Empty reports whether the scale was built from no usable samples.
func (s *Scale) Empty() bool {
	return s == nil || len(s.sorted) == 0
}

// Domain returns the smallest and largest sample.
func (s *Scale) Domain() (lo, hi float64) {
	if s.Empty() {
		return 0, 0
	}
	return s.sorted[0], s.sorted[len(s.sorted)-1]
}

// Cap returns the clamp value of a sequential scale.
func (s *Scale) Cap() float64 {
	return s.cap
}

// Color maps v to a colour. Non-finite values and empty scales yield Neutral.
func (s *Scale) Color(v float64) string {
	t, ok := s.position(v)
	if !ok {
		return Neutral
	}
	if s.discipline == indicator.Semantic {
		return Diverging.At(t)
	}
	return Warm.At(t)
}

// ColorOf maps a nullable value; nil always yields Neutral.
func (s *Scale) ColorOf(v *float64) string {
	if v == nil {
		return Neutral
	}
	return s.Color(*v)
}

// position returns the gradient position for v.
func (s *Scale) position(v float64) (float64, bool) {
	if s.Empty() || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if s.discipline == indicator.Semantic {
		t := semanticBreaks[s.bucket(v)]
		if !s.higherIsBetter {
			t = 1 - t
		}
		return t, true
	}
	return sequentialFloor + (1-sequentialFloor)*s.normalized(v), true
}

// normalized returns t in [0, 1] in square-root space.
func (s *Scale) normalized(v float64) float64 {
	if v > s.cap {
		v = s.cap
	}
	if v < s.min {
		v = s.min
	}
	if s.span <= 0 {
		return 0
	}
	return clamp01((safeSqrt(v) - s.sqrtMin) / s.span)
}

// bucket returns the quantile bucket index of v.
func (s *Scale) bucket(v float64) int {
	return sort.Search(len(s.thresholds), func(i int) bool { return s.thresholds[i] > v })
}

func sortedFinite(samples []float64) []float64 {
	out := make([]float64, 0, len(samples))
	for _, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	if dropped := len(samples) - len(out); dropped > 0 {
		zap.L().Debug("colorscale: dropped non-finite samples", zap.Int("dropped", dropped))
	}
	sort.Float64s(out)
	return out
}

// quantile interpolates linearly between closest ranks (R-7).
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 || n == 1 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// safeSqrt treats negative inputs as zero.
func safeSqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
