package binning

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/h3-go/v4"

	"github.com/sells-group/lagekarte/internal/colorscale"
)

type point struct {
	lat, lng float64
	ok       bool
}

func (p point) Coordinates() (float64, float64, bool) { return p.lat, p.lng, p.ok }

func at(lat, lng float64) point { return point{lat: lat, lng: lng, ok: true} }

func TestResolutionForZoom(t *testing.T) {
	tests := []struct {
		zoom float64
		want int
	}{
		{0, 2},
		{4.99, 2},
		{5, 3},
		{6, 4},
		{7.5, 5},
		{8, 6},
		{9.49, 6},
		{9.5, 7},
		{10.99, 7},
		{11, 8},
		{18, 8},
		{math.NaN(), 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolutionForZoom(tt.zoom), "zoom %v", tt.zoom)
	}
}

func TestResolutionForZoom_Monotonic(t *testing.T) {
	prev := ResolutionForZoom(0)
	for z := 0.0; z <= 20; z += 0.05 {
		r := ResolutionForZoom(z)
		assert.GreaterOrEqual(t, r, prev)
		prev = r
	}
}

func TestAggregate_CountsAndOrder(t *testing.T) {
	berlin := at(52.5200, 13.4050)
	munich := at(48.1374, 11.5755)
	points := []point{berlin, berlin, berlin, munich, {ok: false}}

	bins := Aggregate(points, 5)
	require.Len(t, bins, 2)

	assert.Equal(t, 3, bins[0].Count)
	assert.Equal(t, h3.LatLngToCell(h3.NewLatLng(berlin.lat, berlin.lng), 5).String(), bins[0].CellID)
	assert.Equal(t, 1, bins[1].Count)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 4, total)
}

func TestAggregate_Colours(t *testing.T) {
	points := []point{at(52.52, 13.405), at(52.52, 13.405), at(52.52, 13.405), at(52.52, 13.405), at(48.137, 11.575)}
	bins := Aggregate(points, 4)
	require.Len(t, bins, 2)

	assert.Equal(t, colorscale.Warm.At(1), bins[0].Color)
	// sqrt(1)/sqrt(4) = 0.5
	assert.Equal(t, colorscale.Warm.At(0.15+0.85*0.5), bins[1].Color)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate([]point{}, 5))
	assert.Empty(t, Aggregate([]point{{ok: false}}, 5))
	assert.Empty(t, Aggregate([]point{at(52.52, 13.4)}, 16))
}

func TestAggregate_TiesOrderedByCellID(t *testing.T) {
	bins := Aggregate([]point{at(48.137, 11.575), at(52.52, 13.405), at(53.55, 9.99)}, 6)
	require.Len(t, bins, 3)
	for i := 1; i < len(bins); i++ {
		assert.Less(t, bins[i-1].CellID, bins[i].CellID)
	}
}

func TestDensityColor(t *testing.T) {
	assert.Equal(t, colorscale.Neutral, DensityColor(0, 10))
	assert.Equal(t, colorscale.Neutral, DensityColor(3, 0))
	assert.Equal(t, colorscale.Warm.At(1), DensityColor(10, 10))
	assert.Equal(t, colorscale.Warm.At(0.15+0.85/math.Sqrt(100)), DensityColor(1, 100))
}

func TestBoundary(t *testing.T) {
	cell := h3.LatLngToCell(h3.NewLatLng(52.52, 13.405), 7)

	poly, err := Boundary(cell.String())
	require.NoError(t, err)
	require.Equal(t, 1, poly.NumLinearRings())

	ring := poly.LinearRing(0)
	n := ring.NumCoords()
	assert.GreaterOrEqual(t, n, 7)
	assert.Equal(t, ring.Coord(0), ring.Coord(n-1))

	// lng first
	first := ring.Coord(0)
	assert.InDelta(t, 13.4, first.X(), 0.1)
	assert.InDelta(t, 52.5, first.Y(), 0.1)
}

func TestBoundary_InvalidCell(t *testing.T) {
	_, err := Boundary("not-a-cell")
	assert.Error(t, err)
	_, err = Boundary("")
	assert.Error(t, err)
}

func TestFeatureCollection(t *testing.T) {
	bins := Aggregate([]point{at(52.52, 13.405), at(52.52, 13.405)}, 5)
	fc, err := FeatureCollection(bins)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, bins[0].CellID, fc.Features[0].ID)
	assert.Equal(t, 2, fc.Features[0].Properties["count"])

	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"FeatureCollection"`)
	assert.Contains(t, string(raw), `"Polygon"`)

	_, err = FeatureCollection([]Bin{{CellID: "bogus", Count: 1}})
	assert.Error(t, err)
}
