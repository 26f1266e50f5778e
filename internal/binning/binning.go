// Package binning aggregates point events into hexagonal density cells
// for zoomed-out map views.
package binning

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/uber/h3-go/v4"

	"github.com/sells-group/lagekarte/internal/colorscale"
)

// densityFloor keeps the sparsest non-empty cell off the near-white end.
const densityFloor = 0.15

// Located is anything with optional coordinates.
type Located interface {
	Coordinates() (lat, lng float64, ok bool)
}

// Bin is one aggregation cell.
type Bin struct {
	CellID string `json:"cell_id"`
	Count  int    `json:"count"`
	Color  string `json:"color"`
}

// zoomBands maps map zoom to H3 resolution. The step function keeps the
// resolution fixed while a zoom animation passes through a band.
var zoomBands = []struct {
	below      float64
	resolution int
}{
	{5, 2},
	{6, 3},
	{7, 4},
	{8, 5},
	{9.5, 6},
	{11, 7},
	{math.Inf(1), 8},
}

// ResolutionForZoom returns the H3 resolution for a map zoom level.
func ResolutionForZoom(zoom float64) int {
	if math.IsNaN(zoom) {
		return zoomBands[0].resolution
	}
	for _, b := range zoomBands {
		if zoom < b.below {
			return b.resolution
		}
	}
	return zoomBands[len(zoomBands)-1].resolution
}

// Aggregate counts points per cell at resolution and colours each cell by
// square-root density. Points without coordinates are skipped. The result is
// sorted by count descending, then cell id.
func Aggregate[P Located](points []P, resolution int) []Bin {
	if resolution < 0 || resolution > 15 {
		return nil
	}

	counts := make(map[h3.Cell]int)
	for _, p := range points {
		lat, lng, ok := p.Coordinates()
		if !ok || lat < -90 || lat > 90 {
			continue
		}
		counts[h3.LatLngToCell(h3.NewLatLng(lat, lng), resolution)]++
	}
	if len(counts) == 0 {
		return nil
	}

	maxCount := 0
	for _, n := range counts {
		if n > maxCount {
			maxCount = n
		}
	}

	bins := make([]Bin, 0, len(counts))
	for cell, n := range counts {
		bins = append(bins, Bin{
			CellID: cell.String(),
			Count:  n,
			Color:  DensityColor(n, maxCount),
		})
	}
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].Count != bins[j].Count {
			return bins[i].Count > bins[j].Count
		}
		return bins[i].CellID < bins[j].CellID
	})
	return bins
}

// DensityColor maps count onto the warm ramp using a square-root domain
// [0, maxCount].
func DensityColor(count, maxCount int) string {
	if count <= 0 || maxCount <= 0 {
		return colorscale.Neutral
	}
	t := math.Sqrt(float64(count)) / math.Sqrt(float64(maxCount))
	if t > 1 {
		t = 1
	}
	return colorscale.Warm.At(densityFloor + (1-densityFloor)*t)
}

// Boundary returns the closed polygon outline of a cell in lng/lat order.
func Boundary(cellID string) (*geom.Polygon, error) {
	cell := h3.Cell(h3.IndexFromString(cellID))
	if !cell.IsValid() {
		return nil, eris.Errorf("binning: invalid cell id %q", cellID)
	}

	verts := cell.Boundary()
	flat := make([]float64, 0, 2*(len(verts)+1))
	for _, v := range verts {
		flat = append(flat, v.Lng, v.Lat)
	}
	if len(verts) > 0 {
		flat = append(flat, verts[0].Lng, verts[0].Lat)
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326), nil
}

// FeatureCollection renders bins as GeoJSON polygons carrying count and
// colour properties.
func FeatureCollection(bins []Bin) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(bins))}
	for _, b := range bins {
		poly, err := Boundary(b.CellID)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       b.CellID,
			Geometry: poly,
			Properties: map[string]interface{}{
				"count":     b.Count,
				"fillColor": b.Color,
			},
		})
	}
	return fc, nil
}
