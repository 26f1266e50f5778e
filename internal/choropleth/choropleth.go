// Package choropleth turns one indicator's per-region samples into map
// fills, a legend and a ranking.
package choropleth

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/colorscale"
	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/ranking"
)

// Fill is the colour of one map feature.
type Fill struct {
	FeatureID string `json:"featureId"`
	FillColor string `json:"fillColor"`
}

// Layer is everything the map needs to draw one indicator key.
type Layer struct {
	Key    indicator.Key     `json:"key"`
	Metric indicator.Metric  `json:"metric"`
	Fills  []Fill            `json:"fills"`
	Legend []colorscale.Stop `json:"legend"`
}

// Colors returns the fills as a feature id to colour map.
func (l Layer) Colors() map[string]string {
	out := make(map[string]string, len(l.Fills))
	for _, f := range l.Fills {
		out[f.FeatureID] = f.FillColor
	}
	return out
}

// Builder derives layers, memoising scales in a caller-owned cache.
type Builder struct {
	catalog     *indicator.Catalog
	cache       *colorscale.Cache
	legendStops int
}

// NewBuilder creates a Builder. A nil cache disables memoisation.
func NewBuilder(catalog *indicator.Catalog, cache *colorscale.Cache, legendStops int) *Builder {
	if legendStops <= 0 {
		legendStops = colorscale.DefaultLegendStops
	}
	return &Builder{catalog: catalog, cache: cache, legendStops: legendStops}
}

// Metric returns the catalog entry for key.
func (b *Builder) Metric(key indicator.Key) indicator.Metric {
	return b.catalog.MetricFor(key)
}

// Scale returns the colour scale for key over samples.
func (b *Builder) Scale(key indicator.Key, samples indicator.Samples) *colorscale.Scale {
	m := b.Metric(key)
	build := func() *colorscale.Scale {
		return colorscale.New(m.Discipline, samples.Values(), m.HigherIsBetter)
	}
	if b.cache == nil {
		return build()
	}
	return b.cache.GetOrBuild(colorscale.CacheKey{
		Key:            key,
		Discipline:     m.Discipline,
		HigherIsBetter: m.HigherIsBetter,
	}, build)
}

// Build colours every region in samples and every region in names. Regions
// without a usable value get the neutral colour. Fills are ordered by
// feature id.
func (b *Builder) Build(key indicator.Key, samples indicator.Samples, names map[string]string) Layer {
	scale := b.Scale(key, samples)

	values := make(map[string]*float64, len(samples)+len(names))
	for id := range names {
		values[id] = nil
	}
	for id, s := range samples {
		regionID := s.RegionID
		if regionID == "" {
			regionID = id
		}
		values[regionID] = s.Value
	}

	fills := make([]Fill, 0, len(values))
	for id, v := range values {
		fills = append(fills, Fill{FeatureID: id, FillColor: scale.ColorOf(v)})
	}
	sort.Slice(fills, func(i, j int) bool { return fills[i].FeatureID < fills[j].FeatureID })

	if scale.Empty() {
		zap.L().Debug("choropleth: no usable samples",
			zap.String("key", key.String()),
			zap.Int("regions", len(fills)),
		)
	}

	return Layer{
		Key:    key,
		Metric: b.Metric(key),
		Fills:  fills,
		Legend: scale.Legend(b.legendStops),
	}
}

// Ranking projects samples into a ranking. Count-like metrics treat zero as
// missing data.
func (b *Builder) Ranking(key indicator.Key, samples indicator.Samples, names map[string]string) *ranking.Ranking {
	return ranking.Project(samples, names, ranking.Options{SkipZero: b.Metric(key).CountLike})
}
