package choropleth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lagekarte/internal/colorscale"
	"github.com/sells-group/lagekarte/internal/indicator"
)

var names = map[string]string{
	"05315": "Köln",
	"09162": "München",
	"11000": "Berlin",
	"02000": "Hamburg",
}

func crimeSamples() indicator.Samples {
	return indicator.FromSlice([]indicator.Sample{
		{RegionID: "05315", Value: indicator.Float(10)},
		{RegionID: "09162", Value: indicator.Float(20)},
		{RegionID: "11000", Value: indicator.Float(30)},
		{RegionID: "02000", Value: indicator.Float(1000)},
	})
}

func TestBuild_FillsEveryRegion(t *testing.T) {
	b := NewBuilder(indicator.DefaultCatalog(), nil, 0)
	key := indicator.Key{Indicator: "crime", SubMetric: "cases_per_100k", Year: 2023}

	samples := crimeSamples()
	samples["02000"] = indicator.Sample{RegionID: "02000"}
	extra := map[string]string{"01001": "Flensburg"}
	for k, v := range names {
		extra[k] = v
	}

	layer := b.Build(key, samples, extra)
	require.Len(t, layer.Fills, 5)
	assert.Equal(t, "01001", layer.Fills[0].FeatureID)

	colors := layer.Colors()
	assert.Equal(t, colorscale.Neutral, colors["01001"])
	assert.Equal(t, colorscale.Neutral, colors["02000"])
	assert.NotEqual(t, colors["05315"], colors["11000"])
	assert.Len(t, layer.Legend, colorscale.DefaultLegendStops)
	assert.Equal(t, indicator.Sequential, layer.Metric.Discipline)
}

func TestBuild_SequentialOutlierClamped(t *testing.T) {
	b := NewBuilder(indicator.DefaultCatalog(), nil, 3)
	key := indicator.Key{Indicator: "crime", SubMetric: "cases_per_100k", Year: 2023}

	layer := b.Build(key, crimeSamples(), nil)
	scale := b.Scale(key, crimeSamples())
	colors := layer.Colors()
	assert.Equal(t, scale.Color(scale.Cap()), colors["02000"])
	assert.Len(t, layer.Legend, 3)
}

func TestBuild_SemanticDirectionFromCatalog(t *testing.T) {
	b := NewBuilder(indicator.DefaultCatalog(), nil, 0)
	samples := crimeSamples()

	good := b.Build(indicator.Key{Indicator: "crime", SubMetric: "clearance_rate", Year: 2023}, samples, nil)
	bad := b.Build(indicator.Key{Indicator: "social_atlas", SubMetric: "unemployment_rate", Year: 2023}, samples, nil)

	// Same samples, opposite ends for the maximum.
	assert.Equal(t, colorscale.Diverging.At(1), good.Colors()["02000"])
	assert.Equal(t, colorscale.Diverging.At(0), bad.Colors()["02000"])
}

func TestBuild_EmptySamples(t *testing.T) {
	b := NewBuilder(indicator.DefaultCatalog(), nil, 0)
	layer := b.Build(indicator.Key{Indicator: "foreigners", SubMetric: "share", Year: 2020}, nil, names)

	require.Len(t, layer.Fills, len(names))
	for _, f := range layer.Fills {
		assert.Equal(t, colorscale.Neutral, f.FillColor)
	}
	assert.Empty(t, layer.Legend)
}

func TestScale_UsesCache(t *testing.T) {
	cache := colorscale.NewCache(8, time.Minute)
	b := NewBuilder(indicator.DefaultCatalog(), cache, 0)
	key := indicator.Key{Indicator: "crime", SubMetric: "cases_per_100k", Year: 2023}

	first := b.Scale(key, crimeSamples())
	second := b.Scale(key, crimeSamples())
	assert.Same(t, first, second)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	other := b.Scale(indicator.Key{Indicator: "crime", SubMetric: "cases_per_100k", Year: 2022}, crimeSamples())
	assert.NotSame(t, first, other)
}

func TestRanking_CountLikeSkipsZero(t *testing.T) {
	b := NewBuilder(indicator.DefaultCatalog(), nil, 0)
	samples := indicator.FromSlice([]indicator.Sample{
		{RegionID: "05315", Value: indicator.Float(0)},
		{RegionID: "09162", Value: indicator.Float(12)},
	})

	counts := b.Ranking(indicator.Key{Indicator: "crime", SubMetric: "cases", Year: 2023}, samples, names)
	assert.Equal(t, 1, counts.Len())

	rates := b.Ranking(indicator.Key{Indicator: "crime", SubMetric: "cases_per_100k", Year: 2023}, samples, names)
	assert.Equal(t, 2, rates.Len())
	top := rates.Entries()[0]
	assert.Equal(t, "München", top.Name)
	assert.Equal(t, 100.0, top.Percentage)
}

func TestMetric_UncataloguedDefaultsSequential(t *testing.T) {
	b := NewBuilder(nil, nil, 0)
	m := b.Metric(indicator.Key{Indicator: "unknown", SubMetric: "x"})
	assert.Equal(t, indicator.Sequential, m.Discipline)
	assert.False(t, m.CountLike)
}
