package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lagekarte/internal/indicator"
)

var names = map[string]string{
	"05315": "Köln",
	"09162": "München",
	"11000": "Berlin",
	"02000": "Hamburg",
	"06412": "Frankfurt am Main",
}

func samples(values map[string]*float64) indicator.Samples {
	out := make(indicator.Samples, len(values))
	for id, v := range values {
		out[id] = indicator.Sample{RegionID: id, Value: v}
	}
	return out
}

func TestProject_SortsAndRanks(t *testing.T) {
	r := Project(samples(map[string]*float64{
		"05315": indicator.Float(50),
		"09162": indicator.Float(200),
		"11000": indicator.Float(100),
		"02000": nil,
	}), names, Options{})

	entries := r.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, "09162", entries[0].RegionID)
	assert.Equal(t, "München", entries[0].Name)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 100.0, entries[0].Percentage)

	assert.Equal(t, "11000", entries[1].RegionID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 50.0, entries[1].Percentage)

	assert.Equal(t, "05315", entries[2].RegionID)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, 25.0, entries[2].Percentage)
}

func TestProject_RanksHaveNoGaps(t *testing.T) {
	r := Project(samples(map[string]*float64{
		"a": indicator.Float(3),
		"b": indicator.Float(9),
		"c": indicator.Float(9),
		"d": indicator.Float(1),
		"e": indicator.Float(3),
	}), nil, Options{})

	entries := r.Entries()
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		if i > 0 {
			assert.LessOrEqual(t, e.Value, entries[i-1].Value)
		}
	}
	// Ties keep region id order.
	assert.Equal(t, "b", entries[0].RegionID)
	assert.Equal(t, "c", entries[1].RegionID)
	assert.Equal(t, "a", entries[2].RegionID)
	assert.Equal(t, "e", entries[3].RegionID)
	// Missing names fall back to the id.
	assert.Equal(t, "b", entries[0].Name)
}

func TestProject_SkipZero(t *testing.T) {
	in := samples(map[string]*float64{
		"a": indicator.Float(0),
		"b": indicator.Float(4),
	})

	assert.Equal(t, 2, Project(in, nil, Options{}).Len())

	r := Project(in, nil, Options{SkipZero: true})
	assert.Equal(t, 1, r.Len())
	_, ok := r.RankOf("a")
	assert.False(t, ok)
}

func TestProject_AllZeroGivesZeroPercentage(t *testing.T) {
	r := Project(samples(map[string]*float64{
		"a": indicator.Float(0),
		"b": indicator.Float(0),
	}), nil, Options{})

	for _, e := range r.Entries() {
		assert.Equal(t, 0.0, e.Percentage)
	}
}

func TestProject_Empty(t *testing.T) {
	r := Project(nil, names, Options{})
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Entries())
	assert.Empty(t, r.Filter("köln"))
	_, ok := r.RankOf("05315")
	assert.False(t, ok)
}

func TestFilter_KeepsRankNumbers(t *testing.T) {
	r := Project(samples(map[string]*float64{
		"05315": indicator.Float(50),
		"09162": indicator.Float(200),
		"11000": indicator.Float(100),
		"06412": indicator.Float(75),
	}), names, Options{})

	got := r.Filter("koln")
	require.Len(t, got, 1)
	assert.Equal(t, "05315", got[0].RegionID)
	assert.Equal(t, 4, got[0].Rank)

	got = r.Filter("  MUNCHEN ")
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Rank)

	// Region ids are searchable too.
	got = r.Filter("064")
	require.Len(t, got, 1)
	assert.Equal(t, "Frankfurt am Main", got[0].Name)
	assert.Equal(t, 3, got[0].Rank)

	assert.Len(t, r.Filter(""), 4)
	assert.Empty(t, r.Filter("dresden"))
}

func TestRankOf(t *testing.T) {
	r := Project(samples(map[string]*float64{
		"05315": indicator.Float(50),
		"09162": indicator.Float(200),
	}), names, Options{})

	e, ok := r.RankOf("05315")
	require.True(t, ok)
	assert.Equal(t, 2, e.Rank)
	assert.Equal(t, 25.0, e.Percentage)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	r := Project(samples(map[string]*float64{"a": indicator.Float(1)}), nil, Options{})
	e := r.Entries()
	e[0].Rank = 99
	got, _ := r.RankOf("a")
	assert.Equal(t, 1, got.Rank)
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("koln"), Fold("Köln"))
	assert.Equal(t, Fold("MUNCHEN"), Fold("München"))
	assert.Equal(t, "berlin", Fold("Berlin"))
}
