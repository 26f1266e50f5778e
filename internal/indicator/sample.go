// Package indicator holds region-level indicator samples and the catalog of
// metrics the dashboard can colour and rank.
package indicator

import (
	"fmt"
	"math"
	"sort"
)

// Sample is one region's value for an (indicator, sub-metric, year) triple.
// A nil Value means the data layer has nothing for that region and period.
type Sample struct {
	RegionID string   `json:"region_id"`
	Value    *float64 `json:"value"`
}

// Key identifies an immutable sample set.
type Key struct {
	Indicator string `json:"indicator"`
	SubMetric string `json:"sub_metric"`
	Year      int    `json:"year"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Indicator, k.SubMetric, k.Year)
}

// Samples maps region id to sample. A nil or partially filled map is valid
// while data is still loading.
type Samples map[string]Sample

// Entry is a usable (region, value) pair extracted from a sample set.
type Entry struct {
	RegionID string
	Value    float64
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Usable reports whether v carries a value that can be coloured or ranked.
// Non-finite values never qualify; skipZero additionally drops exact zero.
func Usable(v *float64, skipZero bool) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if skipZero && f == 0 {
		return 0, false
	}
	return f, true
}

// Entries returns the usable entries ordered by region id, so that callers
// iterating them see a stable encounter order.
func (s Samples) Entries(skipZero bool) []Entry {
	out := make([]Entry, 0, len(s))
	for id, sample := range s {
		regionID := sample.RegionID
		if regionID == "" {
			regionID = id
		}
		v, ok := Usable(sample.Value, skipZero)
		if !ok {
			continue
		}
		out = append(out, Entry{RegionID: regionID, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}

// Values returns the usable values, in region id order.
func (s Samples) Values() []float64 {
	entries := s.Entries(false)
	out := make([]float64, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// FromSlice builds a sample set keyed by region id.
func FromSlice(samples []Sample) Samples {
	out := make(Samples, len(samples))
	for _, s := range samples {
		out[s.RegionID] = s
	}
	return out
}
