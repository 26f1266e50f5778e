// Package ranking projects indicator samples into a sorted,
// percentage-normalised ranking list.
package ranking

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/lagekarte/internal/indicator"
)

// Entry is one ranked region.
type Entry struct {
	RegionID   string  `json:"region_id"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Rank       int     `json:"rank"`
	Percentage float64 `json:"percentage"`
}

// Options controls which samples take part in the ranking.
type Options struct {
	// SkipZero treats an exact zero as "no data". Used for count-like
	// indicators where zero usually means nothing was reported.
	SkipZero bool
}

// Ranking is an immutable ranking. Filtering returns views that keep the
// original rank numbers.
type Ranking struct {
	entries []Entry
	byID    map[string]int
	search  []string
}

// Project ranks samples descending by value. names maps region id to
// display name; regions without a name fall back to their id. Equal values
// receive consecutive ranks in region id order.
func Project(samples indicator.Samples, names map[string]string, opts Options) *Ranking {
	usable := samples.Entries(opts.SkipZero)
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].Value > usable[j].Value })

	r := &Ranking{
		entries: make([]Entry, len(usable)),
		byID:    make(map[string]int, len(usable)),
		search:  make([]string, len(usable)),
	}
	if len(usable) == 0 {
		return r
	}

	maxValue := usable[0].Value
	for i, u := range usable {
		name := names[u.RegionID]
		if name == "" {
			name = u.RegionID
		}
		var pct float64
		if maxValue != 0 {
			pct = u.Value / maxValue * 100
		}
		r.entries[i] = Entry{
			RegionID:   u.RegionID,
			Name:       name,
			Value:      u.Value,
			Rank:       i + 1,
			Percentage: pct,
		}
		r.byID[u.RegionID] = i
		r.search[i] = Fold(name) + "\x00" + Fold(u.RegionID)
	}
	return r
}

// Entries returns the full ranking.
func (r *Ranking) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of ranked regions.
func (r *Ranking) Len() int {
	return len(r.entries)
}

// Filter returns the entries whose name or id contains query. Matching
// ignores case and diacritics. An empty query returns everything.
func (r *Ranking) Filter(query string) []Entry {
	q := Fold(strings.TrimSpace(query))
	if q == "" {
		return r.Entries()
	}
	var out []Entry
	for i, s := range r.search {
		if strings.Contains(s, q) {
			out = append(out, r.entries[i])
		}
	}
	return out
}

// RankOf returns the ranked entry for regionID.
func (r *Ranking) RankOf(regionID string) (Entry, bool) {
	i, ok := r.byID[regionID]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Fold normalises s for search: diacritics removed, case folded.
// "Köln" and "KOLN" fold to the same string; "ß" folds to "ss".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}
