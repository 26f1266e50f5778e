package events

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the calendar-day format of Filter.From and Filter.To.
const DateLayout = "2006-01-02"

// Filter selects which records enter the playback sequence. Every active
// predicate must pass; zero values are inactive.
type Filter struct {
	// Categories keeps records sharing at least one category.
	Categories []string `json:"categories,omitempty"`
	// Weapon keeps records with exactly this weapon type.
	Weapon string `json:"weapon,omitempty"`
	// PrimaryOnly hides non-primary members of multi-record incident groups.
	PrimaryOnly bool `json:"primary_only,omitempty"`
	// SearchIDs keeps records matched by the full-text search collaborator.
	// nil means no search is active; an empty set matches nothing.
	SearchIDs IDSet `json:"-"`
	// FavoritesOnly keeps records whose id is in Favorites.
	FavoritesOnly bool  `json:"favorites_only,omitempty"`
	Favorites     IDSet `json:"-"`
	// From and To bound the record's calendar day, inclusive.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	// Location interprets From, To and offset-less timestamps. UTC when nil.
	Location *time.Location `json:"-"`
}

// Active reports whether any predicate beyond "has coordinates" is set.
func (f Filter) Active() bool {
	return len(f.Categories) > 0 || f.Weapon != "" || f.PrimaryOnly ||
		f.SearchIDs != nil || f.FavoritesOnly || f.From != "" || f.To != ""
}

// Validate checks the date bounds.
func (f Filter) Validate() error {
	loc := f.location()
	var from, to time.Time
	var err error
	if f.From != "" {
		if from, err = time.ParseInLocation(DateLayout, f.From, loc); err != nil {
			return eris.Wrapf(err, "events: invalid from date %q", f.From)
		}
	}
	if f.To != "" {
		if to, err = time.ParseInLocation(DateLayout, f.To, loc); err != nil {
			return eris.Wrapf(err, "events: invalid to date %q", f.To)
		}
	}
	if f.From != "" && f.To != "" && to.Before(from) {
		return eris.Errorf("events: date range %s..%s is reversed", f.From, f.To)
	}
	return nil
}

func (f Filter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// dateBounds returns [from 00:00:00, to 23:59:59.999]. Unparseable bounds
// are left open; callers validate up front.
func (f Filter) dateBounds() (from, to time.Time, active bool) {
	loc := f.location()
	if f.From != "" {
		if d, err := time.ParseInLocation(DateLayout, f.From, loc); err == nil {
			from, active = d, true
		}
	}
	if f.To != "" {
		if d, err := time.ParseInLocation(DateLayout, f.To, loc); err == nil {
			to, active = d.AddDate(0, 0, 1).Add(-time.Millisecond), true
		}
	}
	return from, to, active
}

// Sequence is the canonical playback order: non-decreasing by timestamp.
type Sequence []Record

// IDs returns the record ids in sequence order.
func (s Sequence) IDs() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = r.ID
	}
	return out
}

// IndexOf returns the position of id, or -1.
func (s Sequence) IndexOf(id string) int {
	for i, r := range s {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Order filters records and sorts them ascending by timestamp. Records whose
// timestamp does not parse sort as the Unix epoch, which puts them first;
// under an active date range they are excluded instead.
func Order(records []Record, f Filter) Sequence {
	loc := f.location()
	from, to, dated := f.dateBounds()
	cats := NewIDSet(f.Categories...)

	var groups map[string]int
	if f.PrimaryOnly {
		groups = groupSizes(records)
	}

	type keyed struct {
		rec Record
		key time.Time
	}
	kept := make([]keyed, 0, len(records))
	for _, r := range records {
		if !r.HasCoordinates() {
			continue
		}
		if len(cats) > 0 && !r.InCategory(cats) {
			continue
		}
		if f.Weapon != "" && r.WeaponType != f.Weapon {
			continue
		}
		if f.PrimaryOnly && hiddenByGroup(r, groups) {
			continue
		}
		if f.SearchIDs != nil && !f.SearchIDs.Has(r.ID) {
			continue
		}
		if f.FavoritesOnly && !f.Favorites.Has(r.ID) {
			continue
		}
		t, ok := ParseTimestamp(r.Timestamp, loc)
		if dated {
			if !ok {
				continue
			}
			if !from.IsZero() && t.Before(from) {
				continue
			}
			if !to.IsZero() && t.After(to) {
				continue
			}
		}
		key := epoch
		if ok {
			key = t
		}
		kept = append(kept, keyed{rec: r, key: key})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].key.Before(kept[j].key) })

	out := make(Sequence, len(kept))
	for i, k := range kept {
		out[i] = k.rec
	}
	return out
}

// epoch is the sort position of records whose timestamp does not parse.
var epoch = time.Unix(0, 0)

// sortKey compares as a time.Time; UnixNano overflows outside 1678..2262.
func sortKey(r Record, loc *time.Location) time.Time {
	t, ok := ParseTimestamp(r.Timestamp, loc)
	if !ok {
		return epoch
	}
	return t
}

func groupSizes(records []Record) map[string]int {
	sizes := make(map[string]int)
	for _, r := range records {
		if r.IncidentGroupID != "" {
			sizes[r.IncidentGroupID]++
		}
	}
	return sizes
}

// hiddenByGroup reports whether r is a non-primary member of a group with
// more than one record.
func hiddenByGroup(r Record, sizes map[string]int) bool {
	if r.IncidentGroupID == "" || r.GroupRole == RolePrimary {
		return false
	}
	return sizes[r.IncidentGroupID] > 1
}
