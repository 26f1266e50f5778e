package events

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func rec(id, ts string, cats ...string) Record {
	return Record{
		ID:         id,
		Timestamp:  ts,
		Latitude:   ptr(52.52),
		Longitude:  ptr(13.40),
		Categories: cats,
	}
}

func TestOrder_SortsAscending(t *testing.T) {
	records := []Record{
		rec("t3", "2024-05-03T10:00:00Z"),
		rec("t1", "2024-05-01T10:00:00Z"),
		rec("t5", "2024-05-05T10:00:00Z"),
		rec("t2", "2024-05-02T10:00:00Z"),
		rec("t4", "2024-05-04T10:00:00Z"),
	}

	got := Order(records, Filter{})
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, got.IDs())
}

func TestOrder_NonDecreasingUnderAnyFilter(t *testing.T) {
	records := []Record{
		rec("a", "2024-05-03T10:00:00+02:00", "theft"),
		rec("b", "2024-05-03T07:30:00Z", "assault"),
		rec("c", "2024-05-01T23:59:59Z", "theft"),
		rec("d", "2024-05-03T08:00:00Z", "theft", "assault"),
		rec("e", "2024-05-02T12:00:00Z", "fraud"),
	}
	filters := []Filter{
		{},
		{Categories: []string{"theft"}},
		{Categories: []string{"assault", "fraud"}},
		{From: "2024-05-02", To: "2024-05-03"},
	}
	for _, f := range filters {
		seq := Order(records, f)
		for i := 0; i+1 < len(seq); i++ {
			assert.False(t, sortKey(seq[i], nil).After(sortKey(seq[i+1], nil)))
		}
	}
}

func TestOrder_YearsOutsideNanosecondRange(t *testing.T) {
	records := []Record{
		rec("y2024", "2024-05-01T10:00:00Z"),
		rec("y2300", "2300-01-01T00:00:00Z"),
		rec("y1500", "1500-06-01T00:00:00Z"),
		rec("y0202", "0202-05-01T10:00:00Z"),
	}
	seq := Order(records, Filter{})
	assert.Equal(t, []string{"y0202", "y1500", "y2024", "y2300"}, seq.IDs())
	for i := 0; i+1 < len(seq); i++ {
		assert.False(t, sortKey(seq[i], nil).After(sortKey(seq[i+1], nil)))
	}
}

func TestOrder_StableForEqualTimestamps(t *testing.T) {
	records := []Record{
		rec("x", "2024-05-01T10:00:00Z"),
		rec("y", "2024-05-01T10:00:00Z"),
		rec("z", "2024-05-01T10:00:00Z"),
	}
	assert.Equal(t, []string{"x", "y", "z"}, Order(records, Filter{}).IDs())
}

// Unparseable timestamps sort as the epoch and so come first. This mirrors
// the dashboard's existing behaviour and is kept until product confirms it.
func TestOrder_UnparseableTimestampSortsFirst(t *testing.T) {
	records := []Record{
		rec("ok1", "2024-05-01T10:00:00Z"),
		rec("bad", "not a date"),
		rec("ok2", "2024-05-02T10:00:00Z"),
		rec("empty", ""),
	}
	got := Order(records, Filter{})
	assert.Equal(t, []string{"bad", "empty", "ok1", "ok2"}, got.IDs())
}

func TestOrder_UnparseableExcludedUnderDateFilter(t *testing.T) {
	records := []Record{
		rec("ok", "2024-05-01T10:00:00Z"),
		rec("bad", "yesterday"),
	}
	assert.Equal(t, []string{"ok"}, Order(records, Filter{From: "2024-01-01"}).IDs())
	assert.Equal(t, []string{"ok"}, Order(records, Filter{To: "2024-12-31"}).IDs())
}

func TestOrder_ExcludesMissingCoordinates(t *testing.T) {
	noLat := rec("nolat", "2024-05-01T10:00:00Z")
	noLat.Latitude = nil
	noBoth := rec("noboth", "2024-05-01T10:00:00Z")
	noBoth.Latitude, noBoth.Longitude = nil, nil

	got := Order([]Record{noLat, noBoth, rec("ok", "2024-05-01T11:00:00Z")}, Filter{})
	assert.Equal(t, []string{"ok"}, got.IDs())
}

func TestOrder_CategoryIntersection(t *testing.T) {
	records := []Record{
		rec("a", "2024-05-01T10:00:00Z", "theft"),
		rec("b", "2024-05-01T11:00:00Z", "assault", "robbery"),
		rec("c", "2024-05-01T12:00:00Z"),
	}
	got := Order(records, Filter{Categories: []string{"robbery", "fraud"}})
	assert.Equal(t, []string{"b"}, got.IDs())
}

func TestOrder_Weapon(t *testing.T) {
	a := rec("a", "2024-05-01T10:00:00Z")
	a.WeaponType = "knife"
	b := rec("b", "2024-05-01T11:00:00Z")
	b.WeaponType = "firearm"
	c := rec("c", "2024-05-01T12:00:00Z")

	assert.Equal(t, []string{"a"}, Order([]Record{a, b, c}, Filter{Weapon: "knife"}).IDs())
}

func TestOrder_PrimaryOnly(t *testing.T) {
	p := rec("p", "2024-05-01T10:00:00Z")
	p.IncidentGroupID, p.GroupRole = "g1", RolePrimary
	s := rec("s", "2024-05-01T10:05:00Z")
	s.IncidentGroupID, s.GroupRole = "g1", RoleSecondary
	// A lone secondary is not part of a multi-record group and stays visible.
	lone := rec("lone", "2024-05-01T11:00:00Z")
	lone.IncidentGroupID, lone.GroupRole = "g2", RoleSecondary
	plain := rec("plain", "2024-05-01T12:00:00Z")

	records := []Record{p, s, lone, plain}
	assert.Equal(t, []string{"p", "lone", "plain"}, Order(records, Filter{PrimaryOnly: true}).IDs())
	assert.Equal(t, []string{"p", "s", "lone", "plain"}, Order(records, Filter{}).IDs())
}

func TestOrder_SearchAndFavorites(t *testing.T) {
	records := []Record{
		rec("a", "2024-05-01T10:00:00Z"),
		rec("b", "2024-05-01T11:00:00Z"),
		rec("c", "2024-05-01T12:00:00Z"),
	}

	assert.Equal(t, []string{"a", "c"}, Order(records, Filter{SearchIDs: NewIDSet("c", "a", "zzz")}).IDs())
	assert.Empty(t, Order(records, Filter{SearchIDs: NewIDSet()}))

	fav := Filter{FavoritesOnly: true, Favorites: NewIDSet("b")}
	assert.Equal(t, []string{"b"}, Order(records, fav).IDs())

	// Favourites set without the flag does nothing.
	assert.Len(t, Order(records, Filter{Favorites: NewIDSet("b")}), 3)

	both := Filter{SearchIDs: NewIDSet("a", "b"), FavoritesOnly: true, Favorites: NewIDSet("b", "c")}
	assert.Equal(t, []string{"b"}, Order(records, both).IDs())
}

func TestOrder_DateRangeInclusive(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	records := []Record{
		// 23:59:59.999 on 1 May in Berlin.
		rec("before", "2024-05-01T21:59:59.999Z"),
		// Midnight on 2 May in Berlin.
		rec("start", "2024-05-01T22:00:00Z"),
		// Last millisecond of 3 May.
		rec("end", "2024-05-03T23:59:59.999+02:00"),
		rec("after", "2024-05-04T00:00:00+02:00"),
		// No offset, read in Berlin.
		rec("local", "2024-05-02 12:00:00"),
	}
	f := Filter{From: "2024-05-02", To: "2024-05-03", Location: berlin}
	assert.Equal(t, []string{"start", "local", "end"}, Order(records, f).IDs())
}

func TestFilter_Active(t *testing.T) {
	assert.False(t, Filter{}.Active())
	assert.False(t, Filter{Favorites: NewIDSet("a")}.Active())
	assert.True(t, Filter{Weapon: "knife"}.Active())
	assert.True(t, Filter{SearchIDs: NewIDSet()}.Active())
	assert.True(t, Filter{To: "2024-01-01"}.Active())
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, Filter{}.Validate())
	assert.NoError(t, Filter{From: "2024-01-01", To: "2024-01-01"}.Validate())
	assert.Error(t, Filter{From: "01.01.2024"}.Validate())
	assert.Error(t, Filter{To: "2024-13-01"}.Validate())
	assert.ErrorContains(t, Filter{From: "2024-02-01", To: "2024-01-01"}.Validate(), "reversed")
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", true, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00.250+02:00", true, time.Date(2024, 5, 1, 8, 0, 0, 250e6, time.UTC)},
		{"2024-05-01T10:00:00", true, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01 10:00:00", true, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00", true, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01", true, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"  ", false, time.Time{}},
		{"05/01/2024", false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in, nil)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestRecord_Coordinates(t *testing.T) {
	r := rec("a", "")
	lat, lng, ok := r.Coordinates()
	assert.True(t, ok)
	assert.Equal(t, 52.52, lat)
	assert.Equal(t, 13.40, lng)

	r.Longitude = nil
	assert.False(t, r.HasCoordinates())
}

func TestSequence_IndexOf(t *testing.T) {
	seq := Sequence{rec("a", ""), rec("b", "")}
	assert.Equal(t, 1, seq.IndexOf("b"))
	assert.Equal(t, -1, seq.IndexOf("c"))
}

func TestGroupMembers(t *testing.T) {
	s2 := rec("s2", "2024-05-01T10:10:00Z")
	s2.IncidentGroupID, s2.GroupRole = "g", RoleSecondary
	p := rec("p", "2024-05-01T10:20:00Z")
	p.IncidentGroupID, p.GroupRole = "g", RolePrimary
	s1 := rec("s1", "2024-05-01T10:00:00Z")
	s1.IncidentGroupID, s1.GroupRole = "g", RoleSecondary
	other := rec("o", "2024-05-01T09:00:00Z")

	got := GroupMembers([]Record{s2, p, s1, other}, "g", nil)
	require.Len(t, got, 3)
	assert.Equal(t, "p", got[0].ID)
	assert.Equal(t, "s1", got[1].ID)
	assert.Equal(t, "s2", got[2].ID)

	assert.Nil(t, GroupMembers([]Record{other}, "", nil))
}

func TestSummarize_CountsNonGeocoded(t *testing.T) {
	noGeo := rec("n", "2024-05-01T10:00:00Z", "theft")
	noGeo.Latitude, noGeo.Longitude = nil, nil
	st := Summarize([]Record{
		rec("a", "2024-05-01T10:00:00Z", "theft", "assault"),
		noGeo,
	})
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Geocoded)
	assert.Equal(t, 2, st.ByCategory["theft"])
	assert.Equal(t, 1, st.ByCategory["assault"])
}

func TestIDSet(t *testing.T) {
	var nilSet IDSet
	assert.False(t, nilSet.Has("a"))
	s := NewIDSet("b", "a")
	assert.True(t, s.Has("a"))
	assert.Equal(t, []string{"a", "b"}, s.Sorted())
}
