// Package events models police-report event records and builds the
// filtered, time-ordered sequence that playback walks.
package events

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Role is a record's position inside a multi-record incident group.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Record is one geocoded (or not) police report.
type Record struct {
	ID              string   `json:"id"`
	Timestamp       string   `json:"timestamp"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	Categories      []string `json:"categories"`
	WeaponType      string   `json:"weapon_type,omitempty"`
	GroupRole       Role     `json:"group_role,omitempty"`
	IncidentGroupID string   `json:"incident_group_id,omitempty"`
	Title           string   `json:"title,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// HasCoordinates reports whether the record can be placed on the map.
func (r Record) HasCoordinates() bool {
	_, _, ok := r.Coordinates()
	return ok
}

// Coordinates returns the record's position when both parts are present
// and finite.
func (r Record) Coordinates() (lat, lng float64, ok bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return 0, 0, false
	}
	lat, lng = *r.Latitude, *r.Longitude
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return 0, 0, false
	}
	return lat, lng, true
}

// InCategory reports whether any of the record's categories is in set.
func (r Record) InCategory(set IDSet) bool {
	for _, c := range r.Categories {
		if set.Has(c) {
			return true
		}
	}
	return false
}

// IDSet is a set of ids or category names.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership. A nil set contains nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// localLayouts are accepted timestamp forms without a zone offset.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are
// read in loc (UTC when loc is nil).
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// GroupMembers returns the records of one incident group, primary first and
// then by time. These are the records the primary-only rule hides from the
// top-level sequence.
func GroupMembers(records []Record, groupID string, loc *time.Location) []Record {
	if groupID == "" {
		return nil
	}
	var out []Record
	for _, r := range records {
		if r.IncidentGroupID == groupID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].GroupRole == RolePrimary, out[j].GroupRole == RolePrimary
		if pi != pj {
			return pi
		}
		return sortKey(out[i], loc).Before(sortKey(out[j], loc))
	})
	return out
}

// Stats counts records before any filtering, so non-geocoded reports still
// show up in aggregate numbers.
type Stats struct {
	Total      int            `json:"total"`
	Geocoded   int            `json:"geocoded"`
	ByCategory map[string]int `json:"by_category"`
}

// Summarize computes Stats over records.
func Summarize(records []Record) Stats {
	st := Stats{ByCategory: make(map[string]int)}
	for _, r := range records {
		st.Total++
		if r.HasCoordinates() {
			st.Geocoded++
		}
		for _, c := range r.Categories {
			st.ByCategory[c]++
		}
	}
	return st
}
