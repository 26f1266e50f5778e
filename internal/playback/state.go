// Package playback replays an ordered event sequence as a cumulative reveal:
// each tick makes one more record visible, selects it, and flashes it for a
// short while.
package playback

import "sort"

// state is the playback state machine. A nil index means every record is
// revealed; a negative index means none is.
type state struct {
	index    *int
	playing  bool
	flashing map[string]struct{}
	selected string
	hovered  string
}

type actionKind int

const (
	actToggle actionKind = iota
	actTick
	actScrub
	actReset
	actUnflash
	actHover
	actSelect
)

type action struct {
	kind  actionKind
	index int
	id    string
}

type effectKind int

const (
	effStartTick effectKind = iota
	effStopTick
	effFlash
	effClearFlashes
)

type effect struct {
	kind effectKind
	id   string
}

// effectiveIndex resolves a nil index to the last position.
func effectiveIndex(idx *int, n int) int {
	if idx == nil {
		return n - 1
	}
	return *idx
}

func intPtr(v int) *int { return &v }

// reduce applies a to s over the sequence ids. It returns the next state,
// the timer effects to run, and whether anything observable changed. s is
// never mutated.
func reduce(s state, ids []string, a action) (state, []effect, bool) {
	n := len(ids)

	switch a.kind {
	case actToggle:
		if s.playing {
			s.playing = false
			return s, []effect{{kind: effStopTick}}, true
		}
		if n == 0 {
			return s, nil, false
		}
		idx := effectiveIndex(s.index, n)
		if idx >= n-1 {
			idx = -1
		}
		s.index = intPtr(idx)
		s.playing = true
		return s, []effect{{kind: effStartTick}}, true

	case actTick:
		if !s.playing {
			return s, nil, false
		}
		next := effectiveIndex(s.index, n) + 1
		if next >= n {
			s.playing = false
			s.index = intPtr(n - 1)
			return s, []effect{{kind: effStopTick}}, true
		}
		id := ids[next]
		s.index = intPtr(next)
		s.selected = id
		s.hovered = ""
		s.flashing = withFlash(s.flashing, id)
		return s, []effect{{kind: effFlash, id: id}, {kind: effStartTick}}, true

	case actScrub:
		if n == 0 {
			if !s.playing {
				return s, nil, false
			}
			s.playing = false
			return s, []effect{{kind: effStopTick}}, true
		}
		idx := a.index
		if idx < 0 {
			idx = 0
		}
		if idx > n-1 {
			idx = n - 1
		}
		s.index = intPtr(idx)
		s.playing = false
		s.hovered = ""
		s.selected = ids[idx]
		return s, []effect{{kind: effStopTick}}, true

	case actReset:
		return state{}, []effect{{kind: effStopTick}, {kind: effClearFlashes}}, true

	case actUnflash:
		if _, ok := s.flashing[a.id]; !ok {
			return s, nil, false
		}
		s.flashing = withoutFlash(s.flashing, a.id)
		return s, nil, true

	case actHover:
		if s.hovered == a.id {
			return s, nil, false
		}
		s.hovered = a.id
		return s, nil, true

	case actSelect:
		if s.selected == a.id {
			return s, nil, false
		}
		s.selected = a.id
		return s, nil, true
	}
	return s, nil, false
}

func withFlash(set map[string]struct{}, id string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+1)
	for k := range set {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

func withoutFlash(set map[string]struct{}, id string) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		if k != id {
			out[k] = struct{}{}
		}
	}
	return out
}

// visible returns the revealed prefix of ids.
func visible(s state, ids []string) []string {
	idx := effectiveIndex(s.index, len(ids))
	if idx < 0 {
		return []string{}
	}
	if idx >= len(ids) {
		idx = len(ids) - 1
	}
	out := make([]string, idx+1)
	copy(out, ids[:idx+1])
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
