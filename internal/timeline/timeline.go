// Package timeline holds the live police-report feed: loaded records, the
// active filter, the ordered sequence and its playback.
package timeline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/binning"
	"github.com/sells-group/lagekarte/internal/events"
	"github.com/sells-group/lagekarte/internal/playback"
)

// Timeline is safe for concurrent use.
type Timeline struct {
	mu       sync.RWMutex
	records  []events.Record
	filter   events.Filter
	seq      events.Sequence
	loc      *time.Location
	playback *playback.Controller
}

// New creates a timeline over records with no filter. loc interprets dates
// and offset-less timestamps; nil means UTC. cfg.OnChange may run while the
// timeline is locked and must not call back into it.
func New(records []events.Record, loc *time.Location, cfg playback.Config) *Timeline {
	if loc == nil {
		loc = time.UTC
	}
	t := &Timeline{
		records:  records,
		loc:      loc,
		playback: playback.New(cfg),
	}
	t.filter.Location = loc
	t.rebuildLocked()
	return t
}

// SetRecords replaces the loaded records. Playback resets.
func (t *Timeline) SetRecords(records []events.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = records
	t.rebuildLocked()
}

// SetFilter validates and applies f. The search and favourite id sets are
// kept; they change through SetSearchResults and SetFavorites. Any filter
// change resets playback, since an index into the old sequence means nothing
// in the new one.
func (t *Timeline) SetFilter(f events.Filter) error {
	f.Location = t.loc
	if err := f.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	f.SearchIDs = t.filter.SearchIDs
	f.Favorites = t.filter.Favorites
	t.filter = f
	t.rebuildLocked()
	return nil
}

// Apply replaces the filter together with the search and favourite id sets
// and rebuilds once, so readers never see a partly applied change. nil sets
// clear their restriction.
func (t *Timeline) Apply(f events.Filter, searchIDs, favorites events.IDSet) error {
	f.Location = t.loc
	if err := f.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	f.SearchIDs = searchIDs
	f.Favorites = favorites
	t.filter = f
	t.rebuildLocked()
	return nil
}

// SetSearchResults applies a search id set; nil clears the search.
func (t *Timeline) SetSearchResults(ids events.IDSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter.SearchIDs = ids
	t.rebuildLocked()
}

// SetFavorites replaces the favourite id set.
func (t *Timeline) SetFavorites(ids events.IDSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter.Favorites = ids
	t.rebuildLocked()
}

func (t *Timeline) rebuildLocked() {
	t.seq = events.Order(t.records, t.filter)
	t.playback.Reset(t.seq.IDs())
	zap.L().Debug("timeline: sequence rebuilt",
		zap.Int("records", len(t.records)),
		zap.Int("sequence", len(t.seq)),
		zap.Bool("filtered", t.filter.Active()),
	)
}

// Filter returns the active filter.
func (t *Timeline) Filter() events.Filter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filter
}

// Sequence returns the ordered, filtered records.
func (t *Timeline) Sequence() events.Sequence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(events.Sequence, len(t.seq))
	copy(out, t.seq)
	return out
}

// Playback returns the controller driving the sequence.
func (t *Timeline) Playback() *playback.Controller {
	return t.playback
}

// TogglePlay starts or pauses playback.
func (t *Timeline) TogglePlay() playback.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.playback.TogglePlay()
	return t.playback.Snapshot()
}

// Scrub jumps playback to index n.
func (t *Timeline) Scrub(n int) playback.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.playback.Scrub(n)
	return t.playback.Snapshot()
}

// Visible returns the records revealed so far.
func (t *Timeline) Visible() []events.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.playback.VisibleIDs())
	if n > len(t.seq) {
		n = len(t.seq)
	}
	out := make([]events.Record, n)
	copy(out, t.seq[:n])
	return out
}

// Bins aggregates the visible records at the resolution for zoom.
func (t *Timeline) Bins(zoom float64) []binning.Bin {
	return binning.Aggregate(t.Visible(), binning.ResolutionForZoom(zoom))
}

// Stats counts every loaded record, filtered or not.
func (t *Timeline) Stats() events.Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return events.Summarize(t.records)
}

// GroupMembers returns the records of one incident group, primary first.
func (t *Timeline) GroupMembers(groupID string) []events.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return events.GroupMembers(t.records, groupID, t.loc)
}

// Close stops playback and cancels its timers.
func (t *Timeline) Close() {
	t.playback.Dispose()
}
