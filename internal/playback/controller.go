package playback

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls playback timing.
type Config struct {
	// TickInterval is the delay between reveals while playing. Default: 1.5s.
	TickInterval time.Duration

	// FlashDuration is how long a revealed record stays in the flashing set.
	// Default: 1.3s.
	FlashDuration time.Duration

	// Scheduler runs tick and flash-expiry callbacks. Default: RealScheduler.
	Scheduler Scheduler

	// OnChange is called after every state change, outside the controller
	// lock. Snapshots carry a Version so late deliveries can be dropped.
	OnChange func(Snapshot)
}

// DefaultConfig returns the standard timings on the wall clock.
func DefaultConfig() Config {
	return Config{
		TickInterval:  1500 * time.Millisecond,
		FlashDuration: 1300 * time.Millisecond,
		Scheduler:     RealScheduler{},
	}
}

// Snapshot is a read-only copy of the playback state.
type Snapshot struct {
	Version  uint64   `json:"version"`
	Index    *int     `json:"index"`
	Playing  bool     `json:"playing"`
	Length   int      `json:"length"`
	Visible  []string `json:"visible"`
	Flashing []string `json:"flashing"`
	Selected string   `json:"selected,omitempty"`
	Hovered  string   `json:"hovered,omitempty"`
}

type pendingTimer struct {
	timer Timer
	token uint64
}

// Controller drives playback over one sequence at a time.
type Controller struct {
	cfg Config

	mu       sync.Mutex
	ids      []string
	st       state
	version  uint64
	tokens   uint64
	tick     *pendingTimer
	flashes  map[string]*pendingTimer
	disposed bool
}

// New creates a stopped controller over an empty sequence. Zero fields in
// cfg take their defaults.
func New(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.FlashDuration <= 0 {
		cfg.FlashDuration = def.FlashDuration
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = def.Scheduler
	}
	return &Controller{
		cfg:     cfg,
		flashes: make(map[string]*pendingTimer),
	}
}

// Reset replaces the sequence and returns to the initial state: everything
// revealed, stopped, nothing flashing, nothing selected. Every pending timer
// is cancelled.
func (c *Controller) Reset(ids []string) {
	c.mu.Lock()
	if !c.disposed {
		c.ids = append([]string(nil), ids...)
	}
	snap, changed := c.stepLocked(action{kind: actReset})
	c.mu.Unlock()
	c.notify(snap, changed)
}

// TogglePlay starts or pauses playback. Starting from the end rewinds so the
// whole sequence replays.
func (c *Controller) TogglePlay() { c.dispatch(action{kind: actToggle}) }

// Scrub stops playback and jumps to index n, clamped into the sequence.
func (c *Controller) Scrub(n int) { c.dispatch(action{kind: actScrub, index: n}) }

// SetHover records the hovered record id; empty clears it.
func (c *Controller) SetHover(id string) { c.dispatch(action{kind: actHover, id: id}) }

// Select records the selected record id; empty clears it.
func (c *Controller) Select(id string) { c.dispatch(action{kind: actSelect, id: id}) }

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// VisibleIDs returns the revealed prefix of the sequence.
func (c *Controller) VisibleIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return visible(c.st, c.ids)
}

// Dispose cancels every pending timer. Later calls are no-ops.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.stopTickLocked()
	c.clearFlashesLocked()
}

func (c *Controller) dispatch(a action) {
	c.mu.Lock()
	snap, changed := c.stepLocked(a)
	c.mu.Unlock()
	c.notify(snap, changed)
}

// stepLocked runs one action through the reducer and applies its effects.
func (c *Controller) stepLocked(a action) (Snapshot, bool) {
	if c.disposed {
		return Snapshot{}, false
	}
	next, effects, changed := reduce(c.st, c.ids, a)
	c.st = next
	for _, e := range effects {
		c.applyLocked(e)
	}
	if !changed {
		return Snapshot{}, false
	}
	c.version++
	if a.kind == actTick && !next.playing {
		zap.L().Debug("playback: reached end of sequence",
			zap.Int("length", len(c.ids)),
		)
	}
	return c.snapshotLocked(), true
}

func (c *Controller) notify(snap Snapshot, changed bool) {
	if changed && c.cfg.OnChange != nil {
		c.cfg.OnChange(snap)
	}
}

func (c *Controller) applyLocked(e effect) {
	switch e.kind {
	case effStartTick:
		c.stopTickLocked()
		token := c.nextToken()
		c.tick = &pendingTimer{
			token: token,
			timer: c.cfg.Scheduler.AfterFunc(c.cfg.TickInterval, func() { c.fireTick(token) }),
		}
	case effStopTick:
		c.stopTickLocked()
	case effFlash:
		if p, ok := c.flashes[e.id]; ok {
			p.timer.Stop()
		}
		id := e.id
		token := c.nextToken()
		c.flashes[id] = &pendingTimer{
			token: token,
			timer: c.cfg.Scheduler.AfterFunc(c.cfg.FlashDuration, func() { c.fireUnflash(id, token) }),
		}
	case effClearFlashes:
		c.clearFlashesLocked()
	}
}

// fireTick runs a tick unless its timer was replaced or cancelled after it
// had already fired.
func (c *Controller) fireTick(token uint64) {
	c.mu.Lock()
	var snap Snapshot
	var changed bool
	if c.tick != nil && c.tick.token == token {
		c.tick = nil
		snap, changed = c.stepLocked(action{kind: actTick})
	}
	c.mu.Unlock()
	c.notify(snap, changed)
}

func (c *Controller) fireUnflash(id string, token uint64) {
	c.mu.Lock()
	var snap Snapshot
	var changed bool
	if p, ok := c.flashes[id]; ok && p.token == token {
		delete(c.flashes, id)
		snap, changed = c.stepLocked(action{kind: actUnflash, id: id})
	}
	c.mu.Unlock()
	c.notify(snap, changed)
}

func (c *Controller) stopTickLocked() {
	if c.tick != nil {
		c.tick.timer.Stop()
		c.tick = nil
	}
}

func (c *Controller) clearFlashesLocked() {
	for id, p := range c.flashes {
		p.timer.Stop()
		delete(c.flashes, id)
	}
}

func (c *Controller) nextToken() uint64 {
	c.tokens++
	return c.tokens
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:  c.version,
		Playing:  c.st.playing,
		Length:   len(c.ids),
		Visible:  visible(c.st, c.ids),
		Flashing: sortedKeys(c.st.flashing),
		Selected: c.st.selected,
		Hovered:  c.st.hovered,
	}
	if c.st.index != nil {
		snap.Index = intPtr(*c.st.index)
	}
	return snap
}
