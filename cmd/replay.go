package main

import (
	"os/signal"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/events"
	"github.com/sells-group/lagekarte/internal/playback"
	"github.com/sells-group/lagekarte/internal/timeline"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the filtered event feed in time order",
	Long:  "Plays the filtered, geocoded event feed one report per tick and logs each reveal until the sequence ends.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loc, err := eventsLocation()
		if err != nil {
			return err
		}
		filter, err := filterFromFlags(ctx, cmd, st)
		if err != nil {
			return err
		}
		records, err := st.Events(ctx)
		if err != nil {
			return eris.Wrap(err, "replay")
		}

		rep := newReplayLog()
		pcfg := playbackConfig(rep.observe)
		if tick, _ := cmd.Flags().GetDuration("tick"); tick > 0 {
			pcfg.TickInterval = tick
		}

		tl := timeline.New(records, loc, pcfg)
		defer tl.Close()
		if err := tl.Apply(filter, filter.SearchIDs, filter.Favorites); err != nil {
			return err
		}

		seq := tl.Sequence()
		if len(seq) == 0 {
			zap.L().Warn("replay: no geocoded events match the filter")
			return nil
		}
		rep.setSequence(seq)

		zap.L().Info("replay started",
			zap.Int("events", len(seq)),
			zap.Duration("tick", pcfg.TickInterval),
		)
		tl.TogglePlay()

		select {
		case <-rep.done:
			zap.L().Info("replay finished", zap.Int("revealed", rep.revealed()))
		case <-ctx.Done():
			zap.L().Info("replay interrupted", zap.Int("revealed", rep.revealed()))
		}
		return nil
	},
}

// replayLog logs reveals from playback snapshots. It never calls back into
// the timeline.
type replayLog struct {
	mu      sync.Mutex
	seq     events.Sequence
	started bool
	last    int
	done    chan struct{}
	once    sync.Once
}

func newReplayLog() *replayLog {
	return &replayLog{last: -1, done: make(chan struct{})}
}

func (r *replayLog) setSequence(seq events.Sequence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = seq
}

func (r *replayLog) revealed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last + 1
}

func (r *replayLog) observe(s playback.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Playing {
		r.started = true
	}
	if !r.started {
		return
	}
	if s.Index != nil && *s.Index > r.last && *s.Index < len(r.seq) {
		r.last = *s.Index
		rec := r.seq[r.last]
		zap.L().Info("event revealed",
			zap.Int("index", r.last),
			zap.String("id", rec.ID),
			zap.String("timestamp", rec.Timestamp),
			zap.Strings("categories", rec.Categories),
			zap.String("title", rec.Title),
		)
	}
	if !s.Playing {
		r.once.Do(func() { close(r.done) })
	}
}

func init() {
	replayCmd.Flags().Duration("tick", 0, "time between reveals (default from config)")
	addFilterFlags(replayCmd)
	rootCmd.AddCommand(replayCmd)
}
