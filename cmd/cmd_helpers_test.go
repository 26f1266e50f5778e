package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lagekarte/internal/config"
	"github.com/sells-group/lagekarte/internal/events"
)

// useTestConfig points the global config at a fresh SQLite file.
func useTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "cmd.db"),
		},
		Playback: config.PlaybackConfig{
			TickInterval:  5 * time.Millisecond,
			FlashDuration: 5 * time.Millisecond,
		},
		Scale:  config.ScaleConfig{CacheSize: 8, LegendStops: 5},
		Events: config.EventsConfig{Timezone: "UTC"},
	}
	t.Cleanup(func() { cfg = prev })
}

// execute runs c's RunE with flags set, restoring flag defaults afterwards.
func execute(t *testing.T, c *cobra.Command, args []string, flags map[string]string) error {
	t.Helper()
	for k, v := range flags {
		require.NoError(t, c.Flags().Set(k, v))
	}
	t.Cleanup(func() {
		for k := range flags {
			f := c.Flags().Lookup(k)
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		}
	})
	c.SetContext(context.Background())
	return c.RunE(c, args)
}

func writeJSONFile(t *testing.T, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func fptr(v float64) *float64 { return &v }

func testEvents() []events.Record {
	return []events.Record{
		{ID: "E2", Timestamp: "2024-05-02T10:00:00Z", Latitude: fptr(50.94), Longitude: fptr(6.96),
			Categories: []string{"assault"}, Title: "Körperverletzung"},
		{ID: "E1", Timestamp: "2024-05-01T10:00:00Z", Latitude: fptr(52.52), Longitude: fptr(13.40),
			Categories: []string{"theft"}, Title: "Taschendiebstahl"},
		{ID: "E3", Timestamp: "2024-05-03T10:00:00Z", Latitude: fptr(52.52), Longitude: fptr(13.40),
			Categories: []string{"theft"}, Title: "Fahrraddiebstahl"},
		{ID: "E4", Timestamp: "2024-05-04T10:00:00Z", Categories: []string{"fraud"}, Title: "Betrug"},
	}
}
