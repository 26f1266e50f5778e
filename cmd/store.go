package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/playback"
	"github.com/sells-group/lagekarte/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "lagekarte.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		poolCfg := &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}
		return store.Connect(ctx, store.ConnectConfig{
			Attempts:       cfg.Store.ConnectAttempts,
			InitialBackoff: cfg.Store.ConnectBackoff,
		}, func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg)
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func loadCatalog() (*indicator.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return indicator.DefaultCatalog(), nil
	}
	c, err := indicator.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("metrics", len(c.Metrics)),
	)
	return c, nil
}

func eventsLocation() (*time.Location, error) {
	if cfg.Events.Timezone == "" {
		return time.UTC, nil
	}
	return cfg.Events.Location()
}

func playbackConfig(onChange func(playback.Snapshot)) playback.Config {
	return playback.Config{
		TickInterval:  cfg.Playback.TickInterval,
		FlashDuration: cfg.Playback.FlashDuration,
		OnChange:      onChange,
	}
}
