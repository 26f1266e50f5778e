package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lagekarte/internal/choropleth"
	"github.com/sells-group/lagekarte/internal/colorscale"
	"github.com/sells-group/lagekarte/internal/events"
	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/server"
	"github.com/sells-group/lagekarte/internal/store"
	"github.com/sells-group/lagekarte/internal/timeline"
)

var (
	servePort int
	serveWarm bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		loc, err := eventsLocation()
		if err != nil {
			return err
		}

		data, err := loadServeData(ctx, st)
		if err != nil {
			return err
		}

		cache := colorscale.NewCache(cfg.Scale.CacheSize, cfg.Scale.CacheTTL)
		builder := choropleth.NewBuilder(catalog, cache, cfg.Scale.LegendStops)
		if serveWarm {
			if err := warmScales(ctx, st, builder, data.keys); err != nil {
				return err
			}
		}

		tl := timeline.New(data.records, loc, playbackConfig(nil))
		defer tl.Close()

		srv := server.New(st, catalog, cache, builder, tl, data.regions, server.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RateLimit:      cfg.Server.RateLimit,
			Burst:          cfg.Server.Burst,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("regions", len(data.regions)),
			zap.Int("events", len(data.records)),
			zap.Int("indicator_keys", len(data.keys)),
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type serveData struct {
	regions map[string]string
	records []events.Record
	keys    []indicator.Key
}

// loadServeData fetches region names, the event feed and the indicator keys
// concurrently.
func loadServeData(ctx context.Context, st store.Store) (*serveData, error) {
	var d serveData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.regions, err = st.Regions(gctx)
		return eris.Wrap(err, "load regions")
	})
	g.Go(func() error {
		var err error
		d.records, err = st.Events(gctx)
		return eris.Wrap(err, "load events")
	})
	g.Go(func() error {
		var err error
		d.keys, err = st.IndicatorKeys(gctx)
		return eris.Wrap(err, "load indicator keys")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

// warmScales builds and caches the colour scale of every stored key.
func warmScales(ctx context.Context, st store.Store, builder *choropleth.Builder, keys []indicator.Key) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, key := range keys {
		g.Go(func() error {
			samples, err := st.IndicatorSamples(gctx, key)
			if err != nil {
				return eris.Wrapf(err, "warm %s", key)
			}
			builder.Scale(key, samples)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	zap.L().Info("colour scales warmed",
		zap.Int("keys", len(keys)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWarm, "warm", false, "build every stored colour scale before listening")
	rootCmd.AddCommand(serveCmd)
}
