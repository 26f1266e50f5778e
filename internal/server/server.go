// Package server exposes the dashboard engine as a JSON HTTP API for the
// map front end.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/choropleth"
	"github.com/sells-group/lagekarte/internal/colorscale"
	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/store"
	"github.com/sells-group/lagekarte/internal/timeline"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// RateLimit is requests per second per client address; 0 disables.
	RateLimit float64
	Burst     int
}

// Server serves indicator layers and the live feed.
type Server struct {
	store    store.Store
	catalog  *indicator.Catalog
	cache    *colorscale.Cache
	builder  *choropleth.Builder
	timeline *timeline.Timeline
	regions  map[string]string
	opts     Options
}

// New creates a Server. regions maps region ids to display names and is not
// modified after construction.
func New(st store.Store, catalog *indicator.Catalog, cache *colorscale.Cache, builder *choropleth.Builder, tl *timeline.Timeline, regions map[string]string, opts Options) *Server {
	if catalog == nil {
		catalog = indicator.DefaultCatalog()
	}
	if regions == nil {
		regions = map[string]string{}
	}
	return &Server{
		store:    st,
		catalog:  catalog,
		cache:    cache,
		builder:  builder,
		timeline: tl,
		regions:  regions,
		opts:     opts,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	if s.opts.RateLimit > 0 {
		r.Use(newClientLimiter(s.opts.RateLimit, s.opts.Burst).middleware)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/indicators", func(r chi.Router) {
		r.Get("/", s.handleIndicators)
		r.Route("/{indicator}/{year}", func(r chi.Router) {
			r.Get("/colors", s.handleColors)
			r.Get("/legend", s.handleLegend)
			r.Get("/ranking", s.handleRanking)
		})
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/sequence", s.handleSequence)
		r.Get("/visible", s.handleVisible)
		r.Get("/bins", s.handleBins)
		r.Get("/stats", s.handleEventStats)
		r.Get("/groups/{group}", s.handleGroup)
		r.Put("/filter", s.handleFilter)
		r.Route("/playback", func(r chi.Router) {
			r.Get("/", s.handlePlayback)
			r.Post("/toggle", s.handleToggle)
			r.Post("/scrub", s.handleScrub)
			r.Post("/select", s.handleSelect)
			r.Post("/hover", s.handleHover)
		})
	})

	r.Route("/favorites", func(r chi.Router) {
		r.Post("/", s.handleCreateFavorites)
		r.Get("/{list}", s.handleFavorites)
		r.Put("/{list}/{event}", s.handleAddFavorite)
	})

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", s.handleCacheStats)
		r.Delete("/{indicator}", s.handleCacheInvalidate)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("server: health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		s.cache.Invalidate(chi.URLParam(r, "indicator"))
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeError logs err and answers 404 for store.ErrNotFound, 500 otherwise.
func storeError(w http.ResponseWriter, r *http.Request, err error) {
	if isNotFound(err) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("server: store call failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
