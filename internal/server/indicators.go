package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lagekarte/internal/colorscale"
	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/ranking"
	"github.com/sells-group/lagekarte/internal/store"
)

type indicatorsResponse struct {
	Metrics []indicator.Metric `json:"metrics"`
	Keys    []indicator.Key    `json:"keys"`
}

type legendResponse struct {
	Key    indicator.Key     `json:"key"`
	Metric indicator.Metric  `json:"metric"`
	Legend []colorscale.Stop `json:"legend"`
}

type rankingResponse struct {
	Key     indicator.Key   `json:"key"`
	Total   int             `json:"total"`
	Query   string          `json:"query,omitempty"`
	Entries []ranking.Entry `json:"entries"`
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.IndicatorKeys(r.Context())
	if err != nil {
		storeError(w, r, err)
		return
	}
	if keys == nil {
		keys = []indicator.Key{}
	}
	writeJSON(w, http.StatusOK, indicatorsResponse{Metrics: s.catalog.Metrics, Keys: keys})
}

func (s *Server) handleColors(w http.ResponseWriter, r *http.Request) {
	key, samples, ok := s.loadSamples(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.builder.Build(key, samples, s.regions))
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	key, samples, ok := s.loadSamples(w, r)
	if !ok {
		return
	}
	layer := s.builder.Build(key, samples, nil)
	writeJSON(w, http.StatusOK, legendResponse{Key: key, Metric: layer.Metric, Legend: layer.Legend})
}

// handleRanking answers the ranking for one key. q filters by region name,
// region narrows to a single entry.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	key, samples, ok := s.loadSamples(w, r)
	if !ok {
		return
	}
	rk := s.builder.Ranking(key, samples, s.regions)

	if region := r.URL.Query().Get("region"); region != "" {
		e, found := rk.RankOf(region)
		if !found {
			writeError(w, http.StatusNotFound, "region not ranked")
			return
		}
		writeJSON(w, http.StatusOK, e)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	entries := rk.Filter(q)
	if entries == nil {
		entries = []ranking.Entry{}
	}
	writeJSON(w, http.StatusOK, rankingResponse{Key: key, Total: rk.Len(), Query: q, Entries: entries})
}

func (s *Server) loadSamples(w http.ResponseWriter, r *http.Request) (indicator.Key, indicator.Samples, bool) {
	key, err := parseKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return key, nil, false
	}
	samples, err := s.store.IndicatorSamples(r.Context(), key)
	if err != nil {
		storeError(w, r, err)
		return key, nil, false
	}
	return key, samples, true
}

func parseKey(r *http.Request) (indicator.Key, error) {
	key := indicator.Key{
		Indicator: chi.URLParam(r, "indicator"),
		SubMetric: r.URL.Query().Get("sub"),
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return key, eris.Errorf("invalid year %q", chi.URLParam(r, "year"))
	}
	key.Year = year
	return key, nil
}

func isNotFound(err error) bool {
	return eris.Is(err, store.ErrNotFound)
}
