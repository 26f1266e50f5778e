package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/binning"
	"github.com/sells-group/lagekarte/internal/events"
)

type sequenceResponse struct {
	Filter events.Filter   `json:"filter"`
	Events events.Sequence `json:"events"`
}

// filterRequest is the body of PUT /events/filter. Query runs a full-text
// search; FavoritesList restricts to one saved list.
type filterRequest struct {
	events.Filter
	Query         string `json:"query,omitempty"`
	FavoritesList string `json:"favorites_list,omitempty"`
}

type scrubRequest struct {
	Index int `json:"index"`
}

type idRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleSequence(w http.ResponseWriter, _ *http.Request) {
	seq := s.timeline.Sequence()
	if seq == nil {
		seq = events.Sequence{}
	}
	writeJSON(w, http.StatusOK, sequenceResponse{Filter: s.timeline.Filter(), Events: seq})
}

func (s *Server) handleVisible(w http.ResponseWriter, _ *http.Request) {
	visible := s.timeline.Visible()
	if visible == nil {
		visible = []events.Record{}
	}
	writeJSON(w, http.StatusOK, visible)
}

func (s *Server) handleBins(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("zoom")
	zoom, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid zoom")
		return
	}
	fc, err := binning.FeatureCollection(s.timeline.Bins(zoom))
	if err != nil {
		zap.L().Error("server: build bin features", zap.Float64("zoom", zoom), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	data, err := json.Marshal(fc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleEventStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.timeline.Stats())
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	members := s.timeline.GroupMembers(chi.URLParam(r, "group"))
	if len(members) == 0 {
		writeError(w, http.StatusNotFound, "unknown incident group")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// handleFilter resolves the search and favourites collaborators first so a
// failing lookup or an invalid filter leaves the timeline untouched.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var searchIDs events.IDSet
	if q := strings.TrimSpace(req.Query); q != "" {
		ids, err := s.store.SearchEvents(r.Context(), q)
		if err != nil {
			storeError(w, r, err)
			return
		}
		searchIDs = ids
		if searchIDs == nil {
			searchIDs = events.NewIDSet()
		}
	}

	var favorites events.IDSet
	if req.FavoritesList != "" {
		ids, err := s.store.Favorites(r.Context(), req.FavoritesList)
		if err != nil {
			storeError(w, r, err)
			return
		}
		favorites = ids
		req.FavoritesOnly = true
	}

	if err := s.timeline.Apply(req.Filter, searchIDs, favorites); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	zap.L().Info("server: filter applied",
		zap.Bool("search", searchIDs != nil),
		zap.Bool("favorites", req.FavoritesOnly),
		zap.Int("sequence", len(s.timeline.Sequence())),
	)
	writeJSON(w, http.StatusOK, s.timeline.Playback().Snapshot())
}

func (s *Server) handlePlayback(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.timeline.Playback().Snapshot())
}

func (s *Server) handleToggle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.timeline.TogglePlay())
}

func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	var req scrubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, s.timeline.Scrub(req.Index))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.timeline.Playback().Select(req.ID)
	writeJSON(w, http.StatusOK, s.timeline.Playback().Snapshot())
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.timeline.Playback().SetHover(req.ID)
	writeJSON(w, http.StatusOK, s.timeline.Playback().Snapshot())
}

func (s *Server) handleCreateFavorites(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := s.store.CreateFavoriteList(r.Context(), req.Name)
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "name": req.Name})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.Favorites(r.Context(), chi.URLParam(r, "list"))
	if err != nil {
		storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"events": ids.Sorted()})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	if err := s.store.AddFavorite(r.Context(), chi.URLParam(r, "list"), chi.URLParam(r, "event")); err != nil {
		storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
