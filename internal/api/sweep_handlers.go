package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/sweeper/internal/chart"
	"github.com/banshee-data/sweeper/internal/db"
	"github.com/banshee-data/sweeper/internal/httputil"
	"github.com/banshee-data/sweeper/internal/monitoring"
	"github.com/banshee-data/sweeper/internal/sweep"
	"github.com/banshee-data/sweeper/internal/units"
	"github.com/banshee-data/sweeper/internal/version"
)

// Seed choices for a continuous start request besides a stored sweep ID.
const (
	SeedCurrent = "current"
	SeedNone    = "none"
)

// StartRequest is the body of POST /api/sweep/start. Omitted fields take the
// station defaults.
type StartRequest struct {
	sweep.Request
	// SeedFrom picks the starting points of a continuous sweep: "current"
	// (the default) continues from the host's results, "none" starts empty,
	// anything else is a stored sweep ID.
	SeedFrom string `json:"seed_from"`
}

// PointsResponse is a set of points with their summary.
type PointsResponse struct {
	SweepID string        `json:"sweep_id,omitempty"`
	Points  []sweep.Point `json:"points"`
	Summary sweep.Summary `json:"summary"`
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.host.State())
}

func (s *Server) startSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	req := StartRequest{Request: s.station.Defaults}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	cfg, mode, err := sweep.ParseRequest(req.Request)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var seed []sweep.Point
	if mode == sweep.ModeContinuous {
		if seed, err = s.seedPoints(req.SeedFrom); err != nil {
			if errors.Is(err, db.ErrSweepNotFound) {
				httputil.NotFound(w, err.Error())
				return
			}
			httputil.BadRequest(w, err.Error())
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	sess, err := s.host.Start(s.ctx, cfg, mode, seed)
	if errors.Is(err, sweep.ErrSweepInProgress) {
		httputil.Conflict(w, err.Error())
		return
	}
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	state := s.host.State()
	if s.db != nil {
		startedAt := time.Now()
		if state.StartedAt != nil {
			startedAt = *state.StartedAt
		}
		err := s.db.CreateSweep(db.SweepRecord{
			ID:          sess.ID,
			Mode:        sess.Mode,
			Config:      sess.Config,
			AnalyzerID:  s.station.AnalyzerID,
			GeneratorID: s.station.GeneratorID,
			StartedAt:   startedAt,
		})
		if err != nil {
			monitoring.Logf("[api] %v", err)
		}
	}
	s.relays.Add(1)
	go s.relay(sess)

	monitoring.Logf("[api] started %s sweep %s", sess.Mode, sess.ID)
	httputil.WriteJSON(w, http.StatusAccepted, state)
}

func (s *Server) seedPoints(from string) ([]sweep.Point, error) {
	switch from {
	case "", SeedCurrent:
		return s.host.Results(), nil
	case SeedNone:
		return nil, nil
	}
	if s.db == nil {
		return nil, fmt.Errorf("sweep %s: %w", from, db.ErrSweepNotFound)
	}
	return s.db.SweepPoints(from)
}

func (s *Server) cancelSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.host.Cancel()
	httputil.WriteJSONOK(w, s.host.State())
}

func (s *Server) clearResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.host.Clear(); err != nil {
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.host.State())
}

// pointsFor returns the points of the stored sweep named by the "sweep" query
// parameter, or the host's current results when it is absent.
func (s *Server) pointsFor(w http.ResponseWriter, r *http.Request) (string, []sweep.Point, bool) {
	id := r.URL.Query().Get("sweep")
	if id == "" {
		return "", s.host.Results(), true
	}
	points, ok := s.storedPoints(w, id)
	return id, points, ok
}

func (s *Server) storedPoints(w http.ResponseWriter, id string) ([]sweep.Point, bool) {
	if s.db == nil {
		httputil.NotFound(w, "sweep history is not enabled")
		return nil, false
	}
	points, err := s.db.SweepPoints(id)
	if errors.Is(err, db.ErrSweepNotFound) {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	return points, true
}

func (s *Server) showPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, points, ok := s.pointsFor(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("sorted") == "true" {
		points = sweep.SortByFrequency(points)
	}
	httputil.WriteJSONOK(w, PointsResponse{SweepID: id, Points: points, Summary: sweep.Summarize(points)})
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case ev, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				monitoring.Logf("[api] failed to encode event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func chartTitle(id string) string {
	if id == "" {
		return "Sweep"
	}
	return "Sweep " + id
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, points, ok := s.pointsFor(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chart.RenderHTML(w, points, chartTitle(id)); err != nil {
		monitoring.Logf("[api] failed to render chart: %v", err)
	}
}

func (s *Server) showPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, points, ok := s.pointsFor(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := chart.WritePNG(w, points, chartTitle(id)); err != nil {
		monitoring.Logf("[api] failed to render plot: %v", err)
	}
}

func (s *Server) downloadCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, points, ok := s.pointsFor(w, r)
	if !ok {
		return
	}
	name := "sweep.csv"
	if id != "" {
		name = httputil.AttachmentFilename("sweep-"+id, ".csv")
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := sweep.WriteCSV(w, points); err != nil {
		monitoring.Logf("[api] failed to write csv: %v", err)
	}
}

func (s *Server) listSweeps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONOK(w, []db.SweepRecord{})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	sweeps, err := s.db.Sweeps(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sweeps)
}

func (s *Server) showSweep(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		if s.db == nil {
			httputil.NotFound(w, "sweep history is not enabled")
			return
		}
		rec, err := s.db.Sweep(id)
		if errors.Is(err, db.ErrSweepNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, rec)
	case http.MethodDelete:
		if s.db == nil {
			httputil.NotFound(w, "sweep history is not enabled")
			return
		}
		if state := s.host.State(); state.Status == sweep.StatusRunning && state.SessionID == id {
			httputil.Conflict(w, sweep.ErrSweepInProgress.Error())
			return
		}
		err := s.db.DeleteSweep(id)
		if errors.Is(err, db.ErrSweepNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) showSweepPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.PathValue("id")
	points, ok := s.storedPoints(w, id)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, PointsResponse{SweepID: id, Points: points, Summary: sweep.Summarize(points)})
}

// FrequencyRequest is the body of POST /api/generator/frequency.
type FrequencyRequest struct {
	Frequency string `json:"frequency"`
}

func (s *Server) setGeneratorFrequency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req FrequencyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	hz, err := units.ParseFrequency(req.Frequency)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	err = s.host.SetGeneratorFrequency(hz)
	if errors.Is(err, sweep.ErrSweepInProgress) {
		httputil.Conflict(w, err.Error())
		return
	}
	if err != nil {
		httputil.BadGateway(w, err.Error())
		return
	}
	monitoring.Logf("[api] generator set to %s", units.FormatFrequency(hz))
	httputil.WriteJSONOK(w, map[string]float64{"frequency_hz": hz})
}

func (s *Server) showStation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.station)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}
