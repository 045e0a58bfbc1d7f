// Package api serves the sweep host over HTTP: session control, live events
// over SSE, stored sweeps and chart/CSV exports.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/sweeper/internal/db"
	"github.com/banshee-data/sweeper/internal/monitoring"
	"github.com/banshee-data/sweeper/internal/sweep"
)

// Station describes the bench the server drives.
type Station struct {
	AnalyzerID  string `json:"analyzer_id"`
	GeneratorID string `json:"generator_id"`
	// Defaults fill any field a start request leaves out.
	Defaults sweep.Request `json:"defaults"`
}

// Server exposes one sweep host. Sessions it starts outlive the request that
// started them and are cancelled by Close.
type Server struct {
	host    *sweep.Host
	db      *db.DB
	station Station
	events  *Broadcaster

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	relays sync.WaitGroup
}

// NewServer creates a server for host. store may be nil, in which case
// sessions are not persisted and the stored-sweep routes answer 404.
func NewServer(host *sweep.Host, store *db.DB, station Station) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		host:    host,
		db:      store,
		station: station,
		events:  NewBroadcaster(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sweep", s.showState)
	mux.HandleFunc("/api/sweep/start", s.startSweep)
	mux.HandleFunc("/api/sweep/cancel", s.cancelSweep)
	mux.HandleFunc("/api/sweep/clear", s.clearResults)
	mux.HandleFunc("/api/sweep/points", s.showPoints)
	mux.HandleFunc("/api/sweep/events", s.streamEvents)
	mux.HandleFunc("/api/sweep/chart", s.showChart)
	mux.HandleFunc("/api/sweep/plot.png", s.showPlot)
	mux.HandleFunc("/api/sweep/csv", s.downloadCSV)
	mux.HandleFunc("/api/sweeps", s.listSweeps)
	mux.HandleFunc("/api/sweeps/{id}", s.showSweep)
	mux.HandleFunc("/api/sweeps/{id}/points", s.showSweepPoints)
	mux.HandleFunc("/api/generator/frequency", s.setGeneratorFrequency)
	mux.HandleFunc("/api/station", s.showStation)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

// ListenAndServe serves mux on addr until ctx is done, then shuts down,
// cancelling any running session.
func (s *Server) ListenAndServe(ctx context.Context, addr string, mux *http.ServeMux) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("[api] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// SSE streams end when the broadcaster closes, so close it before
	// waiting on in-flight requests.
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close cancels any running session, waits for its events to be persisted
// and disconnects SSE subscribers.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.relays.Wait()
	s.events.Close()
}

// relay drains a session: every event is persisted when a store is
// configured and published to SSE subscribers.
func (s *Server) relay(sess *sweep.Session) {
	defer s.relays.Done()
	seq := 0
	for ev := range sess.Events() {
		switch ev.Kind {
		case sweep.EventMeasurement:
			seq++
			if s.db != nil && ev.Point != nil {
				if err := s.db.RecordPoint(sess.ID, seq, *ev.Point); err != nil {
					monitoring.Logf("[api] %v", err)
				}
			}
		case sweep.EventTerminal:
			if s.db != nil {
				if err := s.db.FinishSweep(sess.ID, ev.Status, ev.Reason, ev.Time); err != nil {
					monitoring.Logf("[api] %v", err)
				}
			}
		}
		s.events.Publish(ev)
	}
}
