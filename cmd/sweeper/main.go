// Command sweeper drives a spectrum analyzer and signal generator over GPIB
// to measure a frequency response, either once from the command line or as an
// HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/sweeper/internal/api"
	"github.com/banshee-data/sweeper/internal/chart"
	"github.com/banshee-data/sweeper/internal/config"
	"github.com/banshee-data/sweeper/internal/db"
	"github.com/banshee-data/sweeper/internal/gpib"
	"github.com/banshee-data/sweeper/internal/instrument"
	"github.com/banshee-data/sweeper/internal/monitoring"
	"github.com/banshee-data/sweeper/internal/sweep"
	"github.com/banshee-data/sweeper/internal/version"
)

var (
	configPath  = flag.String("config", "", "Station config file (JSON, YAML or TOML)")
	devMode     = flag.Bool("dev", false, "Use a simulated bench instead of the GPIB adapter")
	listen      = flag.String("listen", "", "Serve the HTTP API on this address instead of running one sweep")
	modeFlag    = flag.String("mode", "", "Sweep mode: finite or continuous")
	startFlag   = flag.String("start", "", "Start frequency, e.g. 100MHz")
	stopFlag    = flag.String("stop", "", "Stop frequency, e.g. 1GHz")
	pointsFlag  = flag.Int("points", 0, "Number of points (0 selects Halton sampling)")
	rbwFlag     = flag.String("rbw", "", "Analyzer resolution bandwidth, e.g. 3kHz")
	powerFlag   = flag.Float64("power", 0, "Generator output power in dBm")
	offsetFlag  = flag.Int64("offset", 0, "Analyzer offset from the generator in Hz")
	noTracking  = flag.Bool("no-tracking", false, "Leave the generator frequency fixed")
	csvPath     = flag.String("csv", "", "Write the results as CSV to this file")
	pngPath     = flag.String("png", "", "Write a plot of the results to this PNG file")
	dbPath      = flag.String("db", "", "Sweep history database (overrides db_path; \"-\" disables)")
	seedFrom    = flag.String("seed-from", "", "Stored sweep ID whose points seed a continuous sweep")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}
	if *listPorts {
		if err := printPorts(os.Stdout, gpib.ListPorts); err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func printPorts(w io.Writer, list func() ([]string, error)) error {
	ports, err := list()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// applyFlags overlays the command-line flags that were given onto the
// configured station and default sweep.
func applyFlags(cfg *config.StationConfig, set map[string]bool) {
	if set["listen"] {
		cfg.Listen = *listen
	}
	if set["db"] {
		cfg.DBPath = *dbPath
	}
	r := &cfg.Sweep
	if set["mode"] {
		r.Mode = *modeFlag
	}
	if set["start"] {
		r.Start = *startFlag
	}
	if set["stop"] {
		r.Stop = *stopFlag
	}
	if set["points"] {
		r.Points = *pointsFlag
	}
	if set["rbw"] {
		r.RBW = *rbwFlag
	}
	if set["power"] {
		r.PowerDBm = *powerFlag
	}
	if set["offset"] {
		r.OffsetHz = *offsetFlag
	}
	if set["no-tracking"] {
		r.TrackingDisabled = *noTracking
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, setFlags(flag.CommandLine))
	if err := monitoring.SetLevel(cfg.GetLogLevel()); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.GetLogLevel(), err)
	}

	// Parse the sweep before touching any instrument.
	sweepCfg, mode, err := sweep.ParseRequest(cfg.Sweep)
	if err != nil && cfg.Listen == "" {
		return err
	}

	var store *db.DB
	if cfg.DBPath != "-" {
		store, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		if n, err := store.MarkInterrupted(time.Now()); err != nil {
			monitoring.Logf("[db] failed to mark interrupted sweeps: %v", err)
		} else if n > 0 {
			monitoring.Logf("[db] marked %d interrupted sweeps as failed", n)
		}
	}

	st, err := openStation(cfg, *devMode, gpib.OpenSerial)
	if err != nil {
		return err
	}
	defer st.Close()

	host := sweep.NewHost(st.bench.Analyzer, st.bench.Generator, sweep.WithSettleDelay(cfg.GetSettleDelay()))

	if cfg.Listen != "" {
		return serve(ctx, cfg, host, store, st)
	}

	var seed []sweep.Point
	if *seedFrom != "" {
		if store == nil {
			return errors.New("-seed-from needs the sweep database")
		}
		if seed, err = store.SweepPoints(*seedFrom); err != nil {
			return err
		}
	}

	points, status, err := runHeadless(ctx, host, store, st.bench, sweepCfg, mode, seed, os.Stdout)
	if err != nil {
		return err
	}
	if err := export(points); err != nil {
		return err
	}
	if status == sweep.StatusFailed {
		return errors.New("sweep failed")
	}
	return nil
}

// station is the opened bench and, for real hardware, its bus controller.
type station struct {
	bench *instrument.Bench
	ctrl  *gpib.Controller
}

func openStation(cfg *config.StationConfig, dev bool, open gpib.PortOpener) (*station, error) {
	if dev {
		saConn, sgConn := instrument.NewSimulatedBench(nil)
		bench, err := instrument.Connect(saConn, sgConn, cfg.GetGeneratorModel())
		if err != nil {
			return nil, err
		}
		return &station{bench: bench}, nil
	}

	if cfg.Port == "" {
		return nil, errors.New("no serial port configured: set port in the config, SWEEPER_PORT, or use -dev")
	}
	ctrl, err := gpib.OpenWith(open, cfg.Port, cfg.Serial)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIB adapter: %w", err)
	}
	if v, err := ctrl.Version(); err == nil {
		monitoring.Logf("[gpib] adapter: %s", v)
	}

	sa, err := ctrl.Device(cfg.AnalyzerAddress)
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	sg, err := ctrl.Device(cfg.GeneratorAddress)
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	bench, err := instrument.Connect(sa, sg, cfg.GetGeneratorModel())
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	return &station{bench: bench, ctrl: ctrl}, nil
}

func (s *station) Close() error {
	err := s.bench.Disconnect()
	if s.ctrl != nil {
		err = errors.Join(err, s.ctrl.Close())
	}
	return err
}

func serve(ctx context.Context, cfg *config.StationConfig, host *sweep.Host, store *db.DB, st *station) error {
	srv := api.NewServer(host, store, api.Station{
		AnalyzerID:  st.bench.AnalyzerID,
		GeneratorID: st.bench.GeneratorID,
		Defaults:    cfg.Sweep,
	})
	defer srv.Close()

	mux := srv.ServeMux()
	if store != nil {
		if err := store.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	if st.ctrl != nil {
		st.ctrl.AttachAdminRoutes(mux, host.Running)
	}
	mux.Handle("/", http.RedirectHandler("/api/sweep/chart", http.StatusFound))

	return srv.ListenAndServe(ctx, cfg.Listen, mux)
}

// runHeadless runs one session to its end, printing each point to out and
// recording the session in store when it is not nil. Cancelling ctx cancels
// the session; the points measured so far are still returned.
func runHeadless(ctx context.Context, host *sweep.Host, store *db.DB, bench *instrument.Bench, cfg sweep.Config, mode sweep.Mode, seed []sweep.Point, out io.Writer) ([]sweep.Point, sweep.Status, error) {
	sess, err := host.Start(ctx, cfg, mode, seed)
	if err != nil {
		return nil, "", err
	}
	if store != nil {
		rec := db.SweepRecord{
			ID:          sess.ID,
			Mode:        sess.Mode,
			Config:      sess.Config,
			AnalyzerID:  bench.AnalyzerID,
			GeneratorID: bench.GeneratorID,
			StartedAt:   time.Now(),
		}
		if err := store.CreateSweep(rec); err != nil {
			monitoring.Logf("[db] %v", err)
			store = nil
		}
	}

	fmt.Fprintf(out, "# sweep %s (%s)\n", sess.ID, sess.Mode)
	seq := 0
	status := sweep.StatusRunning
	for ev := range sess.Events() {
		switch ev.Kind {
		case sweep.EventMeasurement:
			seq++
			fmt.Fprintf(out, "%.0f\t%.2f\n", ev.Point.Frequency, ev.Point.Power)
			if store != nil {
				if err := store.RecordPoint(sess.ID, seq, *ev.Point); err != nil {
					monitoring.Logf("[db] %v", err)
				}
			}
		case sweep.EventTerminal:
			status = ev.Status
			if store != nil {
				if err := store.FinishSweep(sess.ID, ev.Status, ev.Reason, ev.Time); err != nil {
					monitoring.Logf("[db] %v", err)
				}
			}
			if ev.Reason != "" {
				fmt.Fprintf(out, "# %s: %s\n", ev.Status, ev.Reason)
			} else {
				fmt.Fprintf(out, "# %s\n", ev.Status)
			}
		}
	}

	points := host.Results()
	s := sweep.Summarize(points)
	if s.Count > 0 {
		fmt.Fprintf(out, "# %d points, peak %.2f dBm at %.0f Hz, mean %.2f dBm\n", s.Count, s.PeakDBm, s.PeakHz, s.MeanDBm)
	}
	return points, status, nil
}

func export(points []sweep.Point) error {
	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			return err
		}
		if err := sweep.WriteCSV(f, points); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", *csvPath, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		monitoring.Logf("Saved %d points to %s", len(points), *csvPath)
	}
	if *pngPath != "" {
		if err := chart.SavePNG(*pngPath, points, "Sweep"); err != nil {
			return fmt.Errorf("failed to write %s: %w", *pngPath, err)
		}
		monitoring.Logf("Saved plot to %s", *pngPath)
	}
	return nil
}
