// Command vestd drives the wearable tactile vest: it runs the rendering
// frame loop at a fixed cadence, serves the HTTP parameter API for the
// experiment layer, and records trial data to sqlite.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/haptic-bench/apparent.motion/internal/api"
	"github.com/haptic-bench/apparent.motion/internal/config"
	"github.com/haptic-bench/apparent.motion/internal/render"
	"github.com/haptic-bench/apparent.motion/internal/topology"
	"github.com/haptic-bench/apparent.motion/internal/trialdb"
	"github.com/haptic-bench/apparent.motion/internal/version"
	"github.com/haptic-bench/apparent.motion/internal/vestmux"
)

var (
	devMode       = flag.Bool("dev", false, "Run with a mock vest port instead of real hardware")
	disableVest   = flag.Bool("disable-vest", false, "Run without any vest output (API only)")
	listen        = flag.String("listen", ":8080", "Listen address")
	portPath      = flag.String("port", "/dev/ttyUSB0", "Vest controller serial port")
	dbFile        = flag.String("db", "vest_trials.db", "Trial database path (empty to disable)")
	migrationsDir = flag.String("migrations", "migrations", "Migrations directory")
	configPath    = flag.String("config", "", "Tuning config JSON (defaults applied when empty)")
	autostart     = flag.Bool("autostart", false, "Start rendering the configured topology immediately")
)

func main() {
	flag.Parse()
	log.Printf("vestd %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
		log.Printf("Loaded tuning config from %s", *configPath)
	}

	var mux vestmux.Muxer
	switch {
	case *disableVest:
		mux = vestmux.NewDisabledVestMux()
		log.Printf("Vest output disabled")
	case *devMode:
		mux = vestmux.NewMockVestMux("")
		log.Printf("Running in dev mode with a mock vest port")
	default:
		real, err := vestmux.NewSerialVestMux(*portPath, vestmux.DefaultPortMode())
		if err != nil {
			log.Fatalf("Failed to open vest port: %v", err)
		}
		mux = real
		log.Printf("Connected to vest controller at %s", *portPath)
	}

	renderer := render.New(cfg.GetActuatorCount(), render.GroupVest, mux)
	cfg.Apply(renderer)

	var store *trialdb.DB
	if *dbFile != "" {
		db, err := trialdb.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open trial database: %v", err)
		}
		if err := db.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("Failed to migrate trial database: %v", err)
		}
		store = db
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Vest monitor exited: %v", err)
		}
	}()

	if *autostart {
		topo, err := topology.Get(cfg.GetTopology())
		if err != nil {
			log.Fatalf("Failed to autostart: %v", err)
		}
		if err := renderer.Start(topo, cfg.GetSpeedDegPerSec()); err != nil {
			log.Fatalf("Failed to autostart: %v", err)
		}
		log.Printf("Rendering %s at %.1f deg/s", topo.ID, cfg.GetSpeedDegPerSec())
	}

	// Frame loop: the entire pipeline runs synchronously once per tick
	// with wall-clock dt, so parameter changes and variable tick jitter
	// never distort the smoothing time constants.
	go func() {
		ticker := time.NewTicker(cfg.GetFrameInterval())
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				dt := now.Sub(last).Seconds()
				last = now
				renderer.Tick(dt)
			}
		}
	}()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(api.NewServer(renderer, store, mux).ServeMux()),
	}
	go func() {
		log.Printf("Listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	// Stop before closing the port so the final all-zero frame reaches
	// the vest and no actuator is left engaged.
	renderer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := mux.Close(); err != nil {
		log.Printf("Port close: %v", err)
	}
	if store != nil {
		if err := store.Close(); err != nil {
			log.Printf("DB close: %v", err)
		}
	}
}
