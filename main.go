package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bemo-play/tangram-engine/internal/api"
	"github.com/bemo-play/tangram-engine/internal/config"
	"github.com/bemo-play/tangram-engine/internal/db"
	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/units"
	"github.com/bemo-play/tangram-engine/internal/version"
	"github.com/bemo-play/tangram-engine/internal/visionlink"
)

var (
	//go:embed static/*
	staticFiles embed.FS
	devMode     = flag.Bool("dev", false, "Run in dev mode (mock vision link replaying fixtures.txt)")
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	dbFile      = flag.String("db", "tangram_data.db", "Path to the SQLite database file")
	configFile  = flag.String("config", "", "Path to an engine tuning JSON file")
	modeFlag    = flag.String("mode", "absolute", "Default validation mode for new sessions (absolute|relative)")
	visionFlag  = flag.String("vision", "off", `Vision unit transport: serial device path, "udp:<port>", or "off"`)
	unitsFlag   = flag.String("units", units.DEG, "Angle units for API display ("+units.GetValidUnitsString()+")")
)

type visionKind int

const (
	visionOff visionKind = iota
	visionSerial
	visionUDP
)

// parseVisionTarget interprets the -vision flag. "off" (or empty) disables
// the link, "udp:<port>" or "udp:host:port" listens for datagrams, and
// anything else is treated as a serial device path.
func parseVisionTarget(s string) (visionKind, string, error) {
	switch {
	case s == "" || s == "off":
		return visionOff, "", nil
	case strings.HasPrefix(s, "udp:"):
		rest := strings.TrimPrefix(s, "udp:")
		if rest == "" {
			return visionOff, "", fmt.Errorf("udp target needs a port, e.g. udp:9000")
		}
		if !strings.Contains(rest, ":") {
			if _, err := strconv.Atoi(rest); err != nil {
				return visionOff, "", fmt.Errorf("invalid udp port %q", rest)
			}
			rest = ":" + rest
		}
		return visionUDP, rest, nil
	default:
		return visionSerial, s, nil
	}
}

// loadTuning loads the explicit config file when one is given, falls back
// to the shipped defaults file, and runs on built-in defaults when neither
// exists.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	tuning, err := config.LoadTuningConfig(config.DefaultConfigPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.EmptyTuningConfig(), nil
		}
		return nil, err
	}
	return tuning, nil
}

// openVisionLink builds the link selected by the flags. Dev mode replays
// the first line of fixtures.txt on a mock link at frame rate.
func openVisionLink() (visionlink.Link, error) {
	if *devMode {
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		return visionlink.NewMockLink([]byte(lines[0]+"\n"), 66*time.Millisecond), nil
	}

	kind, target, err := parseVisionTarget(*visionFlag)
	if err != nil {
		return nil, err
	}
	switch kind {
	case visionUDP:
		log.Printf("listening for vision frames on udp %s", target)
		return visionlink.ListenUDP(target)
	case visionSerial:
		log.Printf("opening vision serial port %s", target)
		return visionlink.DialSerial(target, visionlink.PortOptions{})
	default:
		log.Print("vision link disabled; sessions are touch-driven only")
		return visionlink.NewDisabledLink(), nil
	}
}

// Main
func main() {
	flag.Parse()
	log.Printf("tangramd %s", version.String())
	db.DevMode = *devMode

	// `tangramd migrate <action>` manages the schema and exits.
	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbFile)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	mode, ok := engine.ParseMode(*modeFlag)
	if !ok {
		log.Fatalf("unknown mode %q (want absolute or relative)", *modeFlag)
	}

	tuning, err := loadTuning(*configFile)
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	link, err := openVisionLink()
	if err != nil {
		log.Fatalf("failed to open vision link: %v", err)
	}
	defer link.Close()

	if err := link.Initialize(); err != nil {
		if errors.Is(err, visionlink.ErrNoPeer) {
			// UDP units push frames before we can push config; the clock
			// sync happens from the unit console once one shows up.
			log.Print("vision unit not connected yet; skipping initialization")
		} else {
			log.Fatalf("failed to initialize vision unit: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	manager := engine.NewManager(database, nil)
	frames := visionlink.NewHandler(manager, tuning.GetMinFrameQuality())

	// Create a wait group for the HTTP server, link monitor, frame
	// handler and expiry sweeper routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the vision link
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor vision link: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the unit lines and feed them to the frame handler
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := link.Subscribe()
		defer link.Unsubscribe(id)
		for {
			select {
			case payload := <-c:
				if err := frames.HandleLine(payload); err != nil {
					log.Printf("error handling vision line: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	// sweep idle sessions so an abandoned table frees its vision route
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(tuning.GetExpirySweepInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Print("expiry sweeper terminated")
				return
			case <-ticker.C:
				if n := manager.ExpireIdle(tuning.GetSessionIdleTimeout()); n > 0 {
					log.Printf("expired %d idle session(s)", n)
				}
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		// create the API server over the manager and database and mount
		// its handlers
		mux := api.NewServer(database, manager, tuning, mode, *unitsFlag).ServeMux()

		// mount the admin debugging routes (accessible only in dev mode
		// or over Tailscale)
		link.AttachAdminRoutes(mux)
		database.AttachAdminRoutes(mux)

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			routed, dropped := manager.Stats()
			handled, skipped, failures := frames.Stats()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"status":    "ok",
				"service":   "tangramd",
				"version":   version.String(),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"frames": map[string]uint64{
					"routed":         routed,
					"dropped":        dropped,
					"handled":        handled,
					"skipped":        skipped,
					"parse_failures": failures,
				},
				"unit": visionlink.UnitState(),
			})
		})

		// read static files from the embedded filesystem in production or
		// from the local ./static in dev for easier iteration without
		// restarting the server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticRoot, err := fs.Sub(staticFiles, "static")
			if err != nil {
				log.Fatalf("failed to open embedded static files: %v", err)
			}
			staticHandler = http.FileServer(http.FS(staticRoot))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
