// Package api serves the platform HTTP surface: puzzle CRUD, session
// lifecycle, observation intake for touch clients, reports and config
// inspection.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bemo-play/tangram-engine/internal/config"
	"github.com/bemo-play/tangram-engine/internal/db"
	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/httputil"
	"github.com/bemo-play/tangram-engine/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server carries the handler dependencies: storage, the live session
// manager, tuning for per-difficulty engine configs, and display defaults.
type Server struct {
	db      *db.DB
	manager *engine.Manager
	tuning  *config.TuningConfig
	mode    engine.Mode
	units   string
}

// NewServer builds the API server. mode is the default validation mode for
// sessions that do not request one; angleUnits controls how /api/config
// reports rotation tolerances.
func NewServer(database *db.DB, manager *engine.Manager, tuning *config.TuningConfig, mode engine.Mode, angleUnits string) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	if !units.IsValid(angleUnits) {
		angleUnits = units.DEG
	}
	return &Server{
		db:      database,
		manager: manager,
		tuning:  tuning,
		mode:    mode,
		units:   angleUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/puzzles", s.handlePuzzles)
	mux.HandleFunc("/api/puzzles/", s.handlePuzzleByID)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	mux.HandleFunc("/api/reports/accuracy", s.handleAccuracyReport)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

// showConfig reports the effective engine tolerances per difficulty so
// clients and operators can see what a session will be judged against.
func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	difficulties := make(map[string]interface{}, 3)
	for _, d := range config.Difficulties() {
		cfg, err := s.tuning.EngineConfig(d)
		if err != nil {
			httputil.InternalServerError(w, "failed to build engine config: "+err.Error())
			return
		}
		difficulties[d] = map[string]interface{}{
			"position_tolerance": cfg.PositionTolerance,
			"rotation_tolerance": units.ConvertAngle(cfg.RotationTolerance, s.units),
			"rotation_display":   units.FormatAngle(cfg.RotationTolerance, s.units),
			"stable_ticks":       cfg.StableTicks,
			"vision_loss_ticks":  cfg.LossTicksVision,
			"touch_loss_ticks":   cfg.LossTicksTouch,
			"strict":             cfg.Strict,
		}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"mode":         s.mode.String(),
		"units":        s.units,
		"difficulties": difficulties,
	})
}
