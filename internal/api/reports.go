package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/bemo-play/tangram-engine/internal/httputil"
	"github.com/bemo-play/tangram-engine/internal/report"
)

// handleAccuracyReport serves the placement accuracy dashboard. The default
// is a standalone echarts HTML page; ?format=json returns the underlying
// per-class summary for programmatic consumers.
func (s *Server) handleAccuracyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	samples, err := s.db.PlacementSamples()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load placement samples: %v", err))
		return
	}
	durations, err := s.db.SessionDurations()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load session durations: %v", err))
		return
	}

	summary := report.AccuracySummary(samples)

	if r.URL.Query().Get("format") == "json" {
		httputil.WriteJSONOK(w, map[string]interface{}{
			"classes":  summary,
			"sessions": len(durations),
		})
		return
	}

	var buf bytes.Buffer
	if err := report.RenderAccuracyChart(&buf, summary, durations); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
