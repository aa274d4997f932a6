package visionlink

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/monitoring"
	"github.com/bemo-play/tangram-engine/internal/visionwire"
)

var stateMu sync.Mutex

// currentState holds the latest status values reported by the unit.
var currentState map[string]any

// UnitState returns a copy of the most recent unit status fields, for the
// status page.
func UnitState() map[string]any {
	stateMu.Lock()
	defer stateMu.Unlock()
	out := make(map[string]any, len(currentState))
	for k, v := range currentState {
		out[k] = v
	}
	return out
}

// Handler feeds classified unit lines into the engine. One handler serves
// one link; the subscribe loop in the server owns it.
type Handler struct {
	mgr        *engine.Manager
	minQuality float64

	mu            sync.Mutex
	framesHandled uint64
	framesSkipped uint64
	parseFailures uint64
}

// NewHandler builds a handler routing frames into mgr. Frames with quality
// below minQuality are dropped whole.
func NewHandler(mgr *engine.Manager, minQuality float64) *Handler {
	return &Handler{mgr: mgr, minQuality: minQuality}
}

// HandleLine dispatches one line from the unit by type. Frame parse errors
// are returned for the caller to log; they never stop the stream.
func (h *Handler) HandleLine(payload string) error {
	switch ClassifyLine(payload) {
	case LineFrame:
		return h.handleFrame(payload)
	case LineStatus:
		return handleStatusLine(payload)
	case LineUnknown:
		return nil
	default:
		monitoring.Logf("[visionlink] unit: %s", payload)
		return nil
	}
}

func (h *Handler) handleFrame(payload string) error {
	frame, err := visionwire.ParseFrame([]byte(payload))
	if err != nil {
		h.mu.Lock()
		h.parseFailures++
		h.mu.Unlock()
		return fmt.Errorf("failed to handle frame line: %w", err)
	}

	if frame.Quality < h.minQuality {
		h.mu.Lock()
		h.framesSkipped++
		h.mu.Unlock()
		return nil
	}
	if frame.Dropped > 0 {
		monitoring.Logf("[visionlink] frame %d: dropped %d bad pieces", frame.Seq, frame.Dropped)
	}

	h.mgr.ObserveVision(frame.Observations())
	h.mu.Lock()
	h.framesHandled++
	h.mu.Unlock()
	return nil
}

// Stats reports line-handling counters for the status page.
func (h *Handler) Stats() (handled, skipped, failures uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.framesHandled, h.framesSkipped, h.parseFailures
}

func handleStatusLine(payload string) error {
	var statusValues map[string]any
	if err := json.Unmarshal([]byte(payload), &statusValues); err != nil {
		return fmt.Errorf("failed to unmarshal status line: %w", err)
	}

	stateMu.Lock()
	if currentState == nil {
		currentState = make(map[string]any)
	}
	for k, v := range statusValues {
		currentState[k] = v
	}
	stateMu.Unlock()

	monitoring.Logf("[visionlink] unit status: %s", payload)
	return nil
}
