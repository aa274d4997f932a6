package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/db"
	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/httputil"
	"github.com/bemo-play/tangram-engine/internal/report"
	"github.com/bemo-play/tangram-engine/internal/tangram"
	"github.com/bemo-play/tangram-engine/internal/visionwire"
)

type createSessionRequest struct {
	PuzzleID   int64  `json:"puzzle_id"`
	Mode       string `json:"mode,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Source     string `json:"source,omitempty"`
}

// createSessionResponse returns the stored session row plus the target
// poses the client needs to draw the outline layer.
type createSessionResponse struct {
	Session db.Session       `json:"session"`
	Targets []db.PuzzlePiece `json:"targets"`
}

type sessionListResponse struct {
	Live   []engine.Snapshot `json:"live"`
	Recent []db.Session      `json:"recent"`
}

// sessionStatusResponse is the envelope for GET /api/sessions/{id}. Live
// sessions expose the full engine snapshot; expired ones fall back to the
// stored row and its placement log.
type sessionStatusResponse struct {
	Live       bool             `json:"live"`
	Snapshot   *engine.Snapshot `json:"snapshot,omitempty"`
	Stored     *db.Session      `json:"stored,omitempty"`
	Placements []db.Placement   `json:"placements,omitempty"`
}

// observedPieceRequest is one piece sighting in a touch observation batch,
// using the same field vocabulary as the vision wire format.
type observedPieceRequest struct {
	ID       string  `json:"id,omitempty"`
	ClassID  int     `json:"class_id"`
	Theta    float64 `json:"theta"`
	TX       float64 `json:"tx"`
	TY       float64 `json:"ty"`
	Mirrored bool    `json:"mirrored,omitempty"`
	Moving   bool    `json:"moving,omitempty"`
}

type observeRequest struct {
	Seq    uint64                 `json:"seq"`
	Pieces []observedPieceRequest `json:"pieces"`
}

// handleSessions serves the collection: GET lists live and recent sessions,
// POST starts a new one.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp := sessionListResponse{Live: []engine.Snapshot{}}
		for _, sess := range s.manager.Sessions() {
			resp.Live = append(resp.Live, sess.Snapshot())
		}
		recent, err := s.db.GetRecentSessions(20)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
			return
		}
		resp.Recent = recent
		httputil.WriteJSONOK(w, resp)

	case http.MethodPost:
		s.createSession(w, r)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid session body: %v", err))
		return
	}

	mode := s.mode
	if req.Mode != "" {
		parsed, ok := engine.ParseMode(req.Mode)
		if !ok {
			httputil.BadRequest(w, fmt.Sprintf("unknown mode %q", req.Mode))
			return
		}
		mode = parsed
	}

	source := engine.SourceTouch
	if req.Source != "" {
		parsed, ok := engine.ParseInputSource(req.Source)
		if !ok {
			httputil.BadRequest(w, fmt.Sprintf("unknown source %q", req.Source))
			return
		}
		source = parsed
	}

	cfg, err := s.tuning.EngineConfig(req.Difficulty)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	puzzle, err := s.db.LoadEnginePuzzle(req.PuzzleID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to load puzzle: %v", err))
		return
	}

	sess, err := s.manager.Create(puzzle, mode, source, cfg)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to start session: %v", err))
		return
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "standard"
	}
	row := db.Session{
		ID:         sess.ID(),
		PuzzleID:   req.PuzzleID,
		Mode:       mode.String(),
		Difficulty: difficulty,
		StartedAt:  sess.StartedAt(),
	}
	if err := s.db.CreateSession(&row); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to persist session: %v", err))
		return
	}

	stored, err := s.db.GetPuzzle(req.PuzzleID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load puzzle pieces: %v", err))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createSessionResponse{
		Session: row,
		Targets: stored.Pieces,
	})
}

// handleSessionByID routes /api/sessions/{id}, /api/sessions/{id}/observe
// and /api/sessions/{id}/board.png.
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		httputil.NotFound(w, "session not found")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.sessionStatus(w, id)

	case len(parts) == 2 && parts[1] == "observe":
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		s.observeSession(w, r, id)

	case len(parts) == 2 && parts[1] == "board.png":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.sessionBoard(w, id)

	default:
		httputil.NotFound(w, "session not found")
	}
}

func (s *Server) sessionStatus(w http.ResponseWriter, id string) {
	if sess, ok := s.manager.Get(id); ok {
		snap := sess.Snapshot()
		httputil.WriteJSONOK(w, sessionStatusResponse{Live: true, Snapshot: &snap})
		return
	}

	stored, err := s.db.GetSession(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get session: %v", err))
		return
	}
	placements, err := s.db.GetPlacements(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to get placements: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessionStatusResponse{Stored: stored, Placements: placements})
}

// observeSession feeds a touch observation batch to a live session. Bad
// JSON rejects the request; individual unusable pieces are dropped and
// counted, mirroring how vision frames are screened.
func (s *Server) observeSession(w http.ResponseWriter, r *http.Request, id string) {
	var req observeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid observation body: %v", err))
		return
	}

	batch := make([]engine.ObservedPiece, 0, len(req.Pieces))
	dropped := 0
	for _, p := range req.Pieces {
		pt, err := tangram.PieceTypeFromClassID(p.ClassID)
		if err != nil {
			dropped++
			continue
		}
		obsID := p.ID
		if obsID == "" {
			obsID = visionwire.ObservationID(p.ClassID)
		}
		batch = append(batch, engine.ObservedPiece{
			ID:   obsID,
			Type: pt,
			Pose: tangram.RawPose{
				Position: curve.Pt(p.TX, p.TY),
				Rotation: p.Theta,
				Mirrored: p.Mirrored,
			},
			Moving: p.Moving,
			Seq:    req.Seq,
		})
	}

	tick, err := s.manager.Observe(id, batch)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	tick.Dropped += dropped
	httputil.WriteJSONOK(w, tick)
}

func (s *Server) sessionBoard(w http.ResponseWriter, id string) {
	sess, ok := s.manager.Get(id)
	if !ok {
		httputil.NotFound(w, "no live session "+id)
		return
	}

	var buf bytes.Buffer
	if err := report.RenderBoard(&buf, sess.Snapshot()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render board: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
