package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bemo-play/tangram-engine/internal/db"
	"github.com/bemo-play/tangram-engine/internal/httputil"
)

// handlePuzzles serves the collection: GET lists all puzzles, POST creates
// one from a JSON body with name, difficulty and piece rows.
func (s *Server) handlePuzzles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		puzzles, err := s.db.GetAllPuzzles()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list puzzles: %v", err))
			return
		}
		httputil.WriteJSONOK(w, puzzles)

	case http.MethodPost:
		var puzzle db.Puzzle
		if err := json.NewDecoder(r.Body).Decode(&puzzle); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid puzzle body: %v", err))
			return
		}
		if puzzle.Name == "" {
			httputil.BadRequest(w, "puzzle name is required")
			return
		}
		// Reject piece rows the engine could never load rather than
		// storing them.
		for _, pc := range puzzle.Pieces {
			if _, err := pc.Target(); err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
		}
		if err := s.db.CreatePuzzle(&puzzle); err != nil {
			if strings.Contains(err.Error(), "at least one piece") {
				httputil.BadRequest(w, err.Error())
				return
			}
			httputil.InternalServerError(w, fmt.Sprintf("failed to create puzzle: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, puzzle)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// handlePuzzleByID serves one puzzle: GET returns it with piece rows,
// DELETE removes it unless sessions reference it.
func (s *Server) handlePuzzleByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/puzzles/")
	if idStr == "" || strings.Contains(idStr, "/") {
		httputil.NotFound(w, "puzzle not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid puzzle id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		puzzle, err := s.db.GetPuzzle(id)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				httputil.NotFound(w, err.Error())
				return
			}
			httputil.InternalServerError(w, fmt.Sprintf("failed to get puzzle: %v", err))
			return
		}
		httputil.WriteJSONOK(w, puzzle)

	case http.MethodDelete:
		if err := s.db.DeletePuzzle(id); err != nil {
			switch {
			case strings.Contains(err.Error(), "not found"):
				httputil.NotFound(w, err.Error())
			case strings.Contains(err.Error(), "FOREIGN KEY"):
				httputil.WriteJSONError(w, http.StatusConflict, "puzzle has recorded sessions and cannot be deleted")
			default:
				httputil.InternalServerError(w, fmt.Sprintf("failed to delete puzzle: %v", err))
			}
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"status": "deleted"})

	default:
		httputil.MethodNotAllowed(w)
	}
}
