package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is a stored play session. CompletedAt and CompletionMs stay nil
// until the session first reaches completion.
type Session struct {
	ID           string     `json:"id"`
	PuzzleID     int64      `json:"puzzle_id"`
	Mode         string     `json:"mode"`
	Difficulty   string     `json:"difficulty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CompletionMs *int64     `json:"completion_ms"`
}

// Placement is one stored per-piece result row.
type Placement struct {
	SessionID     string    `json:"session_id"`
	TargetID      string    `json:"target_id"`
	ObservedID    string    `json:"observed_id"`
	PositionError float64   `json:"position_error"`
	RotationError float64   `json:"rotation_error"`
	Branch        int       `json:"branch"`
	MatchedAt     time.Time `json:"matched_at"`
}

// CreateSession records a new session row.
func (db *DB) CreateSession(s *Session) error {
	if s.Mode == "" {
		s.Mode = "absolute"
	}
	if s.Difficulty == "" {
		s.Difficulty = "standard"
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO sessions (id, puzzle_id, mode, difficulty, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.PuzzleID, s.Mode, s.Difficulty, s.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID.
func (db *DB) GetSession(id string) (*Session, error) {
	var s Session
	var startedAtUnix int64
	var completedAtUnix, completionMs sql.NullInt64

	err := db.QueryRow(`
		SELECT id, puzzle_id, mode, difficulty, started_at, completed_at, completion_ms
		FROM sessions
		WHERE id = ?
	`, id).Scan(&s.ID, &s.PuzzleID, &s.Mode, &s.Difficulty, &startedAtUnix, &completedAtUnix, &completionMs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.StartedAt = time.Unix(startedAtUnix, 0)
	if completedAtUnix.Valid {
		t := time.Unix(completedAtUnix.Int64, 0)
		s.CompletedAt = &t
	}
	if completionMs.Valid {
		ms := completionMs.Int64
		s.CompletionMs = &ms
	}

	return &s, nil
}

// GetRecentSessions retrieves the most recent N sessions across all puzzles.
func (db *DB) GetRecentSessions(limit int) ([]Session, error) {
	rows, err := db.Query(`
		SELECT id, puzzle_id, mode, difficulty, started_at, completed_at, completion_ms
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedAtUnix int64
		var completedAtUnix, completionMs sql.NullInt64

		if err := rows.Scan(&s.ID, &s.PuzzleID, &s.Mode, &s.Difficulty, &startedAtUnix, &completedAtUnix, &completionMs); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		s.StartedAt = time.Unix(startedAtUnix, 0)
		if completedAtUnix.Valid {
			t := time.Unix(completedAtUnix.Int64, 0)
			s.CompletedAt = &t
		}
		if completionMs.Valid {
			ms := completionMs.Int64
			s.CompletionMs = &ms
		}

		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetPlacements retrieves the placement rows for a session.
func (db *DB) GetPlacements(sessionID string) ([]Placement, error) {
	rows, err := db.Query(`
		SELECT session_id, target_id, observed_id, position_error, rotation_error, branch, matched_at
		FROM placements
		WHERE session_id = ?
		ORDER BY target_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query placements: %w", err)
	}
	defer rows.Close()

	var placements []Placement
	for rows.Next() {
		var p Placement
		var matchedAtUnix int64
		if err := rows.Scan(&p.SessionID, &p.TargetID, &p.ObservedID, &p.PositionError, &p.RotationError, &p.Branch, &matchedAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		p.MatchedAt = time.Unix(matchedAtUnix, 0)
		placements = append(placements, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating placements: %w", err)
	}

	return placements, nil
}
