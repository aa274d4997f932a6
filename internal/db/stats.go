package db

import (
	"fmt"
	"time"
)

// PlacementSample is one placement error measurement joined back to the
// piece class it was scored against. The report layer aggregates these.
type PlacementSample struct {
	ClassID       int     `json:"class_id"`
	PositionError float64 `json:"position_error"`
	RotationError float64 `json:"rotation_error"`
}

// PlacementSamples returns every recorded placement with its piece class,
// resolved through the session's puzzle. Rows whose target no longer
// exists in puzzle_pieces drop out of the join.
func (db *DB) PlacementSamples() ([]PlacementSample, error) {
	rows, err := db.Query(`
		SELECT pp.class_id, pl.position_error, pl.rotation_error
		FROM placements pl
		JOIN sessions s ON s.id = pl.session_id
		JOIN puzzle_pieces pp ON pp.puzzle_id = s.puzzle_id AND pp.piece_id = pl.target_id
		ORDER BY pp.class_id ASC, pl.position_error ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query placement samples: %w", err)
	}
	defer rows.Close()

	var samples []PlacementSample
	for rows.Next() {
		var s PlacementSample
		if err := rows.Scan(&s.ClassID, &s.PositionError, &s.RotationError); err != nil {
			return nil, fmt.Errorf("failed to scan placement sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating placement samples: %w", err)
	}

	return samples, nil
}

// SessionDurations returns the solve duration of every completed session,
// oldest first.
func (db *DB) SessionDurations() ([]time.Duration, error) {
	rows, err := db.Query(`
		SELECT completion_ms
		FROM sessions
		WHERE completed_at IS NOT NULL AND completion_ms IS NOT NULL
		ORDER BY completed_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query session durations: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("failed to scan session duration: %w", err)
		}
		durations = append(durations, time.Duration(ms)*time.Millisecond)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session durations: %w", err)
	}

	return durations, nil
}

// SessionCounts reports how many sessions exist and how many have reached
// completion at least once.
func (db *DB) SessionCounts() (total, completed int, err error) {
	err = db.QueryRow(`
		SELECT COUNT(*), COUNT(completed_at)
		FROM sessions
	`).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return total, completed, nil
}
