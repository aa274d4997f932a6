package db

import (
	"fmt"

	"github.com/bemo-play/tangram-engine/internal/engine"
)

// SessionCompleted implements engine.Recorder. A session can complete more
// than once (pieces removed after completion and replaced fire a fresh
// completion edge), so the row is updated in place and the placement log
// replaced rather than appended.
func (db *DB) SessionCompleted(rec engine.CompletionRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE sessions SET completed_at = ?, completion_ms = ? WHERE id = ?
	`, rec.CompletedAt.Unix(), rec.Duration.Milliseconds(), rec.SessionID)
	if err != nil {
		return fmt.Errorf("failed to update session completion: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Session was started outside the API (replayed capture, test rig).
		// Keep the record anyway; mode and difficulty take their defaults.
		_, err = tx.Exec(`
			INSERT INTO sessions (id, puzzle_id, started_at, completed_at, completion_ms)
			VALUES (?, ?, ?, ?, ?)
		`, rec.SessionID, rec.PuzzleID, rec.CompletedAt.Add(-rec.Duration).Unix(),
			rec.CompletedAt.Unix(), rec.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert session completion: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM placements WHERE session_id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("failed to clear placements: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO placements (session_id, target_id, observed_id, position_error, rotation_error, branch, matched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare placement insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range rec.Placements {
		if _, err := stmt.Exec(rec.SessionID, p.TargetID, p.ObservedID, p.PositionError, p.RotationError, p.Branch, rec.CompletedAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert placement %q: %w", p.TargetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completion record: %w", err)
	}

	return nil
}
