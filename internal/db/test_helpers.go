package db

import (
	"math"
	"path/filepath"
	"testing"

	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/tangram"
)

// setupTestDB opens a fully migrated database in a per-test temp dir.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "tangram_test.db"))
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedTestPuzzle stores a two-piece puzzle (square at (100,100), mirrored
// parallelogram at (240,100) rotated a quarter turn) and returns it.
func seedTestPuzzle(t *testing.T, db *DB, name string) *Puzzle {
	t.Helper()
	p, err := db.SavePuzzleTargets(name, "standard", []engine.TargetPiece{
		{
			ID:   "t-square",
			Type: tangram.Square,
			Pose: tangram.RawPose{Position: curve.Pt(100, 100)},
		},
		{
			ID:   "t-para",
			Type: tangram.Parallelogram,
			Pose: tangram.RawPose{Position: curve.Pt(240, 100), Rotation: math.Pi / 2, Mirrored: true},
		},
	})
	if err != nil {
		t.Fatalf("failed to seed puzzle: %v", err)
	}
	return p
}
