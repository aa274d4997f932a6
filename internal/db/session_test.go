package db

import (
	"testing"
	"time"
)

// TestCreateAndGetSession round-trips a session row
func TestCreateAndGetSession(t *testing.T) {
	db := setupTestDB(t)
	puzzle := seedTestPuzzle(t, db, "session-home")

	started := time.Unix(1756100000, 0)
	s := &Session{
		ID:         "sess-1",
		PuzzleID:   puzzle.ID,
		Mode:       "relative",
		Difficulty: "relaxed",
		StartedAt:  started,
	}
	if err := db.CreateSession(s); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := db.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.PuzzleID != puzzle.ID {
		t.Errorf("Expected puzzle id %d, got %d", puzzle.ID, got.PuzzleID)
	}
	if got.Mode != "relative" || got.Difficulty != "relaxed" {
		t.Errorf("Unexpected mode/difficulty: %q/%q", got.Mode, got.Difficulty)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("Expected started_at %v, got %v", started, got.StartedAt)
	}
	if got.CompletedAt != nil || got.CompletionMs != nil {
		t.Error("Expected a fresh session to have no completion")
	}
}

// TestCreateSession_Defaults fills mode, difficulty and start time
func TestCreateSession_Defaults(t *testing.T) {
	db := setupTestDB(t)
	puzzle := seedTestPuzzle(t, db, "defaults")

	s := &Session{ID: "sess-defaults", PuzzleID: puzzle.ID}
	if err := db.CreateSession(s); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := db.GetSession("sess-defaults")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Mode != "absolute" {
		t.Errorf("Expected default mode absolute, got %q", got.Mode)
	}
	if got.Difficulty != "standard" {
		t.Errorf("Expected default difficulty standard, got %q", got.Difficulty)
	}
	if time.Since(got.StartedAt) > time.Minute {
		t.Errorf("Expected started_at to default to now, got %v", got.StartedAt)
	}
}

// TestCreateSession_UnknownPuzzle is rejected by the foreign key
func TestCreateSession_UnknownPuzzle(t *testing.T) {
	db := setupTestDB(t)

	err := db.CreateSession(&Session{ID: "sess-orphan", PuzzleID: 404})
	if err == nil {
		t.Fatal("Expected foreign key violation for unknown puzzle")
	}
}

// TestGetSession_NotFound returns a clear error for unknown IDs
func TestGetSession_NotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetSession("no-such-session"); err == nil {
		t.Fatal("Expected error for unknown session")
	}
}

// TestGetRecentSessions orders newest-first and honours the limit
func TestGetRecentSessions(t *testing.T) {
	db := setupTestDB(t)
	puzzle := seedTestPuzzle(t, db, "recent")

	base := time.Unix(1756100000, 0)
	for i, id := range []string{"sess-old", "sess-mid", "sess-new"} {
		s := &Session{
			ID:        id,
			PuzzleID:  puzzle.ID,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.CreateSession(s); err != nil {
			t.Fatalf("CreateSession %s failed: %v", id, err)
		}
	}

	sessions, err := db.GetRecentSessions(2)
	if err != nil {
		t.Fatalf("GetRecentSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "sess-new" || sessions[1].ID != "sess-mid" {
		t.Errorf("Unexpected ordering: %q, %q", sessions[0].ID, sessions[1].ID)
	}
}

// TestGetPlacements_Empty returns no rows without error
func TestGetPlacements_Empty(t *testing.T) {
	db := setupTestDB(t)

	placements, err := db.GetPlacements("nothing-here")
	if err != nil {
		t.Fatalf("GetPlacements failed: %v", err)
	}
	if len(placements) != 0 {
		t.Errorf("Expected no placements, got %d", len(placements))
	}
}
