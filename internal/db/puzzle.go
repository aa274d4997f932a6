package db

import (
	"database/sql"
	"fmt"
	"time"

	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/tangram"
)

// Puzzle is a stored puzzle definition. Pieces is populated by GetPuzzle
// and left nil by GetAllPuzzles, which reports PieceCount instead.
type Puzzle struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	Difficulty string        `json:"difficulty"`
	PieceCount int           `json:"piece_count"`
	CreatedAt  time.Time     `json:"created_at"`
	Pieces     []PuzzlePiece `json:"pieces,omitempty"`
}

// PuzzlePiece is one target row. The pose is stored as the six raw-space
// affine coefficients rather than as (position, rotation, mirror), so the
// database holds exactly what authoring tools export.
type PuzzlePiece struct {
	PieceID string  `json:"piece_id"`
	ClassID int     `json:"class_id"`
	A       float64 `json:"a"`
	B       float64 `json:"b"`
	C       float64 `json:"c"`
	D       float64 `json:"d"`
	TX      float64 `json:"tx"`
	TY      float64 `json:"ty"`
}

// Target decodes the stored row into an engine target. Rows with an unknown
// class id or a degenerate transform are refused: a silently skipped target
// would change what "complete" means for the puzzle.
func (pp PuzzlePiece) Target() (engine.TargetPiece, error) {
	pt, err := tangram.PieceTypeFromClassID(pp.ClassID)
	if err != nil {
		return engine.TargetPiece{}, fmt.Errorf("piece %q: %w", pp.PieceID, err)
	}
	pose, err := tangram.RawPoseFromAffine(curve.NewAffine([6]float64{pp.A, pp.B, pp.C, pp.D, pp.TX, pp.TY}))
	if err != nil {
		return engine.TargetPiece{}, fmt.Errorf("piece %q: %w", pp.PieceID, err)
	}
	return engine.TargetPiece{ID: pp.PieceID, Type: pt, Pose: pose}, nil
}

// PieceFromTarget encodes an engine target as a storable row.
func PieceFromTarget(t engine.TargetPiece) PuzzlePiece {
	c := t.Pose.Affine().Coefficients()
	return PuzzlePiece{
		PieceID: t.ID,
		ClassID: t.Type.ClassID(),
		A:       c[0],
		B:       c[1],
		C:       c[2],
		D:       c[3],
		TX:      c[4],
		TY:      c[5],
	}
}

// CreatePuzzle stores a puzzle and its pieces in one transaction and fills
// in the assigned ID.
func (db *DB) CreatePuzzle(p *Puzzle) error {
	if len(p.Pieces) == 0 {
		return fmt.Errorf("puzzle needs at least one piece")
	}
	if p.Difficulty == "" {
		p.Difficulty = "standard"
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO puzzles (name, difficulty) VALUES (?, ?)`,
		p.Name, p.Difficulty,
	)
	if err != nil {
		return fmt.Errorf("failed to create puzzle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO puzzle_pieces (puzzle_id, piece_id, class_id, a, b, c, d, tx, ty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare piece insert: %w", err)
	}
	defer stmt.Close()

	for _, pp := range p.Pieces {
		if _, err := stmt.Exec(id, pp.PieceID, pp.ClassID, pp.A, pp.B, pp.C, pp.D, pp.TX, pp.TY); err != nil {
			return fmt.Errorf("failed to insert piece %q: %w", pp.PieceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit puzzle: %w", err)
	}

	p.ID = id
	p.PieceCount = len(p.Pieces)
	return nil
}

// GetPuzzle retrieves a puzzle and its pieces by ID.
func (db *DB) GetPuzzle(id int64) (*Puzzle, error) {
	var p Puzzle
	var createdAtUnix int64

	err := db.QueryRow(
		`SELECT id, name, difficulty, created_at FROM puzzles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Difficulty, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("puzzle not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get puzzle: %w", err)
	}
	p.CreatedAt = time.Unix(createdAtUnix, 0)

	rows, err := db.Query(`
		SELECT piece_id, class_id, a, b, c, d, tx, ty
		FROM puzzle_pieces
		WHERE puzzle_id = ?
		ORDER BY piece_id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query puzzle pieces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pp PuzzlePiece
		if err := rows.Scan(&pp.PieceID, &pp.ClassID, &pp.A, &pp.B, &pp.C, &pp.D, &pp.TX, &pp.TY); err != nil {
			return nil, fmt.Errorf("failed to scan puzzle piece: %w", err)
		}
		p.Pieces = append(p.Pieces, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating puzzle pieces: %w", err)
	}

	p.PieceCount = len(p.Pieces)
	return &p, nil
}

// GetAllPuzzles retrieves all puzzles with piece counts, without piece rows.
func (db *DB) GetAllPuzzles() ([]Puzzle, error) {
	rows, err := db.Query(`
		SELECT p.id, p.name, p.difficulty, p.created_at, COUNT(pp.piece_id)
		FROM puzzles p
		LEFT JOIN puzzle_pieces pp ON pp.puzzle_id = p.id
		GROUP BY p.id
		ORDER BY p.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query puzzles: %w", err)
	}
	defer rows.Close()

	var puzzles []Puzzle
	for rows.Next() {
		var p Puzzle
		var createdAtUnix int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Difficulty, &createdAtUnix, &p.PieceCount); err != nil {
			return nil, fmt.Errorf("failed to scan puzzle: %w", err)
		}
		p.CreatedAt = time.Unix(createdAtUnix, 0)
		puzzles = append(puzzles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating puzzles: %w", err)
	}

	return puzzles, nil
}

// DeletePuzzle deletes a puzzle; its pieces go with it. Puzzles with
// recorded sessions are protected by the sessions foreign key.
func (db *DB) DeletePuzzle(id int64) error {
	result, err := db.Exec(`DELETE FROM puzzles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete puzzle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("puzzle not found")
	}

	return nil
}

// LoadEnginePuzzle loads a stored puzzle and decodes every piece row into
// an engine target, ready for session creation.
func (db *DB) LoadEnginePuzzle(id int64) (engine.Puzzle, error) {
	p, err := db.GetPuzzle(id)
	if err != nil {
		return engine.Puzzle{}, err
	}

	targets := make([]engine.TargetPiece, 0, len(p.Pieces))
	for _, pp := range p.Pieces {
		t, err := pp.Target()
		if err != nil {
			return engine.Puzzle{}, fmt.Errorf("puzzle %d: %w", id, err)
		}
		targets = append(targets, t)
	}

	return engine.Puzzle{ID: p.ID, Name: p.Name, Targets: targets}, nil
}

// SavePuzzleTargets stores a puzzle built from engine targets. Used by
// authoring tooling and fixtures.
func (db *DB) SavePuzzleTargets(name, difficulty string, targets []engine.TargetPiece) (*Puzzle, error) {
	p := &Puzzle{Name: name, Difficulty: difficulty}
	for _, t := range targets {
		p.Pieces = append(p.Pieces, PieceFromTarget(t))
	}
	if err := db.CreatePuzzle(p); err != nil {
		return nil, err
	}
	return p, nil
}
