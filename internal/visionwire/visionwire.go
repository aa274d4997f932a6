// Package visionwire defines the line-oriented JSON frame format emitted by
// the vision units and its conversion into engine observations. One line is
// one frame: the per-class piece poses the tracker solved for, plus the
// frame-level lock flag and tracking quality the consumer gates on.
package visionwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/tangram"
)

// Version is the frame schema version this package speaks. Frames carrying
// any other version are rejected whole.
const Version = 1

var (
	ErrFrameVersion = errors.New("visionwire: unsupported frame version")
	ErrFrameQuality = errors.New("visionwire: frame quality out of range")
)

// PiecePose is one solved piece in a frame: the raw-space pose for the
// class, the tracker's residual error for the fit, and the motion flag.
type PiecePose struct {
	ClassID  int     `json:"class_id"`
	Theta    float64 `json:"theta"`
	TX       float64 `json:"tx"`
	TY       float64 `json:"ty"`
	Mirrored bool    `json:"mirrored"`
	Moving   bool    `json:"moving"`
	Err      float64 `json:"err"`
}

func (p PiecePose) validate() error {
	if _, err := tangram.PieceTypeFromClassID(p.ClassID); err != nil {
		return err
	}
	for _, v := range []float64{p.Theta, p.TX, p.TY, p.Err} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("visionwire: non-finite value in piece class %d", p.ClassID)
		}
	}
	if p.Err < 0 {
		return fmt.Errorf("visionwire: negative residual error in piece class %d", p.ClassID)
	}
	return nil
}

// Frame is one processed camera frame from a vision unit. Unknown JSON
// fields are ignored so older platforms keep working when units add fields.
type Frame struct {
	Version int         `json:"v"`
	Seq     uint64      `json:"seq"`
	Unit    string      `json:"unit"`
	Quality float64     `json:"quality"`
	Locked  bool        `json:"locked"`
	Pieces  []PiecePose `json:"pieces"`

	// Dropped counts pieces discarded during parsing: bad class ids,
	// non-finite values, duplicate classes. A frame survives its bad
	// pieces; only frame-level defects reject it whole.
	Dropped int `json:"-"`
}

// ParseFrame decodes and validates one frame line. Frame-level defects
// (malformed JSON, wrong version, out-of-range quality) fail the whole
// frame; per-piece defects drop only the offending piece and are counted in
// Frame.Dropped.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("visionwire: decode frame: %w", err)
	}
	if f.Version != Version {
		return Frame{}, fmt.Errorf("%w: got %d, want %d", ErrFrameVersion, f.Version, Version)
	}
	if math.IsNaN(f.Quality) || f.Quality < 0 || f.Quality > 1 {
		return Frame{}, fmt.Errorf("%w: got %v", ErrFrameQuality, f.Quality)
	}

	seen := make(map[int]bool, len(f.Pieces))
	kept := f.Pieces[:0]
	for _, p := range f.Pieces {
		if err := p.validate(); err != nil {
			f.Dropped++
			continue
		}
		if seen[p.ClassID] {
			f.Dropped++
			continue
		}
		seen[p.ClassID] = true
		kept = append(kept, p)
	}
	f.Pieces = kept
	return f, nil
}

// Observations converts the frame's pieces into engine observations in raw
// space. Piece identity on a vision table is the class itself: there is one
// physical piece per class, so the observation id is derived from the class
// id and stays stable across frames.
func (f Frame) Observations() []engine.ObservedPiece {
	out := make([]engine.ObservedPiece, 0, len(f.Pieces))
	for _, p := range f.Pieces {
		pt, err := tangram.PieceTypeFromClassID(p.ClassID)
		if err != nil {
			continue
		}
		out = append(out, engine.ObservedPiece{
			ID:   ObservationID(p.ClassID),
			Type: pt,
			Pose: tangram.RawPose{
				Position: curve.Pt(p.TX, p.TY),
				Rotation: p.Theta,
				Mirrored: p.Mirrored,
			},
			Moving: p.Moving,
			Seq:    f.Seq,
		})
	}
	return out
}

// ObservationID derives the stable observation id for a piece class.
func ObservationID(classID int) string {
	return fmt.Sprintf("p%d", classID)
}
