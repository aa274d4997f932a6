// Package engine implements the placement validation core: anchor-relative
// mapping, symmetry-aware placement verdicts, duplicate-target binding and
// puzzle completion evaluation, orchestrated per session.
package engine

import (
	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/tangram"
)

// TargetPiece is one piece slot of a loaded puzzle: where a piece of the
// given type belongs, in raw/storage space. The target set is immutable for
// the lifetime of a session. IDs are unique within the puzzle because a
// puzzle may use the same piece type twice.
type TargetPiece struct {
	ID   string
	Type tangram.PieceType
	Pose tangram.RawPose
}

// ObservedPiece is one piece sighting from the vision pipeline or the touch
// layer, in raw space. Later observations of the same ID supersede earlier
// ones; no history is retained beyond current stability bookkeeping.
type ObservedPiece struct {
	ID     string
	Type   tangram.PieceType
	Pose   tangram.RawPose
	Moving bool
	Seq    uint64
}

// Puzzle is the loaded target set a session validates against.
type Puzzle struct {
	ID      int64
	Name    string
	Targets []TargetPiece
}

// Mode selects the comparison frame for validation.
type Mode int

const (
	// Absolute validates in render space against the stored targets
	// directly. Touch deployments have a fixed screen frame.
	Absolute Mode = iota
	// AnchorRelative validates every piece relative to a dynamically
	// chosen anchor piece. Vision deployments have no absolute frame.
	AnchorRelative
)

func (m Mode) String() string {
	switch m {
	case Absolute:
		return "absolute"
	case AnchorRelative:
		return "relative"
	default:
		return "unknown"
	}
}

// ParseMode maps the wire spelling of a mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "absolute":
		return Absolute, true
	case "relative":
		return AnchorRelative, true
	}
	return 0, false
}

// InputSource distinguishes the observation transport, which carries
// different anchor-loss characteristics: vision tolerates brief occlusion,
// touch release is unambiguous.
type InputSource int

const (
	SourceVision InputSource = iota
	SourceTouch
)

func (s InputSource) String() string {
	switch s {
	case SourceVision:
		return "vision"
	case SourceTouch:
		return "touch"
	default:
		return "unknown"
	}
}

// ParseInputSource maps the wire spelling of an input source.
func ParseInputSource(s string) (InputSource, bool) {
	switch s {
	case "vision":
		return SourceVision, true
	case "touch":
		return SourceTouch, true
	}
	return 0, false
}

// PlacedPose is a pose expressed in whatever common comparison frame the
// session selected: render space in absolute mode, the anchor's frame in
// relative mode. Both sides of a comparison must come from the same frame;
// the dedicated type keeps raw and render poses from leaking in directly.
type PlacedPose struct {
	Position curve.Point
	Rotation float64
	Mirrored bool
}

// Verdict is the per-target validation outcome for one tick. Verdicts are
// derived state: recomputed on every observation batch and never treated as
// a source of truth.
type Verdict struct {
	TargetID   string  `json:"target_id"`
	ObservedID string  `json:"observed_id"`
	Match      bool    `json:"match"`
	// PositionError is the Euclidean distance to the target, and
	// RotationError the angular distance to the nearest symmetry branch,
	// whether or not they fall inside tolerance. Downstream hint logic
	// consumes the magnitudes, not just the boolean.
	PositionError float64 `json:"position_error"`
	RotationError float64 `json:"rotation_error"`
	// Branch is the symmetry branch index the rotation was judged against.
	Branch int `json:"branch"`
}

// AnchorState reports which observed piece, if any, currently serves as the
// relative-frame origin.
type AnchorState struct {
	PieceID string `json:"piece_id,omitempty"`
	// MissingTicks counts consecutive ticks the anchor has been unseen or
	// in motion; it resets on every stable sighting.
	MissingTicks int `json:"missing_ticks"`
}

// Valid reports whether an anchor is currently held.
func (s AnchorState) Valid() bool { return s.PieceID != "" }
