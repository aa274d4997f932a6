package engine

import (
	"math"

	"github.com/bemo-play/tangram-engine/internal/geom"
	"github.com/bemo-play/tangram-engine/internal/monitoring"
	"github.com/bemo-play/tangram-engine/internal/tangram"
)

// Result is the outcome of validating one observed pose against one target
// pose. Error magnitudes are populated whether or not the placement matched.
type Result struct {
	Match         bool
	PositionError float64
	RotationError float64
	Branch        int
}

// Validate decides whether an observed piece sits on its target. Both poses
// must be expressed in the same comparison frame.
//
// The gates run in order: position, mirror state (mirror-capable pieces
// only), then rotation against every symmetry branch of the piece. A square
// matches at any of its four equivalent orientations, a parallelogram at
// either of its two. Tolerance boundaries are inclusive: an error of exactly
// the tolerance still matches. The reported rotation error and branch are
// the closest branch's, which is also the smallest in-tolerance error
// whenever any branch is in tolerance.
//
// A piece type outside the catalog is a puzzle-data/catalog mismatch: it
// panics when strict, otherwise it logs loudly and reports a non-match with
// infinite errors.
func Validate(pt tangram.PieceType, observed, target PlacedPose, cfg Config) Result {
	shape, err := tangram.LookupShape(pt)
	if err != nil {
		if cfg.Strict {
			panic(err)
		}
		monitoring.Logf("[engine] %v; reporting no match", err)
		return Result{PositionError: math.Inf(1), RotationError: math.Inf(1), Branch: -1}
	}

	posErr := geom.Distance(observed.Position, target.Position)
	posOK := posErr <= cfg.PositionTolerance

	mirrorOK := true
	if shape.MirrorCapable {
		mirrorOK = observed.Mirrored == target.Mirrored
	}

	order := shape.SymmetryOrder
	step := 2 * math.Pi / float64(order)
	rotErr := math.Inf(1)
	branch := 0
	for i := 0; i < order; i++ {
		candidate := geom.NormalizeAngle(target.Rotation + float64(i)*step)
		if d := geom.AngularDistance(observed.Rotation, candidate); d < rotErr {
			rotErr, branch = d, i
		}
	}
	rotOK := rotErr <= cfg.RotationTolerance

	return Result{
		Match:         posOK && mirrorOK && rotOK,
		PositionError: posErr,
		RotationError: rotErr,
		Branch:        branch,
	}
}

// renderFrame maps a raw pose into the absolute comparison frame (render
// space).
func renderFrame(p tangram.RawPose) PlacedPose {
	r := tangram.ToRender(p)
	return PlacedPose{Position: r.Position, Rotation: r.Rotation, Mirrored: r.Mirrored}
}

// anchorFrame maps a raw pose into the anchor-relative comparison frame.
func anchorFrame(p, anchor tangram.RawPose) PlacedPose {
	rel := RelativeTo(p, anchor)
	return PlacedPose{Position: rel.Position, Rotation: rel.Rotation, Mirrored: rel.Mirrored}
}
