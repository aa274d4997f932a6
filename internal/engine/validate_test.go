package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/tangram"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PositionTolerance = 10
	cfg.RotationTolerance = 5 * math.Pi / 180
	return cfg
}

func pose(x, y, rot float64) PlacedPose {
	return PlacedPose{Position: curve.Pt(x, y), Rotation: rot}
}

func TestValidate_SquareSymmetryCompleteness(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	target := pose(100, 100, 0.3)

	// A square matches at every quarter-turn offset from the target angle.
	for k := 0; k < 4; k++ {
		observed := pose(100, 100, 0.3+float64(k)*math.Pi/2)
		res := Validate(tangram.Square, observed, target, cfg)
		assert.True(t, res.Match, "k=%d should match", k)
		assert.InDelta(t, 0, res.RotationError, 1e-9, "k=%d", k)
		assert.Equal(t, k, res.Branch, "k=%d", k)
	}

	// An eighth turn sits squarely between branches and must not match.
	res := Validate(tangram.Square, pose(100, 100, 0.3+math.Pi/4), target, cfg)
	assert.False(t, res.Match)
	assert.InDelta(t, math.Pi/4, res.RotationError, 1e-9)
}

func TestValidate_ParallelogramHalfTurnSymmetry(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	target := pose(0, 0, 0)

	assert.True(t, Validate(tangram.Parallelogram, pose(0, 0, 0), target, cfg).Match)
	assert.True(t, Validate(tangram.Parallelogram, pose(0, 0, math.Pi), target, cfg).Match)
	assert.False(t, Validate(tangram.Parallelogram, pose(0, 0, math.Pi/2), target, cfg).Match)
}

func TestValidate_TrianglesHaveNoSymmetryShortcut(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	target := pose(0, 0, 0)

	for _, pt := range []tangram.PieceType{tangram.SmallTriangleA, tangram.MediumTriangle, tangram.LargeTriangleB} {
		assert.True(t, Validate(pt, pose(0, 0, 0), target, cfg).Match, "%s at 0", pt)
		assert.False(t, Validate(pt, pose(0, 0, math.Pi), target, cfg).Match, "%s at pi", pt)
		assert.False(t, Validate(pt, pose(0, 0, math.Pi/2), target, cfg).Match, "%s at pi/2", pt)
	}
}

func TestValidate_MirrorGating(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	target := pose(50, 50, 0)

	// A mirrored parallelogram never matches an unmirrored target, no
	// matter how close position and rotation are.
	observed := PlacedPose{Position: curve.Pt(50, 50), Rotation: 0, Mirrored: true}
	res := Validate(tangram.Parallelogram, observed, target, cfg)
	assert.False(t, res.Match)
	assert.InDelta(t, 0, res.PositionError, 1e-12)
	assert.InDelta(t, 0, res.RotationError, 1e-12)

	// Matching mirror states pass.
	mirroredTarget := PlacedPose{Position: curve.Pt(50, 50), Rotation: 0, Mirrored: true}
	assert.True(t, Validate(tangram.Parallelogram, observed, mirroredTarget, cfg).Match)

	// Every other piece ignores the flag entirely.
	squareObs := PlacedPose{Position: curve.Pt(50, 50), Rotation: 0, Mirrored: true}
	assert.True(t, Validate(tangram.Square, squareObs, target, cfg).Match)
}

func TestValidate_ToleranceBoundariesInclusive(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	target := pose(0, 0, 0)

	t.Run("position", func(t *testing.T) {
		t.Parallel()
		// Exactly at the tolerance matches; just past it does not.
		at := Validate(tangram.Square, pose(cfg.PositionTolerance, 0, 0), target, cfg)
		assert.True(t, at.Match)
		assert.Equal(t, cfg.PositionTolerance, at.PositionError)

		past := Validate(tangram.Square, pose(cfg.PositionTolerance+1e-9, 0, 0), target, cfg)
		assert.False(t, past.Match)
	})

	t.Run("rotation", func(t *testing.T) {
		t.Parallel()
		at := Validate(tangram.MediumTriangle, pose(0, 0, cfg.RotationTolerance), target, cfg)
		assert.True(t, at.Match)

		past := Validate(tangram.MediumTriangle, pose(0, 0, cfg.RotationTolerance*1.01), target, cfg)
		assert.False(t, past.Match)
	})
}

func TestValidate_PositionGateBeatsRotation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	target := pose(0, 0, 0)

	// Perfect rotation cannot rescue a distant piece.
	res := Validate(tangram.Square, pose(100, 0, 0), target, cfg)
	assert.False(t, res.Match)
	assert.InDelta(t, 100, res.PositionError, 1e-12)
	assert.InDelta(t, 0, res.RotationError, 1e-12)
}

func TestValidate_ReportsSmallestBranchError(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RotationTolerance = math.Pi // every branch in tolerance
	target := pose(0, 0, 0)

	// Observed 100 degrees: branch pi/2 is the nearest at 10 degrees off.
	res := Validate(tangram.Square, pose(0, 0, 100*math.Pi/180), target, cfg)
	assert.True(t, res.Match)
	assert.InDelta(t, 10*math.Pi/180, res.RotationError, 1e-9)
	assert.Equal(t, 1, res.Branch)
}

func TestValidate_WraparoundRotation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	deg := func(d float64) float64 { return d * math.Pi / 180 }

	// Target at 179 degrees, observed at -179: two degrees apart across the
	// wrap, inside a 5 degree tolerance.
	res := Validate(tangram.MediumTriangle, pose(0, 0, deg(-179)), pose(0, 0, deg(179)), cfg)
	assert.True(t, res.Match)
	assert.InDelta(t, deg(2), res.RotationError, 1e-9)
}

func TestValidate_UnknownTypeContainedInRelease(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strict = false
	res := Validate(tangram.PieceType(42), pose(0, 0, 0), pose(0, 0, 0), cfg)
	assert.False(t, res.Match)
	assert.True(t, math.IsInf(res.PositionError, 1))
	assert.Equal(t, -1, res.Branch)
}

func TestValidate_UnknownTypePanicsInStrict(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strict = true
	assert.Panics(t, func() {
		Validate(tangram.PieceType(42), pose(0, 0, 0), pose(0, 0, 0), cfg)
	})
}
