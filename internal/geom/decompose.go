package geom

import (
	"math"

	"honnef.co/go/curve"
)

// cardinalSnapEps is the tolerance for snapping a near-cardinal rotation
// column to an exact axis direction. atan2 on a matrix perturbed by float
// round-off yields angles like 1.5707963267948961 which then fail strict
// tolerance comparisons even though the transform is visually cardinal.
const cardinalSnapEps = 1e-10

// Decompose extracts position, rotation and mirror state from an affine
// transform with coefficients (a, b, c, d, tx, ty).
//
// The rotation is atan2(b, a) of the 2x2 linear part: the first column
// carries the rotation even under reflection, because the mirror convention
// used by Compose reflects about the local X axis before rotating. Rotations
// within cardinalSnapEps of a cardinal angle (0, +-pi/2, pi) snap to the
// exact value. The mirror state is the sign of the 2x2 determinant.
func Decompose(aff curve.Affine) (pos curve.Point, rotation float64, mirrored bool) {
	c := aff.Coefficients()
	a, b := c[0], c[1]
	rotation = math.Atan2(b, a)
	if snapped, ok := snapCardinal(a, b); ok {
		rotation = snapped
	}
	return curve.Pt(c[4], c[5]), rotation, aff.Determinant() < 0
}

// Compose builds the affine transform for a piece pose: an optional
// reflection about the piece-local X axis, then a rotation, then a
// translation. Decompose inverts it exactly.
func Compose(pos curve.Point, rotation float64, mirrored bool) curve.Affine {
	aff := curve.Rotate(rotation)
	if mirrored {
		aff = aff.Mul(curve.FlipY)
	}
	return curve.Translate(curve.Vec2(pos)).Mul(aff)
}

// snapCardinal returns the exact cardinal angle matching the rotation column
// (a, b), scale-normalized, when both entries are within cardinalSnapEps of a
// unit axis vector.
func snapCardinal(a, b float64) (float64, bool) {
	r := math.Hypot(a, b)
	if r == 0 {
		return 0, false
	}
	ca, cb := a/r, b/r
	ra, rb := math.Round(ca), math.Round(cb)
	if math.Abs(ca-ra) > cardinalSnapEps || math.Abs(cb-rb) > cardinalSnapEps {
		return 0, false
	}
	if math.Abs(ra)+math.Abs(rb) != 1 {
		return 0, false
	}
	return math.Atan2(rb, ra), true
}
