package tangram

import (
	"errors"

	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/geom"
)

// ErrDegenerateTransform rejects a pose whose transform is non-finite or
// non-invertible. The offending piece is treated as absent for the tick;
// the error never propagates past the mapper boundary.
var ErrDegenerateTransform = errors.New("tangram: degenerate transform")

// RawPose is a piece placement in raw/storage space: Y axis increasing
// downward, rotation positive counter-clockwise as stored. Persisted puzzle
// data and the vision pipeline both speak this convention.
type RawPose struct {
	Position curve.Point
	Rotation float64 // radians
	Mirrored bool
}

// RenderPose is a piece placement in render space: Y axis increasing upward,
// rotation sign inverted relative to raw space.
//
// RawPose and RenderPose are deliberately distinct types with no shared
// embedding. Poses cross between the two conventions only through ToRender
// and ToRaw; no other code may negate a Y coordinate or a rotation sign.
type RenderPose struct {
	Position curve.Point
	Rotation float64 // radians
	Mirrored bool
}

// ToRender converts a raw-space pose to render space: Y negated, rotation
// negated, mirror state unchanged. The pair of sign flips is the entire
// conversion; no fixed authoring offset is layered on top. Angles are not
// normalized here so the round trip through ToRaw is bit-exact.
func ToRender(p RawPose) RenderPose {
	return RenderPose{
		Position: curve.Pt(p.Position.X, -p.Position.Y),
		Rotation: -p.Rotation,
		Mirrored: p.Mirrored,
	}
}

// ToRaw is the exact inverse of ToRender.
func ToRaw(p RenderPose) RawPose {
	return RawPose{
		Position: curve.Pt(p.Position.X, -p.Position.Y),
		Rotation: -p.Rotation,
		Mirrored: p.Mirrored,
	}
}

// RawPoseFromAffine decodes a stored or observed affine transform into a
// raw-space pose, screening degenerate transforms at the boundary.
func RawPoseFromAffine(aff curve.Affine) (RawPose, error) {
	if aff.IsNaN() || aff.IsInf() || aff.Determinant() == 0 {
		return RawPose{}, ErrDegenerateTransform
	}
	pos, rot, mirrored := geom.Decompose(aff)
	return RawPose{Position: pos, Rotation: rot, Mirrored: mirrored}, nil
}

// Affine re-encodes the pose as an affine transform for storage.
func (p RawPose) Affine() curve.Affine {
	return geom.Compose(p.Position, p.Rotation, p.Mirrored)
}
