// Package geom provides the 2D geometry primitives behind piece placement
// validation: angle normalization, wraparound angular distance, point and
// point-to-segment distances, and affine transform decomposition.
//
// All functions are total over finite inputs and hold no state. Degenerate
// (non-invertible) transforms are screened at the coordinate space mapper,
// not here.
package geom

import (
	"math"

	"honnef.co/go/curve"
)

// NormalizeAngle wraps an angle in radians into (-pi, pi]. The upper bound is
// inclusive so a half turn has exactly one representation.
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	switch {
	case a <= -math.Pi:
		a += 2 * math.Pi
	case a > math.Pi:
		a -= 2 * math.Pi
	}
	return a
}

// AngularDistance returns the minimal absolute separation between two angles
// accounting for wraparound, in [0, pi]. The distance between -179 and +179
// degrees is 2 degrees, not 358.
func AngularDistance(a, b float64) float64 {
	return math.Abs(NormalizeAngle(a - b))
}

// Distance returns the Euclidean distance between two points.
func Distance(p, q curve.Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// PointSegmentDistance returns the shortest distance from p to the segment
// from a to b. A zero-length segment degrades to point distance.
func PointSegmentDistance(p, a, b curve.Point) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	apx, apy := p.X-a.X, p.Y-a.Y
	den := abx*abx + aby*aby
	if den == 0 {
		return math.Hypot(apx, apy)
	}
	t := (apx*abx + apy*aby) / den
	switch {
	case t <= 0:
		return math.Hypot(apx, apy)
	case t >= 1:
		return math.Hypot(p.X-b.X, p.Y-b.Y)
	}
	return math.Hypot(p.X-(a.X+t*abx), p.Y-(a.Y+t*aby))
}
