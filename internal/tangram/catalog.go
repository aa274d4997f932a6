package tangram

import (
	"fmt"
	"math"

	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/geom"
)

// Shape is the immutable catalog entry for one piece type: centroid-centered
// vertices in normalized units plus the symmetry metadata the validator
// consumes. Entries are computed once at process start and are safe for
// concurrent reads.
type Shape struct {
	Type          PieceType
	Vertices      []curve.Point
	SymmetryOrder int
	MirrorCapable bool
	Area          float64
}

var catalog [NumPieceTypes]Shape

func init() {
	for _, pt := range AllPieceTypes() {
		catalog[pt] = Shape{
			Type:          pt,
			Vertices:      centered(rawVertices(pt)),
			SymmetryOrder: pt.SymmetryOrder(),
			MirrorCapable: pt.MirrorCapable(),
			Area:          pt.Area(),
		}
	}
}

// ShapeOf returns the catalog entry for a piece type, panicking on a value
// outside the closed enumeration. Release-path callers handling untrusted
// data use LookupShape instead.
func ShapeOf(pt PieceType) Shape {
	if pt < 0 || pt >= NumPieceTypes {
		panic(fmt.Sprintf("tangram: no shape registered for piece type %d", int(pt)))
	}
	return catalog[pt]
}

// LookupShape is the error-returning variant of ShapeOf for paths that must
// contain a catalog/puzzle-data mismatch rather than crash.
func LookupShape(pt PieceType) (Shape, error) {
	if pt < 0 || pt >= NumPieceTypes {
		return Shape{}, fmt.Errorf("tangram: no shape registered for piece type %d", int(pt))
	}
	return catalog[pt], nil
}

// Placed returns the shape's vertices transformed by a render-space pose,
// for silhouette drawing.
func (s Shape) Placed(pose RenderPose) []curve.Point {
	aff := geom.Compose(pose.Position, pose.Rotation, pose.Mirrored)
	out := make([]curve.Point, len(s.Vertices))
	for i, v := range s.Vertices {
		out[i] = v.Transform(aff)
	}
	return out
}

// rawVertices lists each piece outline counter-clockwise in normalized
// units (square side 1). Small triangle legs are 1, medium legs sqrt(2),
// large legs 2; the parallelogram has base sqrt(2) and height sqrt(2)/2.
// Centroid centering happens afterwards.
func rawVertices(pt PieceType) []curve.Point {
	const rt2 = math.Sqrt2
	switch pt {
	case SmallTriangleA, SmallTriangleB:
		return []curve.Point{curve.Pt(0, 0), curve.Pt(1, 0), curve.Pt(0, 1)}
	case MediumTriangle:
		return []curve.Point{curve.Pt(0, 0), curve.Pt(rt2, 0), curve.Pt(0, rt2)}
	case LargeTriangleA, LargeTriangleB:
		return []curve.Point{curve.Pt(0, 0), curve.Pt(2, 0), curve.Pt(0, 2)}
	case Square:
		return []curve.Point{curve.Pt(0, 0), curve.Pt(1, 0), curve.Pt(1, 1), curve.Pt(0, 1)}
	case Parallelogram:
		return []curve.Point{curve.Pt(0, 0), curve.Pt(rt2, 0), curve.Pt(3*rt2/2, rt2/2), curve.Pt(rt2/2, rt2/2)}
	default:
		panic(fmt.Sprintf("tangram: vertices for unknown piece type %d", int(pt)))
	}
}

// centered shifts a vertex list so its polygon centroid sits at the origin.
func centered(verts []curve.Point) []curve.Point {
	c := polygonCentroid(verts)
	out := make([]curve.Point, len(verts))
	for i, v := range verts {
		out[i] = curve.Pt(v.X-c.X, v.Y-c.Y)
	}
	return out
}

// polygonCentroid computes the area centroid of a simple polygon using the
// shoelace formula.
func polygonCentroid(verts []curve.Point) curve.Point {
	var area, cx, cy float64
	for i, v := range verts {
		w := verts[(i+1)%len(verts)]
		cross := v.X*w.Y - w.X*v.Y
		area += cross
		cx += (v.X + w.X) * cross
		cy += (v.Y + w.Y) * cross
	}
	area /= 2
	return curve.Pt(cx/(6*area), cy/(6*area))
}
