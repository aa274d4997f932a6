// Package tangram defines the seven tangram piece types, their shape
// catalog (vertices, symmetry, mirror capability), and the two coordinate
// space conventions poses move between.
package tangram

import "fmt"

// PieceType identifies one of the seven tangram pieces. The integer value is
// the stable wire class id used by the vision pipeline and the puzzle store;
// it must never be reordered.
type PieceType int

const (
	SmallTriangleA PieceType = iota // class id 0
	SmallTriangleB                  // class id 1
	MediumTriangle                  // class id 2
	LargeTriangleA                  // class id 3
	LargeTriangleB                  // class id 4
	Square                          // class id 5
	Parallelogram                   // class id 6
)

// NumPieceTypes is the size of the closed piece enumeration.
const NumPieceTypes = 7

// ClassID returns the wire class id for the piece type.
func (pt PieceType) ClassID() int { return int(pt) }

// PieceTypeFromClassID maps a wire class id to a piece type, rejecting ids
// outside the fixed set of seven.
func PieceTypeFromClassID(id int) (PieceType, error) {
	if id < 0 || id >= NumPieceTypes {
		return 0, fmt.Errorf("tangram: class id %d out of range [0,%d)", id, NumPieceTypes)
	}
	return PieceType(id), nil
}

func (pt PieceType) String() string {
	switch pt {
	case SmallTriangleA:
		return "small_triangle_a"
	case SmallTriangleB:
		return "small_triangle_b"
	case MediumTriangle:
		return "medium_triangle"
	case LargeTriangleA:
		return "large_triangle_a"
	case LargeTriangleB:
		return "large_triangle_b"
	case Square:
		return "square"
	case Parallelogram:
		return "parallelogram"
	default:
		return fmt.Sprintf("PieceType(%d)", int(pt))
	}
}

// ParsePieceType is the inverse of String.
func ParsePieceType(s string) (PieceType, error) {
	for pt := SmallTriangleA; pt < NumPieceTypes; pt++ {
		if pt.String() == s {
			return pt, nil
		}
	}
	return 0, fmt.Errorf("tangram: unknown piece type %q", s)
}

// SymmetryOrder returns the count of distinct rotations at which the piece
// silhouette is indistinguishable from its unrotated self: 4 for the square,
// 2 for the parallelogram, 1 for every triangle. Unknown types panic; the
// enumeration is closed and a new value reaching here is a programming error.
func (pt PieceType) SymmetryOrder() int {
	switch pt {
	case Square:
		return 4
	case Parallelogram:
		return 2
	case SmallTriangleA, SmallTriangleB, MediumTriangle, LargeTriangleA, LargeTriangleB:
		return 1
	default:
		panic(fmt.Sprintf("tangram: symmetry order for unknown piece type %d", int(pt)))
	}
}

// MirrorCapable reports whether the piece's reflection is geometrically
// distinguishable from itself. Only the parallelogram qualifies: every other
// piece's mirror image is reproducible by an in-plane rotation.
func (pt PieceType) MirrorCapable() bool {
	switch pt {
	case Parallelogram:
		return true
	case SmallTriangleA, SmallTriangleB, MediumTriangle, LargeTriangleA, LargeTriangleB, Square:
		return false
	default:
		panic(fmt.Sprintf("tangram: mirror capability for unknown piece type %d", int(pt)))
	}
}

// Area returns the piece area in normalized units, where the square has
// area 1: small triangles 0.5, medium triangle and parallelogram 1, large
// triangles 2. The seven together tile an area of 8.
func (pt PieceType) Area() float64 {
	switch pt {
	case SmallTriangleA, SmallTriangleB:
		return 0.5
	case MediumTriangle, Square, Parallelogram:
		return 1
	case LargeTriangleA, LargeTriangleB:
		return 2
	default:
		panic(fmt.Sprintf("tangram: area for unknown piece type %d", int(pt)))
	}
}

// Kind is the geometric equivalence class of a piece type. The two small
// triangles are physically interchangeable, as are the two large ones, so
// target binding operates on kinds: either twin piece may satisfy either
// twin target.
type Kind int

const (
	KindSmallTriangle Kind = iota
	KindMediumTriangle
	KindLargeTriangle
	KindSquare
	KindParallelogram
)

func (k Kind) String() string {
	switch k {
	case KindSmallTriangle:
		return "small_triangle"
	case KindMediumTriangle:
		return "medium_triangle"
	case KindLargeTriangle:
		return "large_triangle"
	case KindSquare:
		return "square"
	case KindParallelogram:
		return "parallelogram"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Kind returns the piece's geometric equivalence class.
func (pt PieceType) Kind() Kind {
	switch pt {
	case SmallTriangleA, SmallTriangleB:
		return KindSmallTriangle
	case MediumTriangle:
		return KindMediumTriangle
	case LargeTriangleA, LargeTriangleB:
		return KindLargeTriangle
	case Square:
		return KindSquare
	case Parallelogram:
		return KindParallelogram
	default:
		panic(fmt.Sprintf("tangram: kind for unknown piece type %d", int(pt)))
	}
}

// AllPieceTypes returns the seven piece types in class id order.
func AllPieceTypes() []PieceType {
	out := make([]PieceType, NumPieceTypes)
	for i := range out {
		out[i] = PieceType(i)
	}
	return out
}
