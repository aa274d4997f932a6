package tangram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/curve"
)

func TestPieceTypeClassIDs(t *testing.T) {
	t.Parallel()

	// Wire ids are frozen; reordering the enum breaks stored puzzles and
	// the vision protocol.
	assert.Equal(t, 0, SmallTriangleA.ClassID())
	assert.Equal(t, 1, SmallTriangleB.ClassID())
	assert.Equal(t, 2, MediumTriangle.ClassID())
	assert.Equal(t, 3, LargeTriangleA.ClassID())
	assert.Equal(t, 4, LargeTriangleB.ClassID())
	assert.Equal(t, 5, Square.ClassID())
	assert.Equal(t, 6, Parallelogram.ClassID())
}

func TestPieceTypeFromClassID(t *testing.T) {
	t.Parallel()

	for _, pt := range AllPieceTypes() {
		got, err := PieceTypeFromClassID(pt.ClassID())
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}

	_, err := PieceTypeFromClassID(-1)
	assert.Error(t, err)
	_, err = PieceTypeFromClassID(7)
	assert.Error(t, err)
}

func TestParsePieceType_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, pt := range AllPieceTypes() {
		got, err := ParsePieceType(pt.String())
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}

	_, err := ParsePieceType("hexagon")
	assert.Error(t, err)
}

func TestSymmetryMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pt            PieceType
		order         int
		mirrorCapable bool
		area          float64
	}{
		{SmallTriangleA, 1, false, 0.5},
		{SmallTriangleB, 1, false, 0.5},
		{MediumTriangle, 1, false, 1},
		{LargeTriangleA, 1, false, 2},
		{LargeTriangleB, 1, false, 2},
		{Square, 4, false, 1},
		{Parallelogram, 2, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.pt.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.order, tt.pt.SymmetryOrder())
			assert.Equal(t, tt.mirrorCapable, tt.pt.MirrorCapable())
			assert.Equal(t, tt.area, tt.pt.Area())
		})
	}
}

func TestKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SmallTriangleA.Kind(), SmallTriangleB.Kind())
	assert.Equal(t, LargeTriangleA.Kind(), LargeTriangleB.Kind())
	assert.NotEqual(t, SmallTriangleA.Kind(), LargeTriangleA.Kind())
	assert.Equal(t, KindSquare, Square.Kind())
	assert.Equal(t, KindParallelogram, Parallelogram.Kind())
	assert.Equal(t, "small_triangle", KindSmallTriangle.String())
}

func TestUnknownPieceTypePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { PieceType(9).SymmetryOrder() })
	assert.Panics(t, func() { PieceType(-1).MirrorCapable() })
	assert.Panics(t, func() { ShapeOf(PieceType(42)) })

	_, err := LookupShape(PieceType(42))
	assert.Error(t, err)
}

// polygonArea is the shoelace area of a vertex loop.
func polygonArea(verts []curve.Point) float64 {
	var sum float64
	for i, v := range verts {
		w := verts[(i+1)%len(verts)]
		sum += v.X*w.Y - w.X*v.Y
	}
	return sum / 2
}

func TestCatalogShapes(t *testing.T) {
	t.Parallel()

	for _, pt := range AllPieceTypes() {
		t.Run(pt.String(), func(t *testing.T) {
			t.Parallel()
			s := ShapeOf(pt)
			assert.Equal(t, pt, s.Type)
			assert.GreaterOrEqual(t, len(s.Vertices), 3)

			// Vertex loops carry the declared area and are centroid-centered.
			assert.InDelta(t, s.Area, polygonArea(s.Vertices), 1e-12)
			c := polygonCentroid(s.Vertices)
			assert.InDelta(t, 0, c.X, 1e-12)
			assert.InDelta(t, 0, c.Y, 1e-12)
		})
	}
}

func TestCatalogAreasTileTheClassicSquare(t *testing.T) {
	t.Parallel()

	var total float64
	for _, pt := range AllPieceTypes() {
		total += ShapeOf(pt).Area
	}
	assert.InDelta(t, 8, total, 1e-12)
}

func TestShapePlaced(t *testing.T) {
	t.Parallel()

	s := ShapeOf(Square)
	pose := RenderPose{Position: curve.Pt(10, 20), Rotation: math.Pi / 2}
	placed := s.Placed(pose)
	require.Len(t, placed, 4)

	// A quarter turn maps the corner (0.5, -0.5) to (0.5, 0.5) before the
	// translation.
	found := false
	for _, p := range placed {
		if math.Abs(p.X-10.5) < 1e-9 && math.Abs(p.Y-20.5) < 1e-9 {
			found = true
		}
	}
	assert.True(t, found, "rotated corner not where expected: %v", placed)
}
