package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/tangram"
)

// classFills maps each piece class to a fill colour, loosely following the
// traditional tangram set.
var classFills = [tangram.NumPieceTypes]color.NRGBA{
	{R: 229, G: 57, B: 53, A: 255},  // small triangle a
	{R: 251, G: 140, B: 0, A: 255},  // small triangle b
	{R: 0, G: 137, B: 123, A: 255},  // medium triangle
	{R: 30, G: 136, B: 229, A: 255}, // large triangle a
	{R: 142, G: 36, B: 170, A: 255}, // large triangle b
	{R: 253, G: 216, B: 53, A: 255}, // square
	{R: 67, G: 160, B: 71, A: 255},  // parallelogram
}

// RenderBoard draws a session snapshot as a PNG: target silhouettes in
// render space with observed piece centroids on top, the anchor ringed.
// Render space is y-down, so y is negated for the plot.
func RenderBoard(w io.Writer, snap engine.Snapshot) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s %d/%d)", snap.PuzzleName, snap.Last.State, snap.Last.Matched, snap.Last.Total)
	p.X.Label.Text = "X (board units)"
	p.Y.Label.Text = "Y (board units)"

	var ext extent

	for _, t := range snap.Targets {
		shape, err := tangram.LookupShape(t.Type)
		if err != nil {
			return fmt.Errorf("target %q: %w", t.ID, err)
		}
		verts := shape.Placed(tangram.ToRender(t.Pose))
		xys := make(plotter.XYs, len(verts))
		for i, v := range verts {
			xys[i] = plotter.XY{X: v.X, Y: -v.Y}
			ext.include(v.X, -v.Y)
		}
		poly, err := plotter.NewPolygon(xys)
		if err != nil {
			return fmt.Errorf("target %q: %w", t.ID, err)
		}
		fill := classFills[t.Type]
		poly.Color = color.NRGBA{R: fill.R, G: fill.G, B: fill.B, A: 70}
		poly.LineStyle.Color = fill
		poly.LineStyle.Width = vg.Points(1)
		p.Add(poly)
	}

	placed := make(plotter.XYs, 0, len(snap.Pieces))
	moving := make(plotter.XYs, 0, len(snap.Pieces))
	var anchorPt plotter.XYs
	anchorID := snap.Last.Anchor.PieceID
	for _, piece := range snap.Pieces {
		pos := tangram.ToRender(piece.Pose).Position
		xy := plotter.XY{X: pos.X, Y: -pos.Y}
		ext.include(xy.X, xy.Y)
		if piece.ID == anchorID {
			anchorPt = append(anchorPt, xy)
		}
		if piece.Moving || !piece.Stable {
			moving = append(moving, xy)
		} else {
			placed = append(placed, xy)
		}
	}

	if len(placed) > 0 {
		sc, err := plotter.NewScatter(placed)
		if err != nil {
			return err
		}
		sc.GlyphStyle = draw.GlyphStyle{Color: color.NRGBA{R: 240, G: 240, B: 240, A: 255}, Radius: vg.Points(4), Shape: draw.CircleGlyph{}}
		p.Add(sc)
		p.Legend.Add("stable", sc)
	}
	if len(moving) > 0 {
		sc, err := plotter.NewScatter(moving)
		if err != nil {
			return err
		}
		sc.GlyphStyle = draw.GlyphStyle{Color: color.NRGBA{R: 240, G: 240, B: 240, A: 255}, Radius: vg.Points(4), Shape: draw.RingGlyph{}}
		p.Add(sc)
		p.Legend.Add("moving", sc)
	}
	if len(anchorPt) > 0 {
		sc, err := plotter.NewScatter(anchorPt)
		if err != nil {
			return err
		}
		sc.GlyphStyle = draw.GlyphStyle{Color: color.NRGBA{R: 255, G: 82, B: 82, A: 255}, Radius: vg.Points(7), Shape: draw.RingGlyph{}}
		p.Add(sc)
		p.Legend.Add("anchor", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	ext.applySquare(p)

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render board: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write board png: %w", err)
	}
	return nil
}

// extent tracks the bounding box of everything drawn so the axes can be
// forced square around it.
type extent struct {
	set                    bool
	minX, maxX, minY, maxY float64
}

func (e *extent) include(x, y float64) {
	if !e.set {
		e.minX, e.maxX, e.minY, e.maxY = x, x, y, y
		e.set = true
		return
	}
	if x < e.minX {
		e.minX = x
	}
	if x > e.maxX {
		e.maxX = x
	}
	if y < e.minY {
		e.minY = y
	}
	if y > e.maxY {
		e.maxY = y
	}
}

// applySquare pads the bounding box and widens the short axis so one board
// unit renders the same length in x and y.
func (e *extent) applySquare(p *plot.Plot) {
	if !e.set {
		return
	}
	spanX := e.maxX - e.minX
	spanY := e.maxY - e.minY
	span := spanX
	if spanY > span {
		span = spanY
	}
	if span == 0 {
		span = 1
	}
	pad := span * 0.05
	cx := (e.minX + e.maxX) / 2
	cy := (e.minY + e.maxY) / 2
	half := span/2 + pad
	p.X.Min = cx - half
	p.X.Max = cx + half
	p.Y.Min = cy - half
	p.Y.Max = cy + half
}
