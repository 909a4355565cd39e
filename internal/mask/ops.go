package mask

import (
	"fmt"

	"coco-annotator/pkg/geometry"

	"gocv.io/x/gocv"
)

type combineOp int

const (
	opUnion combineOp = iota
	opSubtract
)

// Unite merges piece into shape. An empty shape or a piece far from every
// existing ring is appended as-is; otherwise the rings that touch the piece
// are rasterised, combined and traced again. The IsBBox flag is carried
// through unchanged.
func Unite(shape geometry.CompoundShape, piece geometry.CompoundShape) (geometry.CompoundShape, error) {
	if piece.IsEmpty() {
		return shape.Clone(), nil
	}
	if shape.IsEmpty() {
		out := geometry.CompoundShape{IsBBox: shape.IsBBox}
		for _, r := range piece.Rings {
			out.Rings = append(out.Rings, r.Clone())
		}
		return out, nil
	}

	touched, kept := partition(shape, piece.Bounds())
	if len(touched.Rings) == 0 {
		out := shape.Clone()
		for _, r := range piece.Rings {
			out.Rings = append(out.Rings, r.Clone())
		}
		return out, nil
	}
	return combine(touched, kept, piece, opUnion, shape.IsBBox)
}

// Subtract removes piece from shape. Rings far from the piece are untouched.
func Subtract(shape geometry.CompoundShape, piece geometry.CompoundShape) (geometry.CompoundShape, error) {
	if piece.IsEmpty() || shape.IsEmpty() {
		return shape.Clone(), nil
	}
	touched, kept := partition(shape, piece.Bounds())
	if len(touched.Rings) == 0 {
		return shape.Clone(), nil
	}
	return combine(touched, kept, piece, opSubtract, shape.IsBBox)
}

// UniteRing is a convenience for uniting a single ring.
func UniteRing(shape geometry.CompoundShape, ring geometry.Ring) (geometry.CompoundShape, error) {
	return Unite(shape, geometry.NewCompoundShape(ring))
}

// SubtractRing is a convenience for subtracting a single ring.
func SubtractRing(shape geometry.CompoundShape, ring geometry.Ring) (geometry.CompoundShape, error) {
	return Subtract(shape, geometry.NewCompoundShape(ring))
}

// Simplify drops duplicate and collinear vertices and then reduces each ring
// with a Douglas-Peucker pass. Rings left with fewer than three points are
// removed.
func Simplify(shape geometry.CompoundShape, tolerance float64) geometry.CompoundShape {
	out := geometry.CompoundShape{IsBBox: shape.IsBBox}
	for _, r := range shape.Rings {
		if shape.IsBBox {
			out.Rings = append(out.Rings, r.Clone())
			continue
		}
		ring := r.RemoveCollinear(1e-9)
		if len(ring) < 3 {
			continue
		}
		closed := append(ring.Clone(), ring[0])
		reduced := geometry.SimplifyPolyline(closed, tolerance)
		reduced = reduced[:len(reduced)-1]
		if len(reduced) < 3 {
			reduced = ring
		}
		out.Rings = append(out.Rings, reduced)
	}
	return out
}

// partition splits shape into the rings whose bounds reach the given area
// (directly or through a ring nested inside one that does) and the rest.
func partition(shape geometry.CompoundShape, area geometry.Rect) (touched, kept geometry.CompoundShape) {
	in := make([]bool, len(shape.Rings))
	reach := area.Expand(1)
	for changed := true; changed; {
		changed = false
		for i, r := range shape.Rings {
			if in[i] || len(r) == 0 {
				continue
			}
			if r.Bounds().Intersects(reach) {
				in[i] = true
				reach = reach.Union(r.Bounds().Expand(1))
				changed = true
			}
		}
	}
	for i, r := range shape.Rings {
		if in[i] {
			touched.Rings = append(touched.Rings, r.Clone())
		} else {
			kept.Rings = append(kept.Rings, r.Clone())
		}
	}
	return touched, kept
}

func combine(touched, kept, piece geometry.CompoundShape, op combineOp, isBBox bool) (geometry.CompoundShape, error) {
	grid := NewGrid(touched.Bounds().Union(piece.Bounds()))

	a, err := gocv.NewMatFromBytes(grid.Height, grid.Width, gocv.MatTypeCV8U, grid.RasterizeShape(touched))
	if err != nil {
		return geometry.CompoundShape{}, fmt.Errorf("mask: failed to wrap shape: %w", err)
	}
	defer a.Close()
	b, err := gocv.NewMatFromBytes(grid.Height, grid.Width, gocv.MatTypeCV8U, grid.RasterizeShape(piece))
	if err != nil {
		return geometry.CompoundShape{}, fmt.Errorf("mask: failed to wrap piece: %w", err)
	}
	defer b.Close()

	result := gocv.NewMat()
	defer result.Close()
	switch op {
	case opUnion:
		gocv.BitwiseOr(a, b, &result)
	case opSubtract:
		inverted := gocv.NewMat()
		defer inverted.Close()
		gocv.BitwiseNot(b, &inverted)
		gocv.BitwiseAnd(a, inverted, &result)
	}

	rings, err := grid.Trace(result.ToBytes())
	if err != nil {
		return geometry.CompoundShape{}, err
	}

	out := geometry.CompoundShape{IsBBox: isBBox}
	out.Rings = append(out.Rings, kept.Rings...)
	out.Rings = append(out.Rings, rings...)
	return out, nil
}
