package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBBoxRingCornerOrder(t *testing.T) {
	p1 := Point2D{X: -10, Y: 5}
	p2 := Point2D{X: 20, Y: -7}

	ring := BBoxRing(p1, p2)

	require.Len(t, ring, 5)
	assert.Equal(t, p1, ring[0])
	assert.Equal(t, Point2D{X: -10, Y: -7}, ring[1])
	assert.Equal(t, p2, ring[2])
	assert.Equal(t, Point2D{X: 20, Y: 5}, ring[3])
	assert.Equal(t, ring[0], ring[4])
	assert.True(t, ring.IsAxisAlignedRect())
}

func TestRingOpenAndArea(t *testing.T) {
	ring := BBoxRing(Point2D{}, Point2D{X: 4, Y: 3})

	assert.Len(t, ring.Open(), 4)
	assert.InDelta(t, 12.0, ring.Area(), 1e-9)
	assert.True(t, ring.Contains(Point2D{X: 1, Y: 1}))
	assert.False(t, ring.Contains(Point2D{X: 5, Y: 1}))
}

func TestRingNearestVertexAndEdge(t *testing.T) {
	ring := Ring{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	idx, ok := ring.NearestVertex(Point2D{X: 9, Y: 1}, 2)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = ring.NearestVertex(Point2D{X: 5, Y: 5}, 2)
	assert.False(t, ok)

	edge, at, ok := ring.NearestEdge(Point2D{X: 5, Y: 1}, 2)
	require.True(t, ok)
	assert.Equal(t, 0, edge)
	assert.InDelta(t, 5.0, at.X, 1e-9)
	assert.InDelta(t, 0.0, at.Y, 1e-9)

	// closing edge runs from the last vertex back to the first
	edge, _, ok = ring.NearestEdge(Point2D{X: -1, Y: 5}, 2)
	require.True(t, ok)
	assert.Equal(t, 3, edge)
}

func TestRemoveCollinear(t *testing.T) {
	ring := Ring{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	got := ring.RemoveCollinear(1e-6)

	assert.Equal(t, Ring{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}, got)
}

func TestCircleRing(t *testing.T) {
	c := Point2D{X: 3, Y: 4}
	ring := CircleRing(c, 30)

	assert.GreaterOrEqual(t, len(ring), 16)
	for _, p := range ring {
		assert.InDelta(t, 30.0, p.Distance(c), 1e-9)
	}
}

func TestSimplifyPolyline(t *testing.T) {
	line := []Point2D{{X: 0, Y: 0}, {X: 1, Y: 0.01}, {X: 2, Y: 0}, {X: 3, Y: 5}}

	got := SimplifyPolyline(line, 0.1)

	assert.Equal(t, []Point2D{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 5}}, got)
}

func TestCompoundShapeEvenOdd(t *testing.T) {
	outer := BBoxRing(Point2D{X: -10, Y: -10}, Point2D{X: 10, Y: 10})
	hole := BBoxRing(Point2D{X: -2, Y: -2}, Point2D{X: 2, Y: 2})
	s := NewCompoundShape(outer, hole)

	assert.True(t, s.Contains(Point2D{X: 5, Y: 5}))
	assert.False(t, s.Contains(Point2D{X: 0, Y: 0}))
	assert.False(t, s.IsEmpty())
	assert.Equal(t, Rect{X: -10, Y: -10, Width: 20, Height: 20}, s.Bounds())
}

func TestCompoundShapeCloneIsDeep(t *testing.T) {
	s := NewCompoundShape(Ring{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}})
	c := s.Clone()
	c.Rings[0][0].X = 99

	assert.Equal(t, 1.0, s.Rings[0][0].X)
	assert.True(t, s.Equal(s.Clone(), 0))
	assert.False(t, s.Equal(c, 0.5))
}

func TestRectIntersectsTouching(t *testing.T) {
	a := NewRect(0, 0, 10, 10)
	b := NewRect(10, 0, 5, 5)
	c := NewRect(11, 0, 5, 5)

	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(c))
	assert.Equal(t, NewRect(-1, -1, 12, 12), a.Expand(1))
}

func TestRingEditsKeepClosure(t *testing.T) {
	r := BBoxRing(Point2D{X: 0, Y: 0}, Point2D{X: 10, Y: 10})

	moved := r.MoveVertex(0, Point2D{X: -1, Y: -1})
	assert.Len(t, moved, 5)
	assert.Equal(t, Point2D{X: -1, Y: -1}, moved[4])

	inserted := Ring{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}.InsertVertex(0, Point2D{X: 5, Y: 0})
	assert.Equal(t, Ring{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, inserted)

	removed := inserted.RemoveVertex(1)
	assert.Equal(t, Ring{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, removed)
	assert.Len(t, inserted, 4, "edits copy")
}

func TestMoveRectCornerStaysRectangle(t *testing.T) {
	r := BBoxRing(Point2D{X: 0, Y: 0}, Point2D{X: 10, Y: 10})

	got := r.MoveRectCorner(2, Point2D{X: 12, Y: 13})
	assert.Equal(t, Ring{{X: 0, Y: 0}, {X: 0, Y: 13}, {X: 12, Y: 13}, {X: 12, Y: 0}, {X: 0, Y: 0}}, got)
	assert.True(t, got.IsAxisAlignedRect())

	got = r.MoveRectCorner(1, Point2D{X: -3, Y: 8})
	assert.True(t, got.IsAxisAlignedRect())
	assert.Equal(t, Point2D{X: -3, Y: 0}, got[0])
	assert.Equal(t, Point2D{X: 10, Y: 8}, got[2])
}
