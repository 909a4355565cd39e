package geometry

import "math"

// Ring is an ordered sequence of points forming one sub-path of a compound
// shape. Rings used as annotation boundaries are always treated as closed;
// the closing edge from the last point back to the first is implicit.
type Ring []Point2D

// Clone returns a deep copy of the ring.
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// Bounds returns the axis-aligned bounding box of the ring.
func (r Ring) Bounds() Rect {
	return BoundingBox(r)
}

// Translate returns the ring shifted by d.
func (r Ring) Translate(d Point2D) Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[i] = p.Add(d)
	}
	return out
}

// Open returns the ring without an explicit closing point (a last point equal
// to the first).
func (r Ring) Open() Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// Area returns the absolute enclosed area.
func (r Ring) Area() float64 {
	return math.Abs(SignedArea(r.Open()))
}

// Contains reports whether p lies inside the ring.
func (r Ring) Contains(p Point2D) bool {
	return PointInPolygon(p, r.Open())
}

// Equal reports whether both rings have the same points within tolerance.
func (r Ring) Equal(other Ring, tolerance float64) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if !r[i].IsClose(other[i], tolerance) {
			return false
		}
	}
	return true
}

// IsAxisAlignedRect reports whether the ring is a four-corner rectangle with
// axis-parallel edges, with or without an explicit closing point.
func (r Ring) IsAxisAlignedRect() bool {
	open := r.Open()
	if len(open) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		a, b := open[i], open[(i+1)%4]
		if a.X != b.X && a.Y != b.Y {
			return false
		}
	}
	return true
}

// RemoveCollinear drops vertices that sit on the straight line between their
// neighbours, as well as consecutive duplicates.
func (r Ring) RemoveCollinear(tolerance float64) Ring {
	open := r.Open()
	dedup := make(Ring, 0, len(open))
	for _, p := range open {
		if len(dedup) > 0 && p.IsClose(dedup[len(dedup)-1], tolerance) {
			continue
		}
		dedup = append(dedup, p)
	}
	for len(dedup) > 1 && dedup[len(dedup)-1].IsClose(dedup[0], tolerance) {
		dedup = dedup[:len(dedup)-1]
	}
	if len(dedup) < 4 {
		return dedup
	}

	out := make(Ring, 0, len(dedup))
	n := len(dedup)
	for i := 0; i < n; i++ {
		prev := dedup[(i-1+n)%n]
		cur := dedup[i]
		next := dedup[(i+1)%n]
		if math.Abs(crossProduct(prev, cur, next)) <= tolerance*prev.Distance(next) {
			continue
		}
		out = append(out, cur)
	}
	return out
}

// BBoxRing builds the closed rectangle spanned by two opposite corners. The
// corner order is always [p1, (p1.x,p2.y), p2, (p2.x,p1.y), p1].
func BBoxRing(p1, p2 Point2D) Ring {
	return Ring{
		p1,
		{X: p1.X, Y: p2.Y},
		p2,
		{X: p2.X, Y: p1.Y},
		p1,
	}
}

// CircleRing approximates a disc outline. The vertex count grows with the
// radius so that chords stay roughly two units long.
func CircleRing(center Point2D, radius float64) Ring {
	n := int(math.Ceil(2 * math.Pi * radius / 2))
	if n < 16 {
		n = 16
	}
	if n > 256 {
		n = 256
	}
	return Ring(circlePoints(center, radius, n))
}

// NearestVertex returns the index of the vertex closest to p if it lies
// within tolerance.
func (r Ring) NearestVertex(p Point2D, tolerance float64) (int, bool) {
	best := -1
	bestDist := tolerance
	for i, v := range r.Open() {
		if d := v.Distance(p); d <= bestDist {
			best = i
			bestDist = d
		}
	}
	return best, best >= 0
}

// NearestEdge returns the index of the edge start vertex and the closest
// point on that edge if the edge lies within tolerance of p. The closing edge
// has the index of the last vertex.
func (r Ring) NearestEdge(p Point2D, tolerance float64) (int, Point2D, bool) {
	open := r.Open()
	n := len(open)
	if n < 2 {
		return -1, Point2D{}, false
	}
	best := -1
	bestDist := tolerance
	var bestPoint Point2D
	for i := 0; i < n; i++ {
		q, d := ClosestPointOnSegment(p, open[i], open[(i+1)%n])
		if d <= bestDist {
			best = i
			bestDist = d
			bestPoint = q
		}
	}
	return best, bestPoint, best >= 0
}

// IsClosed reports whether the ring repeats its first point at the end.
func (r Ring) IsClosed() bool {
	return len(r) > 1 && r[0] == r[len(r)-1]
}

// edit applies fn to an open copy of the ring and restores the explicit
// closing point if the ring had one.
func (r Ring) edit(fn func(open Ring) Ring) Ring {
	closed := r.IsClosed()
	open := fn(r.Open().Clone())
	if closed && len(open) > 0 {
		open = append(open, open[0])
	}
	return open
}

// MoveVertex returns a copy of the ring with vertex i (open-ring index) at p.
func (r Ring) MoveVertex(i int, p Point2D) Ring {
	return r.edit(func(open Ring) Ring {
		if i >= 0 && i < len(open) {
			open[i] = p
		}
		return open
	})
}

// InsertVertex returns a copy of the ring with p inserted after vertex i.
func (r Ring) InsertVertex(i int, p Point2D) Ring {
	return r.edit(func(open Ring) Ring {
		if i < 0 || i >= len(open) {
			return open
		}
		open = append(open, Point2D{})
		copy(open[i+2:], open[i+1:])
		open[i+1] = p
		return open
	})
}

// RemoveVertex returns a copy of the ring without vertex i.
func (r Ring) RemoveVertex(i int) Ring {
	return r.edit(func(open Ring) Ring {
		if i < 0 || i >= len(open) {
			return open
		}
		return append(open[:i], open[i+1:]...)
	})
}

// MoveRectCorner moves corner i of an axis-aligned rectangle ring to p and
// drags the two neighbouring corners along so the ring stays a rectangle. The
// neighbour sharing the corner's x coordinate follows in x, the other in y.
func (r Ring) MoveRectCorner(i int, p Point2D) Ring {
	return r.edit(func(open Ring) Ring {
		n := len(open)
		if i < 0 || i >= n || n < 3 {
			return open
		}
		prev, next := (i-1+n)%n, (i+1)%n
		xs, ys := prev, next
		if open[prev].X != open[i].X {
			xs, ys = next, prev
		}
		open[xs].X = p.X
		open[ys].Y = p.Y
		open[i] = p
		return open
	})
}
