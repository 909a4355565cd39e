package geometry

// CompoundShape is the geometry of one annotation: an ordered list of closed
// rings filled with the even-odd rule.
//
// IsBBox marks a shape constrained to a single axis-aligned rectangle ring.
// Turning the flag on discards every other ring; callers that set it accept
// that loss.
type CompoundShape struct {
	Rings  []Ring `json:"rings"`
	IsBBox bool   `json:"isBBox"`
}

// NewCompoundShape creates a shape from rings, copying them.
func NewCompoundShape(rings ...Ring) CompoundShape {
	s := CompoundShape{Rings: make([]Ring, 0, len(rings))}
	for _, r := range rings {
		s.Rings = append(s.Rings, r.Clone())
	}
	return s
}

// Clone returns a deep copy of the shape.
func (s CompoundShape) Clone() CompoundShape {
	out := CompoundShape{IsBBox: s.IsBBox}
	if s.Rings != nil {
		out.Rings = make([]Ring, len(s.Rings))
		for i, r := range s.Rings {
			out.Rings[i] = r.Clone()
		}
	}
	return out
}

// IsEmpty reports whether the shape has no usable ring.
func (s CompoundShape) IsEmpty() bool {
	for _, r := range s.Rings {
		if len(r.Open()) >= 3 {
			return false
		}
	}
	return true
}

// Bounds returns the bounding box of all rings.
func (s CompoundShape) Bounds() Rect {
	var (
		out   Rect
		first = true
	)
	for _, r := range s.Rings {
		if len(r) == 0 {
			continue
		}
		b := r.Bounds()
		if first {
			out = b
			first = false
			continue
		}
		out = out.Union(b)
	}
	return out
}

// Contains reports whether p is inside the shape using the even-odd rule.
func (s CompoundShape) Contains(p Point2D) bool {
	inside := false
	for _, r := range s.Rings {
		if r.Contains(p) {
			inside = !inside
		}
	}
	return inside
}

// Translate returns the shape shifted by d.
func (s CompoundShape) Translate(d Point2D) CompoundShape {
	out := CompoundShape{IsBBox: s.IsBBox, Rings: make([]Ring, len(s.Rings))}
	for i, r := range s.Rings {
		out.Rings[i] = r.Translate(d)
	}
	return out
}

// Equal reports whether two shapes have identical rings within tolerance.
func (s CompoundShape) Equal(other CompoundShape, tolerance float64) bool {
	if s.IsBBox != other.IsBBox || len(s.Rings) != len(other.Rings) {
		return false
	}
	for i := range s.Rings {
		if !s.Rings[i].Equal(other.Rings[i], tolerance) {
			return false
		}
	}
	return true
}

// PointCount returns the total number of vertices.
func (s CompoundShape) PointCount() int {
	n := 0
	for _, r := range s.Rings {
		n += len(r)
	}
	return n
}
