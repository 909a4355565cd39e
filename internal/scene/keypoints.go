package scene

import (
	"sort"

	"coco-annotator/pkg/geometry"
)

// Keypoint is a labelled point of an annotation. Ids start at 1.
type Keypoint struct {
	PointID int     `json:"pointId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
	Label   int     `json:"label,omitempty"`
}

// Pos returns the keypoint position.
func (k Keypoint) Pos() geometry.Point2D {
	return geometry.Point2D{X: k.X, Y: k.Y}
}

// Edge connects two keypoints; the smaller id is always first.
type Edge [2]int

// NewEdge orders a pair of ids into an Edge.
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// HashEdge is a pairing of the two ids that ignores their order.
func HashEdge(e Edge) int {
	lo, hi := e[0], e[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	add := lo + hi
	return add*(add-1)/2 - hi
}

// Keypoints is the keypoint group of one annotation.
type Keypoints struct {
	points  []Keypoint
	edges   []Edge
	hashes  map[int]Edge
	highest int
}

// NewKeypoints returns an empty group.
func NewKeypoints() *Keypoints {
	return &Keypoints{hashes: make(map[int]Edge)}
}

// Kind implements Node.
func (k *Keypoints) Kind() NodeKind { return KindKeypoints }

// Len returns the number of keypoints.
func (k *Keypoints) Len() int { return len(k.points) }

// Points returns a copy of the keypoints in insertion order.
func (k *Keypoints) Points() []Keypoint {
	out := make([]Keypoint, len(k.points))
	copy(out, k.points)
	return out
}

// Edges returns a copy of the edges in insertion order.
func (k *Keypoints) Edges() []Edge {
	out := make([]Edge, len(k.edges))
	copy(out, k.edges)
	return out
}

// NextID returns the id the next Add without explicit id would use. Ids of
// removed keypoints are not reused.
func (k *Keypoints) NextID() int {
	return k.highest + 1
}

// Add inserts a visible keypoint at p. An id of zero picks NextID.
func (k *Keypoints) Add(p geometry.Point2D, id int) Keypoint {
	if id <= 0 {
		id = k.NextID()
	}
	if id > k.highest {
		k.highest = id
	}
	kp := Keypoint{PointID: id, X: p.X, Y: p.Y, Visible: true}
	k.points = append(k.points, kp)
	return kp
}

// Find returns the keypoint with the given id.
func (k *Keypoints) Find(id int) (Keypoint, bool) {
	if i := k.index(id); i >= 0 {
		return k.points[i], true
	}
	return Keypoint{}, false
}

// Nearest returns the keypoint closest to p within tolerance.
func (k *Keypoints) Nearest(p geometry.Point2D, tolerance float64) (Keypoint, bool) {
	best := -1
	bestDist := tolerance
	for i, kp := range k.points {
		if d := kp.Pos().Distance(p); d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Keypoint{}, false
	}
	return k.points[best], true
}

// Remove deletes a keypoint together with every edge touching it.
func (k *Keypoints) Remove(id int) bool {
	i := k.index(id)
	if i < 0 {
		return false
	}
	k.points = append(k.points[:i], k.points[i+1:]...)

	kept := k.edges[:0]
	for _, e := range k.edges {
		if e[0] == id || e[1] == id {
			delete(k.hashes, HashEdge(e))
			continue
		}
		kept = append(kept, e)
	}
	k.edges = kept
	return true
}

// Move relocates a keypoint. Edges follow implicitly since they store ids.
func (k *Keypoints) Move(id int, p geometry.Point2D) bool {
	i := k.index(id)
	if i < 0 {
		return false
	}
	k.points[i].X, k.points[i].Y = p.X, p.Y
	return true
}

// SetVisible toggles a keypoint's visibility flag.
func (k *Keypoints) SetVisible(id int, visible bool) bool {
	i := k.index(id)
	if i < 0 {
		return false
	}
	k.points[i].Visible = visible
	return true
}

// Link toggles the edge between two keypoints and reports whether the pair is
// linked afterwards.
func (k *Keypoints) Link(a, b int) bool {
	if a == b || k.index(a) < 0 || k.index(b) < 0 {
		return false
	}
	e := NewEdge(a, b)
	h := HashEdge(e)
	if _, ok := k.hashes[h]; ok {
		delete(k.hashes, h)
		for i, x := range k.edges {
			if x == e {
				k.edges = append(k.edges[:i], k.edges[i+1:]...)
				break
			}
		}
		return false
	}
	k.hashes[h] = e
	k.edges = append(k.edges, e)
	return true
}

// Linked reports whether two keypoints share an edge.
func (k *Keypoints) Linked(a, b int) bool {
	_, ok := k.hashes[HashEdge(NewEdge(a, b))]
	return ok
}

// Import replaces the group content. Edges naming unknown ids are skipped.
func (k *Keypoints) Import(points []Keypoint, edges []Edge) {
	k.points = nil
	k.edges = nil
	k.hashes = make(map[int]Edge)
	k.highest = 0

	sorted := make([]Keypoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PointID < sorted[j].PointID })
	allVisible := !hasVisibility(points)
	for _, p := range sorted {
		k.Add(p.Pos(), p.PointID)
		last := &k.points[len(k.points)-1]
		last.Visible = p.Visible || allVisible
		last.Label = p.Label
	}
	for _, e := range edges {
		if !k.Linked(e[0], e[1]) {
			k.Link(e[0], e[1])
		}
	}
}

// hasVisibility reports whether any imported keypoint carries the flag; a
// payload with none of them set predates visibility and is treated as all
// visible.
func hasVisibility(points []Keypoint) bool {
	for _, p := range points {
		if p.Visible {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (k *Keypoints) Clone() *Keypoints {
	c := NewKeypoints()
	c.points = k.Points()
	c.edges = k.Edges()
	for h, e := range k.hashes {
		c.hashes[h] = e
	}
	c.highest = k.highest
	return c
}

func (k *Keypoints) index(id int) int {
	for i, p := range k.points {
		if p.PointID == id {
			return i
		}
	}
	return -1
}
