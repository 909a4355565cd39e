package scene

import "coco-annotator/pkg/geometry"

// HitKind tells what part of an annotation a hit test found.
type HitKind int

const (
	HitVertex HitKind = iota
	HitStroke
	HitKeypoint
	HitFill
)

// Hit is the result of a hit test. Ring and Index address the vertex (or the
// start vertex of the stroke segment) in open-ring indexing.
type Hit struct {
	Kind         HitKind
	CategoryID   int
	AnnotationID int
	Ring         int
	Index        int
	Point        geometry.Point2D
	KeypointID   int
}

// HitTest finds what lies under p. Drawn annotations are searched topmost
// first: keypoints, vertices and strokes within tolerance win over a plain
// fill hit on any annotation.
func (g *Graph) HitTest(p geometry.Point2D, tolerance float64) (Hit, bool) {
	drawn := g.VisibleAnnotations()

	for i := len(drawn) - 1; i >= 0; i-- {
		ag := drawn[i]
		base := Hit{CategoryID: ag.CategoryID, AnnotationID: ag.ID}

		if kp, ok := ag.Keypoints.Nearest(p, tolerance); ok {
			base.Kind = HitKeypoint
			base.KeypointID = kp.PointID
			base.Point = kp.Pos()
			return base, true
		}
		for ri, ring := range ag.Shape.Rings {
			if vi, ok := ring.NearestVertex(p, tolerance); ok {
				base.Kind = HitVertex
				base.Ring, base.Index = ri, vi
				base.Point = ring.Open()[vi]
				return base, true
			}
		}
		for ri, ring := range ag.Shape.Rings {
			if ei, q, ok := ring.NearestEdge(p, tolerance); ok {
				base.Kind = HitStroke
				base.Ring, base.Index = ri, ei
				base.Point = q
				return base, true
			}
		}
	}

	for i := len(drawn) - 1; i >= 0; i-- {
		ag := drawn[i]
		if ag.Shape.Contains(p) {
			return Hit{Kind: HitFill, CategoryID: ag.CategoryID, AnnotationID: ag.ID, Point: p}, true
		}
	}
	return Hit{}, false
}
