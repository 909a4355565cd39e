package tools

import (
	"context"
	"errors"
	"testing"

	"coco-annotator/internal/scene"
	"coco-annotator/internal/undo"
	"coco-annotator/pkg/geometry"
)

// fakeGateway commits straight into a scene graph for the annotation (1, 10).
type fakeGateway struct {
	graph     *scene.Graph
	stash     *undo.Stash
	active    bool
	kpChanged int
	selected  []int
	targets   []Target
}

func newFakeGateway(t *testing.T, shape geometry.CompoundShape) *fakeGateway {
	t.Helper()
	stash := undo.New(0)
	g := scene.New(stash, nil)
	g.AddCategory(scene.Category{ID: 1, Visible: true})
	g.AddAnnotation(1, scene.Annotation{ID: 10}, shape)
	return &fakeGateway{graph: g, stash: stash, active: true}
}

func (f *fakeGateway) Active() (int, int, bool) { return 1, 10, f.active }

func (f *fakeGateway) ActiveShape() (geometry.CompoundShape, bool) {
	ag, ok := f.graph.FindAnnotationGroup(1, 10)
	if !ok || !f.active {
		return geometry.CompoundShape{}, false
	}
	return ag.Shape.CompoundShape.Clone(), true
}

func (f *fakeGateway) shape() geometry.CompoundShape {
	s, _ := f.ActiveShape()
	return s
}

func (f *fakeGateway) Unite(piece geometry.CompoundShape, undoable bool) error {
	_, err := f.graph.Unite(1, 10, piece, undoable)
	return err
}

func (f *fakeGateway) UniteInto(target Target, piece geometry.CompoundShape, undoable bool) error {
	f.targets = append(f.targets, target)
	return f.Unite(piece, undoable)
}

func (f *fakeGateway) Subtract(piece geometry.CompoundShape, undoable bool) error {
	_, err := f.graph.Subtract(1, 10, piece, undoable)
	return err
}

func (f *fakeGateway) UniteBBox(ring geometry.Ring, undoable bool) error {
	_, err := f.graph.UniteBBox(1, 10, ring, undoable)
	return err
}

func (f *fakeGateway) ReplaceShape(shape geometry.CompoundShape, undoable bool) error {
	_, err := f.graph.ReplaceShape(1, 10, shape, undoable)
	return err
}

func (f *fakeGateway) Simplify(tolerance float64) error {
	_, err := f.graph.Simplify(1, 10, tolerance, false)
	return err
}

func (f *fakeGateway) Keypoints() (*scene.Keypoints, bool) {
	ag, ok := f.graph.FindAnnotationGroup(1, 10)
	if !ok {
		return nil, false
	}
	return ag.Keypoints, true
}

func (f *fakeGateway) KeypointsChanged() { f.kpChanged++ }

func (f *fakeGateway) Stash(action undo.ToolAction, payload any) {
	f.stash.Add(undo.NewToolItem(action, payload))
}

func (f *fakeGateway) HitTest(p geometry.Point2D, tolerance float64) (scene.Hit, bool) {
	return f.graph.HitTest(p, tolerance)
}

func (f *fakeGateway) Annotation(c, a int) (*scene.AnnotationGroup, bool) {
	return f.graph.FindAnnotationGroup(c, a)
}

func (f *fakeGateway) Select(_, a int) { f.selected = append(f.selected, a) }

type fakeSegmenter struct {
	requests []DextrRequest
	rings    [][]float64
	err      error
}

func (f *fakeSegmenter) Dextr(_ context.Context, _ int, req DextrRequest) ([][]float64, error) {
	f.requests = append(f.requests, req)
	return f.rings, f.err
}

var errBackend = errors.New("backend down")

func pt(x, y float64) geometry.Point2D { return geometry.Point2D{X: x, Y: y} }

func down(x, y float64) Event { return Event{Type: EventDown, Point: pt(x, y)} }
func move(x, y float64) Event { return Event{Type: EventMove, Point: pt(x, y)} }
func drag(x, y float64) Event { return Event{Type: EventDrag, Point: pt(x, y)} }
func up(x, y float64) Event   { return Event{Type: EventUp, Point: pt(x, y)} }
