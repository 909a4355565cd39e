package tools

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	annimage "coco-annotator/internal/image"
	"coco-annotator/internal/undo"
	"coco-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(gw *fakeGateway) *Env {
	return &Env{Gateway: gw, Scale: 1}
}

func TestCursorFor(t *testing.T) {
	cases := map[Tool]Cursor{
		Select:    CursorPointer,
		BBox:      CursorCopy,
		Polygon:   CursorCopy,
		Wand:      CursorCrosshair,
		Dextr:     CursorCrosshair,
		Keypoints: CursorCell,
		Brush:     CursorNone,
		Eraser:    CursorNone,
		None:      CursorDefault,
	}
	for tool, want := range cases {
		assert.Equal(t, want, CursorFor(tool), string(tool))
	}
}

func TestFSMTables(t *testing.T) {
	tr, ok := BBoxFSM.Next(StateIdle, EventDown)
	require.True(t, ok)
	assert.Equal(t, StateDragging, tr.To)

	_, ok = BBoxFSM.Next(StateIdle, EventMove)
	assert.False(t, ok)

	tr, ok = BrushFSM.Next(StatePainting, EventUp)
	require.True(t, ok)
	assert.Equal(t, Transition{To: StateIdle, Action: actionBrushFinish}, tr)

	_, ok = PolygonFSM.Next(StateIdle, EventUp)
	assert.False(t, ok)
}

func TestBBoxCommitsRectangle(t *testing.T) {
	gw := newFakeGateway(t, geometry.NewCompoundShape(geometry.Ring{pt(50, 50), pt(60, 50), pt(60, 60)}))
	env := newEnv(gw)
	s := &BBoxState{Settings: DefaultPreferences().BBox}

	require.NoError(t, s.Handle(env, down(0, 0)))
	assert.Equal(t, StateDragging, s.State)
	require.NoError(t, s.Handle(env, move(10, 20)))
	assert.Len(t, s.Preview(env).Path, 5)
	assert.Equal(t, 3.0, s.Preview(env).StrokeWidth)

	require.NoError(t, s.Handle(env, down(10, 20)))
	assert.Equal(t, StateIdle, s.State)

	shape := gw.shape()
	assert.True(t, shape.IsBBox)
	require.Len(t, shape.Rings, 1)
	assert.Equal(t, geometry.Ring{pt(0, 0), pt(0, 20), pt(10, 20), pt(10, 0), pt(0, 0)}, shape.Rings[0])
	assert.Equal(t, 1, gw.stash.Len())
}

func TestToolsIgnoreEventsWithoutAnnotation(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	gw.active = false
	env := newEnv(gw)

	s := &BBoxState{}
	require.NoError(t, s.Handle(env, down(0, 0)))
	assert.Equal(t, State(""), s.State)

	p := &PolygonState{Settings: DefaultPreferences().Polygon}
	require.NoError(t, p.Handle(env, down(0, 0)))
	assert.Empty(t, p.Points)
}

func TestPolygonGuidanceAndAutoComplete(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	env := newEnv(gw)
	s := &PolygonState{Settings: DefaultPreferences().Polygon}

	require.NoError(t, s.Handle(env, down(0, 0)))
	assert.Equal(t, geometry.Ring{pt(0, 0), pt(0, 0)}, s.Points, "guide point follows the first click")
	require.NoError(t, s.Handle(env, up(0, 0)))

	require.NoError(t, s.Handle(env, move(10, 0)))
	assert.Equal(t, pt(10, 0), s.Points[1])
	require.NoError(t, s.Handle(env, down(10, 0)))
	require.NoError(t, s.Handle(env, up(10, 0)))

	require.NoError(t, s.Handle(env, move(10, 10)))
	require.NoError(t, s.Handle(env, down(10, 10)))
	require.NoError(t, s.Handle(env, up(10, 10)))
	assert.Equal(t, 3, gw.stash.Len())
	assert.Equal(t, undo.ToolEvent, gw.stash.Items()[0].Kind)

	require.NoError(t, s.Handle(env, move(1, 1)))
	require.NoError(t, s.Handle(env, down(1, 1)))

	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.Points)
	shape := gw.shape()
	require.Len(t, shape.Rings, 1)
	assert.Equal(t, geometry.Ring{pt(0, 0), pt(10, 0), pt(10, 10), pt(1, 1)}, shape.Rings[0])

	items := gw.stash.Items()
	require.Len(t, items, 1, "tool steps collapse into the shape edit")
	assert.Equal(t, undo.ShapeChanged, items[0].Kind)
}

func TestPolygonDragRespectsMinDistance(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	env := newEnv(gw)
	settings := DefaultPreferences().Polygon
	settings.GuidanceOn = false
	s := &PolygonState{Settings: settings}

	require.NoError(t, s.Handle(env, down(0, 0)))
	require.NoError(t, s.Handle(env, drag(1, 0)))
	assert.Len(t, s.Points, 1)
	require.NoError(t, s.Handle(env, drag(3, 0)))
	assert.Len(t, s.Points, 2)

	s.UndoLastPoint()
	s.UndoLastPoint()
	assert.Empty(t, s.Points)
	assert.Equal(t, StateIdle, s.State)
}

func TestPolygonCloseDiscardsShortOutline(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	env := newEnv(gw)
	s := &PolygonState{Settings: DefaultPreferences().Polygon}

	require.NoError(t, s.Handle(env, down(0, 0)))
	require.NoError(t, s.Close(env))
	assert.Empty(t, s.Points)
	assert.True(t, gw.shape().IsEmpty())
}

func TestBrushAndEraser(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	env := newEnv(gw)
	set := NewSet(DefaultPreferences())

	brush := set.Handler(Brush)
	require.NoError(t, brush.Handle(env, move(0, 0)))
	assert.True(t, gw.shape().IsEmpty(), "hovering paints nothing")

	require.NoError(t, brush.Handle(env, down(0, 0)))
	require.NoError(t, brush.Handle(env, drag(40, 0)))
	require.NoError(t, brush.Handle(env, up(40, 0)))

	shape := gw.shape()
	assert.True(t, shape.Contains(pt(0, 0)))
	assert.True(t, shape.Contains(pt(40, 0)))
	assert.Equal(t, 1, gw.stash.Len(), "one undo step per stroke")

	eraser := set.Handler(Eraser)
	require.NoError(t, eraser.Handle(env, down(0, 0)))
	require.NoError(t, eraser.Handle(env, up(0, 0)))
	shape = gw.shape()
	assert.False(t, shape.Contains(pt(0, 0)))
	assert.True(t, shape.Contains(pt(60, 0)))
}

func TestBrushRadiusFollowsScale(t *testing.T) {
	for _, scale := range []float64{1, 4} {
		gw := newFakeGateway(t, geometry.CompoundShape{})
		env := newEnv(gw)
		env.Scale = scale
		s := &BrushState{Settings: BrushSettings{Radius: 10, StrokeWidth: 1, Color: "white"}}

		require.NoError(t, s.Handle(env, down(0, 0)))
		preview := s.Preview(env)
		require.Len(t, preview.Circles, 1)
		assert.Equal(t, 10*scale, preview.Circles[0].Radius)

		bounds := gw.shape().Bounds()
		assert.InDelta(t, 20*scale, bounds.Width, 0.5*scale)
		assert.InDelta(t, 20*scale, bounds.Height, 0.5*scale)
	}
}

func TestBrushGrowClamps(t *testing.T) {
	s := &BrushState{Settings: DefaultPreferences().Brush}
	s.Grow(BrushRadiusStep)
	assert.Equal(t, 35.0, s.Settings.Radius)
	s.Grow(-100)
	assert.Equal(t, float64(BrushRadiusMin), s.Settings.Radius)
}

func wandRaster() *annimage.Raster {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(5, 5, 11, 11), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)
	return annimage.FromImage(img)
}

func TestWandUnitesAndSubtracts(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	env := newEnv(gw)
	env.Raster = wandRaster()
	s := &WandState{Settings: DefaultPreferences().Wand}
	s.Settings.Blur = 1

	// pixel (7,7) of a 20x20 image
	require.NoError(t, s.Handle(env, down(-3, -3)))
	require.NoError(t, s.Handle(env, up(-3, -3)))
	shape := gw.shape()
	require.False(t, shape.IsEmpty())
	assert.True(t, shape.Contains(pt(-2, -2)))
	assert.False(t, shape.Contains(pt(5, 5)))

	ev := down(-3, -3)
	ev.Shift = true
	require.NoError(t, s.Handle(env, ev))
	assert.True(t, gw.shape().IsEmpty())
}

func TestWandOutsideImageIsNoop(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	env := newEnv(gw)
	env.Raster = wandRaster()
	s := &WandState{Settings: DefaultPreferences().Wand}

	require.NoError(t, s.Handle(env, down(100, 100)))
	assert.True(t, gw.shape().IsEmpty())
	assert.Equal(t, 0, gw.stash.Len())

	env.Raster = nil
	s.Reset()
	require.NoError(t, s.Handle(env, down(0, 0)))
	assert.Equal(t, StateIdle, s.State, "no raster declines")
	assert.True(t, gw.shape().IsEmpty())
}

func TestKeypointsAddAndLink(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	env := newEnv(gw)
	s := &KeypointsState{}

	require.NoError(t, s.Handle(env, down(0, 0)))
	require.NoError(t, s.Handle(env, down(50, 0)))
	group, _ := gw.Keypoints()
	require.Equal(t, 2, group.Len())
	assert.Equal(t, 2, group.Points()[1].PointID)

	require.NoError(t, s.Handle(env, down(1, 0)))
	assert.Equal(t, 1, s.Selected)
	require.NoError(t, s.Handle(env, down(50, 1)))
	assert.True(t, group.Linked(1, 2))
	assert.Equal(t, 0, s.Selected)

	ev := down(50, 0)
	ev.Shift = true
	require.NoError(t, s.Handle(env, ev))
	assert.Equal(t, 1, group.Len())
	assert.Empty(t, group.Edges())
	assert.Equal(t, 4, gw.kpChanged)
}

func TestDextrSendsFourPoints(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	seg := &fakeSegmenter{rings: [][]float64{{0, 0, 10, 0, 10, 10, 0, 10}}}
	env := newEnv(gw)
	env.Raster = wandRaster()
	env.Segmenter = seg
	s := &DextrState{Settings: DefaultPreferences().Dextr}

	for _, p := range []geometry.Point2D{pt(-10, 0), pt(0, -10), pt(5, 0)} {
		require.NoError(t, s.Handle(env, Event{Type: EventDown, Point: p}))
	}
	assert.Len(t, s.Points, 3)
	assert.Empty(t, seg.requests)

	require.NoError(t, s.Handle(env, down(0, 5)))
	require.Len(t, seg.requests, 1)
	assert.Equal(t, DextrRequest{
		Points:    [][2]int{{0, 10}, {10, 0}, {15, 10}, {10, 15}},
		Padding:   50,
		Threshold: 80,
	}, seg.requests[0])
	assert.Empty(t, s.Points)

	shape := gw.shape()
	require.Len(t, shape.Rings, 1)
	assert.Equal(t, pt(-10, -10), shape.Rings[0][0])
	assert.Equal(t, 1, gw.stash.Len())
	assert.Equal(t, []Target{{ImageID: env.ImageID, CategoryID: 1, AnnotationID: 10}}, gw.targets)
}

func TestDextrClearsPointsOnFailure(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	env := newEnv(gw)
	env.Raster = wandRaster()
	env.Segmenter = &fakeSegmenter{err: errBackend}
	s := &DextrState{Settings: DefaultPreferences().Dextr}

	for i := 0; i < DextrPoints; i++ {
		require.NoError(t, s.Handle(env, down(float64(i), 0)))
	}
	assert.Empty(t, s.Points)
	assert.True(t, gw.shape().IsEmpty())
}

func TestSelectInsertsAndMovesVertex(t *testing.T) {
	ring := geometry.Ring{pt(0, 0), pt(0, 100), pt(100, 100), pt(100, 0)}
	gw := newFakeGateway(t, geometry.NewCompoundShape(ring))
	env := newEnv(gw)
	s := &SelectState{Settings: DefaultPreferences().Select}

	require.NoError(t, s.Handle(env, move(50, 102)))
	require.NotNil(t, s.Indicator)
	assert.InDelta(t, 100, s.Indicator.Y, 1e-9)
	assert.Equal(t, "ID: 10\nCategory: 1\nNo Metadata", s.TooltipText)

	require.NoError(t, s.Handle(env, down(50, 100.5)))
	assert.Equal(t, StateEditing, s.State)
	require.NoError(t, s.Handle(env, drag(50, 120)))
	editing, ok := s.Editing()
	require.True(t, ok)
	assert.Len(t, editing.Rings[0], 5)

	require.NoError(t, s.Handle(env, up(50, 120)))
	assert.Equal(t, StateIdle, s.State)

	got := gw.shape().Rings[0]
	assert.Equal(t, geometry.Ring{pt(0, 0), pt(0, 100), pt(50, 120), pt(100, 100), pt(100, 0)}, got)
	assert.Equal(t, 1, gw.stash.Len())
	assert.Equal(t, []int{10}, gw.selected)
}

func TestSelectShiftRemovesVertex(t *testing.T) {
	ring := geometry.Ring{pt(0, 0), pt(0, 100), pt(50, 150), pt(100, 100), pt(100, 0)}
	gw := newFakeGateway(t, geometry.NewCompoundShape(ring))
	env := newEnv(gw)
	s := &SelectState{Settings: DefaultPreferences().Select}

	ev := down(50, 149)
	ev.Shift = true
	require.NoError(t, s.Handle(env, ev))

	assert.Equal(t, geometry.Ring{pt(0, 0), pt(0, 100), pt(100, 100), pt(100, 0)}, gw.shape().Rings[0])
	assert.Equal(t, StateIdle, s.State)
}

func TestSelectKeepsBBoxRectangular(t *testing.T) {
	gw := newFakeGateway(t, geometry.CompoundShape{})
	require.NoError(t, gw.UniteBBox(geometry.BBoxRing(pt(0, 0), pt(100, 100)), false))
	env := newEnv(gw)
	s := &SelectState{Settings: DefaultPreferences().Select}

	require.NoError(t, s.Handle(env, down(100, 100)))
	require.NoError(t, s.Handle(env, drag(120, 130)))
	require.NoError(t, s.Handle(env, up(120, 130)))

	shape := gw.shape()
	assert.True(t, shape.IsBBox)
	assert.True(t, shape.Rings[0].IsAxisAlignedRect())
	assert.Equal(t, geometry.NewRect(0, 0, 120, 130), shape.Bounds())
}

func TestSetPreferences(t *testing.T) {
	set := NewSet(DefaultPreferences())
	assert.True(t, set.Eraser.Erase)
	assert.False(t, set.Brush.Erase)
	assert.Nil(t, set.Handler(None))

	set.Brush.Grow(10)
	prefs := set.Preferences()
	assert.Equal(t, 40.0, prefs.Brush.Radius)
	assert.Equal(t, 30.0, prefs.Eraser.Radius)

	merged := DefaultPreferences().Merge(Preferences{Wand: prefs.Wand, Brush: BrushSettings{Radius: 12}})
	assert.Equal(t, 12.0, merged.Brush.Radius)
	assert.Equal(t, "white", merged.Brush.Color)
	assert.Equal(t, 10.0, merged.Select.Tolerance)
}
