package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"coco-annotator/internal/backend"
	"coco-annotator/internal/backend/backendtest"
	"coco-annotator/internal/scene"
	"coco-annotator/internal/session"
	"coco-annotator/internal/tools"
	"coco-annotator/internal/undo"
	"coco-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*backendtest.Server, *session.Session) {
	t.Helper()
	return setupAsync(t, nil)
}

// queue is an async runner that holds apply steps until the test runs them.
type queue struct {
	applies []func() error
}

func (q *queue) run(work func(ctx context.Context) (func() error, error)) {
	apply, err := work(context.Background())
	if err == nil && apply != nil {
		q.applies = append(q.applies, apply)
	}
}

func (q *queue) flush(t *testing.T) {
	t.Helper()
	pending := q.applies
	q.applies = nil
	for _, apply := range pending {
		require.NoError(t, apply())
	}
}

func setupAsync(t *testing.T, async tools.AsyncFunc) (*backendtest.Server, *session.Session) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)

	next := 2
	srv.AddImage(&backendtest.ImageRecord{
		Image: backend.Image{ID: 1, FileName: "a.png", Width: 40, Height: 20, Next: &next},
		Categories: []backend.Category{
			{
				ID: 3, Name: "dog", Color: "#00ff00",
				Annotations: []backend.Annotation{{
					ID:           30,
					CategoryID:   3,
					Segmentation: [][]float64{{0, 0, 10, 0, 10, 10}},
				}},
			},
			{ID: 4, Name: "cat"},
		},
	})
	srv.AddImage(&backendtest.ImageRecord{
		Image:      backend.Image{ID: 2, Width: 40, Height: 20},
		Categories: []backend.Category{{ID: 3, Name: "dog"}, {ID: 4, Name: "cat"}},
	})

	c, err := backend.New(backend.Options{BaseURL: srv.URL(), HTTPClient: srv.Client()})
	require.NoError(t, err)
	s, err := session.New(session.Options{Backend: c, ViewWidth: 400, ViewHeight: 200, Async: async})
	require.NoError(t, err)
	return srv, s
}

func load(t *testing.T, s *session.Session, id int) {
	t.Helper()
	require.NoError(t, s.Load(context.Background(), id))
}

func TestLoadBuildsSceneAndInfo(t *testing.T) {
	_, s := setup(t)
	var loaded int
	s.On(session.EventLoaded, func(interface{}) { loaded++ })
	s.UndoStash().Add(undo.NewToolItem(undo.PolygonAddPoint, nil))

	load(t, s, 1)

	assert.Equal(t, 1, loaded)
	assert.Equal(t, 1, s.ImageID())
	assert.Equal(t, 0, s.UndoStash().Len())
	assert.False(t, s.Modified())
	require.NotNil(t, s.Viewport().Raster())

	ag, ok := s.Graph().FindAnnotationGroup(3, 30)
	require.True(t, ok)
	assert.Equal(t, geometry.Ring{{X: -20, Y: -10}, {X: -10, Y: -10}, {X: -10, Y: 0}}, ag.Shape.Rings[0])

	info := s.Info()
	require.Len(t, info, 2)
	assert.True(t, info[0].Enabled)
	assert.Len(t, info[0].Annotations, 1)
	assert.False(t, info[1].Enabled)
}

func TestToolNeedsAnnotation(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)

	assert.Equal(t, tools.None, s.ToggleTool(tools.Polygon))

	require.NoError(t, s.SelectAnnotation(3, 30))
	assert.Equal(t, tools.Polygon, s.ToggleTool(tools.Polygon))
	assert.Equal(t, tools.BBox, s.ToggleTool(tools.BBox))
	assert.Equal(t, tools.None, s.ToggleTool(tools.BBox))

	s.ToggleTool(tools.Brush)
	require.NoError(t, s.SelectCategory(4))
	assert.Equal(t, tools.None, s.ActiveTool())
}

func TestUndoRestoresShape(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)
	require.NoError(t, s.SelectAnnotation(3, 30))

	ag, _ := s.Graph().FindAnnotationGroup(3, 30)
	before := ag.Shape.CompoundShape.Clone()

	piece := geometry.NewCompoundShape(geometry.BBoxRing(geometry.Point2D{X: 0, Y: 0}, geometry.Point2D{X: 5, Y: 5}))
	require.NoError(t, s.Unite(piece, true))
	assert.True(t, s.Modified())
	assert.Equal(t, 1, s.UndoStash().Len())
	assert.NotEqual(t, before.Rings, ag.Shape.Rings)

	assert.True(t, s.Undo())
	assert.Equal(t, before.Rings, ag.Shape.Rings)
	assert.False(t, s.Undo())
}

func TestUndoAfterCategoryChange(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)
	require.NoError(t, s.SelectAnnotation(3, 30))
	ag, _ := s.Graph().FindAnnotationGroup(3, 30)
	before := ag.Shape.CompoundShape.Clone()

	piece := geometry.NewCompoundShape(geometry.BBoxRing(geometry.Point2D{X: 0, Y: 0}, geometry.Point2D{X: 5, Y: 5}))
	require.NoError(t, s.Unite(piece, true))
	require.NoError(t, s.Graph().Reparent(30, 3, 4))

	assert.True(t, s.Undo())
	moved, ok := s.Graph().FindAnnotationGroup(4, 30)
	require.True(t, ok)
	assert.Equal(t, before.Rings, moved.Shape.Rings)
}

func TestUndoPolygonPoint(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)
	require.NoError(t, s.SelectAnnotation(3, 30))
	s.ToggleTool(tools.Polygon)

	require.NoError(t, s.HandlePointer(tools.Event{Type: tools.EventDown, Point: geometry.Point2D{X: 1, Y: 1}}))
	require.NoError(t, s.HandlePointer(tools.Event{Type: tools.EventUp, Point: geometry.Point2D{X: 1, Y: 1}}))
	require.Len(t, s.Tools().Polygon.Points, 2)

	assert.True(t, s.Undo())
	assert.Len(t, s.Tools().Polygon.Points, 1)
}

func TestModalSuppressesShortcuts(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)
	require.NoError(t, s.SelectAnnotation(3, 30))

	require.NoError(t, s.OpenModal(session.ModalSettings))
	assert.ErrorIs(t, s.OpenModal(session.ModalCopy), session.ErrModalOpen)

	handled, err := s.HandleKey("s")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, tools.None, s.ActiveTool())

	s.CloseModal()
	handled, err = s.HandleKey("s")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, tools.Select, s.ActiveTool())

	handled, err = s.HandleKey("F12")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestBrushSizeShortcuts(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)
	require.NoError(t, s.SelectAnnotation(3, 30))
	radius := s.Tools().Brush.Settings.Radius

	_, err := s.HandleKey("]")
	require.NoError(t, err)
	assert.Equal(t, radius, s.Tools().Brush.Settings.Radius, "brush inactive")

	s.ToggleTool(tools.Brush)
	_, err = s.HandleKey("]")
	require.NoError(t, err)
	assert.Equal(t, radius+tools.BrushRadiusStep, s.Tools().Brush.Settings.Radius)
}

func TestShortcutOverrides(t *testing.T) {
	sc, err := session.NewShortcuts(map[string]string{"undo": "control+y"})
	require.NoError(t, err)

	a, ok := sc.Lookup("Control+y")
	require.True(t, ok)
	assert.Equal(t, session.ActionUndo, a)
	_, ok = sc.Lookup("Control+z")
	assert.False(t, ok)

	sc.Restore()
	a, ok = sc.Lookup("Control+z")
	require.True(t, ok)
	assert.Equal(t, session.ActionUndo, a)

	_, err = session.NewShortcuts(map[string]string{"fly": "f"})
	assert.Error(t, err)
}

func TestShortcutRebindStealsKey(t *testing.T) {
	sc, err := session.NewShortcuts(nil)
	require.NoError(t, err)
	require.NoError(t, sc.Set(session.ActionToolWand, "s"))

	a, _ := sc.Lookup("s")
	assert.Equal(t, session.ActionToolWand, a)
	assert.Equal(t, "", sc.Key(session.ActionToolSelect))
	_, ok := sc.Lookup("w")
	assert.False(t, ok)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "Control+Shift+z", session.NormalizeKey("shift+control+z"))
	assert.Equal(t, "]", session.NormalizeKey("]"))
	assert.Equal(t, "+", session.NormalizeKey("+"))
}

func TestListMoves(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)

	require.NoError(t, s.Do(session.ActionListMoveDown))
	assert.Equal(t, session.Selection{CategoryID: 3}, s.Selection())

	require.NoError(t, s.Do(session.ActionListExpand))
	require.NoError(t, s.Do(session.ActionListMoveDown))
	assert.Equal(t, session.Selection{CategoryID: 3, AnnotationID: 30}, s.Selection())

	require.NoError(t, s.Do(session.ActionListMoveDown))
	assert.Equal(t, session.Selection{CategoryID: 4}, s.Selection())
	require.NoError(t, s.Do(session.ActionListMoveDown))
	assert.Equal(t, session.Selection{CategoryID: 4}, s.Selection(), "stops at the end")

	require.NoError(t, s.Do(session.ActionListMoveUp))
	assert.Equal(t, session.Selection{CategoryID: 3, AnnotationID: 30}, s.Selection())

	require.NoError(t, s.Do(session.ActionListCollapse))
	assert.Equal(t, session.Selection{CategoryID: 3}, s.Selection())
}

func TestInfoReducer(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)
	ag, _ := s.Graph().FindAnnotationGroup(3, 30)

	require.NoError(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoAnnotationName, CategoryID: 3, AnnotationID: 30, Name: "rex"}))
	require.NoError(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoAnnotationColor, CategoryID: 3, AnnotationID: 30, Color: "#123456"}))
	assert.Equal(t, "rex", ag.Name)
	assert.Equal(t, "#123456", ag.Color)
	assert.True(t, s.Modified())

	require.NoError(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoAddMetadata, CategoryID: 3, AnnotationID: 30}))
	require.NoError(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoEditMetadata, CategoryID: 3, AnnotationID: 30, Index: 0,
		Pair: scene.MetaPair{Key: "breed", Value: "collie"}}))
	assert.Equal(t, []scene.MetaPair{{Key: "breed", Value: "collie"}}, ag.Metadata)
	assert.Error(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoEditMetadata, CategoryID: 3, AnnotationID: 30, Index: 3}))

	require.NoError(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoAnnotationEnabled, CategoryID: 3, AnnotationID: 30, Enabled: false}))
	assert.False(t, s.Graph().IsDrawn(ag))

	require.NoError(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoRemoveAnnotation, CategoryID: 3, AnnotationID: 30}))
	cg, _ := s.Graph().FindCategoryGroup(3)
	assert.False(t, s.Info()[0].Enabled, "last annotation removed")
	assert.False(t, cg.Visible)

	require.NoError(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoAddAnnotation, CategoryID: 3,
		Annotation: session.AnnotationInfo{ID: 30, Enabled: true}}))
	assert.True(t, s.Info()[0].Enabled, "first annotation added")
	assert.True(t, cg.Visible)

	assert.ErrorIs(t, s.UpdateInfo(session.InfoUpdate{Kind: session.InfoCategoryColor, CategoryID: 99}), scene.ErrCategoryNotFound)
}

func TestFilterCategories(t *testing.T) {
	cats := []session.CategoryInfo{{ID: 1, Name: "Dog"}, {ID: 2, Name: "cat"}, {ID: 3, Name: "hotdog"}}

	assert.Len(t, session.FilterCategories(cats, ""), 3)
	assert.Len(t, session.FilterCategories(cats, "d"), 3, "single character shows all")

	got := session.FilterCategories(cats, "DO")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 3, got[1].ID)
	assert.Empty(t, session.FilterCategories(cats, "zebra"))
}

func TestSaveAllowsOneInFlight(t *testing.T) {
	srv, s := setup(t)
	load(t, s, 1)
	require.NoError(t, s.SelectAnnotation(3, 30))
	s.SetModified(true)

	gate := make(chan struct{})
	srv.Lock()
	srv.SaveGate = gate
	srv.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	require.Eventually(t, s.Saving, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Save(context.Background()), session.ErrSaveInProgress)

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, s.Saving())
	assert.False(t, s.Modified())
	require.Equal(t, 1, srv.SavedCount())

	var body struct {
		Mode  string `json:"mode"`
		Image struct {
			ID       int `json:"id"`
			Settings struct {
				AnnotationID *int `json:"annotationId"`
			} `json:"settings"`
		} `json:"image"`
	}
	srv.Lock()
	raw := srv.Saved[0]
	srv.Unlock()
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "segment", body.Mode)
	assert.Equal(t, 1, body.Image.ID)
	require.NotNil(t, body.Image.Settings.AnnotationID)
	assert.Equal(t, 30, *body.Image.Settings.AnnotationID)
}

func TestSaveWithoutImage(t *testing.T) {
	_, s := setup(t)
	assert.ErrorIs(t, s.Save(context.Background()), session.ErrNoImage)
}

func TestCreateAndDeleteAnnotation(t *testing.T) {
	srv, s := setup(t)
	load(t, s, 1)
	require.NoError(t, s.SelectCategory(4))

	s.CreateAnnotation()
	sel := s.Selection()
	assert.Equal(t, 4, sel.CategoryID)
	require.NotZero(t, sel.AnnotationID)
	_, ok := s.Graph().FindAnnotationGroup(4, sel.AnnotationID)
	require.True(t, ok)
	info := s.Info()[1]
	assert.True(t, info.Enabled)
	assert.True(t, info.Expanded)

	s.DeleteAnnotation(4, sel.AnnotationID)
	_, ok = s.Graph().FindAnnotationGroup(4, sel.AnnotationID)
	assert.False(t, ok)
	assert.Equal(t, session.Selection{CategoryID: 4}, s.Selection())
	assert.False(t, s.Info()[1].Enabled)

	srv.Lock()
	defer srv.Unlock()
	assert.Equal(t, []int{sel.AnnotationID}, srv.Deleted)
}

func TestCreateAnnotationNeedsCategory(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)
	var notes []session.Notification
	s.On(session.EventNotification, func(d interface{}) { notes = append(notes, d.(session.Notification)) })

	s.CreateAnnotation()
	require.Len(t, notes, 1)
	assert.ErrorIs(t, notes[0].Err, session.ErrNoCategory)
}

func TestCopyAnnotationsReloads(t *testing.T) {
	srv, s := setup(t)
	load(t, s, 2)
	cg, _ := s.Graph().FindCategoryGroup(3)
	assert.Empty(t, cg.Annotations())

	s.CopyAnnotations(1, []int{3})

	cg, _ = s.Graph().FindCategoryGroup(3)
	assert.Len(t, cg.Annotations(), 1)
	srv.Lock()
	defer srv.Unlock()
	require.Len(t, srv.Copies, 1)
	assert.Equal(t, backendtest.CopyCall{Source: 1, Target: 2, CategoryIDs: []int{3}}, srv.Copies[0])
}

func TestNextImageShortcut(t *testing.T) {
	_, s := setup(t)
	load(t, s, 1)

	_, err := s.HandleKey("n")
	require.NoError(t, err)
	assert.Equal(t, 2, s.ImageID())

	_, err = s.HandleKey("n")
	require.NoError(t, err)
	assert.Equal(t, 2, s.ImageID(), "last image has no next")
}

func TestBackendFailureKeepsScene(t *testing.T) {
	srv, s := setup(t)
	load(t, s, 1)
	var notes []session.Notification
	s.On(session.EventNotification, func(d interface{}) { notes = append(notes, d.(session.Notification)) })

	srv.Lock()
	srv.FailWith = http.StatusInternalServerError
	srv.Unlock()
	s.LoadAsync(2)

	require.Len(t, notes, 1)
	assert.Equal(t, session.LevelError, notes[0].Level)
	assert.Equal(t, 1, s.ImageID())
	_, ok := s.Graph().FindAnnotationGroup(3, 30)
	assert.True(t, ok)
}

func TestAsyncRunnerAppliesResult(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.AddImage(&backendtest.ImageRecord{Image: backend.Image{ID: 5, Width: 8, Height: 8}})
	c, err := backend.New(backend.Options{BaseURL: srv.URL(), HTTPClient: srv.Client()})
	require.NoError(t, err)

	var queued []func() error
	s, err := session.New(session.Options{
		Backend: c,
		Async: func(work func(ctx context.Context) (func() error, error)) {
			apply, err := work(context.Background())
			if err == nil && apply != nil {
				queued = append(queued, apply)
			}
		},
	})
	require.NoError(t, err)

	s.LoadAsync(5)
	assert.Equal(t, 0, s.ImageID(), "not applied until the event loop runs it")
	require.Len(t, queued, 1)
	require.NoError(t, queued[0]())
	assert.Equal(t, 5, s.ImageID())
}

func startDextr(t *testing.T, s *session.Session) {
	t.Helper()
	require.NoError(t, s.SelectAnnotation(3, 30))
	require.Equal(t, tools.Dextr, s.ToggleTool(tools.Dextr))
	for _, p := range []geometry.Point2D{{X: -10, Y: 0}, {X: 0, Y: -5}, {X: 10, Y: 0}, {X: 0, Y: 5}} {
		require.NoError(t, s.HandlePointer(tools.Event{Type: tools.EventDown, Point: p}))
	}
}

func TestDextrResultAppliesToIssuingAnnotation(t *testing.T) {
	q := &queue{}
	srv, s := setupAsync(t, q.run)
	srv.Lock()
	srv.DextrRings = [][]float64{{20, 5, 30, 5, 30, 15, 20, 15}}
	srv.Unlock()
	load(t, s, 1)
	ag, _ := s.Graph().FindAnnotationGroup(3, 30)
	before := ag.Shape.CompoundShape.Clone()

	startDextr(t, s)
	require.Len(t, q.applies, 1)
	assert.False(t, s.Modified(), "not applied until the event loop runs it")
	q.flush(t)

	assert.NotEqual(t, before.Rings, ag.Shape.Rings)
	assert.True(t, s.Modified())
	assert.Equal(t, 1, s.UndoStash().Len())
}

func TestDextrResultDroppedAfterImageChange(t *testing.T) {
	q := &queue{}
	srv, s := setupAsync(t, q.run)
	srv.Lock()
	srv.DextrRings = [][]float64{{20, 5, 30, 5, 30, 15, 20, 15}}
	srv.Unlock()
	load(t, s, 1)

	startDextr(t, s)
	require.Len(t, q.applies, 1)

	load(t, s, 2)
	require.NoError(t, s.SelectCategory(3))
	q.flush(t)

	assert.False(t, s.Modified())
	assert.Equal(t, 0, s.UndoStash().Len())
	cg, ok := s.Graph().FindCategoryGroup(3)
	require.True(t, ok)
	assert.Empty(t, cg.Annotations())
}

func TestDextrResultDroppedAfterSelectionChange(t *testing.T) {
	q := &queue{}
	srv, s := setupAsync(t, q.run)
	srv.Lock()
	srv.DextrRings = [][]float64{{20, 5, 30, 5, 30, 15, 20, 15}}
	srv.Unlock()
	load(t, s, 1)
	ag, _ := s.Graph().FindAnnotationGroup(3, 30)
	before := ag.Shape.CompoundShape.Clone()

	startDextr(t, s)
	require.NoError(t, s.SelectCategory(4))
	q.flush(t)

	assert.Equal(t, before.Rings, ag.Shape.Rings)
	assert.False(t, s.Modified())
	assert.Equal(t, 0, s.UndoStash().Len())
}

func TestDextrFailureNotifies(t *testing.T) {
	q := &queue{}
	srv, s := setupAsync(t, q.run)
	load(t, s, 1)
	var notes []session.Notification
	s.On(session.EventNotification, func(d interface{}) { notes = append(notes, d.(session.Notification)) })

	srv.Lock()
	srv.FailWith = http.StatusInternalServerError
	srv.Unlock()
	startDextr(t, s)
	assert.Empty(t, notes, "reported on the event loop")
	q.flush(t)

	require.Len(t, notes, 1)
	assert.Equal(t, session.LevelError, notes[0].Level)
	assert.Equal(t, "DEXTR failed", notes[0].Message)
	assert.False(t, s.Modified())
}
