package render

import (
	"errors"
	"image"
	"image/color"
	"testing"

	annimage "coco-annotator/internal/image"
	"coco-annotator/internal/scene"
	"coco-annotator/internal/tools"
	"coco-annotator/internal/viewport"
	"coco-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSource struct {
	view    *viewport.Viewport
	graph   *scene.Graph
	preview tools.Preview
	editing *geometry.CompoundShape
}

func (f *fakeSource) Viewport() *viewport.Viewport { return f.view }
func (f *fakeSource) Graph() *scene.Graph          { return f.graph }
func (f *fakeSource) Preview() tools.Preview       { return f.preview }
func (f *fakeSource) EditingShape() (geometry.CompoundShape, bool) {
	if f.editing == nil {
		return geometry.CompoundShape{}, false
	}
	return *f.editing, true
}

func whiteImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func newSource(t *testing.T) *fakeSource {
	t.Helper()
	view := viewport.New(100, 100)
	view.Init(annimage.FromImage(whiteImage(20, 20)))
	require.InDelta(t, 4, view.Zoom(), 1e-9)

	g := scene.New(nil, nil)
	g.AddCategory(scene.Category{ID: 1, Color: "#00ff00", Visible: true, Enabled: true})
	square := geometry.NewCompoundShape(geometry.BBoxRing(geometry.Point2D{X: -5, Y: -5}, geometry.Point2D{X: 5, Y: 5}))
	g.AddAnnotation(1, scene.Annotation{ID: 7}, square)
	return &fakeSource{view: view, graph: g}
}

func rgba(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestFrameDrawsBackgroundAndFill(t *testing.T) {
	src := newSource(t)
	r := New()
	out := r.Frame(src, 100, 100)
	require.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())

	bg := rgba(out, 2, 2)
	assert.InDelta(t, int(r.Style.Background.R), int(bg.R), 1, "outside the image")

	img := rgba(out, 14, 14)
	assert.Greater(t, int(img.R), 200, "image pixel is white")

	fill := rgba(out, 50, 50)
	assert.Greater(t, int(fill.G), int(fill.R)+40, "annotation tints green")
}

func TestFrameSkipsHiddenAnnotations(t *testing.T) {
	src := newSource(t)
	require.NoError(t, src.graph.SetAnnotationVisible(1, 7, false))

	out := New().Frame(src, 100, 100)
	c := rgba(out, 50, 50)
	assert.InDelta(t, int(c.R), int(c.G), 2)
}

func TestFrameDrawsEditingShapeForActive(t *testing.T) {
	src := newSource(t)
	require.NoError(t, src.graph.SetActive(1, 7))
	moved := geometry.NewCompoundShape(geometry.BBoxRing(geometry.Point2D{X: -9, Y: -9}, geometry.Point2D{X: -6, Y: -6}))
	src.editing = &moved

	out := New().Frame(src, 100, 100)
	c := rgba(out, 50, 50)
	assert.InDelta(t, int(c.R), int(c.G), 2, "committed shape replaced while editing")
	c = rgba(out, 20, 20)
	assert.Greater(t, int(c.G), int(c.R)+40)
}

func TestFrameWithoutRaster(t *testing.T) {
	src := &fakeSource{view: viewport.New(10, 10), graph: scene.New(nil, nil)}
	out := New().Frame(src, 10, 10)
	c := rgba(out, 5, 5)
	assert.InDelta(t, int(DefaultStyle().Background.R), int(c.R), 1)
	assert.Equal(t, uint8(255), c.A)

	assert.Equal(t, image.Rect(0, 0, 0, 0), New().Frame(src, 0, 10).Bounds())
}

func TestParseColor(t *testing.T) {
	def := color.RGBA{R: 1, A: 255}
	assert.Equal(t, color.RGBA{A: 255}, ParseColor("Black", def))
	assert.Equal(t, color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 255}, ParseColor("#123456", def))
	assert.Equal(t, def, ParseColor("nonsense", def))
}

func TestDrawErrorsLoggedOncePerFrame(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := New()
	r.Logger = zap.New(core)

	first := errors.New("path overflow")
	r.check(nil)
	r.check(first)
	r.check(errors.New("again"))
	r.endFrame()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "overlay draw failed", entry.Message)
	assert.Equal(t, "path overflow", entry.ContextMap()["error"])

	r.endFrame()
	assert.Equal(t, 1, logs.Len(), "a clean frame logs nothing")
}
