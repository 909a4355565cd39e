package viewport

import (
	"image"
	"testing"

	annimage "coco-annotator/internal/image"
	"coco-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raster(w, h int) *annimage.Raster {
	return annimage.FromImage(image.NewRGBA(image.Rect(0, 0, w, h)))
}

func TestInitCentersImage(t *testing.T) {
	v := New(1000, 800)
	v.Init(raster(500, 200))

	// min(1000/500*0.95, 800/200*0.8) = min(1.9, 3.2)
	assert.InDelta(t, 1.9, v.Zoom(), 1e-9)
	assert.InDelta(t, 1/1.9, v.Scale(), 1e-9)
	assert.Equal(t, geometry.Point2D{}, v.Center())

	size, ok := v.ImageSize()
	require.True(t, ok)
	assert.Equal(t, 500.0, size.Width)
}

func TestInitWithoutRaster(t *testing.T) {
	v := New(100, 100)
	v.Init(nil)

	_, ok := v.ImageSize()
	assert.False(t, ok)
	_, _, ok = v.SceneToPixel(geometry.Point2D{})
	assert.False(t, ok)
}

func TestViewSceneRoundTrip(t *testing.T) {
	v := New(640, 480)
	v.SetView(geometry.Point2D{X: 12, Y: -7}, 2.5)

	p := geometry.Point2D{X: 101, Y: 33}
	back := v.ViewToScene(v.SceneToView(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)

	mid := v.ViewToScene(geometry.Point2D{X: 320, Y: 240})
	assert.InDelta(t, 12, mid.X, 1e-9)
	assert.InDelta(t, -7, mid.Y, 1e-9)
}

func TestWheelZoomKeepsPointerAnchored(t *testing.T) {
	v := New(800, 600)
	v.SetView(geometry.Point2D{X: 5, Y: 5}, 1)

	pointer := geometry.Point2D{X: 200, Y: 450}
	before := v.ViewToScene(pointer)

	v.OnWheel(WheelEvent{DeltaY: -1, Pointer: pointer})
	assert.InDelta(t, 1.2, v.Zoom(), 1e-9)

	after := v.ViewToScene(pointer)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)

	v.OnWheel(WheelEvent{DeltaY: 1, Pointer: pointer})
	assert.InDelta(t, 1.0, v.Zoom(), 1e-9)
}

func TestWheelZoomBounds(t *testing.T) {
	v := New(800, 600)
	v.SetView(geometry.Point2D{}, 9)

	v.OnWheel(WheelEvent{DeltaY: -1})
	assert.InDelta(t, 9, v.Zoom(), 1e-9, "10.8 is outside the zoom range")

	v.SetView(geometry.Point2D{}, 0.011)
	v.OnWheel(WheelEvent{DeltaY: 1})
	assert.InDelta(t, 0.011, v.Zoom(), 1e-12)
}

func TestWheelPan(t *testing.T) {
	v := New(800, 600)

	v.OnWheel(WheelEvent{DeltaY: 10, Alt: true})
	assert.Equal(t, geometry.Point2D{Y: 5}, v.Center())

	v.OnWheel(WheelEvent{DeltaY: -4, Shift: true})
	assert.Equal(t, geometry.Point2D{X: -2, Y: 5}, v.Center())
	assert.Equal(t, 1.0, v.Zoom())
}

func TestOnChangeFires(t *testing.T) {
	v := New(800, 600)
	calls := 0
	v.OnChange(func() { calls++ })

	v.OnWheel(WheelEvent{DeltaY: -1})
	v.Pan(10, 0)
	assert.Equal(t, 2, calls)
}

func TestSceneToPixel(t *testing.T) {
	size := geometry.NewSize(100, 50)

	x, y, ok := SceneToPixel(geometry.Point2D{X: -50, Y: -25}, size)
	assert.True(t, ok)
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)

	_, _, ok = SceneToPixel(geometry.Point2D{X: 50, Y: 0}, size)
	assert.False(t, ok)

	assert.Equal(t, geometry.Point2D{X: -40, Y: 5}, PixelToScene(10, 30, size))
}
