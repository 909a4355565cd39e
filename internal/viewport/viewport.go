// Package viewport owns the zoom/pan transform of the annotation canvas and
// the background raster it displays.
package viewport

import (
	"math"

	annimage "coco-annotator/internal/image"
	"coco-annotator/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

const (
	ZoomFactor = 1.2
	ZoomMin    = 0.01
	ZoomMax    = 10.0
	PanFactor  = 0.5

	// Fit margins used by CenterImage.
	FitMarginX = 0.95
	FitMarginY = 0.8
)

// WheelEvent is a mouse wheel event in view (widget) coordinates.
type WheelEvent struct {
	DeltaX, DeltaY float64
	Pointer        geometry.Point2D
	Shift          bool
	Alt            bool
}

// Viewport maps between view coordinates (pixels of the drawing widget, origin
// top-left) and scene coordinates (origin at the image centre).
type Viewport struct {
	raster *annimage.Raster

	viewW, viewH float64
	center       geometry.Point2D
	zoom         float64
	scale        float64

	marginX, marginY float64
	onChange         func()
}

// New creates a viewport for a view of the given size.
func New(viewW, viewH float64) *Viewport {
	return &Viewport{
		viewW:   viewW,
		viewH:   viewH,
		zoom:    1,
		scale:   1,
		marginX: FitMarginX,
		marginY: FitMarginY,
	}
}

// SetMargins overrides the fit margins used by CenterImage.
func (v *Viewport) SetMargins(x, y float64) {
	if x > 0 {
		v.marginX = x
	}
	if y > 0 {
		v.marginY = y
	}
}

// OnChange registers a callback fired after every zoom or pan.
func (v *Viewport) OnChange(fn func()) {
	v.onChange = fn
}

// Init attaches the background raster and fits it to the view. A nil raster
// (load failure) leaves the viewport without an image; ImageSize then reports
// ok=false and raster-dependent tools decline to act.
func (v *Viewport) Init(r *annimage.Raster) {
	if r == nil || r.Image == nil {
		v.raster = nil
		return
	}
	v.raster = r
	v.CenterImage()
}

// Raster returns the background raster, or nil.
func (v *Viewport) Raster() *annimage.Raster {
	return v.raster
}

// ImageSize returns the raster size.
func (v *Viewport) ImageSize() (geometry.Size, bool) {
	if v.raster == nil {
		return geometry.Size{}, false
	}
	return v.raster.Size(), true
}

// Resize updates the view size.
func (v *Viewport) Resize(viewW, viewH float64) {
	v.viewW = viewW
	v.viewH = viewH
	v.changed()
}

// ViewSize returns the view size.
func (v *Viewport) ViewSize() (float64, float64) {
	return v.viewW, v.viewH
}

// CenterImage resets the pan to the image centre and fits the zoom.
func (v *Viewport) CenterImage() {
	size, ok := v.ImageSize()
	if !ok || size.Width == 0 || size.Height == 0 {
		return
	}
	zoom := math.Min(v.viewW/size.Width*v.marginX, v.viewH/size.Height*v.marginY)
	if zoom <= 0 {
		return
	}
	v.zoom = zoom
	v.scale = 1 / zoom
	v.center = geometry.Point2D{}
	v.changed()
}

// Zoom returns the current zoom factor (view pixels per scene unit).
func (v *Viewport) Zoom() float64 { return v.zoom }

// Scale returns the inverse of the zoom; tools multiply stroke widths and
// radii by it to keep them visually constant.
func (v *Viewport) Scale() float64 { return v.scale }

// Center returns the scene point shown at the middle of the view.
func (v *Viewport) Center() geometry.Point2D { return v.center }

// SetView sets center and zoom directly. Zoom outside (ZoomMin, ZoomMax) is
// ignored.
func (v *Viewport) SetView(center geometry.Point2D, zoom float64) {
	v.center = center
	if zoom > ZoomMin && zoom < ZoomMax {
		v.zoom = zoom
		v.scale = 1 / zoom
	}
	v.changed()
}

// OnWheel handles a wheel event: alt pans vertically, shift pans
// horizontally, otherwise the view zooms around the pointer.
func (v *Viewport) OnWheel(ev WheelEvent) {
	switch {
	case ev.Alt:
		v.center = v.center.Add(geometry.Point2D{Y: PanFactor * ev.DeltaY})
		v.changed()
	case ev.Shift:
		v.center = v.center.Add(geometry.Point2D{X: PanFactor * ev.DeltaY})
		v.changed()
	default:
		v.zoomAt(ev.Pointer, ev.DeltaY < 0)
	}
}

func (v *Viewport) zoomAt(pointer geometry.Point2D, in bool) {
	p := v.ViewToScene(pointer)
	oldZoom := v.zoom
	newZoom := oldZoom / ZoomFactor
	if in {
		newZoom = oldZoom * ZoomFactor
	}
	if !(newZoom < ZoomMax && newZoom > ZoomMin) {
		return
	}
	beta := oldZoom / newZoom
	pc := p.Sub(v.center)
	offset := p.Sub(pc.Scale(beta)).Sub(v.center)

	v.zoom = newZoom
	v.scale = 1 / newZoom
	v.center = v.center.Add(offset)
	v.changed()
}

// Pan shifts the view by a delta expressed in view pixels.
func (v *Viewport) Pan(dx, dy float64) {
	v.center = v.center.Sub(geometry.Point2D{X: dx * v.scale, Y: dy * v.scale})
	v.changed()
}

// sceneToView returns the 3x3 homogeneous matrix mapping scene to view.
func (v *Viewport) sceneToView() *mat.Dense {
	z := v.zoom
	return mat.NewDense(3, 3, []float64{
		z, 0, v.viewW/2 - z*v.center.X,
		0, z, v.viewH/2 - z*v.center.Y,
		0, 0, 1,
	})
}

func apply(m mat.Matrix, p geometry.Point2D) geometry.Point2D {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{p.X, p.Y, 1}))
	return geometry.Point2D{X: out.AtVec(0), Y: out.AtVec(1)}
}

// SceneToView converts a scene point to view coordinates.
func (v *Viewport) SceneToView(p geometry.Point2D) geometry.Point2D {
	return apply(v.sceneToView(), p)
}

// ViewToScene converts a view point to scene coordinates.
func (v *Viewport) ViewToScene(p geometry.Point2D) geometry.Point2D {
	var inv mat.Dense
	if err := inv.Inverse(v.sceneToView()); err != nil {
		return v.center
	}
	return apply(&inv, p)
}

// SceneToPixel converts a scene point to raster pixel coordinates, rounding
// to the nearest pixel. ok is false outside the raster or without one.
func (v *Viewport) SceneToPixel(p geometry.Point2D) (x, y int, ok bool) {
	size, has := v.ImageSize()
	if !has {
		return 0, 0, false
	}
	return SceneToPixel(p, size)
}

// SceneToPixel converts a scene point to pixel coordinates of an image of
// the given size.
func SceneToPixel(p geometry.Point2D, size geometry.Size) (x, y int, ok bool) {
	x = int(math.Round(size.Width/2 + p.X))
	y = int(math.Round(size.Height/2 + p.Y))
	ok = x >= 0 && y >= 0 && x < int(size.Width) && y < int(size.Height)
	return x, y, ok
}

// PixelToScene converts pixel coordinates to a scene point.
func PixelToScene(x, y float64, size geometry.Size) geometry.Point2D {
	return geometry.Point2D{X: x - size.Width/2, Y: y - size.Height/2}
}

// VisibleRect returns the scene rectangle currently shown in the view.
func (v *Viewport) VisibleRect() geometry.Rect {
	tl := v.ViewToScene(geometry.Point2D{})
	br := v.ViewToScene(geometry.Point2D{X: v.viewW, Y: v.viewH})
	return geometry.Rect{X: tl.X, Y: tl.Y, Width: br.X - tl.X, Height: br.Y - tl.Y}
}

func (v *Viewport) changed() {
	if v.onChange != nil {
		v.onChange()
	}
}
