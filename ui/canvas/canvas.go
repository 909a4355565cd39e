// Package canvas provides the annotation canvas widget: it renders the scene
// with the overlay renderer and feeds pointer, wheel and drag input to the
// session.
package canvas

import (
	"image"

	"coco-annotator/internal/render"
	"coco-annotator/internal/session"
	"coco-annotator/internal/tools"
	"coco-annotator/internal/viewport"
	"coco-annotator/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

// AnnotationCanvas displays the image with its annotations and drives the
// active tool.
type AnnotationCanvas struct {
	widget.BaseWidget

	session  *session.Session
	loop     *Loop
	renderer *render.Renderer
	logger   *zap.Logger

	raster  *fynecanvas.Raster
	tooltip *widget.Label
	content *fyne.Container

	// Interaction state
	leftDown bool
	panning  bool
	lastPan  fyne.Position

	onPointer func(scene geometry.Point2D)
}

// NewAnnotationCanvas creates a canvas bound to a session.
func NewAnnotationCanvas(s *session.Session, loop *Loop, logger *zap.Logger) *AnnotationCanvas {
	if logger == nil {
		logger = zap.NewNop()
	}
	ac := &AnnotationCanvas{
		session:  s,
		loop:     loop,
		renderer: render.New(),
		logger:   logger,
	}
	ac.renderer.Logger = logger
	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.raster.ScaleMode = fynecanvas.ImageScalePixels
	ac.raster.SetMinSize(fyne.NewSize(400, 300))

	ac.tooltip = widget.NewLabel("")
	ac.tooltip.Hide()
	ac.content = container.NewStack(ac.raster, container.NewWithoutLayout(ac.tooltip))

	refresh := func(interface{}) { ac.Refresh() }
	s.On(session.EventViewChanged, refresh)
	s.On(session.EventLoaded, refresh)
	s.On(session.EventModified, refresh)
	s.On(session.EventSelectionChanged, refresh)
	s.On(session.EventToolChanged, refresh)
	s.On(session.EventInfoChanged, refresh)

	ac.ExtendBaseWidget(ac)
	return ac
}

// OnPointer registers a callback receiving the scene position under the
// pointer, e.g. for a status bar.
func (ac *AnnotationCanvas) OnPointer(fn func(scene geometry.Point2D)) {
	ac.onPointer = fn
}

// CreateRenderer implements fyne.Widget.
func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ac.content)
}

// Resize keeps the viewport in step with the widget size.
func (ac *AnnotationCanvas) Resize(size fyne.Size) {
	ac.BaseWidget.Resize(size)
	ac.loop.Do(func() {
		w, h := ac.session.Viewport().ViewSize()
		if float64(size.Width) == w && float64(size.Height) == h {
			return
		}
		ac.session.Viewport().Resize(float64(size.Width), float64(size.Height))
		if w == 0 || h == 0 {
			ac.session.Viewport().CenterImage()
		}
	})
}

// draw is the raster generator. Width and height are device pixels.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	var img image.Image
	ac.loop.Do(func() {
		ac.renderer.Style = currentStyle()
		img = ac.renderer.Frame(ac.session, w, h)
	})
	return img
}

func (ac *AnnotationCanvas) toScene(pos fyne.Position) geometry.Point2D {
	return ac.session.Viewport().ViewToScene(geometry.Point2D{X: float64(pos.X), Y: float64(pos.Y)})
}

func (ac *AnnotationCanvas) pointer(t tools.EventType, pos fyne.Position, shift bool) {
	ac.loop.Do(func() {
		p := ac.toScene(pos)
		if err := ac.session.HandlePointer(tools.Event{Type: t, Point: p, Shift: shift}); err != nil {
			ac.logger.Warn("tool event failed", zap.Stringer("event", t), zap.Error(err))
		}
		if ac.onPointer != nil {
			ac.onPointer(p)
		}
		ac.updateTooltip()
	})
	ac.Refresh()
}

// updateTooltip positions the select tool's hover text next to the pointer.
func (ac *AnnotationCanvas) updateTooltip() {
	pv := ac.session.Preview()
	if pv.Tooltip == "" {
		ac.tooltip.Hide()
		return
	}
	at := ac.session.Viewport().SceneToView(pv.TooltipAt)
	ac.tooltip.SetText(pv.Tooltip)
	ac.tooltip.Move(fyne.NewPos(float32(at.X)+12, float32(at.Y)+12))
	ac.tooltip.Resize(ac.tooltip.MinSize())
	ac.tooltip.Show()
}

func shiftHeld(m fyne.KeyModifier) bool {
	return m&fyne.KeyModifierShift != 0
}

// MouseDown implements desktop.Mouseable.
func (ac *AnnotationCanvas) MouseDown(ev *desktop.MouseEvent) {
	switch ev.Button {
	case desktop.MouseButtonPrimary:
		ac.leftDown = true
		ac.pointer(tools.EventDown, ev.Position, shiftHeld(ev.Modifier))
	case desktop.MouseButtonSecondary, desktop.MouseButtonTertiary:
		ac.panning = true
		ac.lastPan = ev.Position
	}
}

// MouseUp implements desktop.Mouseable.
func (ac *AnnotationCanvas) MouseUp(ev *desktop.MouseEvent) {
	switch ev.Button {
	case desktop.MouseButtonPrimary:
		if ac.leftDown {
			ac.leftDown = false
			ac.pointer(tools.EventUp, ev.Position, shiftHeld(ev.Modifier))
		}
	default:
		ac.panning = false
	}
}

// Dragged implements fyne.Draggable.
func (ac *AnnotationCanvas) Dragged(ev *fyne.DragEvent) {
	if ac.panning {
		dx, dy := ev.Position.X-ac.lastPan.X, ev.Position.Y-ac.lastPan.Y
		ac.lastPan = ev.Position
		ac.loop.Do(func() { ac.session.Viewport().Pan(float64(dx), float64(dy)) })
		return
	}
	if ac.leftDown {
		ac.pointer(tools.EventDrag, ev.Position, false)
	}
}

// DragEnd implements fyne.Draggable.
func (ac *AnnotationCanvas) DragEnd() {
	ac.panning = false
}

// MouseIn implements desktop.Hoverable.
func (ac *AnnotationCanvas) MouseIn(ev *desktop.MouseEvent) {}

// MouseMoved implements desktop.Hoverable.
func (ac *AnnotationCanvas) MouseMoved(ev *desktop.MouseEvent) {
	if ac.leftDown {
		return
	}
	ac.pointer(tools.EventMove, ev.Position, shiftHeld(ev.Modifier))
}

// MouseOut implements desktop.Hoverable.
func (ac *AnnotationCanvas) MouseOut() {
	ac.tooltip.Hide()
}

// Scrolled implements fyne.Scrollable: zoom around the pointer.
func (ac *AnnotationCanvas) Scrolled(ev *fyne.ScrollEvent) {
	ac.loop.Do(func() {
		ac.session.Viewport().OnWheel(viewport.WheelEvent{
			DeltaX:  float64(ev.Scrolled.DX),
			DeltaY:  -float64(ev.Scrolled.DY),
			Pointer: geometry.Point2D{X: float64(ev.Position.X), Y: float64(ev.Position.Y)},
		})
	})
}

// Cursor implements desktop.Cursorable.
func (ac *AnnotationCanvas) Cursor() desktop.Cursor {
	var c tools.Cursor
	ac.loop.Do(func() { c = ac.session.Cursor() })
	switch c {
	case tools.CursorPointer:
		return desktop.PointerCursor
	case tools.CursorCrosshair, tools.CursorCopy, tools.CursorCell:
		return desktop.CrosshairCursor
	case tools.CursorNone:
		return desktop.HiddenCursor
	default:
		return desktop.DefaultCursor
	}
}

var (
	_ desktop.Mouseable  = (*AnnotationCanvas)(nil)
	_ desktop.Hoverable  = (*AnnotationCanvas)(nil)
	_ desktop.Cursorable = (*AnnotationCanvas)(nil)
	_ fyne.Draggable     = (*AnnotationCanvas)(nil)
	_ fyne.Scrollable    = (*AnnotationCanvas)(nil)
)
