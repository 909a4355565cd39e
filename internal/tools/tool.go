// Package tools implements the drawing tools of the annotation canvas. Each
// tool is a state struct driven by pointer events through a transition
// table; geometry is committed through a Gateway so the tools never touch the
// scene graph directly.
package tools

import (
	"context"
	"errors"

	annimage "coco-annotator/internal/image"
	"coco-annotator/internal/scene"
	"coco-annotator/internal/undo"
	"coco-annotator/pkg/geometry"

	"go.uber.org/zap"
)

// Tool names a drawing tool. The empty value means no tool.
type Tool string

const (
	None      Tool = ""
	Select    Tool = "SELECT"
	BBox      Tool = "BBOX"
	Polygon   Tool = "POLYGON"
	Wand      Tool = "WAND"
	Brush     Tool = "BRUSH"
	Eraser    Tool = "ERASER"
	Keypoints Tool = "KEYPOINTS"
	Dextr     Tool = "DEXTR"
)

// All lists the tools in toolbar order.
var All = []Tool{Select, BBox, Polygon, Wand, Brush, Eraser, Keypoints, Dextr}

// Valid reports whether t names a known tool.
func (t Tool) Valid() bool {
	for _, x := range All {
		if x == t {
			return true
		}
	}
	return false
}

// Cursor is the pointer shape shown over the canvas.
type Cursor string

const (
	CursorPointer   Cursor = "pointer"
	CursorCopy      Cursor = "copy"
	CursorCrosshair Cursor = "crosshair"
	CursorCell      Cursor = "cell"
	CursorNone      Cursor = "none"
	CursorDefault   Cursor = "default"
)

// CursorFor returns the cursor of a tool.
func CursorFor(t Tool) Cursor {
	switch t {
	case Select:
		return CursorPointer
	case BBox, Polygon:
		return CursorCopy
	case Wand, Dextr:
		return CursorCrosshair
	case Keypoints:
		return CursorCell
	case Brush, Eraser:
		return CursorNone
	default:
		return CursorDefault
	}
}

// EventType is a pointer event kind.
type EventType int

const (
	EventDown EventType = iota
	EventMove
	EventDrag
	EventUp
)

func (e EventType) String() string {
	switch e {
	case EventDown:
		return "down"
	case EventMove:
		return "move"
	case EventDrag:
		return "drag"
	case EventUp:
		return "up"
	default:
		return "unknown"
	}
}

// Event is a pointer event in scene coordinates.
type Event struct {
	Type  EventType
	Point geometry.Point2D
	Shift bool
}

// ErrNoAnnotation is returned by tools asked to act without an active
// annotation.
var ErrNoAnnotation = errors.New("no active annotation")

// Gateway is the single path through which tools read and change geometry.
// Shape operations apply to the active annotation.
type Gateway interface {
	Active() (categoryID, annotationID int, ok bool)
	ActiveShape() (geometry.CompoundShape, bool)
	Unite(piece geometry.CompoundShape, undoable bool) error
	Subtract(piece geometry.CompoundShape, undoable bool) error
	UniteBBox(ring geometry.Ring, undoable bool) error
	// UniteInto merges piece into target once a background request returns.
	// The piece is dropped when target is no longer the active annotation
	// of the loaded image.
	UniteInto(target Target, piece geometry.CompoundShape, undoable bool) error
	ReplaceShape(shape geometry.CompoundShape, undoable bool) error
	Simplify(tolerance float64) error

	// Keypoints returns the keypoint group of the active annotation.
	// Callers report edits with KeypointsChanged.
	Keypoints() (*scene.Keypoints, bool)
	KeypointsChanged()

	Stash(action undo.ToolAction, payload any)
	HitTest(p geometry.Point2D, tolerance float64) (scene.Hit, bool)
	Annotation(categoryID, annotationID int) (*scene.AnnotationGroup, bool)
	Select(categoryID, annotationID int)
}

// Target names the annotation a background request was issued for.
type Target struct {
	ImageID      int
	CategoryID   int
	AnnotationID int
}

// DextrRequest is the body of a point-guided segmentation request. Points
// are pixel coordinates.
type DextrRequest struct {
	Points    [][2]int `json:"points"`
	Padding   int      `json:"padding"`
	Threshold int      `json:"threshold"`
}

// Segmenter runs point-guided segmentation. The result is a list of flat
// pixel rings (x0, y0, x1, y1, ...).
type Segmenter interface {
	Dextr(ctx context.Context, imageID int, req DextrRequest) ([][]float64, error)
}

// AsyncFunc runs work off the event loop. When work succeeds the returned
// apply func runs back on the event loop; errors are reported by the
// implementation.
type AsyncFunc func(work func(ctx context.Context) (apply func() error, err error))

// Env is what a tool sees of the canvas while handling an event.
type Env struct {
	Gateway   Gateway
	Scale     float64
	Raster    *annimage.Raster
	ImageID   int
	Segmenter Segmenter
	Async     AsyncFunc
	Logger    *zap.Logger
}

func (e *Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Env) hasActive() bool {
	if e.Gateway == nil {
		return false
	}
	_, _, ok := e.Gateway.Active()
	return ok
}

func (e *Env) scale() float64 {
	if e.Scale <= 0 {
		return 1
	}
	return e.Scale
}

// runAsync falls back to running work inline when no runner is set.
func (e *Env) runAsync(work func(ctx context.Context) (func() error, error)) {
	if e.Async != nil {
		e.Async(work)
		return
	}
	apply, err := work(context.Background())
	if err != nil {
		e.logger().Warn("tool request failed", zap.Error(err))
		return
	}
	if apply != nil {
		if err := apply(); err != nil {
			e.logger().Warn("tool commit failed", zap.Error(err))
		}
	}
}

// Circle is a preview disc or ring outline.
type Circle struct {
	Center geometry.Point2D
	Radius float64
	Fill   bool
}

// Preview describes the transient overlay a tool wants drawn.
type Preview struct {
	Path        geometry.Ring
	Closed      bool
	StrokeColor string
	StrokeWidth float64
	Circles     []Circle
	Tooltip     string
	TooltipAt   geometry.Point2D
}

// Handler is implemented by every tool state.
type Handler interface {
	Handle(env *Env, ev Event) error
	Reset()
	Preview(env *Env) Preview
}
