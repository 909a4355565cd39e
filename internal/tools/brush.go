package tools

import "coco-annotator/pkg/geometry"

const (
	actionBrushStart  Action = "start"
	actionBrushPaint  Action = "paint"
	actionBrushCursor Action = "cursor"
	actionBrushFinish Action = "finish"
)

// BrushFSM is shared by the brush and the eraser.
var BrushFSM = FSM{
	{StateIdle, EventMove}:     {StateIdle, actionBrushCursor},
	{StateIdle, EventDown}:     {StatePainting, actionBrushStart},
	{StatePainting, EventDrag}: {StatePainting, actionBrushPaint},
	{StatePainting, EventMove}: {StatePainting, actionBrushPaint},
	{StatePainting, EventUp}:   {StateIdle, actionBrushFinish},
}

// BrushState is the working state of the brush, or of the eraser when Erase
// is set.
type BrushState struct {
	Settings  BrushSettings
	Erase     bool
	State     State
	Cursor    geometry.Point2D
	hasCursor bool
}

func (s *BrushState) Handle(env *Env, ev Event) error {
	if !env.hasActive() {
		return nil
	}
	return drive(BrushFSM, &s.State, ev.Type, func(a Action) (State, error) {
		s.Cursor, s.hasCursor = ev.Point, true
		switch a {
		case actionBrushStart:
			return "", s.apply(env, true)
		case actionBrushPaint:
			return "", s.apply(env, false)
		case actionBrushFinish:
			return "", env.Gateway.Simplify(SimplifyTolerance)
		}
		return "", nil
	})
}

// radius is the disc radius in scene units. It follows the viewport scale so
// the brush covers the same number of screen pixels at every zoom.
func (s *BrushState) radius(env *Env) float64 {
	return s.Settings.Radius * env.scale()
}

// apply stamps one disc. Only the first stamp of a stroke is undoable, so
// undo restores the shape from before the whole stroke.
func (s *BrushState) apply(env *Env, undoable bool) error {
	piece := geometry.NewCompoundShape(geometry.CircleRing(s.Cursor, s.radius(env)))
	if s.Erase {
		return env.Gateway.Subtract(piece, undoable)
	}
	return env.Gateway.Unite(piece, undoable)
}

// Grow changes the radius by delta, never going below BrushRadiusMin.
func (s *BrushState) Grow(delta float64) {
	s.Settings.Radius += delta
	if s.Settings.Radius < BrushRadiusMin {
		s.Settings.Radius = BrushRadiusMin
	}
}

func (s *BrushState) Reset() {
	s.State = StateIdle
	s.hasCursor = false
}

func (s *BrushState) Preview(env *Env) Preview {
	if !s.hasCursor {
		return Preview{}
	}
	return Preview{
		StrokeColor: s.Settings.Color,
		StrokeWidth: s.Settings.StrokeWidth * env.scale() * BrushScaleFactor,
		Circles:     []Circle{{Center: s.Cursor, Radius: s.radius(env)}},
	}
}
