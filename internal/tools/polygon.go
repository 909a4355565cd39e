package tools

import (
	"coco-annotator/internal/undo"
	"coco-annotator/pkg/geometry"
)

const (
	actionPolygonAdd   Action = "add"
	actionPolygonGuide Action = "guide"
	actionPolygonDrag  Action = "drag"
	actionPolygonStash Action = "stash"

	// Auto-complete needs this many points on a click, and this many while
	// dragging a freehand outline.
	polygonCompleteOnClick = 3
	polygonCompleteOnDrag  = 30
)

// PolygonFSM: clicks add vertices, drags add freehand points, releases record
// an undoable step. Closing returns to idle from inside the actions.
var PolygonFSM = FSM{
	{StateIdle, EventDown}:     {StateBuilding, actionPolygonAdd},
	{StateBuilding, EventDown}: {StateBuilding, actionPolygonAdd},
	{StateBuilding, EventMove}: {StateBuilding, actionPolygonGuide},
	{StateBuilding, EventDrag}: {StateBuilding, actionPolygonDrag},
	{StateBuilding, EventUp}:   {StateBuilding, actionPolygonStash},
}

// PolygonState is the working state of the polygon tool. With guidance on,
// the last point of Points floats under the pointer.
type PolygonState struct {
	Settings    PolygonSettings
	State       State
	Points      geometry.Ring
	StrokeColor string
	sampleAt    *geometry.Point2D
}

func (s *PolygonState) Handle(env *Env, ev Event) error {
	if !env.hasActive() {
		return nil
	}
	return drive(PolygonFSM, &s.State, ev.Type, func(a Action) (State, error) {
		switch a {
		case actionPolygonAdd:
			created := len(s.Points) == 0
			s.Points = append(s.Points, ev.Point)
			if closed, err := s.autoComplete(env, polygonCompleteOnClick); closed {
				return StateIdle, err
			}
			if s.Settings.GuidanceOn && created {
				s.Points = append(s.Points, ev.Point)
			}
			s.sample(env, ev.Point)
		case actionPolygonGuide:
			if len(s.Points) == 0 {
				return "", nil
			}
			s.sample(env, ev.Point)
			if s.Settings.GuidanceOn {
				s.Points[len(s.Points)-1] = ev.Point
			}
		case actionPolygonDrag:
			if n := len(s.Points); n > 0 && s.Points[n-1].Distance(ev.Point) < s.Settings.MinDistance {
				return "", nil
			}
			s.sample(env, ev.Point)
			s.Points = append(s.Points, ev.Point)
			if closed, err := s.autoComplete(env, polygonCompleteOnDrag); closed {
				return StateIdle, err
			}
		case actionPolygonStash:
			env.Gateway.Stash(undo.PolygonAddPoint, nil)
		}
		return "", nil
	})
}

func (s *PolygonState) autoComplete(env *Env, minPoints int) (bool, error) {
	if len(s.Points) < minPoints {
		return false, nil
	}
	first, last := s.Points[0], s.Points[len(s.Points)-1]
	if !last.IsClose(first, s.Settings.CompleteDistance) {
		return false, nil
	}
	return true, s.Close(env)
}

// Close drops the trailing point, closes the outline and unites it with the
// active annotation. Outlines with fewer than three points are discarded.
func (s *PolygonState) Close(env *Env) error {
	if len(s.Points) == 0 {
		return nil
	}
	ring := s.Points[:len(s.Points)-1].Clone()
	s.Reset()
	if len(ring) < 3 || !env.hasActive() {
		return nil
	}
	return env.Gateway.Unite(geometry.NewCompoundShape(ring), true)
}

// UndoLastPoint removes the newest vertex.
func (s *PolygonState) UndoLastPoint() {
	if n := len(s.Points); n > 0 {
		s.Points = s.Points[:n-1]
	}
	if len(s.Points) == 0 {
		s.State = StateIdle
	}
}

// sample picks a stroke colour contrasting with the image around p.
func (s *PolygonState) sample(env *Env, p geometry.Point2D) {
	if !s.Settings.ColorAuto || env.Raster == nil {
		return
	}
	at := p
	s.sampleAt = &at
	s.StrokeColor = contrastColor(env, p, s.Settings.ColorRadius)
}

func (s *PolygonState) Reset() {
	s.State = StateIdle
	s.Points = nil
	s.sampleAt = nil
	s.StrokeColor = ""
}

func (s *PolygonState) Preview(env *Env) Preview {
	if len(s.Points) == 0 {
		return Preview{}
	}
	color := s.Settings.StrokeColor
	if s.StrokeColor != "" {
		color = s.StrokeColor
	}
	p := Preview{
		Path:        s.Points.Clone(),
		StrokeColor: color,
		StrokeWidth: s.Settings.StrokeWidth * env.scale() * PolygonScaleFactor,
	}
	if s.sampleAt != nil {
		p.Circles = append(p.Circles, Circle{Center: *s.sampleAt, Radius: s.Settings.ColorRadius})
	}
	return p
}
