package tools

import (
	"strconv"

	"coco-annotator/internal/scene"
	"coco-annotator/pkg/geometry"
)

const (
	actionSelectHover Action = "hover"
	actionSelectGrab  Action = "grab"
	actionSelectMove  Action = "move"
	actionSelectDrop  Action = "drop"
)

// SelectFSM: hovering shows the indicator and tooltip, pressing grabs a vertex
// or keypoint, dragging moves it and releasing commits.
var SelectFSM = FSM{
	{StateIdle, EventMove}:    {StateIdle, actionSelectHover},
	{StateIdle, EventDown}:    {StateEditing, actionSelectGrab},
	{StateEditing, EventDrag}: {StateEditing, actionSelectMove},
	{StateEditing, EventUp}:   {StateIdle, actionSelectDrop},
}

// SelectState is the working state of the select tool.
type SelectState struct {
	Settings SelectSettings
	State    State

	// Hover
	Indicator    *geometry.Point2D
	Hovered      *scene.Hit
	TooltipText  string
	TooltipPoint geometry.Point2D

	// Edit
	grab    *scene.Hit
	working geometry.CompoundShape
	isBBox  bool
	dirty   bool
}

func (s *SelectState) Handle(env *Env, ev Event) error {
	if !env.hasActive() {
		return nil
	}
	return drive(SelectFSM, &s.State, ev.Type, func(a Action) (State, error) {
		switch a {
		case actionSelectHover:
			s.hover(env, ev.Point)
		case actionSelectGrab:
			return s.press(env, ev)
		case actionSelectMove:
			s.drag(env, ev.Point)
		case actionSelectDrop:
			return "", s.release(env)
		}
		return "", nil
	})
}

func (s *SelectState) tolerance(env *Env) float64 {
	return s.Settings.Tolerance * env.scale()
}

func (s *SelectState) hover(env *Env, p geometry.Point2D) {
	s.Indicator = nil
	s.Hovered = nil
	s.TooltipText = ""

	hit, ok := env.Gateway.HitTest(p, s.tolerance(env))
	if !ok {
		return
	}
	if hit.Kind == scene.HitVertex || hit.Kind == scene.HitStroke {
		pt := hit.Point
		s.Indicator = &pt
	}
	s.Hovered = &hit
	s.TooltipPoint = p
	if !s.Settings.TooltipOn {
		return
	}
	if hit.Kind == scene.HitKeypoint {
		s.TooltipText = "Keypoint\nId: " + strconv.Itoa(hit.KeypointID)
		return
	}
	if ag, ok := env.Gateway.Annotation(hit.CategoryID, hit.AnnotationID); ok {
		s.TooltipText = ag.Tooltip()
	}
}

// press handles a button press. Shift removes the vertex or keypoint under
// the pointer; a plain press grabs it, or inserts a vertex on a stroke.
func (s *SelectState) press(env *Env, ev Event) (State, error) {
	hit, ok := env.Gateway.HitTest(ev.Point, s.tolerance(env))
	if !ok {
		return StateIdle, nil
	}
	env.Gateway.Select(hit.CategoryID, hit.AnnotationID)

	if hit.Kind == scene.HitFill {
		return StateIdle, nil
	}
	if hit.Kind == scene.HitKeypoint {
		if ev.Shift {
			if group, ok := env.Gateway.Keypoints(); ok && group.Remove(hit.KeypointID) {
				env.Gateway.KeypointsChanged()
			}
			return StateIdle, nil
		}
		s.grab = &hit
		return "", nil
	}

	shape, ok := env.Gateway.ActiveShape()
	if !ok || hit.Ring >= len(shape.Rings) {
		return StateIdle, nil
	}
	ring := shape.Rings[hit.Ring]

	if ev.Shift {
		if hit.Kind != scene.HitVertex {
			return StateIdle, nil
		}
		shape.Rings[hit.Ring] = ring.RemoveVertex(hit.Index)
		shape.IsBBox = false
		if len(shape.Rings[hit.Ring].Open()) < 3 {
			shape.Rings = append(shape.Rings[:hit.Ring], shape.Rings[hit.Ring+1:]...)
		}
		return StateIdle, env.Gateway.ReplaceShape(shape, true)
	}

	s.working = shape
	s.isBBox = shape.IsBBox
	s.dirty = false
	if hit.Kind == scene.HitStroke {
		s.working.Rings[hit.Ring] = ring.InsertVertex(hit.Index, hit.Point)
		hit.Index++
		hit.Kind = scene.HitVertex
		s.dirty = true
	}
	s.grab = &hit
	return "", nil
}

func (s *SelectState) drag(env *Env, p geometry.Point2D) {
	if s.grab == nil {
		return
	}
	pt := p
	s.Indicator = &pt

	if s.grab.Kind == scene.HitKeypoint {
		if group, ok := env.Gateway.Keypoints(); ok {
			group.Move(s.grab.KeypointID, p)
			s.dirty = true
		}
		return
	}
	ring := s.working.Rings[s.grab.Ring]
	if s.isBBox {
		s.working.Rings[s.grab.Ring] = ring.MoveRectCorner(s.grab.Index, p)
	} else {
		s.working.Rings[s.grab.Ring] = ring.MoveVertex(s.grab.Index, p)
	}
	s.dirty = true
}

func (s *SelectState) release(env *Env) error {
	grab, dirty, working := s.grab, s.dirty, s.working
	s.clearEdit()
	s.Hovered = nil
	s.TooltipText = ""
	if grab == nil || !dirty {
		return nil
	}
	if grab.Kind == scene.HitKeypoint {
		env.Gateway.KeypointsChanged()
		return nil
	}
	return env.Gateway.ReplaceShape(working, true)
}

// Editing returns the shape being edited, for drawing in place of the
// committed one.
func (s *SelectState) Editing() (geometry.CompoundShape, bool) {
	if s.grab == nil || s.grab.Kind == scene.HitKeypoint {
		return geometry.CompoundShape{}, false
	}
	return s.working, true
}

func (s *SelectState) clearEdit() {
	s.grab = nil
	s.working = geometry.CompoundShape{}
	s.isBBox = false
	s.dirty = false
}

func (s *SelectState) Reset() {
	s.State = StateIdle
	s.Indicator = nil
	s.Hovered = nil
	s.TooltipText = ""
	s.clearEdit()
}

func (s *SelectState) Preview(env *Env) Preview {
	p := Preview{StrokeColor: "black", StrokeWidth: 2 * env.scale()}
	if s.Indicator != nil {
		p.Circles = append(p.Circles, Circle{Center: *s.Indicator, Radius: 10 * env.scale()})
	}
	if s.Settings.TooltipOn && s.TooltipText != "" {
		p.Tooltip = s.TooltipText
		p.TooltipAt = s.TooltipPoint
	}
	if shape, ok := s.Editing(); ok && s.grab.Ring < len(shape.Rings) {
		p.Path = shape.Rings[s.grab.Ring]
		p.Closed = true
	}
	return p
}
