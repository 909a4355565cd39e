package tools

import "coco-annotator/pkg/geometry"

const (
	actionBBoxStart  Action = "start"
	actionBBoxResize Action = "resize"
	actionBBoxCommit Action = "commit"
)

// BBoxFSM: the first click anchors a corner, moves resize, the second click
// commits.
var BBoxFSM = FSM{
	{StateIdle, EventDown}:     {StateDragging, actionBBoxStart},
	{StateDragging, EventMove}: {StateDragging, actionBBoxResize},
	{StateDragging, EventDown}: {StateIdle, actionBBoxCommit},
}

// BBoxState is the working state of the bounding box tool.
type BBoxState struct {
	Settings BBoxSettings
	State    State
	P1, P2   geometry.Point2D
	hasP2    bool
}

// Ring returns the rectangle currently spanned, or nil before the second
// corner is known.
func (s *BBoxState) Ring() geometry.Ring {
	if s.State != StateDragging || !s.hasP2 {
		return nil
	}
	return geometry.BBoxRing(s.P1, s.P2)
}

func (s *BBoxState) Handle(env *Env, ev Event) error {
	if !env.hasActive() {
		return nil
	}
	return drive(BBoxFSM, &s.State, ev.Type, func(a Action) (State, error) {
		switch a {
		case actionBBoxStart:
			s.P1 = ev.Point
			s.hasP2 = false
		case actionBBoxResize:
			s.P2 = ev.Point
			s.hasP2 = true
		case actionBBoxCommit:
			s.P2 = ev.Point
			ring := geometry.BBoxRing(s.P1, s.P2)
			s.Reset()
			return StateIdle, env.Gateway.UniteBBox(ring, true)
		}
		return "", nil
	})
}

func (s *BBoxState) Reset() {
	s.State = StateIdle
	s.P1, s.P2 = geometry.Point2D{}, geometry.Point2D{}
	s.hasP2 = false
}

func (s *BBoxState) Preview(env *Env) Preview {
	if s.State != StateDragging {
		return Preview{}
	}
	p := Preview{
		StrokeColor: s.Settings.Color,
		StrokeWidth: env.scale() * BBoxScaleFactor,
		Closed:      true,
	}
	if r := s.Ring(); r != nil {
		p.Path = r
	} else {
		p.Path = geometry.Ring{s.P1}
	}
	return p
}
