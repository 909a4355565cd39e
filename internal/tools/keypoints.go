package tools

import (
	"coco-annotator/pkg/geometry"
)

const (
	actionKeypointClick Action = "click"

	// keypointHitRadius is the pick radius around a keypoint, in view pixels.
	keypointHitRadius = 6
)

// KeypointsFSM: every click either adds a keypoint or links keypoints.
var KeypointsFSM = FSM{
	{StateIdle, EventDown}: {StateIdle, actionKeypointClick},
}

// KeypointsState is the working state of the keypoint tool. Clicking empty
// space adds a keypoint; clicking an existing one selects it, and clicking a
// second one toggles the edge between the two.
type KeypointsState struct {
	State    State
	Selected int
}

func (s *KeypointsState) Handle(env *Env, ev Event) error {
	if !env.hasActive() {
		return nil
	}
	return drive(KeypointsFSM, &s.State, ev.Type, func(Action) (State, error) {
		group, ok := env.Gateway.Keypoints()
		if !ok {
			return "", nil
		}
		if kp, hit := group.Nearest(ev.Point, keypointHitRadius*env.scale()); hit {
			switch {
			case ev.Shift:
				group.Remove(kp.PointID)
				s.Selected = 0
			case s.Selected == 0 || s.Selected == kp.PointID:
				s.Selected = kp.PointID
				return "", nil
			default:
				group.Link(s.Selected, kp.PointID)
				s.Selected = 0
			}
			env.Gateway.KeypointsChanged()
			return "", nil
		}
		group.Add(ev.Point, 0)
		s.Selected = 0
		env.Gateway.KeypointsChanged()
		return "", nil
	})
}

func (s *KeypointsState) Reset() {
	s.State = StateIdle
	s.Selected = 0
}

func (s *KeypointsState) Preview(env *Env) Preview {
	if s.Selected == 0 || env.Gateway == nil {
		return Preview{}
	}
	group, ok := env.Gateway.Keypoints()
	if !ok {
		return Preview{}
	}
	kp, ok := group.Find(s.Selected)
	if !ok {
		return Preview{}
	}
	return Preview{
		StrokeColor: "black",
		StrokeWidth: env.scale() * 2,
		Circles:     []Circle{{Center: geometry.Point2D{X: kp.X, Y: kp.Y}, Radius: keypointHitRadius * env.scale()}},
	}
}
