package tools

import (
	"coco-annotator/internal/viewport"
	"coco-annotator/internal/wand"
	"coco-annotator/pkg/geometry"

	"go.uber.org/zap"
)

const actionWandSelect Action = "select"

// WandFSM: every press and every drag step selects around the pointer.
var WandFSM = FSM{
	{StateIdle, EventDown}:     {StatePainting, actionWandSelect},
	{StatePainting, EventDrag}: {StatePainting, actionWandSelect},
	{StatePainting, EventUp}:   {StateIdle, ""},
}

// WandState is the working state of the magic wand tool.
type WandState struct {
	Settings wand.Settings
	State    State
}

func (s *WandState) Handle(env *Env, ev Event) error {
	if !env.hasActive() || env.Raster == nil {
		return nil
	}
	return drive(WandFSM, &s.State, ev.Type, func(a Action) (State, error) {
		if a != actionWandSelect {
			return "", nil
		}
		x, y, ok := viewport.SceneToPixel(ev.Point, env.Raster.Size())
		if !ok {
			return "", nil
		}
		ring, ok, err := wand.Select(env.Raster, x, y, s.Settings)
		if err != nil || !ok {
			return "", err
		}
		env.logger().Debug("wand selection", zap.Int("x", x), zap.Int("y", y), zap.Int("points", len(ring)))

		piece := geometry.NewCompoundShape(ring)
		undoable := ev.Type == EventDown
		if ev.Shift {
			return "", env.Gateway.Subtract(piece, undoable)
		}
		return "", env.Gateway.Unite(piece, undoable)
	})
}

func (s *WandState) Reset() {
	s.State = StateIdle
}

func (s *WandState) Preview(*Env) Preview {
	return Preview{}
}
