package tools

import (
	"context"
	"fmt"

	"coco-annotator/internal/viewport"
	"coco-annotator/pkg/geometry"

	"go.uber.org/zap"
)

const (
	actionDextrPoint Action = "point"

	// DextrPoints is the number of extreme points a request needs.
	DextrPoints = 4
)

// DextrFSM: each click records an extreme point.
var DextrFSM = FSM{
	{StateIdle, EventDown}: {StateIdle, actionDextrPoint},
}

// DextrState is the working state of the point-guided segmentation tool.
type DextrState struct {
	Settings DextrSettings
	State    State
	Points   []geometry.Point2D
}

func (s *DextrState) Handle(env *Env, ev Event) error {
	if !env.hasActive() || env.Raster == nil {
		return nil
	}
	return drive(DextrFSM, &s.State, ev.Type, func(Action) (State, error) {
		s.Points = append(s.Points, ev.Point)
		if len(s.Points) < DextrPoints {
			return "", nil
		}
		s.submit(env)
		return "", nil
	})
}

// submit sends the recorded points and clears them whatever the outcome.
func (s *DextrState) submit(env *Env) {
	size := env.Raster.Size()
	req := DextrRequest{
		Padding:   s.Settings.Padding,
		Threshold: s.Settings.Threshold,
	}
	for _, p := range s.Points {
		x, y, _ := viewport.SceneToPixel(p, size)
		req.Points = append(req.Points, [2]int{x, y})
	}
	s.Points = nil

	if env.Segmenter == nil {
		env.logger().Warn("dextr unavailable")
		return
	}
	categoryID, annotationID, _ := env.Gateway.Active()
	target := Target{ImageID: env.ImageID, CategoryID: categoryID, AnnotationID: annotationID}
	segmenter, gateway := env.Segmenter, env.Gateway
	env.runAsync(func(ctx context.Context) (func() error, error) {
		rings, err := segmenter.Dextr(ctx, target.ImageID, req)
		if err != nil {
			return nil, fmt.Errorf("dextr: %w", err)
		}
		piece := ShapeFromPixels(rings, size)
		if piece.IsEmpty() {
			env.logger().Info("dextr returned no segmentation", zap.Int("imageId", target.ImageID))
			return nil, nil
		}
		return func() error { return gateway.UniteInto(target, piece, true) }, nil
	})
}

// ShapeFromPixels converts flat pixel rings into a scene shape.
func ShapeFromPixels(rings [][]float64, size geometry.Size) geometry.CompoundShape {
	var shape geometry.CompoundShape
	for _, flat := range rings {
		ring := make(geometry.Ring, 0, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			ring = append(ring, viewport.PixelToScene(flat[i], flat[i+1], size))
		}
		if len(ring) >= 3 {
			shape.Rings = append(shape.Rings, ring)
		}
	}
	return shape
}

func (s *DextrState) Reset() {
	s.State = StateIdle
	s.Points = nil
}

func (s *DextrState) Preview(env *Env) Preview {
	if len(s.Points) == 0 {
		return Preview{}
	}
	p := Preview{StrokeColor: "black"}
	for _, pt := range s.Points {
		p.Circles = append(p.Circles, Circle{Center: pt, Radius: 5 * env.scale(), Fill: true})
	}
	return p
}
