package session

import (
	"coco-annotator/internal/scene"
	"coco-annotator/internal/tools"
	"coco-annotator/internal/undo"
	"coco-annotator/pkg/geometry"

	"go.uber.org/zap"
)

var _ tools.Gateway = (*Session)(nil)

// Active returns the selected annotation.
func (s *Session) Active() (categoryID, annotationID int, ok bool) {
	if s.annotationID == 0 {
		return s.categoryID, 0, false
	}
	return s.categoryID, s.annotationID, true
}

// ActiveShape returns a copy of the selected annotation's geometry.
func (s *Session) ActiveShape() (geometry.CompoundShape, bool) {
	ag, ok := s.graph.FindAnnotationGroup(s.categoryID, s.annotationID)
	if !ok {
		return geometry.CompoundShape{}, false
	}
	return ag.Shape.CompoundShape.Clone(), true
}

// committed is called after every successful edit of the active annotation.
func (s *Session) committed(undoable bool) {
	if undoable {
		s.metrics.Edit(string(s.activeTool))
	}
	s.SetModified(true)
}

func (s *Session) Unite(piece geometry.CompoundShape, undoable bool) error {
	if _, err := s.graph.Unite(s.categoryID, s.annotationID, piece, undoable); err != nil {
		return err
	}
	s.committed(undoable)
	return nil
}

func (s *Session) UniteInto(target tools.Target, piece geometry.CompoundShape, undoable bool) error {
	if target.ImageID != s.imageID || target.CategoryID != s.categoryID || target.AnnotationID != s.annotationID {
		s.logger.Debug("stale tool result dropped",
			zap.Int("imageId", target.ImageID),
			zap.Int("annotationId", target.AnnotationID))
		return nil
	}
	return s.Unite(piece, undoable)
}

func (s *Session) Subtract(piece geometry.CompoundShape, undoable bool) error {
	if _, err := s.graph.Subtract(s.categoryID, s.annotationID, piece, undoable); err != nil {
		return err
	}
	s.committed(undoable)
	return nil
}

func (s *Session) UniteBBox(ring geometry.Ring, undoable bool) error {
	if _, err := s.graph.UniteBBox(s.categoryID, s.annotationID, ring, undoable); err != nil {
		return err
	}
	s.committed(undoable)
	return nil
}

func (s *Session) ReplaceShape(shape geometry.CompoundShape, undoable bool) error {
	if _, err := s.graph.ReplaceShape(s.categoryID, s.annotationID, shape, undoable); err != nil {
		return err
	}
	s.committed(undoable)
	return nil
}

// Simplify cleans up the active shape without recording an undo step.
func (s *Session) Simplify(tolerance float64) error {
	_, err := s.graph.Simplify(s.categoryID, s.annotationID, tolerance, false)
	return err
}

func (s *Session) Keypoints() (*scene.Keypoints, bool) {
	ag, ok := s.graph.FindAnnotationGroup(s.categoryID, s.annotationID)
	if !ok {
		return nil, false
	}
	return ag.Keypoints, true
}

func (s *Session) KeypointsChanged() {
	s.metrics.Edit(string(s.activeTool))
	s.SetModified(true)
}

// Stash records a tool event in the undo log.
func (s *Session) Stash(action undo.ToolAction, payload any) {
	s.stash.Add(undo.NewToolItem(action, payload))
}

func (s *Session) HitTest(p geometry.Point2D, tolerance float64) (scene.Hit, bool) {
	return s.graph.HitTest(p, tolerance)
}

func (s *Session) Annotation(categoryID, annotationID int) (*scene.AnnotationGroup, bool) {
	return s.graph.FindAnnotationGroup(categoryID, annotationID)
}

// Select selects an annotation picked on the canvas. Errors are logged; the
// canvas only offers annotations that exist.
func (s *Session) Select(categoryID, annotationID int) {
	if categoryID == s.categoryID && annotationID == s.annotationID {
		return
	}
	if err := s.SelectAnnotation(categoryID, annotationID); err != nil {
		s.logger.Warn("select from canvas", zap.Error(err))
	}
}

// ActiveTool returns the active tool.
func (s *Session) ActiveTool() tools.Tool { return s.activeTool }

// Cursor returns the cursor of the active tool.
func (s *Session) Cursor() tools.Cursor { return tools.CursorFor(s.activeTool) }

// ToggleTool activates t, or deactivates it when already active. Without a
// selected annotation no tool can be active and the call leaves none.
func (s *Session) ToggleTool(t tools.Tool) tools.Tool {
	next := t
	if t == s.activeTool || !t.Valid() {
		next = tools.None
	}
	if _, _, ok := s.Active(); !ok {
		next = tools.None
	}
	s.setTool(next)
	return next
}

func (s *Session) setTool(t tools.Tool) {
	if h := s.tools.Handler(s.activeTool); h != nil {
		h.Reset()
	}
	changed := t != s.activeTool
	s.activeTool = t
	if changed {
		s.logger.Debug("tool changed", zap.String("tool", string(t)))
		s.Emit(EventToolChanged, t)
	}
}

// HandlePointer forwards a pointer event to the active tool.
func (s *Session) HandlePointer(ev tools.Event) error {
	h := s.tools.Handler(s.activeTool)
	if h == nil {
		return nil
	}
	return h.Handle(s.env(), ev)
}

// Preview returns the active tool's overlay.
func (s *Session) Preview() tools.Preview {
	h := s.tools.Handler(s.activeTool)
	if h == nil {
		return tools.Preview{}
	}
	return h.Preview(s.env())
}

// EditingShape returns the shape the select tool is dragging, drawn in place
// of the committed geometry of the active annotation.
func (s *Session) EditingShape() (geometry.CompoundShape, bool) {
	if s.activeTool != tools.Select {
		return geometry.CompoundShape{}, false
	}
	return s.tools.Select.Editing()
}

// Undo reverts the newest stash item. An empty stash is a no-op.
func (s *Session) Undo() bool {
	item, ok := s.stash.Pop()
	if !ok {
		return false
	}
	switch item.Kind {
	case undo.ShapeChanged:
		sc := item.Shape
		if err := s.graph.Restore(sc.CategoryID, sc.AnnotationID, sc.Before); err != nil {
			s.logger.Warn("undo target gone", zap.Int("annotationId", sc.AnnotationID), zap.Error(err))
			return true
		}
		s.SetModified(true)
	case undo.ToolEvent:
		if item.Tool.Action == undo.PolygonAddPoint {
			s.tools.Polygon.UndoLastPoint()
		}
	}
	return true
}
