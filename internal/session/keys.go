package session

import (
	"fmt"

	"coco-annotator/internal/tools"

	"go.uber.org/zap"
)

var toolActions = map[Action]tools.Tool{
	ActionToolSelect:    tools.Select,
	ActionToolBBox:      tools.BBox,
	ActionToolPolygon:   tools.Polygon,
	ActionToolWand:      tools.Wand,
	ActionToolBrush:     tools.Brush,
	ActionToolEraser:    tools.Eraser,
	ActionToolKeypoints: tools.Keypoints,
	ActionToolDextr:     tools.Dextr,
}

// HandleKey runs the action bound to key. It reports whether the key was
// bound; keys are ignored while a dialog is open.
func (s *Session) HandleKey(key string) (bool, error) {
	if s.modal != ModalNone {
		return false, nil
	}
	action, ok := s.shortcuts.Lookup(key)
	if !ok {
		return false, nil
	}
	s.logger.Debug("shortcut", zap.String("key", key), zap.String("action", string(action)))
	return true, s.Do(action)
}

// Do runs a session action.
func (s *Session) Do(action Action) error {
	if t, ok := toolActions[action]; ok {
		s.ToggleTool(t)
		return nil
	}
	switch action {
	case ActionListMoveUp:
		return s.moveSelection(-1)
	case ActionListMoveDown:
		return s.moveSelection(1)
	case ActionListExpand:
		return s.expandActive(true)
	case ActionListCollapse:
		return s.expandActive(false)
	case ActionAnnotationAdd:
		s.CreateAnnotation()
		return nil
	case ActionAnnotationRemove:
		if s.annotationID == 0 {
			return nil
		}
		s.DeleteAnnotation(s.categoryID, s.annotationID)
		return nil
	case ActionUndo:
		s.Undo()
		return nil
	case ActionSave:
		s.SaveAsync()
		return nil
	case ActionImageCenter:
		s.view.CenterImage()
		return nil
	case ActionImageNext:
		return s.step(s.image.Next)
	case ActionImagePrev:
		return s.step(s.image.Previous)
	case ActionBrushSizeUp:
		s.growBrush(tools.BrushRadiusStep)
		return nil
	case ActionBrushSizeDown:
		s.growBrush(-tools.BrushRadiusStep)
		return nil
	case ActionPolygonClose:
		if s.activeTool != tools.Polygon {
			return nil
		}
		return s.tools.Polygon.Close(s.env())
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (s *Session) growBrush(delta float64) {
	switch s.activeTool {
	case tools.Brush:
		s.tools.Brush.Grow(delta)
	case tools.Eraser:
		s.tools.Eraser.Grow(delta)
	default:
		return
	}
	s.Emit(EventToolChanged, s.activeTool)
}

func (s *Session) step(target *int) error {
	if target == nil {
		return nil
	}
	s.LoadAsync(*target)
	return nil
}

// SelectAnnotation makes an annotation active and its category current.
func (s *Session) SelectAnnotation(categoryID, annotationID int) error {
	if err := s.graph.SetActive(categoryID, annotationID); err != nil {
		return err
	}
	if s.annotationID != annotationID {
		s.resetTools()
	}
	s.categoryID = categoryID
	s.annotationID = annotationID
	s.Emit(EventSelectionChanged, Selection{CategoryID: categoryID, AnnotationID: annotationID})
	return nil
}

// SelectCategory makes a category current without an annotation. The active
// tool is dropped since tools need an annotation.
func (s *Session) SelectCategory(categoryID int) error {
	if _, ok := s.graph.FindCategoryGroup(categoryID); !ok {
		return fmt.Errorf("select category %d: %w", categoryID, ErrNoCategory)
	}
	s.graph.ClearActive()
	s.categoryID = categoryID
	s.annotationID = 0
	s.setTool(tools.None)
	s.Emit(EventSelectionChanged, Selection{CategoryID: categoryID})
	return nil
}

// ClearSelection deselects everything.
func (s *Session) ClearSelection() {
	s.graph.ClearActive()
	s.categoryID, s.annotationID = 0, 0
	s.setTool(tools.None)
	s.Emit(EventSelectionChanged, Selection{})
}

// Selection is the current category and annotation. AnnotationID is zero when
// only a category is selected.
type Selection struct {
	CategoryID   int
	AnnotationID int
}

// Selection returns the current selection.
func (s *Session) Selection() Selection {
	return Selection{CategoryID: s.categoryID, AnnotationID: s.annotationID}
}

// resetTools discards the working state of every tool; in-progress paths
// belong to the annotation they were started on.
func (s *Session) resetTools() {
	s.tools.ResetAll()
}

// listRows flattens the visible list: every filtered category followed by
// its annotations when expanded.
func (s *Session) listRows() []Selection {
	var rows []Selection
	for _, c := range s.FilteredCategories() {
		rows = append(rows, Selection{CategoryID: c.ID})
		if !c.Expanded {
			continue
		}
		for _, a := range c.Annotations {
			rows = append(rows, Selection{CategoryID: c.ID, AnnotationID: a.ID})
		}
	}
	return rows
}

func (s *Session) moveSelection(delta int) error {
	rows := s.listRows()
	if len(rows) == 0 {
		return nil
	}
	cur := s.Selection()
	idx := -1
	for i, r := range rows {
		if r == cur {
			idx = i
			break
		}
	}
	next := idx + delta
	if idx < 0 {
		next = 0
	}
	if next < 0 || next >= len(rows) {
		return nil
	}
	r := rows[next]
	if r.AnnotationID == 0 {
		return s.SelectCategory(r.CategoryID)
	}
	return s.SelectAnnotation(r.CategoryID, r.AnnotationID)
}

func (s *Session) expandActive(expanded bool) error {
	if s.categoryID == 0 {
		return nil
	}
	if err := s.UpdateInfo(InfoUpdate{Kind: InfoCategoryExpanded, CategoryID: s.categoryID, Expanded: expanded}); err != nil {
		return err
	}
	if !expanded && s.annotationID != 0 {
		return s.SelectCategory(s.categoryID)
	}
	return nil
}

