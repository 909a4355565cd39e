package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Action names a keyboard-triggered session action.
type Action string

const (
	ActionListMoveUp       Action = "list_move_up"
	ActionListMoveDown     Action = "list_move_down"
	ActionListExpand       Action = "list_expand"
	ActionListCollapse     Action = "list_collapse"
	ActionAnnotationAdd    Action = "annotation_add"
	ActionAnnotationRemove Action = "annotation_remove"
	ActionUndo             Action = "undo"
	ActionSave             Action = "save"
	ActionImageCenter      Action = "image_center"
	ActionImageNext        Action = "image_next"
	ActionImagePrev        Action = "image_prev"
	ActionToolSelect       Action = "tool_select"
	ActionToolBBox         Action = "tool_bbox"
	ActionToolPolygon      Action = "tool_polygon"
	ActionToolWand         Action = "tool_wand"
	ActionToolBrush        Action = "tool_brush"
	ActionToolEraser       Action = "tool_eraser"
	ActionToolKeypoints    Action = "tool_keypoints"
	ActionToolDextr        Action = "tool_dextr"
	ActionBrushSizeUp      Action = "brush_size_up"
	ActionBrushSizeDown    Action = "brush_size_down"
	ActionPolygonClose     Action = "polygon_close"
)

// DefaultShortcuts maps every action to its default key combination.
// Combinations are modifier names joined with "+" followed by the key.
var DefaultShortcuts = map[Action]string{
	ActionListMoveUp:       "ArrowUp",
	ActionListMoveDown:     "ArrowDown",
	ActionListExpand:       "ArrowRight",
	ActionListCollapse:     "ArrowLeft",
	ActionAnnotationAdd:    "Space",
	ActionAnnotationRemove: "Backspace",
	ActionUndo:             "Control+z",
	ActionSave:             "Enter",
	ActionImageCenter:      "c",
	ActionImageNext:        "n",
	ActionImagePrev:        "p",
	ActionToolSelect:       "s",
	ActionToolBBox:         "r",
	ActionToolPolygon:      "y",
	ActionToolWand:         "w",
	ActionToolBrush:        "b",
	ActionToolEraser:       "e",
	ActionToolKeypoints:    "k",
	ActionToolDextr:        "d",
	ActionBrushSizeUp:      "]",
	ActionBrushSizeDown:    "[",
	ActionPolygonClose:     "Escape",
}

// Shortcuts is the editable key binding table.
type Shortcuts struct {
	mu    sync.RWMutex
	byKey map[string]Action
	keys  map[Action]string
}

// NewShortcuts builds the table from the defaults overlaid with overrides
// keyed by action name.
func NewShortcuts(overrides map[string]string) (*Shortcuts, error) {
	s := &Shortcuts{}
	s.Restore()
	for name, key := range overrides {
		if err := s.Set(Action(name), key); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NormalizeKey canonicalises a key combination: modifiers are title cased
// and sorted, single character keys keep their case.
func NormalizeKey(key string) string {
	parts := strings.Split(key, "+")
	if len(parts) == 1 || key == "+" {
		return key
	}
	last := parts[len(parts)-1]
	mods := parts[:len(parts)-1]
	for i, m := range mods {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			m = strings.ToUpper(m[:1]) + m[1:]
		}
		mods[i] = m
	}
	sort.Strings(mods)
	return strings.Join(append(mods, last), "+")
}

// Set binds action to key, replacing any action previously bound to key.
func (s *Shortcuts) Set(action Action, key string) error {
	if _, ok := DefaultShortcuts[action]; !ok {
		return fmt.Errorf("unknown shortcut action %q", action)
	}
	if key == "" {
		return fmt.Errorf("empty key for shortcut %q", action)
	}
	key = NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byKey[key]; ok && prev != action {
		delete(s.keys, prev)
	}
	delete(s.byKey, s.keys[action])
	s.byKey[key] = action
	s.keys[action] = key
	return nil
}

// Restore resets every binding to its default.
func (s *Shortcuts) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = make(map[string]Action, len(DefaultShortcuts))
	s.keys = make(map[Action]string, len(DefaultShortcuts))
	for a, k := range DefaultShortcuts {
		s.byKey[k] = a
		s.keys[a] = k
	}
}

// Lookup returns the action bound to key.
func (s *Shortcuts) Lookup(key string) (Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byKey[NormalizeKey(key)]
	return a, ok
}

// Key returns the combination bound to action, or "" when unbound.
func (s *Shortcuts) Key(action Action) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[action]
}

// Bindings returns a copy of the table keyed by action.
func (s *Shortcuts) Bindings() map[Action]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Action]string, len(s.keys))
	for a, k := range s.keys {
		out[a] = k
	}
	return out
}
