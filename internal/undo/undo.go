// Package undo implements the annotation canvas undo log.
//
// The stash records what happened; it never applies anything itself. The
// session pops items and applies the inverse (restoring the previous shape or
// reverting a tool step).
package undo

import (
	"coco-annotator/pkg/geometry"
)

// DefaultMaxItems bounds the stash when no explicit size is configured.
const DefaultMaxItems = 50

// Kind tags an undo item.
type Kind int

const (
	ShapeChanged Kind = iota
	ToolEvent
)

func (k Kind) String() string {
	switch k {
	case ShapeChanged:
		return "SHAPE_CHANGED"
	case ToolEvent:
		return "TOOL_EVENT"
	default:
		return "UNKNOWN"
	}
}

// ToolAction names a reversible tool step.
type ToolAction string

const (
	PolygonAddPoint ToolAction = "POLYGON_ADD_POINT"
)

// Shape is the payload of a ShapeChanged item.
type Shape struct {
	CategoryID   int
	AnnotationID int
	Before       geometry.CompoundShape
	After        geometry.CompoundShape
}

// Tool is the payload of a ToolEvent item.
type Tool struct {
	Action  ToolAction
	Payload any
}

// Item is one stash entry. Exactly one of Shape and Tool is meaningful,
// selected by Kind.
type Item struct {
	Kind  Kind
	Shape Shape
	Tool  Tool
}

// NewShapeItem builds a ShapeChanged item.
func NewShapeItem(categoryID, annotationID int, before, after geometry.CompoundShape) Item {
	return Item{
		Kind: ShapeChanged,
		Shape: Shape{
			CategoryID:   categoryID,
			AnnotationID: annotationID,
			Before:       before,
			After:        after,
		},
	}
}

// NewToolItem builds a ToolEvent item.
func NewToolItem(action ToolAction, payload any) Item {
	return Item{Kind: ToolEvent, Tool: Tool{Action: action, Payload: payload}}
}

// Stash is a bounded undo log. It is not safe for concurrent use; the
// canvas drives it from the UI goroutine.
type Stash struct {
	items    []Item
	maxItems int
	onChange func(depth int)
}

// New creates a stash holding at most maxItems entries. Values below one
// fall back to DefaultMaxItems.
func New(maxItems int) *Stash {
	if maxItems < 1 {
		maxItems = DefaultMaxItems
	}
	return &Stash{maxItems: maxItems}
}

// OnChange registers a callback invoked with the new depth after every
// mutation.
func (s *Stash) OnChange(fn func(depth int)) {
	s.onChange = fn
}

// Add appends an item. A ShapeChanged item evicts every earlier item that is
// not itself a ShapeChanged, so pending tool steps collapse into the shape
// edit that finalised them. The oldest items are then dropped until the
// stash fits its bound.
func (s *Stash) Add(item Item) {
	s.items = append(s.items, item)

	if item.Kind == ShapeChanged {
		kept := s.items[:0]
		for _, it := range s.items {
			if it.Kind == ShapeChanged {
				kept = append(kept, it)
			}
		}
		s.items = kept
	}

	for len(s.items) > s.maxItems {
		s.items = s.items[1:]
	}
	s.changed()
}

// Record implements the scene recorder contract.
func (s *Stash) Record(categoryID, annotationID int, before, after geometry.CompoundShape) {
	s.Add(NewShapeItem(categoryID, annotationID, before, after))
}

// Pop removes and returns the newest item.
func (s *Stash) Pop() (Item, bool) {
	if len(s.items) == 0 {
		return Item{}, false
	}
	last := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	s.changed()
	return last, true
}

// Peek returns the newest item without removing it.
func (s *Stash) Peek() (Item, bool) {
	if len(s.items) == 0 {
		return Item{}, false
	}
	return s.items[len(s.items)-1], true
}

// Clear empties the stash.
func (s *Stash) Clear() {
	s.items = nil
	s.changed()
}

// Len returns the number of stored items.
func (s *Stash) Len() int {
	return len(s.items)
}

// MaxItems returns the configured bound.
func (s *Stash) MaxItems() int {
	return s.maxItems
}

// Items returns a copy of the stored items, oldest first.
func (s *Stash) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Stash) changed() {
	if s.onChange != nil {
		s.onChange(len(s.items))
	}
}
