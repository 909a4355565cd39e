// Package scene holds the annotation scene graph: one group per category, one
// group per annotation inside it, and the geometry and keypoints of each
// annotation.
package scene

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coco-annotator/internal/mask"
	"coco-annotator/pkg/geometry"

	"go.uber.org/zap"
)

var (
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrDuplicate          = errors.New("annotation already exists in category")
)

// NodeKind tags scene nodes.
type NodeKind int

const (
	KindCategory NodeKind = iota
	KindAnnotation
	KindShape
	KindKeypoints
)

func (k NodeKind) String() string {
	switch k {
	case KindCategory:
		return "category"
	case KindAnnotation:
		return "annotation"
	case KindShape:
		return "shape"
	case KindKeypoints:
		return "keypoints"
	default:
		return "unknown"
	}
}

// Node is any element of the scene graph.
type Node interface {
	Kind() NodeKind
}

// MetaPair is one metadata entry of an annotation.
type MetaPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Category describes a category as loaded from the backend.
type Category struct {
	ID       int
	Name     string
	Color    string
	Visible  bool
	Enabled  bool
	Keypoint KeypointSchema
}

// KeypointSchema is the category wide keypoint labelling.
type KeypointSchema struct {
	Labels []string
	Edges  []Edge
	Colors []string
}

// Annotation describes an annotation as loaded from the backend.
type Annotation struct {
	ID       int
	Name     string
	Color    string
	Metadata []MetaPair
}

// Recorder receives committed shape edits. The undo stash implements it.
type Recorder interface {
	Record(categoryID, annotationID int, before, after geometry.CompoundShape)
}

// Shape is the geometry node of an annotation.
type Shape struct {
	geometry.CompoundShape
}

// Kind implements Node.
func (s *Shape) Kind() NodeKind { return KindShape }

// CategoryGroup is the scene node of one category.
type CategoryGroup struct {
	Category
	children []*AnnotationGroup
}

// Kind implements Node.
func (c *CategoryGroup) Kind() NodeKind { return KindCategory }

// Annotations returns the annotation groups in display order.
func (c *CategoryGroup) Annotations() []*AnnotationGroup {
	out := make([]*AnnotationGroup, len(c.children))
	copy(out, c.children)
	return out
}

// AnnotationGroup is the scene node of one annotation.
type AnnotationGroup struct {
	Annotation
	CategoryID int
	Visible    bool
	Active     bool
	Shape      *Shape
	Keypoints  *Keypoints
}

// Kind implements Node.
func (a *AnnotationGroup) Kind() NodeKind { return KindAnnotation }

// DisplayName returns the metadata "name" value when present, the annotation
// name otherwise.
func (a *AnnotationGroup) DisplayName() string {
	for _, m := range a.Metadata {
		if m.Key == "name" && m.Value != "" {
			return m.Value
		}
	}
	return a.Name
}

// Tooltip returns the hover text of the annotation.
func (a *AnnotationGroup) Tooltip() string {
	var b strings.Builder
	b.WriteString("ID: " + strconv.Itoa(a.ID) + "\n")
	b.WriteString("Category: " + strconv.Itoa(a.CategoryID) + "\n")
	if len(a.Metadata) == 0 {
		b.WriteString("No Metadata")
		return b.String()
	}
	for i, m := range a.Metadata {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Key + " = " + m.Value)
	}
	return b.String()
}

type annotationKey struct {
	category, annotation int
}

// Graph is the scene graph. Lookups go through map indexes; the category
// slice keeps display order.
type Graph struct {
	categories   []*CategoryGroup
	byCategory   map[int]*CategoryGroup
	byAnnotation map[annotationKey]*AnnotationGroup

	active   *AnnotationGroup
	recorder Recorder
	logger   *zap.Logger
}

// New creates an empty scene graph. Committed edits are reported to recorder
// when it is non-nil.
func New(recorder Recorder, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		byCategory:   make(map[int]*CategoryGroup),
		byAnnotation: make(map[annotationKey]*AnnotationGroup),
		recorder:     recorder,
		logger:       logger,
	}
}

// SetRecorder replaces the edit recorder.
func (g *Graph) SetRecorder(r Recorder) {
	g.recorder = r
}

// Clear removes every group.
func (g *Graph) Clear() {
	g.categories = nil
	g.byCategory = make(map[int]*CategoryGroup)
	g.byAnnotation = make(map[annotationKey]*AnnotationGroup)
	g.active = nil
}

// AddCategory adds a category group, or updates and returns the existing one.
func (g *Graph) AddCategory(c Category) *CategoryGroup {
	if cg, ok := g.byCategory[c.ID]; ok {
		cg.Category = c
		return cg
	}
	cg := &CategoryGroup{Category: c}
	g.categories = append(g.categories, cg)
	g.byCategory[c.ID] = cg
	return cg
}

// FindCategoryGroup returns the group of a category.
func (g *Graph) FindCategoryGroup(categoryID int) (*CategoryGroup, bool) {
	cg, ok := g.byCategory[categoryID]
	return cg, ok
}

// FindAnnotationGroup returns the group of an annotation.
func (g *Graph) FindAnnotationGroup(categoryID, annotationID int) (*AnnotationGroup, bool) {
	ag, ok := g.byAnnotation[annotationKey{categoryID, annotationID}]
	return ag, ok
}

// FindAnnotation looks an annotation up by id alone.
func (g *Graph) FindAnnotation(annotationID int) (*AnnotationGroup, bool) {
	for _, cg := range g.categories {
		for _, ag := range cg.children {
			if ag.ID == annotationID {
				return ag, true
			}
		}
	}
	return nil, false
}

// Categories returns the category groups in display order.
func (g *Graph) Categories() []*CategoryGroup {
	out := make([]*CategoryGroup, len(g.categories))
	copy(out, g.categories)
	return out
}

// AddAnnotation adds an annotation group, creating its category group when
// needed. An existing group for the same pair is updated and returned.
func (g *Graph) AddAnnotation(categoryID int, a Annotation, shape geometry.CompoundShape) *AnnotationGroup {
	cg, ok := g.byCategory[categoryID]
	if !ok {
		cg = g.AddCategory(Category{ID: categoryID, Visible: true, Enabled: true})
	}
	key := annotationKey{categoryID, a.ID}
	if ag, ok := g.byAnnotation[key]; ok {
		ag.Annotation = a
		ag.Shape.CompoundShape = normalise(shape)
		return ag
	}
	ag := &AnnotationGroup{
		Annotation: a,
		CategoryID: categoryID,
		Visible:    true,
		Shape:      &Shape{CompoundShape: normalise(shape)},
		Keypoints:  NewKeypoints(),
	}
	cg.children = append(cg.children, ag)
	g.byAnnotation[key] = ag
	return ag
}

// RemoveAnnotation deletes an annotation group.
func (g *Graph) RemoveAnnotation(categoryID, annotationID int) error {
	key := annotationKey{categoryID, annotationID}
	ag, ok := g.byAnnotation[key]
	if !ok {
		return fmt.Errorf("remove %d/%d: %w", categoryID, annotationID, ErrAnnotationNotFound)
	}
	cg := g.byCategory[categoryID]
	cg.children = removeGroup(cg.children, ag)
	delete(g.byAnnotation, key)
	if g.active == ag {
		g.active = nil
	}
	return nil
}

// Reparent moves an annotation to another category, keeping its geometry.
func (g *Graph) Reparent(annotationID, from, to int) error {
	if from == to {
		return nil
	}
	oldKey := annotationKey{from, annotationID}
	ag, ok := g.byAnnotation[oldKey]
	if !ok {
		return fmt.Errorf("reparent %d: %w", annotationID, ErrAnnotationNotFound)
	}
	target, ok := g.byCategory[to]
	if !ok {
		return fmt.Errorf("reparent %d to %d: %w", annotationID, to, ErrCategoryNotFound)
	}
	newKey := annotationKey{to, annotationID}
	if _, exists := g.byAnnotation[newKey]; exists {
		return fmt.Errorf("reparent %d to %d: %w", annotationID, to, ErrDuplicate)
	}

	source := g.byCategory[from]
	source.children = removeGroup(source.children, ag)
	delete(g.byAnnotation, oldKey)

	ag.CategoryID = to
	target.children = append(target.children, ag)
	g.byAnnotation[newKey] = ag
	return nil
}

// SetCategoryVisible toggles drawing of a whole category.
func (g *Graph) SetCategoryVisible(categoryID int, visible bool) error {
	cg, ok := g.byCategory[categoryID]
	if !ok {
		return fmt.Errorf("category %d: %w", categoryID, ErrCategoryNotFound)
	}
	cg.Visible = visible
	return nil
}

// SetAnnotationVisible toggles drawing of one annotation.
func (g *Graph) SetAnnotationVisible(categoryID, annotationID int, visible bool) error {
	ag, err := g.annotation(categoryID, annotationID)
	if err != nil {
		return err
	}
	ag.Visible = visible
	return nil
}

// IsDrawn reports whether an annotation and its category are both visible.
func (g *Graph) IsDrawn(ag *AnnotationGroup) bool {
	cg, ok := g.byCategory[ag.CategoryID]
	return ok && cg.Visible && ag.Visible
}

// VisibleAnnotations returns every drawn annotation in display order.
func (g *Graph) VisibleAnnotations() []*AnnotationGroup {
	var out []*AnnotationGroup
	for _, cg := range g.categories {
		if !cg.Visible {
			continue
		}
		for _, ag := range cg.children {
			if ag.Visible {
				out = append(out, ag)
			}
		}
	}
	return out
}

// SetActive highlights one annotation. The previous one loses the flag.
func (g *Graph) SetActive(categoryID, annotationID int) error {
	ag, err := g.annotation(categoryID, annotationID)
	if err != nil {
		return err
	}
	if g.active != nil {
		g.active.Active = false
	}
	ag.Active = true
	g.active = ag
	return nil
}

// ClearActive removes the highlight.
func (g *Graph) ClearActive() {
	if g.active != nil {
		g.active.Active = false
	}
	g.active = nil
}

// Active returns the highlighted annotation.
func (g *Graph) Active() (*AnnotationGroup, bool) {
	return g.active, g.active != nil
}

// Walk visits each category group followed by its annotation groups, in
// display order. Returning false from fn stops the walk.
func (g *Graph) Walk(fn func(Node) bool) {
	for _, cg := range g.categories {
		if !fn(cg) {
			return
		}
		for _, ag := range cg.children {
			if !fn(ag) {
				return
			}
		}
	}
}

// Unite merges piece into an annotation's shape. A bbox shape stops being one.
func (g *Graph) Unite(categoryID, annotationID int, piece geometry.CompoundShape, undoable bool) (geometry.CompoundShape, error) {
	return g.edit(categoryID, annotationID, undoable, func(s geometry.CompoundShape) (geometry.CompoundShape, error) {
		s.IsBBox = false
		return mask.Unite(s, piece)
	})
}

// Subtract removes piece from an annotation's shape. A bbox shape stops being
// one.
func (g *Graph) Subtract(categoryID, annotationID int, piece geometry.CompoundShape, undoable bool) (geometry.CompoundShape, error) {
	return g.edit(categoryID, annotationID, undoable, func(s geometry.CompoundShape) (geometry.CompoundShape, error) {
		s.IsBBox = false
		return mask.Subtract(s, piece)
	})
}

// UniteBBox makes ring the sole ring of the shape and marks it as a bounding
// box. Any other ring is discarded, including the previous box.
func (g *Graph) UniteBBox(categoryID, annotationID int, ring geometry.Ring, undoable bool) (geometry.CompoundShape, error) {
	return g.edit(categoryID, annotationID, undoable, func(s geometry.CompoundShape) (geometry.CompoundShape, error) {
		if !s.IsBBox && len(s.Rings) > 0 {
			g.logger.Debug("bbox replaces existing rings",
				zap.Int("annotationId", annotationID), zap.Int("rings", len(s.Rings)))
		}
		return geometry.CompoundShape{Rings: []geometry.Ring{ring.Clone()}, IsBBox: true}, nil
	})
}

// Simplify reduces the point count of the shape.
func (g *Graph) Simplify(categoryID, annotationID int, tolerance float64, undoable bool) (geometry.CompoundShape, error) {
	return g.edit(categoryID, annotationID, undoable, func(s geometry.CompoundShape) (geometry.CompoundShape, error) {
		return mask.Simplify(s, tolerance), nil
	})
}

// ReplaceShape swaps in a new shape.
func (g *Graph) ReplaceShape(categoryID, annotationID int, shape geometry.CompoundShape, undoable bool) (geometry.CompoundShape, error) {
	return g.edit(categoryID, annotationID, undoable, func(geometry.CompoundShape) (geometry.CompoundShape, error) {
		return shape.Clone(), nil
	})
}

// Restore writes a shape without recording it.
func (g *Graph) Restore(categoryID, annotationID int, shape geometry.CompoundShape) error {
	ag, err := g.annotation(categoryID, annotationID)
	if err != nil {
		// The annotation may have moved to another category since the
		// snapshot was taken.
		moved, ok := g.FindAnnotation(annotationID)
		if !ok {
			return err
		}
		ag = moved
	}
	ag.Shape.CompoundShape = shape.Clone()
	return nil
}

func (g *Graph) edit(categoryID, annotationID int, undoable bool, fn func(geometry.CompoundShape) (geometry.CompoundShape, error)) (geometry.CompoundShape, error) {
	ag, err := g.annotation(categoryID, annotationID)
	if err != nil {
		return geometry.CompoundShape{}, err
	}
	before := ag.Shape.CompoundShape.Clone()
	after, err := fn(before.Clone())
	if err != nil {
		return geometry.CompoundShape{}, fmt.Errorf("edit annotation %d: %w", annotationID, err)
	}
	ag.Shape.CompoundShape = after
	if undoable && g.recorder != nil {
		g.recorder.Record(categoryID, annotationID, before, after.Clone())
	}
	return after.Clone(), nil
}

func (g *Graph) annotation(categoryID, annotationID int) (*AnnotationGroup, error) {
	ag, ok := g.byAnnotation[annotationKey{categoryID, annotationID}]
	if !ok {
		return nil, fmt.Errorf("annotation %d in category %d: %w", annotationID, categoryID, ErrAnnotationNotFound)
	}
	return ag, nil
}

// normalise applies the bbox law: a bbox shape keeps only its first ring.
func normalise(s geometry.CompoundShape) geometry.CompoundShape {
	s = s.Clone()
	if s.IsBBox && len(s.Rings) > 1 {
		s.Rings = s.Rings[:1]
	}
	return s
}

func removeGroup(list []*AnnotationGroup, ag *AnnotationGroup) []*AnnotationGroup {
	for i, x := range list {
		if x == ag {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
