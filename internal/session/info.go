package session

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"coco-annotator/internal/scene"
)

// MinFilterLength is the shortest search text that filters the category
// list.
const MinFilterLength = 2

// AnnotationInfo is the side-panel view of one annotation.
type AnnotationInfo struct {
	ID       int
	Name     string
	Color    string
	Enabled  bool
	Metadata []scene.MetaPair
}

// CategoryInfo is the side-panel view of one category.
type CategoryInfo struct {
	ID          int
	Name        string
	Color       string
	Enabled     bool
	Expanded    bool
	Annotations []AnnotationInfo
}

// InfoUpdate is one change applied by UpdateInfo. Only the fields relevant to
// Kind are read.
type InfoUpdate struct {
	Kind         InfoUpdateKind
	CategoryID   int
	AnnotationID int
	Enabled      bool
	Expanded     bool
	Color        string
	Name         string
	Index        int
	Pair         scene.MetaPair
	Annotation   AnnotationInfo
}

// InfoUpdateKind selects the reducer branch of an InfoUpdate.
type InfoUpdateKind int

const (
	InfoCategoryEnabled InfoUpdateKind = iota
	InfoCategoryExpanded
	InfoCategoryColor
	InfoAddAnnotation
	InfoRemoveAnnotation
	InfoAnnotationEnabled
	InfoAnnotationName
	InfoAnnotationColor
	InfoAddMetadata
	InfoEditMetadata
)

func (k InfoUpdateKind) String() string {
	switch k {
	case InfoCategoryEnabled:
		return "category_enabled"
	case InfoCategoryExpanded:
		return "category_expanded"
	case InfoCategoryColor:
		return "category_color"
	case InfoAddAnnotation:
		return "add_annotation"
	case InfoRemoveAnnotation:
		return "remove_annotation"
	case InfoAnnotationEnabled:
		return "annotation_enabled"
	case InfoAnnotationName:
		return "annotation_name"
	case InfoAnnotationColor:
		return "annotation_color"
	case InfoAddMetadata:
		return "add_metadata"
	case InfoEditMetadata:
		return "edit_metadata"
	default:
		return "unknown"
	}
}

// rebuildInfo derives the info list from the scene graph after a load.
// Expansion state survives for categories that are still present.
func (s *Session) rebuildInfo() {
	expanded := make(map[int]bool, len(s.info))
	for _, c := range s.info {
		expanded[c.ID] = c.Expanded
	}
	info := make([]CategoryInfo, 0, len(s.info))
	for _, cg := range s.graph.Categories() {
		cg.Visible = cg.Enabled
		ci := CategoryInfo{
			ID:       cg.ID,
			Name:     cg.Name,
			Color:    cg.Color,
			Enabled:  cg.Enabled,
			Expanded: expanded[cg.ID],
		}
		for _, ag := range cg.Annotations() {
			ci.Annotations = append(ci.Annotations, AnnotationInfo{
				ID:       ag.ID,
				Name:     ag.Name,
				Color:    ag.Color,
				Enabled:  ag.Visible,
				Metadata: append([]scene.MetaPair(nil), ag.Metadata...),
			})
		}
		info = append(info, ci)
	}
	s.info = info
	s.Emit(EventInfoChanged, nil)
}

// Info returns a copy of the category info list.
func (s *Session) Info() []CategoryInfo {
	out := make([]CategoryInfo, len(s.info))
	for i, c := range s.info {
		c.Annotations = append([]AnnotationInfo(nil), c.Annotations...)
		out[i] = c
	}
	return out
}

func (s *Session) categoryInfo(id int) (*CategoryInfo, error) {
	for i := range s.info {
		if s.info[i].ID == id {
			return &s.info[i], nil
		}
	}
	return nil, fmt.Errorf("category %d: %w", id, scene.ErrCategoryNotFound)
}

func (c *CategoryInfo) annotation(id int) (int, error) {
	for i := range c.Annotations {
		if c.Annotations[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("annotation %d: %w", id, scene.ErrAnnotationNotFound)
}

// UpdateInfo applies one change to the info list and mirrors it onto the
// scene graph.
func (s *Session) UpdateInfo(u InfoUpdate) error {
	if err := s.reduce(u); err != nil {
		return fmt.Errorf("%s: %w", u.Kind, err)
	}
	s.Emit(EventInfoChanged, u)
	return nil
}

func (s *Session) reduce(u InfoUpdate) error {
	ci, err := s.categoryInfo(u.CategoryID)
	if err != nil {
		return err
	}
	switch u.Kind {
	case InfoCategoryEnabled:
		return s.setCategoryEnabled(ci, u.Enabled)
	case InfoCategoryExpanded:
		ci.Expanded = u.Expanded
		return nil
	case InfoCategoryColor:
		ci.Color = u.Color
		if cg, ok := s.graph.FindCategoryGroup(ci.ID); ok {
			cg.Color = u.Color
		}
		s.SetModified(true)
		return nil
	case InfoAddAnnotation:
		ci.Annotations = append(ci.Annotations, u.Annotation)
		if len(ci.Annotations) == 1 && !ci.Enabled {
			return s.setCategoryEnabled(ci, true)
		}
		return nil
	case InfoRemoveAnnotation:
		i, err := ci.annotation(u.AnnotationID)
		if err != nil {
			return err
		}
		ci.Annotations = append(ci.Annotations[:i], ci.Annotations[i+1:]...)
		if len(ci.Annotations) == 0 && ci.Enabled {
			return s.setCategoryEnabled(ci, false)
		}
		return nil
	}

	i, err := ci.annotation(u.AnnotationID)
	if err != nil {
		return err
	}
	ai := &ci.Annotations[i]
	ag, ok := s.graph.FindAnnotationGroup(ci.ID, ai.ID)
	if !ok {
		return fmt.Errorf("annotation %d: %w", ai.ID, scene.ErrAnnotationNotFound)
	}
	switch u.Kind {
	case InfoAnnotationEnabled:
		ai.Enabled = u.Enabled
		ag.Visible = u.Enabled
		return nil
	case InfoAnnotationName:
		ai.Name = u.Name
		ag.Name = u.Name
	case InfoAnnotationColor:
		ai.Color = u.Color
		ag.Color = u.Color
	case InfoAddMetadata:
		ai.Metadata = append(ai.Metadata, scene.MetaPair{})
		ag.Metadata = append([]scene.MetaPair(nil), ai.Metadata...)
	case InfoEditMetadata:
		if u.Index < 0 || u.Index >= len(ai.Metadata) {
			return fmt.Errorf("metadata index %d out of range", u.Index)
		}
		ai.Metadata[u.Index] = u.Pair
		ag.Metadata = append([]scene.MetaPair(nil), ai.Metadata...)
	default:
		return fmt.Errorf("unknown info update %d", int(u.Kind))
	}
	s.SetModified(true)
	return nil
}

func (s *Session) setCategoryEnabled(ci *CategoryInfo, enabled bool) error {
	ci.Enabled = enabled
	if err := s.graph.SetCategoryVisible(ci.ID, enabled); err != nil {
		return err
	}
	if cg, ok := s.graph.FindCategoryGroup(ci.ID); ok {
		cg.Enabled = enabled
	}
	return nil
}

// SetFilter sets the category search text.
func (s *Session) SetFilter(text string) {
	s.filter = text
	s.Emit(EventInfoChanged, nil)
}

// Filter returns the category search text.
func (s *Session) Filter() string { return s.filter }

// FilteredCategories returns the categories matching the search text. Text
// shorter than MinFilterLength shows every category.
func (s *Session) FilteredCategories() []CategoryInfo {
	all := s.Info()
	return FilterCategories(all, s.filter)
}

// FilterCategories matches category names by case-insensitive substring.
func FilterCategories(categories []CategoryInfo, text string) []CategoryInfo {
	if utf8.RuneCountInString(text) < MinFilterLength {
		return categories
	}
	needle := strings.ToLower(text)
	var out []CategoryInfo
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	return out
}
