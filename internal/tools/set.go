package tools

// Set owns the state of every tool. The session controller holds exactly one
// Set and passes the active tool's state to it by pointer.
type Set struct {
	Select    SelectState
	BBox      BBoxState
	Polygon   PolygonState
	Wand      WandState
	Brush     BrushState
	Eraser    BrushState
	Keypoints KeypointsState
	Dextr     DextrState
}

// NewSet creates tool states configured with prefs.
func NewSet(prefs Preferences) *Set {
	s := &Set{}
	s.Apply(prefs)
	s.Eraser.Erase = true
	s.ResetAll()
	return s
}

// Handler returns the state of a tool, or nil for None.
func (s *Set) Handler(t Tool) Handler {
	switch t {
	case Select:
		return &s.Select
	case BBox:
		return &s.BBox
	case Polygon:
		return &s.Polygon
	case Wand:
		return &s.Wand
	case Brush:
		return &s.Brush
	case Eraser:
		return &s.Eraser
	case Keypoints:
		return &s.Keypoints
	case Dextr:
		return &s.Dextr
	default:
		return nil
	}
}

// ResetAll discards every tool's working state.
func (s *Set) ResetAll() {
	for _, t := range All {
		s.Handler(t).Reset()
	}
}

// Apply installs settings on every tool.
func (s *Set) Apply(p Preferences) {
	s.Select.Settings = p.Select
	s.BBox.Settings = p.BBox
	s.Polygon.Settings = p.Polygon
	s.Wand.Settings = p.Wand
	s.Brush.Settings = p.Brush
	s.Eraser.Settings = p.Eraser
	s.Dextr.Settings = p.Dextr
}

// Preferences collects the current settings of every tool.
func (s *Set) Preferences() Preferences {
	return Preferences{
		Select:  s.Select.Settings,
		BBox:    s.BBox.Settings,
		Polygon: s.Polygon.Settings,
		Brush:   s.Brush.Settings,
		Eraser:  s.Eraser.Settings,
		Wand:    s.Wand.Settings,
		Dextr:   s.Dextr.Settings,
	}
}
