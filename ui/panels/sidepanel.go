// Package panels provides the side panel of the annotator: the category and
// annotation list, and tool selection with per-tool settings.
package panels

import (
	"coco-annotator/internal/session"
	"coco-annotator/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
)

// SidePanel provides the main side panel with tabbed sections.
type SidePanel struct {
	session   *session.Session
	loop      *canvas.Loop
	container *container.AppTabs

	categoriesPanel *CategoriesPanel
	toolsPanel      *ToolsPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(s *session.Session, loop *canvas.Loop) *SidePanel {
	sp := &SidePanel{
		session: s,
		loop:    loop,
	}

	sp.categoriesPanel = NewCategoriesPanel(s, loop)
	sp.toolsPanel = NewToolsPanel(s, loop)

	sp.container = container.NewAppTabs(
		container.NewTabItem("Categories", sp.categoriesPanel.Container()),
		container.NewTabItem("Tools", sp.toolsPanel.Container()),
	)
	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.categoriesPanel.SetWindow(w)
}

// Categories returns the category list panel.
func (sp *SidePanel) Categories() *CategoriesPanel { return sp.categoriesPanel }
