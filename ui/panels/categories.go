package panels

import (
	"fmt"

	"coco-annotator/internal/render"
	"coco-annotator/internal/session"
	"coco-annotator/ui/canvas"
	"coco-annotator/ui/dialogs"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// CategoriesPanel lists categories and their annotations.
type CategoriesPanel struct {
	session   *session.Session
	loop      *canvas.Loop
	window    fyne.Window
	container fyne.CanvasObject

	search *widget.Entry
	list   *fyne.Container
	status *widget.Label
}

// NewCategoriesPanel creates the category list.
func NewCategoriesPanel(s *session.Session, loop *canvas.Loop) *CategoriesPanel {
	cp := &CategoriesPanel{session: s, loop: loop}

	cp.status = widget.NewLabel("No image loaded")
	cp.list = container.NewVBox()

	cp.search = widget.NewEntry()
	cp.search.SetPlaceHolder("Search categories")
	cp.search.OnChanged = func(text string) {
		loop.Do(func() { s.SetFilter(text) })
	}

	addButton := widget.NewButtonWithIcon("Annotation", theme.ContentAddIcon(), func() {
		loop.Do(s.CreateAnnotation)
	})
	copyButton := widget.NewButton("Copy from image...", func() {
		cp.showCopyDialog()
	})

	cp.container = container.NewBorder(
		container.NewVBox(cp.status, cp.search, container.NewHBox(addButton, copyButton)),
		nil, nil, nil,
		container.NewVScroll(cp.list),
	)

	rebuild := func(interface{}) { cp.rebuild() }
	s.On(session.EventInfoChanged, rebuild)
	s.On(session.EventSelectionChanged, rebuild)
	s.On(session.EventLoaded, rebuild)
	return cp
}

// Container returns the panel container.
func (cp *CategoriesPanel) Container() fyne.CanvasObject {
	return cp.container
}

// SetWindow sets the parent window for dialogs.
func (cp *CategoriesPanel) SetWindow(w fyne.Window) {
	cp.window = w
}

// rebuild recreates the rows. It runs from session events, which already
// hold the loop lock.
func (cp *CategoriesPanel) rebuild() {
	if img, ok := cp.session.Image(); ok {
		cp.status.SetText(fmt.Sprintf("%s (%dx%d)", img.FileName, img.Width, img.Height))
	}
	sel := cp.session.Selection()
	var rows []fyne.CanvasObject
	for _, c := range cp.session.FilteredCategories() {
		rows = append(rows, cp.categoryRow(c, sel))
		if !c.Expanded {
			continue
		}
		for _, a := range c.Annotations {
			rows = append(rows, cp.annotationRow(c.ID, a, sel))
		}
	}
	cp.list.Objects = rows
	cp.list.Refresh()
}

func swatch(hex string) fyne.CanvasObject {
	r := fynecanvas.NewRectangle(render.ParseColor(hex, render.DefaultStyle().DefaultColor))
	r.SetMinSize(fyne.NewSize(12, 12))
	return r
}

func (cp *CategoriesPanel) categoryRow(c session.CategoryInfo, sel session.Selection) fyne.CanvasObject {
	s, loop := cp.session, cp.loop
	enabled := widget.NewCheck("", nil)
	enabled.SetChecked(c.Enabled)
	enabled.OnChanged = func(on bool) {
		loop.Do(func() {
			_ = s.UpdateInfo(session.InfoUpdate{Kind: session.InfoCategoryEnabled, CategoryID: c.ID, Enabled: on})
		})
	}

	icon := theme.MenuDropDownIcon()
	if !c.Expanded {
		icon = theme.NavigateNextIcon()
	}
	expand := widget.NewButtonWithIcon("", icon, func() {
		loop.Do(func() {
			_ = s.UpdateInfo(session.InfoUpdate{Kind: session.InfoCategoryExpanded, CategoryID: c.ID, Expanded: !c.Expanded})
		})
	})

	name := widget.NewButton(fmt.Sprintf("%s (%d)", c.Name, len(c.Annotations)), func() {
		loop.Do(func() { _ = s.SelectCategory(c.ID) })
	})
	if sel.CategoryID == c.ID && sel.AnnotationID == 0 {
		name.Importance = widget.HighImportance
	}
	return container.NewBorder(nil, nil, container.NewHBox(enabled, expand, swatch(c.Color)), nil, name)
}

func (cp *CategoriesPanel) annotationRow(categoryID int, a session.AnnotationInfo, sel session.Selection) fyne.CanvasObject {
	s, loop := cp.session, cp.loop
	visible := widget.NewCheck("", nil)
	visible.SetChecked(a.Enabled)
	visible.OnChanged = func(on bool) {
		loop.Do(func() {
			_ = s.UpdateInfo(session.InfoUpdate{Kind: session.InfoAnnotationEnabled, CategoryID: categoryID, AnnotationID: a.ID, Enabled: on})
		})
	}

	label := a.Name
	if label == "" {
		label = fmt.Sprintf("Annotation %d", a.ID)
	}
	name := widget.NewButton(label, func() {
		loop.Do(func() { _ = s.SelectAnnotation(categoryID, a.ID) })
	})
	if sel.AnnotationID == a.ID {
		name.Importance = widget.HighImportance
	}

	edit := widget.NewButtonWithIcon("", theme.DocumentCreateIcon(), func() {
		cp.showAnnotationDialog(categoryID, a)
	})
	remove := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		loop.Do(func() { s.DeleteAnnotation(categoryID, a.ID) })
	})
	indent := widget.NewLabel("  ")
	return container.NewBorder(nil, nil,
		container.NewHBox(indent, visible, swatch(a.Color)),
		container.NewHBox(edit, remove),
		name)
}

func (cp *CategoriesPanel) showAnnotationDialog(categoryID int, a session.AnnotationInfo) {
	if cp.window == nil {
		return
	}
	var err error
	cp.loop.Do(func() { err = cp.session.OpenModal(session.ModalAnnotation) })
	if err != nil {
		return
	}
	dialogs.ShowAnnotationDialog(cp.window, a, func(res *dialogs.AnnotationResult) {
		cp.loop.Do(func() {
			defer cp.session.CloseModal()
			if res == nil {
				return
			}
			cp.applyAnnotationResult(categoryID, a, *res)
		})
	})
}

func (cp *CategoriesPanel) applyAnnotationResult(categoryID int, a session.AnnotationInfo, res dialogs.AnnotationResult) {
	s := cp.session
	base := session.InfoUpdate{CategoryID: categoryID, AnnotationID: a.ID}
	if res.Name != a.Name {
		u := base
		u.Kind, u.Name = session.InfoAnnotationName, res.Name
		_ = s.UpdateInfo(u)
	}
	if res.Color != a.Color {
		u := base
		u.Kind, u.Color = session.InfoAnnotationColor, res.Color
		_ = s.UpdateInfo(u)
	}
	for i, pair := range res.Metadata {
		if i >= len(a.Metadata) {
			u := base
			u.Kind = session.InfoAddMetadata
			_ = s.UpdateInfo(u)
		} else if a.Metadata[i] == pair {
			continue
		}
		u := base
		u.Kind, u.Index, u.Pair = session.InfoEditMetadata, i, pair
		_ = s.UpdateInfo(u)
	}
}

func (cp *CategoriesPanel) showCopyDialog() {
	if cp.window == nil {
		return
	}
	var (
		err  error
		cats []session.CategoryInfo
	)
	cp.loop.Do(func() {
		if err = cp.session.OpenModal(session.ModalCopy); err == nil {
			cats = cp.session.Info()
		}
	})
	if err != nil {
		return
	}
	dialogs.ShowCopyDialog(cp.window, cats, func(res *dialogs.CopyResult) {
		cp.loop.Do(func() {
			defer cp.session.CloseModal()
			if res != nil {
				cp.session.CopyAnnotations(res.SourceImageID, res.CategoryIDs)
			}
		})
	})
}
