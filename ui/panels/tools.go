package panels

import (
	"fmt"

	"coco-annotator/internal/session"
	"coco-annotator/internal/tools"
	"coco-annotator/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

var toolLabels = map[tools.Tool]string{
	tools.Select:    "Select",
	tools.BBox:      "Box",
	tools.Polygon:   "Polygon",
	tools.Wand:      "Magic Wand",
	tools.Brush:     "Brush",
	tools.Eraser:    "Eraser",
	tools.Keypoints: "Keypoints",
	tools.Dextr:     "DEXTR",
}

// ToolsPanel selects the active tool and edits tool settings.
type ToolsPanel struct {
	session   *session.Session
	loop      *canvas.Loop
	container fyne.CanvasObject

	buttons  map[tools.Tool]*widget.Button
	modified *widget.Label

	// updating is set while widgets are refreshed from session state, so
	// their change callbacks do not feed the values back.
	updating bool

	brushRadius  *widget.Slider
	eraserRadius *widget.Slider
	wandThresh   *widget.Slider
	wandBlur     *widget.Slider
	guidance     *widget.Check
	tooltip      *widget.Check
	dextrPadding *widget.Slider
	dextrThresh  *widget.Slider
	segment      *widget.Check

	labels map[*widget.Slider]*widget.Label
}

// NewToolsPanel creates the tools panel.
func NewToolsPanel(s *session.Session, loop *canvas.Loop) *ToolsPanel {
	tp := &ToolsPanel{
		session: s,
		loop:    loop,
		buttons: make(map[tools.Tool]*widget.Button),
		labels:  make(map[*widget.Slider]*widget.Label),
	}

	toolGrid := container.NewGridWithColumns(2)
	for _, t := range tools.All {
		t := t
		b := widget.NewButton(toolLabels[t], func() {
			loop.Do(func() { s.ToggleTool(t) })
		})
		tp.buttons[t] = b
		toolGrid.Add(b)
	}

	tp.modified = widget.NewLabel("")
	saveButton := widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), func() {
		loop.Do(s.SaveAsync)
	})
	undoButton := widget.NewButtonWithIcon("Undo", theme.ContentUndoIcon(), func() {
		loop.Do(func() { s.Undo() })
	})
	centerButton := widget.NewButtonWithIcon("Center", theme.ZoomFitIcon(), func() {
		loop.Do(func() { _ = s.Do(session.ActionImageCenter) })
	})

	settings := widget.NewForm(
		tp.sliderItem("Brush radius", &tp.brushRadius, tools.BrushRadiusMin, 200, 1),
		tp.sliderItem("Eraser radius", &tp.eraserRadius, tools.BrushRadiusMin, 200, 1),
		tp.sliderItem("Wand threshold", &tp.wandThresh, 0, 255, 1),
		tp.sliderItem("Wand blur", &tp.wandBlur, 0, 200, 1),
		tp.sliderItem("DEXTR padding", &tp.dextrPadding, 0, 200, 1),
		tp.sliderItem("DEXTR threshold", &tp.dextrThresh, 0, 100, 1),
	)
	tp.guidance = widget.NewCheck("Polygon guidance", func(bool) { tp.pushPreferences() })
	tp.tooltip = widget.NewCheck("Select tooltip", func(bool) { tp.pushPreferences() })
	tp.segment = widget.NewCheck("Segment mode", func(on bool) {
		if tp.updating {
			return
		}
		loop.Do(func() { s.SetSegmentMode(on) })
	})

	tp.container = container.NewVScroll(container.NewVBox(
		widget.NewCard("Tools", "", toolGrid),
		container.NewHBox(saveButton, undoButton, centerButton),
		tp.modified,
		widget.NewCard("Settings", "", container.NewVBox(settings, tp.guidance, tp.tooltip, tp.segment)),
	))

	refresh := func(interface{}) { tp.refresh() }
	s.On(session.EventToolChanged, refresh)
	s.On(session.EventLoaded, refresh)
	s.On(session.EventModified, refresh)
	s.On(session.EventSaved, refresh)

	loop.Do(tp.refresh)
	return tp
}

// Container returns the panel container.
func (tp *ToolsPanel) Container() fyne.CanvasObject {
	return tp.container
}

func (tp *ToolsPanel) sliderItem(name string, slot **widget.Slider, min, max, step float64) *widget.FormItem {
	sl := widget.NewSlider(min, max)
	sl.Step = step
	label := widget.NewLabel("")
	tp.labels[sl] = label
	sl.OnChanged = func(v float64) {
		label.SetText(fmt.Sprintf("%.0f", v))
		tp.pushPreferences()
	}
	*slot = sl
	return widget.NewFormItem(name, container.NewBorder(nil, nil, nil, label, sl))
}

// pushPreferences copies the widget values into the session.
func (tp *ToolsPanel) pushPreferences() {
	if tp.updating {
		return
	}
	tp.loop.Do(func() {
		p := tp.session.Preferences()
		p.Brush.Radius = tp.brushRadius.Value
		p.Eraser.Radius = tp.eraserRadius.Value
		p.Wand.Threshold = int(tp.wandThresh.Value)
		p.Wand.Blur = int(tp.wandBlur.Value)
		p.Dextr.Padding = int(tp.dextrPadding.Value)
		p.Dextr.Threshold = int(tp.dextrThresh.Value)
		p.Polygon.GuidanceOn = tp.guidance.Checked
		p.Select.TooltipOn = tp.tooltip.Checked
		tp.session.ApplyPreferences(p)
	})
}

// refresh copies session state into the widgets. Callers hold the loop lock.
func (tp *ToolsPanel) refresh() {
	tp.updating = true
	defer func() { tp.updating = false }()

	active := tp.session.ActiveTool()
	for t, b := range tp.buttons {
		if t == active {
			b.Importance = widget.HighImportance
		} else {
			b.Importance = widget.MediumImportance
		}
		b.Refresh()
	}

	p := tp.session.Preferences()
	tp.setSlider(tp.brushRadius, p.Brush.Radius)
	tp.setSlider(tp.eraserRadius, p.Eraser.Radius)
	tp.setSlider(tp.wandThresh, float64(p.Wand.Threshold))
	tp.setSlider(tp.wandBlur, float64(p.Wand.Blur))
	tp.setSlider(tp.dextrPadding, float64(p.Dextr.Padding))
	tp.setSlider(tp.dextrThresh, float64(p.Dextr.Threshold))
	tp.guidance.SetChecked(p.Polygon.GuidanceOn)
	tp.tooltip.SetChecked(p.Select.TooltipOn)
	tp.segment.SetChecked(tp.session.SegmentMode())

	switch {
	case tp.session.Saving():
		tp.modified.SetText("Saving...")
	case tp.session.Modified():
		tp.modified.SetText("Unsaved changes")
	default:
		tp.modified.SetText("")
	}
}

func (tp *ToolsPanel) setSlider(sl *widget.Slider, v float64) {
	if sl.Value != v {
		sl.SetValue(v)
	}
	tp.labels[sl].SetText(fmt.Sprintf("%.0f", v))
}
