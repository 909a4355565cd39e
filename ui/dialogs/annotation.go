// Package dialogs provides application dialogs.
package dialogs

import (
	"strings"

	"coco-annotator/internal/render"
	"coco-annotator/internal/scene"
	"coco-annotator/internal/session"
	"coco-annotator/pkg/colorutil"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// AnnotationResult is what the annotation dialog returns on save.
type AnnotationResult struct {
	Name     string
	Color    string
	Metadata []scene.MetaPair
}

// AnnotationDialog edits the name, colour and metadata of one annotation.
type AnnotationDialog struct {
	info   session.AnnotationInfo
	window fyne.Window

	nameEntry  *widget.Entry
	colorEntry *widget.Entry
	swatch     *fynecanvas.Rectangle
	metaBox    *fyne.Container
	metaRows   [][2]*widget.Entry

	onClose func(*AnnotationResult)
}

// ShowAnnotationDialog displays the dialog. onClose receives nil when the
// dialog is cancelled.
func ShowAnnotationDialog(window fyne.Window, info session.AnnotationInfo, onClose func(*AnnotationResult)) {
	d := &AnnotationDialog{info: info, window: window, onClose: onClose}
	d.Show()
}

// Show displays the dialog.
func (d *AnnotationDialog) Show() {
	content := d.createContent()
	dlg := dialog.NewCustomConfirm("Annotation", "Save", "Cancel", content, func(save bool) {
		if !save {
			d.onClose(nil)
			return
		}
		res := d.result()
		d.onClose(&res)
	}, d.window)
	dlg.Resize(fyne.NewSize(420, 480))
	dlg.Show()
}

func (d *AnnotationDialog) createContent() fyne.CanvasObject {
	d.nameEntry = widget.NewEntry()
	d.nameEntry.SetText(d.info.Name)

	d.swatch = fynecanvas.NewRectangle(render.ParseColor(d.info.Color, colorutil.Black))
	d.swatch.SetMinSize(fyne.NewSize(40, 24))
	d.colorEntry = widget.NewEntry()
	d.colorEntry.SetText(d.info.Color)
	d.colorEntry.OnChanged = func(s string) {
		if c, err := colorutil.ParseHex(s); err == nil {
			d.swatch.FillColor = c
			d.swatch.Refresh()
		}
	}

	form := widget.NewForm(
		widget.NewFormItem("Name", d.nameEntry),
		widget.NewFormItem("Color", container.NewBorder(nil, nil, nil, d.swatch, d.colorEntry)),
	)

	d.metaBox = container.NewVBox()
	for _, m := range d.info.Metadata {
		d.addMetaRow(m)
	}
	addButton := widget.NewButton("Add metadata", func() {
		d.addMetaRow(scene.MetaPair{})
	})

	return container.NewVBox(
		form,
		widget.NewCard("Metadata", "", container.NewVBox(d.metaBox, addButton)),
	)
}

func (d *AnnotationDialog) addMetaRow(m scene.MetaPair) {
	key := widget.NewEntry()
	key.SetPlaceHolder("key")
	key.SetText(m.Key)
	value := widget.NewEntry()
	value.SetPlaceHolder("value")
	value.SetText(m.Value)
	d.metaRows = append(d.metaRows, [2]*widget.Entry{key, value})
	d.metaBox.Add(container.NewGridWithColumns(2, key, value))
}

func (d *AnnotationDialog) result() AnnotationResult {
	pairs := make([]scene.MetaPair, 0, len(d.metaRows))
	for _, row := range d.metaRows {
		pairs = append(pairs, scene.MetaPair{Key: row[0].Text, Value: row[1].Text})
	}
	return BuildAnnotationResult(d.nameEntry.Text, d.colorEntry.Text, d.info.Color, pairs)
}

// BuildAnnotationResult normalises dialog input. An unparsable colour keeps
// the previous one; blank trailing metadata rows are dropped.
func BuildAnnotationResult(name, color, previousColor string, pairs []scene.MetaPair) AnnotationResult {
	res := AnnotationResult{Name: strings.TrimSpace(name), Color: previousColor}
	if c, err := colorutil.ParseHex(color); err == nil {
		res.Color = colorutil.Hex(c)
	}
	end := len(pairs)
	for end > 0 && strings.TrimSpace(pairs[end-1].Key) == "" && strings.TrimSpace(pairs[end-1].Value) == "" {
		end--
	}
	for _, p := range pairs[:end] {
		res.Metadata = append(res.Metadata, scene.MetaPair{Key: strings.TrimSpace(p.Key), Value: p.Value})
	}
	return res
}
