package dialogs

import (
	"sort"

	"coco-annotator/internal/session"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ShowShortcutsDialog edits the key bindings. Changes apply on save; the
// restore button resets every binding immediately. onClose runs when the
// dialog is dismissed either way.
func ShowShortcutsDialog(window fyne.Window, shortcuts *session.Shortcuts, onClose func()) {
	bindings := shortcuts.Bindings()
	actions := make([]session.Action, 0, len(bindings))
	for a := range session.DefaultShortcuts {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })

	entries := make(map[session.Action]*widget.Entry, len(actions))
	form := widget.NewForm()
	for _, a := range actions {
		e := widget.NewEntry()
		e.SetText(bindings[a])
		entries[a] = e
		form.Append(string(a), e)
	}

	restore := widget.NewButton("Restore defaults", func() {
		shortcuts.Restore()
		for a, e := range entries {
			e.SetText(shortcuts.Key(a))
		}
	})

	content := container.NewBorder(nil, restore, nil, nil, container.NewVScroll(form))
	dlg := dialog.NewCustomConfirm("Shortcuts", "Save", "Cancel", content, func(save bool) {
		defer onClose()
		if !save {
			return
		}
		for _, a := range actions {
			key := entries[a].Text
			if key == "" || key == shortcuts.Key(a) {
				continue
			}
			if err := shortcuts.Set(a, key); err != nil {
				dialog.ShowError(err, window)
				return
			}
		}
	}, window)
	dlg.Resize(fyne.NewSize(420, 560))
	dlg.Show()
}
