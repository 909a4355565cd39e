package dialogs

import (
	"fmt"
	"strconv"
	"strings"

	"coco-annotator/internal/session"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// CopyResult selects the annotations to copy from another image.
type CopyResult struct {
	SourceImageID int
	CategoryIDs   []int
}

// ShowCopyDialog asks for a source image and the categories to copy. An
// empty category selection copies every category.
func ShowCopyDialog(window fyne.Window, categories []session.CategoryInfo, onClose func(*CopyResult)) {
	imageEntry := widget.NewEntry()
	imageEntry.SetPlaceHolder("Source image id")
	imageEntry.Validator = func(s string) error {
		_, err := ParseImageID(s)
		return err
	}

	checks := make([]*widget.Check, len(categories))
	box := container.NewVBox()
	for i, c := range categories {
		checks[i] = widget.NewCheck(c.Name, nil)
		box.Add(checks[i])
	}

	content := container.NewBorder(
		widget.NewForm(widget.NewFormItem("Image", imageEntry)),
		nil, nil, nil,
		container.NewVScroll(box),
	)
	dlg := dialog.NewCustomConfirm("Copy annotations", "Copy", "Cancel", content, func(ok bool) {
		if !ok {
			onClose(nil)
			return
		}
		id, err := ParseImageID(imageEntry.Text)
		if err != nil {
			dialog.ShowError(err, window)
			onClose(nil)
			return
		}
		res := &CopyResult{SourceImageID: id}
		for i, c := range categories {
			if checks[i].Checked {
				res.CategoryIDs = append(res.CategoryIDs, c.ID)
			}
		}
		onClose(res)
	}, window)
	dlg.Resize(fyne.NewSize(360, 420))
	dlg.Show()
}

// ParseImageID reads a positive image id.
func ParseImageID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid image id %q", s)
	}
	return id, nil
}
