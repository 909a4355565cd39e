package canvas

import (
	"image/color"

	"coco-annotator/internal/render"

	"fyne.io/fyne/v2"
)

// Theme colour names the overlay is drawn with. A theme that does not define
// them leaves the renderer defaults in place.
const (
	ColorNameBackground    fyne.ThemeColorName = "annotatorCanvas"
	ColorNameActiveOutline fyne.ThemeColorName = "annotatorActiveOutline"
)

// OverlayStyle returns the renderer style with the overlay colours of th.
func OverlayStyle(th fyne.Theme, variant fyne.ThemeVariant) render.Style {
	style := render.DefaultStyle()
	if th == nil {
		return style
	}
	if c, ok := themeColor(th, ColorNameBackground, variant); ok {
		style.Background = c
	}
	if c, ok := themeColor(th, ColorNameActiveOutline, variant); ok {
		style.ActiveHighlight = c
	}
	return style
}

func themeColor(th fyne.Theme, name fyne.ThemeColorName, variant fyne.ThemeVariant) (color.RGBA, bool) {
	c := th.Color(name, variant)
	if c == nil {
		return color.RGBA{}, false
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	return rgba, rgba.A != 0
}

func currentStyle() render.Style {
	a := fyne.CurrentApp()
	if a == nil {
		return render.DefaultStyle()
	}
	return OverlayStyle(a.Settings().Theme(), a.Settings().ThemeVariant())
}
