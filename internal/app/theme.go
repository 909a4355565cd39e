package app

import (
	"image/color"

	"coco-annotator/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

var (
	accent      = color.NRGBA{R: 0x19, G: 0x76, B: 0xD2, A: 0xFF}
	selection   = color.NRGBA{R: 0x40, G: 0xC4, B: 0xFF, A: 0x80}
	outline     = color.NRGBA{R: 0x40, G: 0xC4, B: 0xFF, A: 0xFF}
	canvasDark  = color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}
	canvasLight = color.NRGBA{R: 0xD8, G: 0xD8, B: 0xD8, A: 0xFF}
)

// AnnotatorTheme is fyne's default theme with the annotator's accent and the
// colours the annotation canvas draws its overlay with.
type AnnotatorTheme struct {
	fyne.Theme
}

var _ fyne.Theme = (*AnnotatorTheme)(nil)

// NewTheme returns the application theme.
func NewTheme() *AnnotatorTheme {
	return &AnnotatorTheme{Theme: theme.DefaultTheme()}
}

func (t *AnnotatorTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return accent
	case theme.ColorNameSelection:
		return selection
	case canvas.ColorNameActiveOutline:
		return outline
	case canvas.ColorNameBackground:
		if variant == theme.VariantLight {
			return canvasLight
		}
		return canvasDark
	}
	return t.Theme.Color(name, variant)
}
