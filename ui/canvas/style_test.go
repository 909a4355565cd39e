package canvas

import (
	"image/color"
	"testing"

	"coco-annotator/internal/render"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
)

type outlineTheme struct {
	fyne.Theme
}

func (t outlineTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if name == ColorNameActiveOutline {
		return color.NRGBA{R: 255, A: 255}
	}
	return t.Theme.Color(name, variant)
}

func TestOverlayStyleKeepsDefaultsForUnknownNames(t *testing.T) {
	assert.Equal(t, render.DefaultStyle(), OverlayStyle(theme.DefaultTheme(), theme.VariantDark))
	assert.Equal(t, render.DefaultStyle(), OverlayStyle(nil, theme.VariantDark))
}

func TestOverlayStyleReadsTheme(t *testing.T) {
	style := OverlayStyle(outlineTheme{theme.DefaultTheme()}, theme.VariantDark)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, style.ActiveHighlight)
	assert.Equal(t, render.DefaultStyle().Background, style.Background)
}
