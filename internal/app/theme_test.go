package app

import (
	"image/color"
	"testing"

	"coco-annotator/ui/canvas"

	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
)

func TestThemeOverlayColours(t *testing.T) {
	th := NewTheme()

	assert.Equal(t, accent, th.Color(theme.ColorNamePrimary, theme.VariantDark))
	assert.Equal(t, canvasLight, th.Color(canvas.ColorNameBackground, theme.VariantLight))
	assert.Equal(t, canvasDark, th.Color(canvas.ColorNameBackground, theme.VariantDark))

	style := canvas.OverlayStyle(th, theme.VariantDark)
	assert.Equal(t, color.RGBA{R: 0x40, G: 0xC4, B: 0xFF, A: 0xFF}, style.ActiveHighlight)
	assert.Equal(t, color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}, style.Background)
}
