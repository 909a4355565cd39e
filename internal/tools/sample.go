package tools

import (
	"math"

	"coco-annotator/internal/viewport"
	"coco-annotator/pkg/geometry"
)

// contrastColor returns "black" over bright image regions and "white" over
// dark ones, judged by the mean luma of the pixels within radius of p.
func contrastColor(env *Env, p geometry.Point2D, radius float64) string {
	pix := env.Raster.RGBA()
	if pix == nil {
		return ""
	}
	cx, cy, _ := viewport.SceneToPixel(p, env.Raster.Size())
	r := int(math.Ceil(radius))
	b := pix.Bounds()

	var sum float64
	var n int
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
				continue
			}
			if dx, dy := float64(x-cx), float64(y-cy); dx*dx+dy*dy > radius*radius {
				continue
			}
			c := pix.RGBAAt(x, y)
			sum += 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
			n++
		}
	}
	if n == 0 {
		return ""
	}
	if sum/float64(n) > 127 {
		return "black"
	}
	return "white"
}
