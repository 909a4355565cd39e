// Package mask implements boolean operations on compound shapes by
// rasterising them into 8-bit masks and tracing the result back into rings.
//
// One mask pixel covers one scene unit. Pixel centres sit on integer scene
// coordinates, so rings whose vertices are integers survive a round trip
// unchanged; other rings snap outward to the pixel grid.
package mask

import (
	"fmt"
	"image"
	"math"

	"coco-annotator/pkg/geometry"

	"gocv.io/x/gocv"
	"golang.org/x/image/vector"
)

// coverageCutoff is the minimum alpha a pixel needs to count as inside.
const coverageCutoff = 8

// Grid maps scene coordinates onto a mask.
type Grid struct {
	Origin geometry.Point2D // scene position of pixel (0,0)
	Width  int
	Height int
}

// NewGrid returns a grid covering bounds plus a two pixel margin.
func NewGrid(bounds geometry.Rect) Grid {
	minX := math.Floor(bounds.X) - 2
	minY := math.Floor(bounds.Y) - 2
	maxX := math.Ceil(bounds.X+bounds.Width) + 2
	maxY := math.Ceil(bounds.Y+bounds.Height) + 2
	return Grid{
		Origin: geometry.Point2D{X: minX, Y: minY},
		Width:  int(maxX-minX) + 1,
		Height: int(maxY-minY) + 1,
	}
}

// Rasterize fills a single ring into a fresh mask (0 or 255 per pixel).
func (g Grid) Rasterize(ring geometry.Ring) []byte {
	out := make([]byte, g.Width*g.Height)
	g.fill(out, ring)
	return out
}

// RasterizeShape fills every ring of the shape with the even-odd rule.
func (g Grid) RasterizeShape(s geometry.CompoundShape) []byte {
	out := make([]byte, g.Width*g.Height)
	for _, r := range s.Rings {
		xorInto(out, g.Rasterize(r))
	}
	return out
}

func (g Grid) fill(dst []byte, ring geometry.Ring) {
	open := ring.Open()
	if len(open) < 3 {
		return
	}
	z := vector.NewRasterizer(g.Width, g.Height)
	for i, p := range open {
		x := float32(p.X - g.Origin.X + 0.5)
		y := float32(p.Y - g.Origin.Y + 0.5)
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()

	alpha := image.NewAlpha(image.Rect(0, 0, g.Width, g.Height))
	z.Draw(alpha, alpha.Bounds(), image.Opaque, image.Point{})
	for i, a := range alpha.Pix {
		if a > coverageCutoff {
			dst[i] = 255
		}
	}
}

// ToScene converts a mask pixel position to scene coordinates.
func (g Grid) ToScene(p image.Point) geometry.Point2D {
	return geometry.Point2D{X: g.Origin.X + float64(p.X), Y: g.Origin.Y + float64(p.Y)}
}

// Trace converts a mask back into rings: outer boundaries, the holes inside
// them, and any islands inside those holes.
func (g Grid) Trace(data []byte) ([]geometry.Ring, error) {
	var rings []geometry.Ring
	err := g.trace(data, &rings, 0)
	return rings, err
}

// maxIslandDepth bounds the outer/hole/island recursion.
const maxIslandDepth = 8

func (g Grid) trace(data []byte, rings *[]geometry.Ring, depth int) error {
	if depth > maxIslandDepth {
		return nil
	}
	outer, err := g.external(data)
	if err != nil {
		return err
	}
	if len(outer) == 0 {
		return nil
	}
	*rings = append(*rings, outer...)

	filled := make([]byte, len(data))
	for _, r := range outer {
		orInto(filled, g.Rasterize(r))
	}

	holes := make([]byte, len(data))
	found := false
	for i := range data {
		if filled[i] != 0 && data[i] == 0 {
			holes[i] = 255
			found = true
		}
	}
	if !found {
		return nil
	}

	holeRings, err := g.external(holes)
	if err != nil {
		return err
	}
	*rings = append(*rings, holeRings...)

	holeFilled := make([]byte, len(data))
	for _, r := range holeRings {
		orInto(holeFilled, g.Rasterize(r))
	}
	islands := make([]byte, len(data))
	found = false
	for i := range data {
		if holeFilled[i] != 0 && data[i] != 0 {
			islands[i] = 255
			found = true
		}
	}
	if !found {
		return nil
	}
	return g.trace(islands, rings, depth+1)
}

// external traces the outermost contours of a mask.
func (g Grid) external(data []byte) ([]geometry.Ring, error) {
	m, err := gocv.NewMatFromBytes(g.Height, g.Width, gocv.MatTypeCV8U, data)
	if err != nil {
		return nil, fmt.Errorf("mask: failed to wrap mask: %w", err)
	}
	defer m.Close()

	contours := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	rings := make([]geometry.Ring, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		pts := contours.At(i).ToPoints()
		if len(pts) < 3 {
			continue
		}
		ring := make(geometry.Ring, len(pts))
		for j, p := range pts {
			ring[j] = g.ToScene(p)
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

func orInto(dst, src []byte) {
	for i := range dst {
		dst[i] |= src[i]
	}
}
