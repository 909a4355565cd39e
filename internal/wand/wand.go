// Package wand implements magic wand selection: colour flood fill from a seed
// pixel, border smoothing and contour tracing into a scene ring.
package wand

import (
	"errors"
	"fmt"
	"image"

	annimage "coco-annotator/internal/image"
	"coco-annotator/pkg/colorutil"
	"coco-annotator/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrNoRaster is returned when selection is attempted without an image.
var ErrNoRaster = errors.New("wand: no raster")

// Settings controls a selection.
type Settings struct {
	Threshold int `json:"threshold" yaml:"threshold" validate:"gte=0,lte=255"`
	Blur      int `json:"blur" yaml:"blur" validate:"gte=0,lte=200"`
}

// DefaultSettings returns the initial wand settings.
func DefaultSettings() Settings {
	return Settings{Threshold: 30, Blur: 30}
}

// BlurRadius returns the effective smoothing radius; it is never below one.
func (s Settings) BlurRadius() int {
	r := s.Blur
	if r < 0 {
		r = -r
	}
	if r < 1 {
		r = 1
	}
	return r
}

// Mask is an 8-bit selection mask (0 or 255 per pixel).
type Mask struct {
	Data          []byte
	Width, Height int
}

// Count returns the number of selected pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Select runs flood fill, border smoothing and tracing from pixel (x, y). The
// returned ring is in scene coordinates. ok is false when the seed is
// outside the raster or nothing could be traced.
func Select(r *annimage.Raster, x, y int, s Settings) (geometry.Ring, bool, error) {
	pix := r.RGBA()
	if pix == nil {
		return nil, false, ErrNoRaster
	}
	w, h := pix.Bounds().Dx(), pix.Bounds().Dy()
	if x < 0 || y < 0 || x >= w || y >= h {
		return nil, false, nil
	}

	flood := FloodFill(pix, x, y, s.Threshold)
	smooth, err := BlurBorder(flood, s.BlurRadius())
	if err != nil {
		return nil, false, err
	}
	contours, err := TraceOuter(smooth)
	if err != nil {
		return nil, false, err
	}
	if len(contours) == 0 {
		return nil, false, nil
	}
	return ToScene(contours[0], w, h), true, nil
}

// ToScene converts traced pixel points to a closed scene ring. Each point
// lands on its pixel centre, relative to the image centre.
func ToScene(points []image.Point, w, h int) geometry.Ring {
	cx := float64(w) / 2
	cy := float64(h) / 2
	ring := make(geometry.Ring, len(points))
	for i, p := range points {
		ring[i] = geometry.Point2D{
			X: float64(p.X) + 0.5 - cx,
			Y: float64(p.Y) + 0.5 - cy,
		}
	}
	return ring
}

// FloodFill selects the 4-connected region around (x, y) whose colours differ
// from the seed colour by at most threshold in every channel.
func FloodFill(pix *image.RGBA, x, y, threshold int) Mask {
	b := pix.Bounds()
	w, h := b.Dx(), b.Dy()
	m := Mask{Data: make([]byte, w*h), Width: w, Height: h}
	if x < 0 || y < 0 || x >= w || y >= h {
		return m
	}

	at := func(px, py int) [4]uint8 {
		o := pix.PixOffset(b.Min.X+px, b.Min.Y+py)
		return [4]uint8{pix.Pix[o], pix.Pix[o+1], pix.Pix[o+2], pix.Pix[o+3]}
	}
	seed := at(x, y)

	stack := []image.Point{{X: x, Y: y}}
	m.Data[y*w+x] = 255
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			i := ny*w + nx
			if m.Data[i] != 0 {
				continue
			}
			if colorutil.MaxChannelDiff(seed, at(nx, ny)) > threshold {
				continue
			}
			m.Data[i] = 255
			stack = append(stack, image.Point{X: nx, Y: ny})
		}
	}
	return m
}

// BlurBorder smooths the outline of a mask. The mask is Gaussian blurred and
// re-thresholded, but only pixels within radius of the original boundary take
// the blurred value; the interior and the far exterior are left as they were.
func BlurBorder(m Mask, radius int) (Mask, error) {
	if radius < 1 {
		radius = 1
	}
	src, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8U, m.Data)
	if err != nil {
		return Mask{}, fmt.Errorf("wand: failed to wrap mask: %w", err)
	}
	defer src.Close()

	k := 2*radius + 1
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderReplicate)
	gocv.Threshold(blurred, &blurred, 127, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: k, Y: k})
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Dilate(src, &dilated, kernel)
	gocv.Erode(src, &eroded, kernel)

	band := gocv.NewMat()
	defer band.Close()
	gocv.BitwiseXor(dilated, eroded, &band)

	smooth := blurred.ToBytes()
	bandData := band.ToBytes()
	out := Mask{Data: make([]byte, len(m.Data)), Width: m.Width, Height: m.Height}
	for i := range m.Data {
		if bandData[i] != 0 {
			out.Data[i] = smooth[i]
		} else {
			out.Data[i] = m.Data[i]
		}
	}
	return out, nil
}

// TraceOuter returns the outer contours of a mask as full pixel chains.
// Inner (hole) contours are discarded.
func TraceOuter(m Mask) ([][]image.Point, error) {
	if m.Count() == 0 {
		return nil, nil
	}
	src, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8U, m.Data)
	if err != nil {
		return nil, fmt.Errorf("wand: failed to wrap mask: %w", err)
	}
	defer src.Close()

	contours := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	out := make([][]image.Point, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		pts := contours.At(i).ToPoints()
		if len(pts) == 0 {
			continue
		}
		out = append(out, pts)
	}
	return out, nil
}
