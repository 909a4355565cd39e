// Command wandtest runs the magic wand on an image and prints the traced
// region as a COCO segmentation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	annimage "coco-annotator/internal/image"
	"coco-annotator/internal/mask"
	"coco-annotator/internal/payload"
	"coco-annotator/internal/wand"
	"coco-annotator/pkg/colorutil"
	"coco-annotator/pkg/geometry"
)

func main() {
	imagePath := flag.String("image", "", "Path to image (PNG, JPEG or TIFF)")
	x := flag.Int("x", -1, "Seed pixel column")
	y := flag.Int("y", -1, "Seed pixel row")
	threshold := flag.Int("threshold", wand.DefaultSettings().Threshold, "Colour distance threshold (0-255)")
	blur := flag.Int("blur", wand.DefaultSettings().Blur, "Border blur (0-200)")
	out := flag.String("out", "", "Optional PNG path for an overlay of the selection")
	flag.Parse()

	if *imagePath == "" || *x < 0 || *y < 0 {
		fmt.Println("Usage: wandtest -image <path> -x <col> -y <row> [-threshold 30] [-blur 30] [-out overlay.png]")
		os.Exit(1)
	}

	raster, err := annimage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	size := raster.Size()
	fmt.Printf("Loaded %s image: %.0fx%.0f pixels\n", raster.Format, size.Width, size.Height)

	settings := wand.Settings{Threshold: *threshold, Blur: *blur}
	fmt.Printf("Seed: (%d, %d) threshold=%d blur=%d (radius %d)\n",
		*x, *y, settings.Threshold, settings.Blur, settings.BlurRadius())

	ring, ok, err := wand.Select(raster, *x, *y, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Selection failed: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("Nothing selected")
		os.Exit(2)
	}

	b := ring.Bounds()
	fmt.Printf("Selected %d points, area %.1f, bbox [%.1f %.1f %.1f %.1f] (scene units)\n",
		len(ring), ring.Area(), b.X, b.Y, b.Width, b.Height)

	seg := [][]float64{payload.FlatFromRing(ring, size)}
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(map[string]any{"segmentation": seg}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode: %v\n", err)
		os.Exit(1)
	}

	if *out != "" {
		if err := writeOverlay(*out, raster, ring); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write overlay: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Overlay written to %s\n", *out)
	}
}

// writeOverlay tints the selected pixels red.
func writeOverlay(path string, raster *annimage.Raster, ring geometry.Ring) error {
	src := raster.RGBA()
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	grid := mask.Grid{
		Origin: geometry.Point2D{X: 0.5 - float64(w)/2, Y: 0.5 - float64(h)/2},
		Width:  w,
		Height: h,
	}
	sel := grid.Rasterize(ring)
	tint := colorutil.WithAlpha(colorutil.Red, 0.5)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			c := src.RGBAAt(src.Bounds().Min.X+px, src.Bounds().Min.Y+py)
			if sel[py*w+px] != 0 {
				c = blend(c, tint)
			}
			dst.SetRGBA(px, py, c)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func blend(base, over color.RGBA) color.RGBA {
	a := float64(over.A) / 255
	mix := func(b, o uint8) uint8 { return uint8(float64(b)*(1-a) + float64(o)*a) }
	return color.RGBA{R: mix(base.R, over.R), G: mix(base.G, over.G), B: mix(base.B, over.B), A: 255}
}
