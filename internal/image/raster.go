// Package image provides background raster loading for the annotation canvas.
package image

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"coco-annotator/pkg/geometry"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Raster is the decoded background image of one annotated picture. The pixel
// buffer is normalised to RGBA so the magic wand can read it directly.
type Raster struct {
	Path   string      // Original file path or URL, informational
	Format string      // Decoder name ("png", "jpeg", "tiff", ...)
	Image  image.Image // Decoded image as returned by the decoder
	pixels *image.RGBA // Lazily converted RGBA copy
}

// Load decodes an image file from disk.
func Load(path string) (*Raster, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	r, err := Decode(file)
	if err != nil {
		return nil, err
	}
	r.Path = path
	return r, nil
}

// Decode decodes an image stream.
func Decode(rd io.Reader) (*Raster, error) {
	img, format, err := image.Decode(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &Raster{Format: format, Image: img}, nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (*Raster, error) {
	return Decode(bytes.NewReader(data))
}

// FromImage wraps an already decoded image.
func FromImage(img image.Image) *Raster {
	return &Raster{Image: img}
}

// Width returns the image width in pixels.
func (r *Raster) Width() int {
	if r == nil || r.Image == nil {
		return 0
	}
	return r.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (r *Raster) Height() int {
	if r == nil || r.Image == nil {
		return 0
	}
	return r.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (r *Raster) Size() geometry.Size {
	return geometry.Size{
		Width:  float64(r.Width()),
		Height: float64(r.Height()),
	}
}

// RGBA returns the pixels as a zero-origin RGBA image, converting on first use.
func (r *Raster) RGBA() *image.RGBA {
	if r == nil || r.Image == nil {
		return nil
	}
	if r.pixels != nil {
		return r.pixels
	}
	b := r.Image.Bounds()
	if rgba, ok := r.Image.(*image.RGBA); ok && b.Min == (image.Point{}) {
		r.pixels = rgba
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), r.Image, b.Min, draw.Src)
	r.pixels = rgba
	return rgba
}

// PixelAt returns the color at the specified pixel coordinates.
func (r *Raster) PixelAt(x, y int) color.Color {
	if r == nil || r.Image == nil {
		return color.Black
	}
	bounds := r.Image.Bounds()
	x += bounds.Min.X
	y += bounds.Min.Y
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return color.Black
	}
	return r.Image.At(x, y)
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg", ".bmp", ".webp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
