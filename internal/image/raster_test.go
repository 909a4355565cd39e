package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	src.Set(1, 2, color.NRGBA{R: 200, A: 255})

	r, err := DecodeBytes(encodePNG(t, src))
	require.NoError(t, err)

	assert.Equal(t, "png", r.Format)
	assert.Equal(t, 4, r.Width())
	assert.Equal(t, 3, r.Height())
	assert.Equal(t, 4.0, r.Size().Width)

	rgba := r.RGBA()
	require.NotNil(t, rgba)
	assert.Equal(t, uint8(200), rgba.RGBAAt(1, 2).R)
	assert.Same(t, rgba, r.RGBA())
}

func TestRGBANormalisesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 12, 12))
	src.Set(10, 10, color.RGBA{G: 9, A: 255})

	r := FromImage(src)

	assert.Equal(t, image.Rect(0, 0, 2, 2), r.RGBA().Bounds())
	assert.Equal(t, uint8(9), r.RGBA().RGBAAt(0, 0).G)
	_, g, _, _ := r.PixelAt(0, 0).RGBA()
	assert.Equal(t, uint32(9*0x101), g)
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, image.NewGray(image.Rect(0, 0, 5, 5))), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, r.Path)
	assert.Equal(t, 5, r.Width())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	_, err = DecodeBytes([]byte("not an image"))
	assert.Error(t, err)
}

func TestNilRasterIsSafe(t *testing.T) {
	var r *Raster
	assert.Equal(t, 0, r.Width())
	assert.Nil(t, r.RGBA())
	assert.Equal(t, color.Black, r.PixelAt(0, 0))
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, IsSupportedFormat("a/b/photo.JPG"))
	assert.True(t, IsSupportedFormat("scan.tif"))
	assert.False(t, IsSupportedFormat("notes.txt"))
}
