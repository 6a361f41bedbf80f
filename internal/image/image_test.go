package image

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"cell-annotator/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestLoadLabels16Bit(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 3, 2))
	img.SetGray16(0, 0, color.Gray16{Y: 1})
	img.SetGray16(2, 1, color.Gray16{Y: 40000})

	l, err := LoadLabels(writePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, 3, l.Width)
	assert.Equal(t, 2, l.Height)
	assert.Equal(t, []uint32{1, 0, 0, 0, 0, 40000}, l.Pix)
}

func TestLoadLabels8Bit(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(1, 0, color.Gray{Y: 7})

	l, err := LoadLabels(writePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), l.At(1, 0))
	assert.Equal(t, uint32(0), l.At(0, 1))
}

func TestLabelsFromRows(t *testing.T) {
	l, err := LabelsFromRows([][]uint32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), l.At(0, 1))

	_, err = LabelsFromRows([][]uint32{{1, 2}, {3}})
	assert.ErrorIs(t, err, errs.ErrInvalidShape)
}

func TestLoadChannel(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: 10})
	img.SetGray(1, 1, color.Gray{Y: 250})
	path := writePNG(t, img)

	c, err := LoadChannel("CD3", path)
	require.NoError(t, err)
	assert.Equal(t, "CD3", c.Name)
	assert.Equal(t, path, c.Path)
	assert.Equal(t, []float64{10, 0, 0, 250}, c.Pix)
}

func TestLoadChannelErrors(t *testing.T) {
	_, err := LoadChannel("x", filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, errs.ErrIO)

	bad := filepath.Join(t.TempDir(), "bad.tif")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))
	_, err = LoadChannel("x", bad)
	assert.ErrorIs(t, err, errs.ErrFormat)
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, IsSupportedFormat("a/B.TIF"))
	assert.True(t, IsSupportedFormat("c.png"))
	assert.False(t, IsSupportedFormat("d.json"))
}
