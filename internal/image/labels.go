package image

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"cell-annotator/internal/errs"
	"cell-annotator/pkg/geometry"
)

// Labels is a label image: each pixel holds the id of the entity it belongs
// to, or the background value.
type Labels struct {
	Width  int
	Height int
	Pix    []uint32
}

// NewLabels creates an all-background label image.
func NewLabels(width, height int) *Labels {
	return &Labels{Width: width, Height: height, Pix: make([]uint32, width*height)}
}

// LabelsFromRows builds a label image from row slices, mostly for tests.
func LabelsFromRows(rows [][]uint32) (*Labels, error) {
	if len(rows) == 0 {
		return NewLabels(0, 0), nil
	}
	l := NewLabels(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != l.Width {
			return nil, fmt.Errorf("%w: row %d has %d labels, want %d", errs.ErrInvalidShape, y, len(row), l.Width)
		}
		copy(l.Pix[y*l.Width:], row)
	}
	return l, nil
}

// At returns the label at (x, y).
func (l *Labels) At(x, y int) uint32 {
	return l.Pix[y*l.Width+x]
}

// Frame returns the image rectangle.
func (l *Labels) Frame() geometry.RectInt {
	return geometry.RectInt{Width: l.Width, Height: l.Height}
}

// LoadLabels reads a label image from an 8- or 16-bit grayscale PNG or TIFF.
// Colour images are read through their gray conversion.
func LoadLabels(path string) (*Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open label image: %v", errs.ErrIO, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode label image %s: %v", errs.ErrFormat, path, err)
	}
	return LabelsFromImage(img), nil
}

// LabelsFromImage converts a decoded image into labels.
func LabelsFromImage(img image.Image) *Labels {
	b := img.Bounds()
	l := NewLabels(b.Dx(), b.Dy())
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			l.Pix[y*l.Width+x] = labelValue(img, b.Min.X+x, b.Min.Y+y)
		}
	}
	return l
}

func labelValue(img image.Image, x, y int) uint32 {
	switch im := img.(type) {
	case *image.Gray:
		return uint32(im.GrayAt(x, y).Y)
	case *image.Gray16:
		return uint32(im.Gray16At(x, y).Y)
	case *image.Paletted:
		return uint32(im.ColorIndexAt(x, y))
	default:
		return uint32(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
	}
}
