// Package image loads the rasters the annotator works on: label images that
// seed entities and grayscale channel images that features are measured
// against.
package image

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"cell-annotator/internal/errs"
	"cell-annotator/pkg/geometry"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"
)

// Channel is one grayscale channel image with intensities as float64.
type Channel struct {
	Name   string
	Path   string
	Width  int
	Height int
	Pix    []float64
}

// NewChannel creates a zero channel of the given size.
func NewChannel(name string, width, height int) *Channel {
	return &Channel{Name: name, Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the intensity at (x, y).
func (c *Channel) At(x, y int) float64 {
	return c.Pix[y*c.Width+x]
}

// Frame returns the image rectangle.
func (c *Channel) Frame() geometry.RectInt {
	return geometry.RectInt{Width: c.Width, Height: c.Height}
}

// LoadChannel loads a channel image. Formats the Go decoders know (PNG,
// JPEG, integer TIFF) are read directly; anything else, such as float TIFF,
// is read through OpenCV at its native depth.
func LoadChannel(name, path string) (*Channel, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open image: %v", errs.ErrIO, err)
	}
	img, _, decodeErr := image.Decode(file)
	file.Close()

	var c *Channel
	if decodeErr == nil {
		c = channelFromImage(img)
	} else {
		c, err = loadWithOpenCV(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode image %s: %v (opencv: %v)", errs.ErrFormat, path, decodeErr, err)
		}
	}
	c.Name = name
	c.Path = path
	return c, nil
}

func channelFromImage(img image.Image) *Channel {
	b := img.Bounds()
	c := NewChannel("", b.Dx(), b.Dy())
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			px, py := b.Min.X+x, b.Min.Y+y
			var v float64
			switch im := img.(type) {
			case *image.Gray:
				v = float64(im.GrayAt(px, py).Y)
			case *image.Gray16:
				v = float64(im.Gray16At(px, py).Y)
			default:
				v = float64(color.Gray16Model.Convert(img.At(px, py)).(color.Gray16).Y)
			}
			c.Pix[y*c.Width+x] = v
		}
	}
	return c
}

func loadWithOpenCV(path string) (*Channel, error) {
	mat := gocv.IMRead(path, gocv.IMReadAnyDepth|gocv.IMReadGrayScale)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("opencv could not read %s", path)
	}

	f := gocv.NewMat()
	defer f.Close()
	mat.ConvertTo(&f, gocv.MatTypeCV32F)

	c := NewChannel("", f.Cols(), f.Rows())
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			c.Pix[y*c.Width+x] = float64(f.GetFloatAt(y, x))
		}
	}
	return c, nil
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
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
