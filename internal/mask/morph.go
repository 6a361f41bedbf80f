package mask

import (
	"fmt"
	"image"

	"cell-annotator/pkg/geometry"

	"gocv.io/x/gocv"
)

// Dilate grows the mask by n pixels with a 4-connected (cross) structuring
// element. The result is n pixels larger on every side, so mask pixel (0,0)
// moves to (n,n).
func Dilate(m *Mask, n int) (*Mask, error) {
	if n < 0 {
		return nil, fmt.Errorf("dilate by %d pixels", n)
	}
	if n == 0 {
		return m.Clone(), nil
	}

	src := toMat(m, n)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	element := gocv.GetStructuringElement(gocv.MorphCross, image.Point{3, 3})
	defer element.Close()

	for i := 0; i < n; i++ {
		gocv.Dilate(src, &dst, element)
		dst.CopyTo(&src)
	}
	return fromMat(src), nil
}

// Erode shrinks the mask by n pixels with a 4-connected (cross) structuring
// element. Pixels outside the raster count as background. The result has the
// same size as m.
func Erode(m *Mask, n int) (*Mask, error) {
	if n < 0 {
		return nil, fmt.Errorf("erode by %d pixels", n)
	}
	if n == 0 {
		return m.Clone(), nil
	}

	// One background pixel of padding makes the raster edge erode too.
	src := toMat(m, 1)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	element := gocv.GetStructuringElement(gocv.MorphCross, image.Point{3, 3})
	defer element.Close()

	for i := 0; i < n; i++ {
		gocv.Erode(src, &dst, element)
		dst.CopyTo(&src)
		if gocv.CountNonZero(src) == 0 {
			break
		}
	}
	padded := fromMat(src)
	return padded.Crop(geometry.RectInt{X: 1, Y: 1, Width: m.Width, Height: m.Height}), nil
}

// toMat copies the mask into an 8-bit single-channel Mat with pad pixels of
// background on every side.
func toMat(m *Mask, pad int) gocv.Mat {
	mat := gocv.NewMatWithSize(m.Height+2*pad, m.Width+2*pad, gocv.MatTypeCV8U)
	mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				mat.SetUCharAt(y+pad, x+pad, 255)
			}
		}
	}
	return mat
}

func fromMat(mat gocv.Mat) *Mask {
	out := New(mat.Cols(), mat.Rows())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			out.Pix[y*out.Width+x] = mat.GetUCharAt(y, x) != 0
		}
	}
	return out
}
