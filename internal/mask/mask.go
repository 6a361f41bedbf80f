// Package mask provides boolean rasters and the conversions between rasters
// and integer polygons: scanline rasterisation, border tracing and
// 4-connected morphology.
package mask

import (
	"fmt"
	"strings"

	"cell-annotator/pkg/geometry"
)

// Mask is a rectangular boolean raster stored row-major.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// New creates an all-false mask of the given size.
func New(width, height int) *Mask {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("mask: negative size %dx%d", width, height))
	}
	return &Mask{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// Parse builds a mask from rows of text where '#', '1' and 'x' are true and
// anything else is false. All rows must have the same length.
func Parse(rows ...string) (*Mask, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	w := len(rows[0])
	m := New(w, len(rows))
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d columns, want %d", y, len(row), w)
		}
		for x, c := range row {
			m.Pix[y*w+x] = c == '#' || c == '1' || c == 'x'
		}
	}
	return m, nil
}

// MustParse is Parse for fixtures; it panics on malformed input.
func MustParse(rows ...string) *Mask {
	m, err := Parse(rows...)
	if err != nil {
		panic(err)
	}
	return m
}

// At returns the pixel at (x, y); pixels outside the raster are false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set writes the pixel at (x, y). Writes outside the raster are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Width: m.Width, Height: m.Height, Pix: make([]bool, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Count returns the number of true pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Any reports whether at least one pixel is set.
func (m *Mask) Any() bool {
	for _, v := range m.Pix {
		if v {
			return true
		}
	}
	return false
}

// Bounds returns the tight rectangle around the true pixels, in mask
// coordinates. An empty mask yields the zero rectangle.
func (m *Mask) Bounds() geometry.RectInt {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if !v {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return geometry.RectInt{}
	}
	return geometry.RectInt{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// Crop returns a copy of the region r (mask coordinates). Parts of r outside
// the raster read as false.
func (m *Mask) Crop(r geometry.RectInt) *Mask {
	out := New(max(r.Width, 0), max(r.Height, 0))
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			out.Pix[y*out.Width+x] = m.At(r.X+x, r.Y+y)
		}
	}
	return out
}

// Paste ORs src into m with src's origin at (dx, dy) in m's coordinates.
func (m *Mask) Paste(src *Mask, dx, dy int) {
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			if src.Pix[y*src.Width+x] {
				m.Set(x+dx, y+dy, true)
			}
		}
	}
}

// And clears every pixel of m that is not set in other, where other's origin
// sits at (dx, dy) in m's coordinates.
func (m *Mask) And(other *Mask, dx, dy int) {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] && !other.At(x-dx, y-dy) {
				m.Pix[y*m.Width+x] = false
			}
		}
	}
}

// AndNot clears every pixel of m that is set in other (origin at (dx, dy)).
func (m *Mask) AndNot(other *Mask, dx, dy int) {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] && other.At(x-dx, y-dy) {
				m.Pix[y*m.Width+x] = false
			}
		}
	}
}

// Equal reports whether both masks have the same size and pixels.
func (m *Mask) Equal(other *Mask) bool {
	if m.Width != other.Width || m.Height != other.Height {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// Points returns the true pixels in raster order, offset by origin.
func (m *Mask) Points(origin geometry.PointInt) []geometry.PointInt {
	var pts []geometry.PointInt
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				pts = append(pts, geometry.PointInt{X: origin.X + x, Y: origin.Y + y})
			}
		}
	}
	return pts
}

// String renders the mask with '#' for set pixels, one row per line.
func (m *Mask) String() string {
	var sb strings.Builder
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
