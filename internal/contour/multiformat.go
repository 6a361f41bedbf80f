package contour

import (
	"fmt"

	"cell-annotator/internal/errs"
	"cell-annotator/internal/mask"
	"cell-annotator/pkg/geometry"
)

// Raster is a mask placed in the image frame.
type Raster struct {
	Slice geometry.RectInt
	Mask  *mask.Mask
}

// Clone returns a copy that shares no pixel storage.
func (r Raster) Clone() Raster {
	if r.Mask == nil {
		return r
	}
	return Raster{Slice: r.Slice, Mask: r.Mask.Clone()}
}

// RasterCodec rasterises polygons over their tight bounds and traces rasters
// back into polygons.
type RasterCodec struct{}

// MaxRasterArea bounds the pixel count of a rasterised outline.
const MaxRasterArea = 1 << 26

// Encode rasterises polys over their bounding rectangle. Outlines whose
// bounds cover more than MaxRasterArea pixels fail with ErrOutOfBounds.
func (RasterCodec) Encode(polys []geometry.Polygon) (Raster, error) {
	frame := geometry.PolygonsBounds(polys)
	if frame.Empty() {
		return Raster{}, fmt.Errorf("%w: no vertices to rasterise", errs.ErrEmpty)
	}
	if frame.Width > MaxRasterArea || frame.Height > MaxRasterArea || frame.Width*frame.Height > MaxRasterArea {
		return Raster{}, fmt.Errorf("%w: outline bounds %s exceed %d pixels", errs.ErrOutOfBounds, frame, MaxRasterArea)
	}
	return Raster{Slice: frame, Mask: mask.Rasterize(polys, frame)}, nil
}

// Decode traces the raster's borders.
func (RasterCodec) Decode(r Raster) ([]geometry.Polygon, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	return mask.Trace(r.Mask, geometry.Pt(r.Slice.X, r.Slice.Y)), nil
}

func (r Raster) validate() error {
	if r.Mask == nil {
		return fmt.Errorf("%w: nil mask", errs.ErrInvalidShape)
	}
	if r.Mask.Width != r.Slice.Width || r.Mask.Height != r.Slice.Height {
		return fmt.Errorf("%w: mask is %dx%d but slice %s is %dx%d", errs.ErrInvalidShape,
			r.Mask.Height, r.Mask.Width, r.Slice, r.Slice.Height, r.Slice.Width)
	}
	return nil
}

type source int

const (
	sourceNone source = iota
	sourcePolygons
	sourceRaster
)

type slot[T any] struct {
	value T
	valid bool
}

// MultiFormat holds one outline in canonical polygon form together with
// cached alternate encodings. Setting any encoding replaces the canonical
// polygons and drops every other cached encoding; those are regenerated on
// the next read. Values handed out are copies.
//
// A raster assignment is decoded lazily: the polygons are traced on the
// first read that needs them.
type MultiFormat struct {
	polygons []geometry.Polygon
	src      source

	str    slot[string]
	raster slot[Raster]

	strCodec    StringCodec
	rasterCodec RasterCodec
}

// SetPolygons replaces the outline.
func (f *MultiFormat) SetPolygons(polys []geometry.Polygon) {
	f.reset()
	f.polygons = geometry.ClonePolygons(polys)
	f.src = sourcePolygons
}

// AsPolygons returns the canonical polygon list.
func (f *MultiFormat) AsPolygons() ([]geometry.Polygon, error) {
	if err := f.ensurePolygons(); err != nil {
		return nil, err
	}
	return geometry.ClonePolygons(f.polygons), nil
}

// SetString replaces the outline with a parsed contour string.
func (f *MultiFormat) SetString(s string) error {
	polys, err := f.strCodec.Decode(s)
	if err != nil {
		return err
	}
	f.SetPolygons(polys)
	f.str = slot[string]{value: s, valid: true}
	return nil
}

// AsString returns the contour string. It fails with ErrFormat when the
// outline has more than one polygon.
func (f *MultiFormat) AsString() (string, error) {
	if f.str.valid {
		return f.str.value, nil
	}
	if err := f.ensurePolygons(); err != nil {
		return "", err
	}
	s, err := f.strCodec.Encode(f.polygons)
	if err != nil {
		return "", err
	}
	f.str = slot[string]{value: s, valid: true}
	return s, nil
}

// SetRaster replaces the outline with a placed mask. The mask is copied.
func (f *MultiFormat) SetRaster(r Raster) error {
	if err := r.validate(); err != nil {
		return err
	}
	f.reset()
	f.raster = slot[Raster]{value: r.Clone(), valid: true}
	f.src = sourceRaster
	return nil
}

// AsRaster returns the outline as a placed mask.
func (f *MultiFormat) AsRaster() (Raster, error) {
	if f.raster.valid {
		return f.raster.value.Clone(), nil
	}
	if err := f.ensurePolygons(); err != nil {
		return Raster{}, err
	}
	r, err := f.rasterCodec.Encode(f.polygons)
	if err != nil {
		return Raster{}, err
	}
	f.raster = slot[Raster]{value: r, valid: true}
	return r.Clone(), nil
}

// Empty reports whether no outline has been assigned.
func (f *MultiFormat) Empty() bool {
	return f.src == sourceNone
}

func (f *MultiFormat) ensurePolygons() error {
	switch f.src {
	case sourceNone:
		return fmt.Errorf("%w: no outline assigned", errs.ErrEmpty)
	case sourceRaster:
		if f.polygons != nil {
			return nil
		}
		polys, err := f.rasterCodec.Decode(f.raster.value)
		if err != nil {
			return err
		}
		f.polygons = polys
	}
	return nil
}

func (f *MultiFormat) reset() {
	f.polygons = nil
	f.src = sourceNone
	f.str = slot[string]{}
	f.raster = slot[Raster]{}
}
