// Package entity holds the annotated cell regions of an image: the Entity
// with its mask and contour views, the Manager that owns and numbers them,
// and the operations that derive new entities from old ones.
package entity

import (
	"fmt"

	"cell-annotator/internal/contour"
	"cell-annotator/internal/errs"
	"cell-annotator/internal/mask"
	"cell-annotator/pkg/geometry"
)

// Entity is one labelled region of the image plane.
//
// The mask and the contours are two views of the same geometry. Every
// geometry setter replaces both: the view that was supplied is stored and the
// other is derived, the contours lazily on first read. Accessors return
// copies.
type Entity struct {
	id int

	slice geometry.RectInt
	mask  *mask.Mask
	bbox  geometry.RectInt

	outline contour.MultiFormat

	attrs        Attributes
	historical   bool
	predecessors []int
}

func newEntity(id int) *Entity {
	return &Entity{id: id, attrs: make(Attributes)}
}

// ID returns the entity id.
func (e *Entity) ID() int { return e.id }

// HasGeometry reports whether a geometry setter has succeeded on e.
func (e *Entity) HasGeometry() bool { return e.mask != nil }

// FromPolygon sets the geometry from integer polygons. The mask covers the
// inclusive bounds of all vertices and is filled with the even-odd rule; the
// contours are re-traced from that mask when next read.
func (e *Entity) FromPolygon(polys []geometry.Polygon) error {
	if err := e.checkMutable(); err != nil {
		return err
	}
	r, err := rasterise(polys)
	if err != nil {
		return err
	}
	return e.setRaster(r.Slice, r.Mask)
}

// FromContours is FromPolygon that keeps polys verbatim as the contour view.
func (e *Entity) FromContours(polys []geometry.Polygon) error {
	if err := e.checkMutable(); err != nil {
		return err
	}
	r, err := rasterise(polys)
	if err != nil {
		return err
	}
	e.slice = r.Slice
	e.mask = r.Mask
	e.bbox = r.Mask.Bounds().Translate(r.Slice.Y, r.Slice.X)
	e.outline.SetPolygons(polys)
	return nil
}

// FromMask sets the geometry from a raster placed at slice and moved by
// offset (dy, dx). The mask is copied. It fails with ErrInvalidShape when the
// mask size disagrees with slice and with ErrEmpty when no pixel is set.
func (e *Entity) FromMask(slice geometry.RectInt, m *mask.Mask, offset geometry.PointInt) error {
	if err := e.checkMutable(); err != nil {
		return err
	}
	if m == nil || m.Width != slice.Width || m.Height != slice.Height {
		w, h := 0, 0
		if m != nil {
			w, h = m.Width, m.Height
		}
		return fmt.Errorf("%w: entity %d: mask is %dx%d but slice %s", errs.ErrInvalidShape, e.id, h, w, slice)
	}
	return e.setRaster(slice.Translate(offset.Y, offset.X), m.Clone())
}

// setRaster installs an owned mask and schedules the contours for tracing.
func (e *Entity) setRaster(slice geometry.RectInt, m *mask.Mask) error {
	local := m.Bounds()
	if local.Empty() {
		return fmt.Errorf("%w: entity %d: mask has no pixels", errs.ErrEmpty, e.id)
	}
	if err := e.outline.SetRaster(contour.Raster{Slice: slice, Mask: m}); err != nil {
		return err
	}
	e.slice = slice
	e.mask = m
	e.bbox = local.Translate(slice.Y, slice.X)
	return nil
}

func rasterise(polys []geometry.Polygon) (contour.Raster, error) {
	nonEmpty := false
	for _, p := range polys {
		if len(p) > 0 {
			nonEmpty = true
			break
		}
	}
	if !nonEmpty {
		return contour.Raster{}, fmt.Errorf("%w: no vertices", errs.ErrEmpty)
	}
	return contour.RasterCodec{}.Encode(polys)
}

func (e *Entity) checkMutable() error {
	if e.historical {
		return fmt.Errorf("%w: entity %d is historical", errs.ErrInvalidArgument, e.id)
	}
	return nil
}

// Mask returns a copy of the raster, or nil before any geometry is set.
func (e *Entity) Mask() *mask.Mask {
	if e.mask == nil {
		return nil
	}
	return e.mask.Clone()
}

// MaskSlice returns the placement of the mask in the image frame.
func (e *Entity) MaskSlice() geometry.RectInt { return e.slice }

// Raster returns a copy of the mask together with its placement.
func (e *Entity) Raster() contour.Raster {
	return contour.Raster{Slice: e.slice, Mask: e.Mask()}
}

// BoundingBox returns the tight rectangle around the set pixels.
func (e *Entity) BoundingBox() geometry.RectInt { return e.bbox }

// Contours returns the outline polygons in image coordinates, outer borders
// first, then holes.
func (e *Entity) Contours() []geometry.Polygon {
	if e.outline.Empty() {
		return nil
	}
	polys, err := e.outline.AsPolygons()
	if err != nil {
		// The stored raster was validated when it was set.
		panic(fmt.Sprintf("entity %d: %v", e.id, err))
	}
	return polys
}

// ContourString returns the single-polygon contour string. It fails with
// ErrFormat when the entity has holes or several components.
func (e *Entity) ContourString() (string, error) {
	if e.outline.Empty() {
		return "", fmt.Errorf("%w: entity %d has no geometry", errs.ErrEmpty, e.id)
	}
	return e.outline.AsString()
}

// Area returns the number of set pixels.
func (e *Entity) Area() int {
	if e.mask == nil {
		return 0
	}
	return e.mask.Count()
}

// Centroid returns the mean pixel position in image coordinates.
func (e *Entity) Centroid() (x, y float64) {
	if e.mask == nil {
		return 0, 0
	}
	var sx, sy, n int
	for _, p := range e.mask.Points(geometry.Pt(e.slice.X, e.slice.Y)) {
		sx += p.X
		sy += p.Y
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return float64(sx) / float64(n), float64(sy) / float64(n)
}

// Historical reports whether e is a frozen predecessor of a merge or split.
func (e *Entity) Historical() bool { return e.historical }

// Predecessors returns the ids e was derived from, ascending.
func (e *Entity) Predecessors() []int {
	if len(e.predecessors) == 0 {
		return nil
	}
	out := make([]int, len(e.predecessors))
	copy(out, e.predecessors)
	return out
}

// SetAttribute stores a tag. Accepted values are those of ValueOf.
func (e *Entity) SetAttribute(key string, value any) error {
	v, err := ValueOf(value)
	if err != nil {
		return fmt.Errorf("entity %d: attribute %q: %w", e.id, key, err)
	}
	e.attrs[key] = v
	return nil
}

// Attribute returns a tag.
func (e *Entity) Attribute(key string) (Value, bool) {
	v, ok := e.attrs[key]
	return v, ok
}

// DeleteAttribute removes a tag.
func (e *Entity) DeleteAttribute(key string) {
	delete(e.attrs, key)
}

// AttributeKeys returns the tag names, sorted.
func (e *Entity) AttributeKeys() []string {
	return e.attrs.Keys()
}

// Attributes returns a copy of the tag bag.
func (e *Entity) Attributes() Attributes {
	return e.attrs.Clone()
}
