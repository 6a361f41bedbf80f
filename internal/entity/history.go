package entity

import (
	"fmt"
	"sort"

	"cell-annotator/internal/errs"
	"cell-annotator/internal/mask"
	"cell-annotator/pkg/geometry"
)

// Merge replaces two or more active entities by one new entity covering the
// union of their pixels. The inputs stay in the manager, marked historical,
// and become the predecessors of the result. Disjoint inputs are allowed and
// give an entity with several outer contours.
func (m *Manager) Merge(ids []int) (*Entity, error) {
	distinct := uniqueSorted(ids)
	if len(distinct) < 2 {
		return nil, fmt.Errorf("%w: merge needs at least two distinct ids, got %v", errs.ErrInvalidArgument, ids)
	}

	inputs := make([]*Entity, 0, len(distinct))
	var frame geometry.RectInt
	for _, id := range distinct {
		e, err := m.editable(id)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, e)
		frame = frame.Union(e.slice)
	}

	union := mask.New(frame.Width, frame.Height)
	for _, e := range inputs {
		union.Paste(e.mask, e.slice.X-frame.X, e.slice.Y-frame.Y)
	}
	tight := union.Bounds()

	merged := newEntity(m.ids.peek())
	if err := merged.setRaster(tight.Translate(frame.Y, frame.X), union.Crop(tight)); err != nil {
		return nil, err
	}
	merged.predecessors = distinct

	m.ids.take(merged.id)
	m.entities[merged.id] = merged
	for _, e := range inputs {
		e.historical = true
	}
	return merged, nil
}

// Split divides an active entity along closed paths. Each path is
// rasterised and intersected with the entity's pixels; a pixel inside
// several paths goes to the first. Pixels outside every path are dropped. A
// path that claims no pixel fails with ErrEmpty and nothing changes.
// Otherwise the source becomes historical and each part a new entity whose
// predecessor is the source.
func (m *Manager) Split(id int, paths []geometry.Polygon) ([]*Entity, error) {
	src, err := m.editable(id)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: split of %d needs at least one path", errs.ErrInvalidArgument, id)
	}

	claimed := mask.New(src.slice.Width, src.slice.Height)
	parts := make([]*mask.Mask, 0, len(paths))
	for i, p := range paths {
		part := mask.Rasterize([]geometry.Polygon{p}, src.slice)
		part.And(src.mask, 0, 0)
		part.AndNot(claimed, 0, 0)
		if !part.Any() {
			return nil, fmt.Errorf("%w: split path %d of entity %d covers no pixels", errs.ErrEmpty, i, id)
		}
		claimed.Paste(part, 0, 0)
		parts = append(parts, part)
	}

	// Ids are only taken once every part is known to be valid.
	out := make([]*Entity, 0, len(parts))
	for _, part := range parts {
		tight := part.Bounds()
		e := newEntity(m.ids.allocate())
		if err := e.setRaster(tight.Translate(src.slice.Y, src.slice.X), part.Crop(tight)); err != nil {
			// Unreachable: the part has pixels.
			panic(err)
		}
		e.predecessors = []int{id}
		m.entities[e.id] = e
		out = append(out, e)
	}
	src.historical = true
	return out, nil
}

// Shrink erodes an active entity by n pixels with a 4-connected element, in
// place and without history. Erosion that would remove every pixel fails
// with ErrEmpty and leaves the entity unchanged.
func (m *Manager) Shrink(id, n int) (*Entity, error) {
	e, err := m.editable(id)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: shrink by %d", errs.ErrInvalidArgument, n)
	}
	eroded, err := mask.Erode(e.mask, n)
	if err != nil {
		return nil, err
	}
	if !eroded.Any() {
		return nil, fmt.Errorf("%w: shrinking entity %d by %d removes every pixel", errs.ErrEmpty, id, n)
	}
	if err := e.setRaster(e.slice, eroded); err != nil {
		return nil, err
	}
	return e, nil
}

// editable returns an active entity with geometry.
func (m *Manager) editable(id int) (*Entity, error) {
	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errs.ErrNotFound, id)
	}
	if e.historical {
		return nil, fmt.Errorf("%w: entity %d is historical", errs.ErrInvalidArgument, id)
	}
	if e.mask == nil {
		return nil, fmt.Errorf("%w: entity %d has no geometry", errs.ErrEmpty, id)
	}
	return e, nil
}

func uniqueSorted(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
