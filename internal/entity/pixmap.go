package entity

import (
	"fmt"
	"sort"

	"cell-annotator/internal/errs"
	"cell-annotator/internal/image"
	"cell-annotator/internal/mask"
	"cell-annotator/pkg/geometry"
)

// PixmapOptions controls GenerateFromPixelmap.
type PixmapOptions struct {
	// Background is a label value that produces no entity. Label 0 never
	// produces one either, since 0 is not a valid id.
	Background uint32
	// Dilate grows every region by this many pixels with a 4-connected
	// element, clipped to the image.
	Dilate int
}

// GenerateFromPixelmap adds one entity per distinct non-zero, non-background label,
// with the label as its id and the label's pixels, cropped to their bounds,
// as its mask. Labels are processed in ascending order. Either every label is
// added or none is.
func (m *Manager) GenerateFromPixelmap(labels *image.Labels, opts PixmapOptions) ([]*Entity, error) {
	if opts.Dilate < 0 {
		return nil, fmt.Errorf("%w: dilate %d", errs.ErrInvalidArgument, opts.Dilate)
	}

	bounds := labelBounds(labels, opts.Background)
	order := make([]uint32, 0, len(bounds))
	for l := range bounds {
		order = append(order, l)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	frame := labels.Frame()
	built := make([]*Entity, 0, len(order))
	for _, l := range order {
		id := int(l)
		if err := m.checkFree(id); err != nil {
			return nil, fmt.Errorf("label %d: %w", l, err)
		}

		r := bounds[l]
		sub := mask.New(r.Width, r.Height)
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				sub.Pix[y*r.Width+x] = labels.At(r.X+x, r.Y+y) == l
			}
		}

		slice := r
		if opts.Dilate > 0 {
			grown, err := mask.Dilate(sub, opts.Dilate)
			if err != nil {
				return nil, fmt.Errorf("label %d: %w", l, err)
			}
			n := opts.Dilate
			slice = geometry.RectInt{X: r.X - n, Y: r.Y - n, Width: r.Width + 2*n, Height: r.Height + 2*n}
			clipped := slice.Intersect(frame)
			sub = grown.Crop(clipped.Translate(-slice.Y, -slice.X))
			slice = clipped
		}

		e := newEntity(id)
		if err := e.setRaster(slice, sub); err != nil {
			return nil, fmt.Errorf("label %d: %w", l, err)
		}
		built = append(built, e)
	}

	for _, e := range built {
		m.ids.take(e.id)
		m.entities[e.id] = e
	}
	return built, nil
}

// labelBounds returns the tight bounds of every label except 0 and
// background.
func labelBounds(labels *image.Labels, background uint32) map[uint32]geometry.RectInt {
	type box struct{ x0, y0, x1, y1 int }
	boxes := make(map[uint32]*box)
	for y := 0; y < labels.Height; y++ {
		for x := 0; x < labels.Width; x++ {
			l := labels.At(x, y)
			if l == 0 || l == background {
				continue
			}
			b, ok := boxes[l]
			if !ok {
				boxes[l] = &box{x, y, x, y}
				continue
			}
			b.x0 = min(b.x0, x)
			b.x1 = max(b.x1, x)
			b.y1 = max(b.y1, y)
		}
	}
	out := make(map[uint32]geometry.RectInt, len(boxes))
	for l, b := range boxes {
		out[l] = geometry.RectFromBounds(b.y0, b.y1+1, b.x0, b.x1+1)
	}
	return out
}
