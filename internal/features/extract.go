package features

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cell-annotator/internal/entity"
	"cell-annotator/internal/errs"
	"cell-annotator/internal/image"
	"cell-annotator/pkg/geometry"
)

// Channel names one channel image on disk.
type Channel struct {
	Name string
	Path string
}

// Loader reads a channel image.
type Loader func(name, path string) (*image.Channel, error)

// Extractor measures active entities against channel images.
type Extractor struct {
	// Load reads channel images; nil means image.LoadChannel.
	Load Loader
	// Statistics are computed per channel in order; empty means
	// DefaultStatistics.
	Statistics []Statistic
	// Strict makes the first channel failure fatal.
	Strict bool
}

// Extract returns one row per active entity with geometry and one column per
// (channel, statistic) pair, named "{channel}_{statistic}".
//
// A channel that fails to load or measure is logged and left out unless
// Strict is set, in which case extraction stops with that error. When every
// channel fails the joined errors are returned. The context is checked
// between channels; on cancellation the table holds the channels processed
// so far and the error wraps ErrCancelled.
func (x *Extractor) Extract(ctx context.Context, mgr *entity.Manager, channels []Channel) (*Table, error) {
	load := x.Load
	if load == nil {
		load = image.LoadChannel
	}
	statistics := x.Statistics
	if len(statistics) == 0 {
		statistics = DefaultStatistics
	}

	entities := measurable(mgr)
	ids := make([]int, len(entities))
	for i, e := range entities {
		ids[i] = e.ID()
	}
	table := NewTable(ids)

	var failures []error
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return table, fmt.Errorf("%w: before channel %s: %v", errs.ErrCancelled, ch.Name, err)
		}

		columns, err := measureChannel(load, ch, entities, statistics)
		if err != nil {
			err = fmt.Errorf("channel %s: %w", ch.Name, err)
			if x.Strict {
				return table, err
			}
			log.Printf("Skipping %v", err)
			failures = append(failures, err)
			continue
		}
		for i, s := range statistics {
			if err := table.AddColumn(ch.Name+"_"+s.Name, columns[i]); err != nil {
				return table, err
			}
		}
	}

	if len(channels) > 0 && len(failures) == len(channels) {
		return table, errors.Join(failures...)
	}
	return table, nil
}

// measureChannel loads one channel and computes every statistic for every
// entity. The result is indexed [statistic][entity].
func measureChannel(load Loader, ch Channel, entities []*entity.Entity, statistics []Statistic) ([][]float64, error) {
	img, err := load(ch.Name, ch.Path)
	if err != nil {
		return nil, err
	}
	frame := img.Frame()

	columns := make([][]float64, len(statistics))
	for i := range columns {
		columns[i] = make([]float64, len(entities))
	}
	for j, e := range entities {
		values, err := intensities(img, frame, e)
		if err != nil {
			return nil, err
		}
		for i, s := range statistics {
			columns[i][j] = s.Fn(values)
		}
	}
	return columns, nil
}

// intensities returns the channel values under the entity mask in raster
// order.
func intensities(img *image.Channel, frame geometry.RectInt, e *entity.Entity) ([]float64, error) {
	slice := e.MaskSlice()
	if !frame.ContainsRect(slice) {
		return nil, fmt.Errorf("%w: entity %d slice %s outside %dx%d image",
			errs.ErrOutOfBounds, e.ID(), slice, img.Height, img.Width)
	}
	m := e.Mask()
	values := make([]float64, 0, e.Area())
	for _, p := range m.Points(geometry.Pt(slice.X, slice.Y)) {
		values = append(values, img.At(p.X, p.Y))
	}
	return values, nil
}

func measurable(mgr *entity.Manager) []*entity.Entity {
	var out []*entity.Entity
	for _, e := range mgr.Entities() {
		if e.Area() > 0 {
			out = append(out, e)
		}
	}
	return out
}

// ExtractAnnotations returns the annotation table of the active entities:
// the id, "eid MOD 2" and one indicator column "eid_{id}" per entity that is
// 1 on that entity's row and 0 elsewhere.
func ExtractAnnotations(mgr *entity.Manager) (*Table, error) {
	entities := measurable(mgr)
	ids := make([]int, len(entities))
	for i, e := range entities {
		ids[i] = e.ID()
	}
	table := NewTable(ids)

	mod := make([]float64, len(ids))
	for i, id := range ids {
		mod[i] = float64(id % 2)
	}
	if err := table.AddColumn("eid MOD 2", mod); err != nil {
		return nil, err
	}

	for i, id := range ids {
		indicator := make([]float64, len(ids))
		indicator[i] = 1
		if err := table.AddColumn(fmt.Sprintf("eid_%d", id), indicator); err != nil {
			return nil, err
		}
	}
	return table, nil
}
