package features

import (
	"image"
	"image/color"
	"math"

	"cell-annotator/internal/entity"
	cimage "cell-annotator/internal/image"
	"cell-annotator/pkg/colorutil"
	"cell-annotator/pkg/geometry"
)

// RenderOptions configures how entities are rendered.
type RenderOptions struct {
	// Region rendering
	FillAlpha uint8 // Opacity of the region fill (0 = outline only)

	// Contour rendering
	OutlineWidth int // Outline width in pixels (0 = no outline)

	// Selection rendering
	SelectionOutlineWidth int // Width of selection highlight
}

// DefaultRenderOptions returns default rendering options.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		FillAlpha:             96,
		OutlineWidth:          1,
		SelectionOutlineWidth: 2,
	}
}

// Render produces an RGBA overlay of the active entities of mgr. The
// background is the channel scaled to its intensity range, or black when
// background is nil. Entities listed in selected get a highlight box around
// their bounding box.
func Render(mgr *entity.Manager, width, height int, background *cimage.Channel, selected []int, opts RenderOptions) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	renderBackground(img, background)

	entities := mgr.Entities()

	// Fill regions first (behind outlines)
	if opts.FillAlpha > 0 {
		for _, e := range entities {
			if e.HasGeometry() {
				renderFill(img, e, opts)
			}
		}
	}

	// Outlines on top
	if opts.OutlineWidth > 0 {
		for _, e := range entities {
			if e.HasGeometry() {
				renderOutline(img, e, opts)
			}
		}
	}

	// Selection highlights on top of everything
	for _, id := range selected {
		if e, ok := mgr.Get(id); ok && e.HasGeometry() {
			renderSelectionHighlight(img, e, opts)
		}
	}

	return img
}

// renderBackground draws the channel as gray, stretched to [min, max].
func renderBackground(img *image.RGBA, ch *cimage.Channel) {
	bounds := img.Bounds()
	if ch == nil {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				img.SetRGBA(x, y, colorutil.Black)
			}
		}
		return
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range ch.Pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var g uint8
			if x < ch.Width && y < ch.Height {
				g = uint8(math.Round((ch.At(x, y) - lo) * scale))
			}
			img.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
}

// renderFill blends the entity color over every pixel of its mask.
func renderFill(img *image.RGBA, e *entity.Entity, opts RenderOptions) {
	bounds := img.Bounds()
	c := colorutil.EntityColor(e.ID())
	slice := e.MaskSlice()
	for _, p := range e.Mask().Points(geometry.Pt(slice.X, slice.Y)) {
		if image.Pt(p.X, p.Y).In(bounds) {
			img.SetRGBA(p.X, p.Y, colorutil.Blend(img.RGBAAt(p.X, p.Y), c, opts.FillAlpha))
		}
	}
}

// renderOutline draws each contour of the entity as a closed ring.
func renderOutline(img *image.RGBA, e *entity.Entity, opts RenderOptions) {
	c := colorutil.EntityColor(e.ID())
	for _, poly := range e.Contours() {
		n := len(poly)
		for i := 0; i < n; i++ {
			a, b := poly[i], poly[(i+1)%n]
			if opts.OutlineWidth > 1 {
				drawThickLine(img, float64(a.X), float64(a.Y), float64(b.X), float64(b.Y), opts.OutlineWidth, c)
			} else {
				drawLine(img, a.X, a.Y, b.X, b.Y, c, img.Bounds())
			}
		}
	}
}

// renderSelectionHighlight draws a highlight around a selected entity.
func renderSelectionHighlight(img *image.RGBA, e *entity.Entity, opts RenderOptions) {
	bounds := e.BoundingBox()

	// Draw a yellow rectangle just outside the bounding box
	x1, y1 := bounds.X-opts.SelectionOutlineWidth, bounds.Y-opts.SelectionOutlineWidth
	x2, y2 := bounds.MaxX()-1+opts.SelectionOutlineWidth, bounds.MaxY()-1+opts.SelectionOutlineWidth

	for w := 0; w < opts.SelectionOutlineWidth; w++ {
		drawRect(img, x1+w, y1+w, x2-w, y2-w, colorutil.Yellow)
	}
}

// drawThickLine draws a line with given thickness.
func drawThickLine(img *image.RGBA, x1, y1, x2, y2 float64, thickness int, c color.RGBA) {
	bounds := img.Bounds()

	// Calculate perpendicular direction
	dx := x2 - x1
	dy := y2 - y1
	length := math.Sqrt(dx*dx + dy*dy)
	if length == 0 {
		drawLine(img, int(x1), int(y1), int(x2), int(y2), c, bounds)
		return
	}

	// Perpendicular unit vector
	px := -dy / length
	py := dx / length

	halfThick := float64(thickness-1) / 2

	// Draw multiple parallel lines
	for t := -halfThick; t <= halfThick; t += 1.0 {
		lx1 := x1 + px*t
		ly1 := y1 + py*t
		lx2 := x2 + px*t
		ly2 := y2 + py*t

		drawLine(img, int(math.Round(lx1)), int(math.Round(ly1)), int(math.Round(lx2)), int(math.Round(ly2)), c, bounds)
	}
}

// drawLine draws a line using Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA, bounds image.Rectangle) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)

	var sx, sy int
	if x1 < x2 {
		sx = 1
	} else {
		sx = -1
	}
	if y1 < y2 {
		sy = 1
	} else {
		sy = -1
	}

	err := dx - dy

	for {
		if x1 >= bounds.Min.X && x1 < bounds.Max.X && y1 >= bounds.Min.Y && y1 < bounds.Max.Y {
			img.SetRGBA(x1, y1, c)
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawRect draws a rectangle outline.
func drawRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	bounds := img.Bounds()

	// Top and bottom edges
	for x := x1; x <= x2; x++ {
		if x >= bounds.Min.X && x < bounds.Max.X {
			if y1 >= bounds.Min.Y && y1 < bounds.Max.Y {
				img.SetRGBA(x, y1, c)
			}
			if y2 >= bounds.Min.Y && y2 < bounds.Max.Y {
				img.SetRGBA(x, y2, c)
			}
		}
	}

	// Left and right edges
	for y := y1; y <= y2; y++ {
		if y >= bounds.Min.Y && y < bounds.Max.Y {
			if x1 >= bounds.Min.X && x1 < bounds.Max.X {
				img.SetRGBA(x1, y, c)
			}
			if x2 >= bounds.Min.X && x2 < bounds.Max.X {
				img.SetRGBA(x2, y, c)
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
