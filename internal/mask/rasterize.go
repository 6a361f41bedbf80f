package mask

import (
	"image"

	"cell-annotator/pkg/colorutil"
	"cell-annotator/pkg/geometry"

	"gocv.io/x/gocv"
)

// Rasterize fills the polygons into a raster covering frame (image
// coordinates). A pixel is set when it lies on an edge of any polygon or when
// it is strictly inside an odd number of polygons, so nested rings punch
// holes. Parts of the polygons outside frame are clipped.
func Rasterize(polys []geometry.Polygon, frame geometry.RectInt) *Mask {
	if frame.Width <= 0 || frame.Height <= 0 {
		return New(max(frame.Width, 0), max(frame.Height, 0))
	}

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), frame.Height, frame.Width, gocv.MatTypeCV8U)
	defer mat.Close()

	var areas, outlines [][]image.Point
	for _, pts := range toPoints(polys, frame) {
		switch {
		case len(pts) == 1:
			p := pts[0]
			if p.In(image.Rect(0, 0, frame.Width, frame.Height)) {
				mat.SetUCharAt(p.Y, p.X, 255)
			}
		case len(pts) == 2:
			outlines = append(outlines, pts)
		case len(pts) > 2:
			areas = append(areas, pts)
			outlines = append(outlines, pts)
		}
	}

	// One fill call for all rings gives even-odd parity across polygons.
	if len(areas) > 0 {
		pv := gocv.NewPointsVectorFromPoints(areas)
		gocv.FillPolyWithParams(&mat, pv, colorutil.White, gocv.Line8, 0, image.Point{})
		pv.Close()
	}
	if len(outlines) > 0 {
		pv := gocv.NewPointsVectorFromPoints(outlines)
		gocv.Polylines(&mat, pv, true, colorutil.White, 1)
		pv.Close()
	}
	return fromMat(mat)
}

// toPoints converts polygons to Mat pixel coordinates relative to frame.
func toPoints(polys []geometry.Polygon, frame geometry.RectInt) [][]image.Point {
	out := make([][]image.Point, 0, len(polys))
	for _, poly := range polys {
		pts := make([]image.Point, len(poly))
		for i, p := range poly {
			pts[i] = image.Pt(p.X-frame.X, p.Y-frame.Y)
		}
		out = append(out, pts)
	}
	return out
}
