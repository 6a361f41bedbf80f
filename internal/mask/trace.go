package mask

import (
	"sort"

	"cell-annotator/pkg/geometry"

	"gocv.io/x/gocv"
)

// Trace extracts the borders of the set pixels as closed polygons in image
// coordinates (mask pixel (0,0) maps to origin).
//
// Foreground is 8-connected and holes are 4-connected. The result holds one
// outer border per connected component, ordered by the raster position of
// its first vertex, followed by one border per hole in the same order.
// Vertices are border pixels; straight runs are collapsed. Every ring starts
// at its topmost-leftmost vertex; outer rings run down the left side first
// and holes run the other way. A single pixel yields a one-vertex polygon.
// Rasterize(Trace(m)) reproduces m.
func Trace(m *Mask, origin geometry.PointInt) []geometry.Polygon {
	if m.Width == 0 || m.Height == 0 {
		return nil
	}

	// The padding keeps contours off the Mat edge.
	src := toMat(m, 1)
	defer src.Close()
	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	contours := gocv.FindContoursWithParams(src, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	var outers, holes []geometry.Polygon
	for i := 0; i < contours.Size(); i++ {
		pts := contours.At(i).ToPoints()
		if len(pts) == 0 {
			continue
		}
		ring := make(geometry.Polygon, len(pts))
		for j, p := range pts {
			ring[j] = geometry.Pt(p.X-1+origin.X, p.Y-1+origin.Y)
		}
		if isHole(hierarchy, i) {
			holes = append(holes, canonicalRing(ring, true))
		} else {
			outers = append(outers, canonicalRing(ring, false))
		}
	}
	sortRings(outers)
	sortRings(holes)
	return append(outers, holes...)
}

// isHole reports whether contour i has a parent. In the two-level hierarchy
// every child is a hole border; each entry is [next, prev, child, parent].
func isHole(hierarchy gocv.Mat, i int) bool {
	if hierarchy.Empty() || i >= hierarchy.Cols() {
		return false
	}
	return hierarchy.GetVeciAt(0, i)[3] >= 0
}

// canonicalRing collapses straight runs, rotates the ring to start at its
// topmost-leftmost vertex and fixes its winding. Outer rings have negative
// signed area on screen, holes positive; rings without area keep their order.
func canonicalRing(ring geometry.Polygon, hole bool) geometry.Polygon {
	ring = geometry.CollapseCollinear(ring)
	if len(ring) < 2 {
		return ring
	}

	first := 0
	for i, p := range ring {
		if lessRaster(p, ring[first]) {
			first = i
		}
	}
	out := make(geometry.Polygon, 0, len(ring))
	out = append(out, ring[first:]...)
	out = append(out, ring[:first]...)

	area := signedArea2(out)
	if (hole && area < 0) || (!hole && area > 0) {
		for i, j := 1, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// signedArea2 returns twice the shoelace area of the ring.
func signedArea2(ring geometry.Polygon) int {
	sum := 0
	for i, a := range ring {
		b := ring[(i+1)%len(ring)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum
}

func lessRaster(a, b geometry.PointInt) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func sortRings(rings []geometry.Polygon) {
	sort.SliceStable(rings, func(i, j int) bool {
		return lessRaster(rings[i][0], rings[j][0])
	})
}
