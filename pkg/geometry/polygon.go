package geometry

// Polygon is a closed ring of integer vertices. The last vertex connects back
// to the first. A vertex names a pixel, so the polygon [(0,0)] covers exactly
// pixel (0,0) and [(0,0),(2,0),(2,2),(0,2)] covers a 3x3 block.
type Polygon []PointInt

// Clone returns an independent copy of the polygon.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Translate returns the polygon moved by (dx, dy).
func (p Polygon) Translate(dx, dy int) Polygon {
	out := make(Polygon, len(p))
	for i, v := range p {
		out[i] = PointInt{X: v.X + dx, Y: v.Y + dy}
	}
	return out
}

// Equal reports whether two polygons have identical vertex lists.
func (p Polygon) Equal(other Polygon) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Bounds returns the tightest rectangle containing every vertex pixel.
// Because vertices name pixels, the rectangle extends one past the largest
// coordinate on each axis.
func (p Polygon) Bounds() RectInt {
	if len(p) == 0 {
		return RectInt{}
	}
	minX, minY := p[0].X, p[0].Y
	maxX, maxY := minX, minY
	for _, v := range p[1:] {
		minX = min(minX, v.X)
		minY = min(minY, v.Y)
		maxX = max(maxX, v.X)
		maxY = max(maxY, v.Y)
	}
	return RectInt{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// PolygonsBounds returns the union of the bounds of all polygons.
func PolygonsBounds(polys []Polygon) RectInt {
	var r RectInt
	for _, p := range polys {
		r = r.Union(p.Bounds())
	}
	return r
}

// ClonePolygons deep-copies a polygon list.
func ClonePolygons(polys []Polygon) []Polygon {
	if polys == nil {
		return nil
	}
	out := make([]Polygon, len(polys))
	for i, p := range polys {
		out[i] = p.Clone()
	}
	return out
}

// OnSegment reports whether the integer point p lies on the closed segment a-b.
// The test is exact.
func OnSegment(p, a, b PointInt) bool {
	if crossProduct(a, b, p) != 0 {
		return false
	}
	return p.X >= min(a.X, b.X) && p.X <= max(a.X, b.X) &&
		p.Y >= min(a.Y, b.Y) && p.Y <= max(a.Y, b.Y)
}

// OnBoundary reports whether p lies on any edge of the polygon.
func (p Polygon) OnBoundary(pt PointInt) bool {
	n := len(p)
	for i := 0; i < n; i++ {
		if OnSegment(pt, p[i], p[(i+1)%n]) {
			return true
		}
	}
	return false
}

// PointInPolygon tests if a point is strictly inside a polygon using ray
// casting (even-odd rule). Points on an edge give an unspecified answer;
// callers that care test OnBoundary first. Integer arithmetic keeps the test
// exact.
func PointInPolygon(pt PointInt, polygon Polygon) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if (pi.Y > pt.Y) != (pj.Y > pt.Y) {
			// pt.X < pi.X + (pt.Y-pi.Y)*(pj.X-pi.X)/(pj.Y-pi.Y), without division
			dy := pj.Y - pi.Y
			lhs := (pt.X - pi.X) * dy
			rhs := (pt.Y - pi.Y) * (pj.X - pi.X)
			if (dy > 0 && lhs < rhs) || (dy < 0 && lhs > rhs) {
				inside = !inside
			}
		}
	}

	return inside
}

// CollapseCollinear removes vertices that continue a straight run in the
// same direction, treating the polygon as closed. Reversals are kept so that
// zero-width spurs survive.
func CollapseCollinear(p Polygon) Polygon {
	n := len(p)
	if n < 3 {
		return p.Clone()
	}
	out := make(Polygon, 0, n)
	for i := 0; i < n; i++ {
		prev := p[(i+n-1)%n]
		cur := p[i]
		next := p[(i+1)%n]
		if sameDirection(cur.Sub(prev), next.Sub(cur)) {
			continue
		}
		out = append(out, cur)
	}
	if len(out) == 0 {
		// Every vertex was interior to one straight run; cannot happen for a
		// closed ring but keep the input rather than lose the geometry.
		return p.Clone()
	}
	return out
}

// sameDirection reports whether two non-zero step vectors point the same way.
func sameDirection(a, b PointInt) bool {
	if (a.X == 0 && a.Y == 0) || (b.X == 0 && b.Y == 0) {
		return false
	}
	return a.X*b.Y-a.Y*b.X == 0 && a.X*b.X+a.Y*b.Y > 0
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b PointInt) int {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
