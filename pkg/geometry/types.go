// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"fmt"
)

// PointInt represents a 2D point with integer coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is shorthand for PointInt{X: x, Y: y}.
func Pt(x, y int) PointInt {
	return PointInt{X: x, Y: y}
}

// Add returns the sum of two points.
func (p PointInt) Add(other PointInt) PointInt {
	return PointInt{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p PointInt) Sub(other PointInt) PointInt {
	return PointInt{X: p.X - other.X, Y: p.Y - other.Y}
}

// RectInt represents a rectangle with integer coordinates. It covers the
// half-open ranges [X, X+Width) and [Y, Y+Height), which is how mask slices
// and bounding boxes are placed in the image frame.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectFromBounds builds a rectangle from the half-open ranges [y0:y1, x0:x1].
func RectFromBounds(y0, y1, x0, x1 int) RectInt {
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// MaxX returns the exclusive right edge.
func (r RectInt) MaxX() int { return r.X + r.Width }

// MaxY returns the exclusive bottom edge.
func (r RectInt) MaxY() int { return r.Y + r.Height }

// Empty reports whether the rectangle covers no pixels.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the number of pixels covered.
func (r RectInt) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Translate returns the rectangle moved by (dy, dx).
func (r RectInt) Translate(dy, dx int) RectInt {
	r.X += dx
	r.Y += dy
	return r
}

// Contains reports whether the pixel (x, y) lies inside the rectangle.
func (r RectInt) Contains(p PointInt) bool {
	return p.X >= r.X && p.X < r.MaxX() && p.Y >= r.Y && p.Y < r.MaxY()
}

// ContainsRect reports whether other lies entirely inside r.
func (r RectInt) ContainsRect(other RectInt) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.MaxX() <= r.MaxX() && other.MaxY() <= r.MaxY()
}

// Union returns the smallest rectangle containing both rectangles.
// An empty operand is ignored.
func (r RectInt) Union(other RectInt) RectInt {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	x := min(r.X, other.X)
	y := min(r.Y, other.Y)
	x2 := max(r.MaxX(), other.MaxX())
	y2 := max(r.MaxY(), other.MaxY())
	return RectInt{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}

// Intersect returns the overlap of two rectangles, or the zero rectangle.
func (r RectInt) Intersect(other RectInt) RectInt {
	x := max(r.X, other.X)
	y := max(r.Y, other.Y)
	x2 := min(r.MaxX(), other.MaxX())
	y2 := min(r.MaxY(), other.MaxY())
	if x2 <= x || y2 <= y {
		return RectInt{}
	}
	return RectInt{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}

// String formats the rectangle as a slice, "[y0:y1, x0:x1]".
func (r RectInt) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d]", r.Y, r.MaxY(), r.X, r.MaxX())
}
