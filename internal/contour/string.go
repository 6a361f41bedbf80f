// Package contour converts entity outlines between the canonical polygon
// list and its alternate encodings: the single-polygon contour string used by
// annotation documents and the placed raster used for feature extraction.
package contour

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"cell-annotator/internal/errs"
	"cell-annotator/pkg/geometry"
)

// Codec converts between the canonical polygon list and one encoding.
type Codec[T any] interface {
	Encode(polys []geometry.Polygon) (T, error)
	Decode(value T) ([]geometry.Polygon, error)
}

// StringCodec encodes exactly one polygon as space-separated "x,y" tokens
// with one decimal place, e.g. "1.0,1.0 2.0,2.0 3.0,3.0".
type StringCodec struct{}

// Encode formats the single polygon in polys.
func (StringCodec) Encode(polys []geometry.Polygon) (string, error) {
	if len(polys) != 1 {
		return "", fmt.Errorf("%w: contour string holds one polygon, got %d", errs.ErrFormat, len(polys))
	}
	if len(polys[0]) == 0 {
		return "", fmt.Errorf("%w: empty polygon", errs.ErrFormat)
	}
	return FormatPolygon(polys[0]), nil
}

// Decode parses a contour string into a one-element polygon list.
func (StringCodec) Decode(s string) ([]geometry.Polygon, error) {
	p, err := ParsePolygon(s)
	if err != nil {
		return nil, err
	}
	return []geometry.Polygon{p}, nil
}

// FormatPolygon renders a polygon as a contour string.
func FormatPolygon(p geometry.Polygon) string {
	var sb strings.Builder
	for i, v := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(float64(v.X), 'f', 1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(float64(v.Y), 'f', 1, 64))
	}
	return sb.String()
}

// ParsePolygon parses a contour string. Coordinates are read as floats and
// rounded to the nearest integer vertex.
func ParsePolygon(s string) (geometry.Polygon, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty contour string", errs.ErrFormat)
	}
	p := make(geometry.Polygon, 0, len(tokens))
	for _, tok := range tokens {
		xs, ys, ok := strings.Cut(tok, ",")
		if !ok {
			return nil, fmt.Errorf("%w: vertex %q lacks a comma", errs.ErrFormat, tok)
		}
		x, err := parseCoord(xs)
		if err != nil {
			return nil, fmt.Errorf("%w: vertex %q: %v", errs.ErrFormat, tok, err)
		}
		y, err := parseCoord(ys)
		if err != nil {
			return nil, fmt.Errorf("%w: vertex %q: %v", errs.ErrFormat, tok, err)
		}
		p = append(p, geometry.PointInt{X: x, Y: y})
	}
	return p, nil
}

func parseCoord(s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("coordinate %q out of range", s)
	}
	return int(math.Round(f)), nil
}
