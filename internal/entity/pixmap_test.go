package entity

import (
	"testing"

	"cell-annotator/internal/errs"
	"cell-annotator/internal/image"
	"cell-annotator/internal/mask"
	"cell-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(t *testing.T, rows ...[]uint32) *image.Labels {
	t.Helper()
	l, err := image.LabelsFromRows(rows)
	require.NoError(t, err)
	return l
}

func TestGenerateFromPixelmap(t *testing.T) {
	m := NewManager()
	got, err := m.GenerateFromPixelmap(labels(t,
		[]uint32{1, 2, 2},
		[]uint32{1, 2, 2},
		[]uint32{0, 3, 0},
	), PixmapOptions{})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, ids(got))
	areas := map[int]int{}
	for _, e := range m.Entities() {
		areas[e.ID()] = e.Area()
	}
	assert.Equal(t, map[int]int{1: 2, 2: 4, 3: 1}, areas)

	e1, _ := m.Get(1)
	assert.Equal(t, geometry.RectInt{X: 0, Y: 0, Width: 1, Height: 2}, e1.MaskSlice())
	e3, _ := m.Get(3)
	assert.Equal(t, geometry.RectInt{X: 1, Y: 2, Width: 1, Height: 1}, e3.MaskSlice())
	assert.Equal(t, []geometry.Polygon{{geometry.Pt(1, 2)}}, e3.Contours())
}

func TestPixmapMaskIsCroppedLabel(t *testing.T) {
	m := NewManager()
	_, err := m.GenerateFromPixelmap(labels(t,
		[]uint32{0, 0, 0, 0},
		[]uint32{0, 5, 0, 0},
		[]uint32{0, 5, 5, 7},
		[]uint32{0, 0, 5, 0},
	), PixmapOptions{})
	require.NoError(t, err)

	e, ok := m.Get(5)
	require.True(t, ok)
	assert.Equal(t, geometry.RectInt{X: 1, Y: 1, Width: 2, Height: 3}, e.MaskSlice())
	assert.True(t, mask.MustParse("#.", "##", ".#").Equal(e.Mask()), "got\n%s", e.Mask())

	// Freshly allocated ids skip the imported labels.
	assert.Equal(t, 1, m.AddEntity().ID())
	assert.Equal(t, 2, m.AddEntity().ID())
}

func TestPixmapDilateClipsToImage(t *testing.T) {
	m := NewManager()
	_, err := m.GenerateFromPixelmap(labels(t,
		[]uint32{4, 0, 0},
		[]uint32{0, 0, 0},
		[]uint32{0, 0, 9},
	), PixmapOptions{Dilate: 2})
	require.NoError(t, err)

	e, _ := m.Get(4)
	assert.Equal(t, geometry.RectInt{X: 0, Y: 0, Width: 3, Height: 3}, e.MaskSlice())
	want := mask.MustParse(
		"###",
		"##.",
		"#..",
	)
	assert.True(t, want.Equal(e.Mask()), "got\n%s", e.Mask())
	assert.Equal(t, 6, e.Area())
}

func TestPixmapBackgroundAndErrors(t *testing.T) {
	img := labels(t,
		[]uint32{3, 3},
		[]uint32{3, 1},
	)

	m := NewManager()
	got, err := m.GenerateFromPixelmap(img, PixmapOptions{Background: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(got))

	_, err = NewManager().GenerateFromPixelmap(img, PixmapOptions{Dilate: -1})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)


	m = NewManager()
	_, err = m.AddEntityWithID(3)
	require.NoError(t, err)
	_, err = m.GenerateFromPixelmap(img, PixmapOptions{})
	assert.ErrorIs(t, err, errs.ErrDuplicateID)
	assert.Equal(t, 1, m.Len(), "a failed import adds nothing")
}

func TestPixmapZeroLabelWithOtherBackground(t *testing.T) {
	img := labels(t,
		[]uint32{0, 0, 2},
		[]uint32{0, 5, 2},
		[]uint32{2, 2, 2},
	)
	m := NewManager()
	got, err := m.GenerateFromPixelmap(img, PixmapOptions{Background: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, ids(got))
	assert.Equal(t, 1, m.Len())

	e, ok := m.Get(5)
	require.True(t, ok)
	assert.Equal(t, geometry.RectInt{X: 1, Y: 1, Width: 1, Height: 1}, e.MaskSlice())
}
