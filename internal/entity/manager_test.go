package entity

import (
	"encoding/json"
	"testing"

	"cell-annotator/internal/errs"
	"cell-annotator/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(es []*Entity) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = e.ID()
	}
	return out
}

func TestIDAllocation(t *testing.T) {
	m := NewManager()
	for id := 1; id <= 9; id++ {
		_, err := m.AddEntityWithID(id)
		require.NoError(t, err)
	}
	for _, id := range []int{20, 100, 30, 22} {
		_, err := m.AddEntityWithID(id)
		require.NoError(t, err)
	}

	assert.Equal(t, 10, m.AddEntity().ID())
	for want := 11; want <= 19; want++ {
		assert.Equal(t, want, m.AddEntity().ID())
	}
	assert.Equal(t, 21, m.AddEntity().ID())
	assert.Equal(t, 23, m.NextID())

	_, err := m.AddEntityWithID(9)
	assert.ErrorIs(t, err, errs.ErrDuplicateID)
	_, err = m.AddEntityWithID(0)
	assert.ErrorIs(t, err, errs.ErrInvalidID)
	_, err = m.AddEntityWithID(-4)
	assert.ErrorIs(t, err, errs.ErrInvalidID)
}

func TestAllocationFillsGaps(t *testing.T) {
	m := NewManager()
	for _, id := range []int{1, 2, 3, 5} {
		_, err := m.AddEntityWithID(id)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, m.AddEntity().ID())
	assert.Equal(t, 6, m.AddEntity().ID())

	require.NoError(t, m.Drop(2))
	require.NoError(t, m.Drop(5))
	assert.Equal(t, 2, m.NextID())

	// A released id taken explicitly is not handed out again.
	_, err := m.AddEntityWithID(2)
	require.NoError(t, err)
	assert.Equal(t, 5, m.AddEntity().ID())
	assert.Equal(t, 7, m.AddEntity().ID())

	assert.ErrorIs(t, m.Drop(42), errs.ErrNotFound)
}

func TestReserve(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Reserve(1))
	assert.ErrorIs(t, m.Reserve(1), errs.ErrDuplicateID)
	assert.Equal(t, 2, m.AddEntity().ID())
	_, err := m.AddEntityWithID(1)
	assert.ErrorIs(t, err, errs.ErrDuplicateID)
	assert.Equal(t, 1, m.Len())
}

func TestParseID(t *testing.T) {
	good := map[string]any{
		"int":         7,
		"int64":       int64(7),
		"json number": json.Number("7"),
		"string":      "7",
	}
	for name, v := range good {
		id, err := ParseID(v)
		require.NoError(t, err, name)
		assert.Equal(t, 7, id, name)
	}

	for _, v := range []any{1.0, float32(2), json.Number("1.0"), json.Number("1e3"), "x", 0, -1, "0", nil, true} {
		_, err := ParseID(v)
		assert.ErrorIs(t, err, errs.ErrInvalidID, "%v (%T)", v, v)
	}
}

func TestIterationOrder(t *testing.T) {
	m := NewManager()
	for _, id := range []int{30, 4, 12} {
		e, err := m.AddEntityWithID(id)
		require.NoError(t, err)
		require.NoError(t, e.FromPolygon([]geometry.Polygon{{geometry.Pt(id, id)}}))
	}
	_, err := m.Merge([]int{4, 30})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 12}, ids(m.Entities()))
	assert.Equal(t, []int{1, 4, 12, 30}, ids(m.AllEntities()))
	assert.Equal(t, 2, m.ActiveLen())
	assert.Equal(t, 4, m.Len())

	e, ok := m.Get(4)
	require.True(t, ok)
	assert.True(t, e.Historical())
	_, ok = m.Get(5)
	assert.False(t, ok)
}

func TestGenerateFromContours(t *testing.T) {
	m := NewManager()
	ring := []geometry.Polygon{
		{geometry.Pt(0, 0), geometry.Pt(6, 0), geometry.Pt(6, 6), geometry.Pt(0, 6)},
		{geometry.Pt(2, 2), geometry.Pt(4, 2), geometry.Pt(4, 4), geometry.Pt(2, 4)},
	}
	square := []geometry.Polygon{{geometry.Pt(10, 10), geometry.Pt(11, 10), geometry.Pt(11, 11), geometry.Pt(10, 11)}}

	got, err := m.GenerateFromContours([]ContourPair{{ID: 7, Polygons: square}, {ID: 3, Polygons: ring}})
	require.NoError(t, err)
	assert.Equal(t, []int{7, 3}, ids(got))
	assert.Equal(t, []int{3, 7}, ids(m.Entities()))

	e, _ := m.Get(3)
	assert.Equal(t, ring, e.Contours())
	assert.Equal(t, 48, e.Area())
	assert.Equal(t, geometry.RectInt{X: 0, Y: 0, Width: 7, Height: 7}, e.BoundingBox())

	_, err = m.GenerateFromContours([]ContourPair{{ID: 8, Polygons: square}, {ID: 7, Polygons: square}})
	assert.ErrorIs(t, err, errs.ErrDuplicateID)
	_, ok := m.Get(8)
	assert.False(t, ok, "a failed batch adds nothing")

	_, err = m.GenerateFromContours([]ContourPair{{ID: 9, Polygons: nil}})
	assert.ErrorIs(t, err, errs.ErrEmpty)
}
