package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDilateCross(t *testing.T) {
	got, err := Dilate(MustParse("#"), 2)
	require.NoError(t, err)
	want := MustParse(
		"..#..",
		".###.",
		"#####",
		".###.",
		"..#..",
	)
	assert.True(t, want.Equal(got), "got\n%s", got)
}

func TestDilateZeroCopies(t *testing.T) {
	m := MustParse("#.")
	got, err := Dilate(m, 0)
	require.NoError(t, err)
	got.Set(1, 0, true)
	assert.False(t, m.At(1, 0))

	_, err = Dilate(m, -1)
	assert.Error(t, err)
}

func TestErodeUsesRasterEdge(t *testing.T) {
	m := MustParse(
		"#####",
		"#####",
		"#####",
	)
	got, err := Erode(m, 1)
	require.NoError(t, err)
	want := MustParse(
		".....",
		".###.",
		".....",
	)
	assert.True(t, want.Equal(got), "got\n%s", got)

	gone, err := Erode(m, 2)
	require.NoError(t, err)
	assert.False(t, gone.Any())
}
