package project

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"cell-annotator/internal/entity"
	"cell-annotator/internal/errs"
	"cell-annotator/internal/image"
	"cell-annotator/pkg/geometry"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "version": 1,
  "entities": [
    {
      "id": 2,
      "contour": "0.0,0.0 2.0,0.0 2.0,2.0 0.0,2.0",
      "historical": false,
      "predecessors": [5],
      "attributes": {"type": "T cell", "score": 0.75, "x-custom": 1.50, "gated": true}
    },
    {
      "id": 5,
      "contour": "4.0,4.0",
      "historical": true,
      "predecessors": [],
      "attributes": {}
    }
  ]
}`

func ids(es []*entity.Entity) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = e.ID()
	}
	return out
}

func TestDecodeStripsHistorical(t *testing.T) {
	doc, err := Decode(strings.NewReader(fixture), LoadOptions{})
	require.NoError(t, err)

	mgr := doc.Manager
	assert.Equal(t, 1, mgr.Len())
	e, ok := mgr.Get(2)
	require.True(t, ok)
	assert.Equal(t, 9, e.Area())
	assert.Equal(t, geometry.RectInt{Width: 3, Height: 3}, e.BoundingBox())
	assert.Equal(t, []int{5}, e.Predecessors())

	v, ok := e.Attribute("type")
	require.True(t, ok)
	s, _ := v.Str()
	assert.Equal(t, "T cell", s)

	// The stripped historical id stays reserved.
	for _, want := range []int{1, 3, 4, 6} {
		assert.Equal(t, want, mgr.AddEntity().ID())
	}
}

func TestDecodeKeepHistorical(t *testing.T) {
	doc, err := Decode(strings.NewReader(fixture), LoadOptions{KeepHistorical: true})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, ids(doc.Manager.AllEntities()))
	assert.Equal(t, []int{2}, ids(doc.Manager.Entities()))

	h, _ := doc.Manager.Get(5)
	assert.True(t, h.Historical())
	assert.Equal(t, []geometry.Polygon{{geometry.Pt(4, 4)}}, h.Contours())
}

func TestEncodePreservesAttributesVerbatim(t *testing.T) {
	doc, err := Decode(strings.NewReader(fixture), LoadOptions{KeepHistorical: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf, SaveOptions{}))
	out := buf.String()
	assert.Contains(t, out, `"x-custom": 1.50`)
	assert.Contains(t, out, `"gated": true`)
	assert.Contains(t, out, `"contour": "0.0,0.0 0.0,2.0 2.0,2.0 2.0,0.0"`)

	var f File
	require.NoError(t, json.Unmarshal(buf.Bytes(), &f))
	require.Len(t, f.Entities, 2)
	assert.Equal(t, json.Number("2"), f.Entities[0].ID)
	assert.Equal(t, json.Number("5"), f.Entities[1].ID)
	assert.True(t, f.Entities[1].Historical)

	buf.Reset()
	require.NoError(t, doc.Encode(&buf, SaveOptions{SkipHistorical: true}))
	f = File{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &f))
	require.Len(t, f.Entities, 1)
}

func TestRoundTripAfterMerge(t *testing.T) {
	labels, err := image.LabelsFromRows([][]uint32{
		{1, 1, 0, 0},
		{1, 1, 2, 0},
		{0, 0, 2, 2},
		{3, 0, 0, 0},
	})
	require.NoError(t, err)

	doc := New()
	_, err = doc.Manager.GenerateFromPixelmap(labels, entity.PixmapOptions{})
	require.NoError(t, err)
	merged, err := doc.Manager.Merge([]int{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, merged.SetAttribute("class", "tumour"))

	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf, SaveOptions{}))
	back, err := Decode(&buf, LoadOptions{KeepHistorical: true})
	require.NoError(t, err)

	assert.Equal(t, ids(doc.Manager.AllEntities()), ids(back.Manager.AllEntities()))
	for _, want := range doc.Manager.AllEntities() {
		got, ok := back.Manager.Get(want.ID())
		require.True(t, ok)
		assert.Equal(t, want.Historical(), got.Historical(), "entity %d", want.ID())
		assert.Equal(t, want.Predecessors(), got.Predecessors(), "entity %d", want.ID())
		assert.Equal(t, want.BoundingBox(), got.BoundingBox(), "entity %d", want.ID())
		assert.Equal(t, want.Contours(), got.Contours(), "entity %d", want.ID())
		assert.True(t, want.Mask().Equal(got.Mask()), "entity %d", want.ID())
	}

	// The merged entity has two components and is stored as a contour list.
	m, _ := back.Manager.Get(merged.ID())
	assert.Len(t, m.Contours(), 2)
	v, _ := m.Attribute("class")
	assert.Equal(t, "tumour", v.String())
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"missing version":  `{"entities": []}`,
		"future version":   `{"version": 9, "entities": []}`,
		"bad shape":        `{"version": 1, "shape": [1], "entities": []}`,
		"empty shape":      `{"version": 1, "shape": [0, 4], "entities": []}`,
		"float id":         `{"version": 1, "entities": [{"id": 1.0, "contour": "1.0,1.0"}]}`,
		"zero id":          `{"version": 1, "entities": [{"id": 0, "contour": "1.0,1.0"}]}`,
		"missing id":       `{"version": 1, "entities": [{"contour": "1.0,1.0"}]}`,
		"duplicate id":     `{"version": 1, "entities": [{"id": 1, "contour": "1.0,1.0"}, {"id": 1, "contour": "2.0,2.0"}]}`,
		"missing contour":  `{"version": 1, "entities": [{"id": 1}]}`,
		"bad contour":      `{"version": 1, "entities": [{"id": 1, "contour": "1.0;1.0"}]}`,
		"bad contour list": `{"version": 1, "entities": [{"id": 1, "contour": "1.0,1.0", "contours": ["x"]}]}`,
		"null attribute":   `{"version": 1, "entities": [{"id": 1, "contour": "1.0,1.0", "attributes": {"a": null}}]}`,
		"list attribute":   `{"version": 1, "entities": [{"id": 1, "contour": "1.0,1.0", "attributes": {"a": [1]}}]}`,
		"bad predecessor":  `{"version": 1, "entities": [{"id": 1, "contour": "1.0,1.0", "predecessors": [0]}]}`,
		"bad historical":   `{"version": 1, "entities": [{"id": 1, "contour": "1.0;1.0", "historical": true}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc), LoadOptions{})
			assert.ErrorIs(t, err, errs.ErrFormat)
		})
	}

	_, err := Decode(strings.NewReader(`{"version": 1, "entities": [{"id": 1.0, "contour": "1.0,1.0"}]}`), LoadOptions{})
	assert.ErrorIs(t, err, errs.ErrInvalidID)
}

func TestDecodeRejectsOversizedOutline(t *testing.T) {
	const huge = `"0.0,0.0 2000000000.0,0.0 0.0,2000000000.0"`
	docs := map[string]string{
		"no shape":        `{"version": 1, "entities": [{"id": 1, "contour": ` + huge + `}]}`,
		"with shape":      `{"version": 1, "shape": [8, 8], "entities": [{"id": 1, "contour": ` + huge + `}]}`,
		"contour list":    `{"version": 1, "entities": [{"id": 1, "contour": "1.0,1.0", "contours": [` + huge + `]}]}`,
		"outside shape":   `{"version": 1, "shape": [4, 4], "entities": [{"id": 1, "contour": "2.0,2.0 4.0,2.0 4.0,3.0"}]}`,
		"negative corner": `{"version": 1, "shape": [4, 4], "entities": [{"id": 1, "contour": "-1.0,0.0 1.0,0.0 1.0,1.0"}]}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = Decode(strings.NewReader(doc), LoadOptions{})
			})
			assert.ErrorIs(t, err, errs.ErrFormat)
			assert.ErrorIs(t, err, errs.ErrOutOfBounds)
		})
	}

	doc, err := Decode(strings.NewReader(`{"version": 1, "shape": [4, 4], "entities": [{"id": 1, "contour": "0.0,0.0 3.0,0.0 3.0,3.0"}]}`), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Manager.Len())
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slide.json")

	doc := New()
	doc.UUID = ""
	doc.SetLabelImage(path, filepath.Join(dir, "labels", "slide.png"))
	doc.Shape = []int{4, 4}
	e := doc.Manager.AddEntity()
	require.NoError(t, e.FromPolygon([]geometry.Polygon{{geometry.Pt(1, 1), geometry.Pt(2, 1), geometry.Pt(2, 2)}}))

	require.NoError(t, doc.Save(path, SaveOptions{}))
	_, err := uuid.Parse(doc.UUID)
	require.NoError(t, err)

	back, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, doc.UUID, back.UUID)
	assert.Equal(t, filepath.Join("labels", "slide.png"), back.LabelImage)
	assert.Equal(t, filepath.Join(dir, "labels", "slide.png"), back.LabelImagePath(path))
	assert.Equal(t, []int{4, 4}, back.Shape)
	assert.True(t, doc.Created.Equal(back.Created))
	assert.Equal(t, 1, back.Manager.Len())

	_, err = Load(filepath.Join(dir, "missing.json"), LoadOptions{})
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestEncodeRejectsEntityWithoutGeometry(t *testing.T) {
	doc := New()
	doc.Manager.AddEntity()
	err := doc.Encode(&bytes.Buffer{}, SaveOptions{})
	assert.ErrorIs(t, err, errs.ErrEmpty)
}
