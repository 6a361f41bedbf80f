// Package project reads and writes annotation documents: the versioned JSON
// file that stores every entity of an image as a contour string together
// with its history and tags.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cell-annotator/internal/contour"
	"cell-annotator/internal/entity"
	"cell-annotator/internal/errs"
	"cell-annotator/pkg/geometry"

	"github.com/google/uuid"
)

// CurrentVersion is the document version written by Save.
const CurrentVersion = 1

// File is the on-disk form of an annotation document.
type File struct {
	Version  int       `json:"version"`
	UUID     string    `json:"uuid,omitempty"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Label image path (relative to the document)
	LabelImagePath string `json:"label_image,omitempty"`
	// Image size as [height, width]
	Shape []int `json:"shape,omitempty"`

	Entities []Record `json:"entities"`
}

// Record is one stored entity.
type Record struct {
	ID      json.Number `json:"id"`
	Contour string      `json:"contour"`
	// Contours lists every polygon of an entity with holes or several
	// components; Contour then repeats the first one.
	Contours     []string          `json:"contours,omitempty"`
	Historical   bool              `json:"historical"`
	Predecessors []int             `json:"predecessors"`
	Attributes   entity.Attributes `json:"attributes"`
}

// Document is a loaded annotation document.
type Document struct {
	Version    int
	UUID       string
	Created    time.Time
	Modified   time.Time
	LabelImage string
	Shape      []int
	Manager    *entity.Manager
}

// LoadOptions controls Decode and Load.
type LoadOptions struct {
	// KeepHistorical loads historical records with their flag set. By
	// default they are dropped and only their ids stay reserved.
	KeepHistorical bool
}

// SaveOptions controls Encode and Save.
type SaveOptions struct {
	// SkipHistorical leaves historical entities out of the document.
	SkipHistorical bool
}

// New creates an empty document.
func New() *Document {
	now := time.Now()
	return &Document{
		Version:  CurrentVersion,
		UUID:     uuid.New().String(),
		Created:  now,
		Modified: now,
		Manager:  entity.NewManager(),
	}
}

// Load loads a document from a file.
func Load(path string, opts LoadOptions) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	doc, err := Decode(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode reads a document. It stops at the first malformed record with an
// error wrapping ErrFormat.
func Decode(r io.Reader, opts LoadOptions) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFormat, err)
	}
	if f.Version < 1 || f.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported document version %d", errs.ErrFormat, f.Version)
	}
	var frame *geometry.RectInt
	if f.Shape != nil {
		if len(f.Shape) != 2 || f.Shape[0] <= 0 || f.Shape[1] <= 0 {
			return nil, fmt.Errorf("%w: shape must be positive [height, width], got %v", errs.ErrFormat, f.Shape)
		}
		frame = &geometry.RectInt{Width: f.Shape[1], Height: f.Shape[0]}
	}

	doc := &Document{
		Version:    f.Version,
		UUID:       f.UUID,
		Created:    f.Created,
		Modified:   f.Modified,
		LabelImage: f.LabelImagePath,
		Shape:      f.Shape,
		Manager:    entity.NewManager(),
	}
	for i, rec := range f.Entities {
		if err := restore(doc.Manager, rec, frame, opts); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", errs.ErrFormat, i, err)
		}
	}
	return doc, nil
}

// restore adds one record to mgr. When frame is set, outlines must lie
// inside it.
func restore(mgr *entity.Manager, rec Record, frame *geometry.RectInt, opts LoadOptions) error {
	id, err := entity.ParseID(rec.ID)
	if err != nil {
		return err
	}
	snap := entity.Snapshot{
		ID:           id,
		Historical:   rec.Historical,
		Predecessors: rec.Predecessors,
		Attributes:   rec.Attributes,
	}
	switch {
	case len(rec.Contours) > 0:
		snap.Verbatim = true
		for _, s := range rec.Contours {
			p, err := contour.ParsePolygon(s)
			if err != nil {
				return fmt.Errorf("entity %d: %w", id, err)
			}
			snap.Polygons = append(snap.Polygons, p)
		}
	case rec.Contour != "":
		p, err := contour.ParsePolygon(rec.Contour)
		if err != nil {
			return fmt.Errorf("entity %d: %w", id, err)
		}
		snap.Polygons = []geometry.Polygon{p}
	default:
		return fmt.Errorf("entity %d: missing contour", id)
	}
	if frame != nil {
		if b := geometry.PolygonsBounds(snap.Polygons); !frame.ContainsRect(b) {
			return fmt.Errorf("entity %d: %w: outline %s outside shape %dx%d", id, errs.ErrOutOfBounds, b, frame.Height, frame.Width)
		}
	}
	for _, p := range rec.Predecessors {
		if p <= 0 {
			return fmt.Errorf("entity %d: %w: predecessor %d", id, errs.ErrInvalidID, p)
		}
	}

	if rec.Historical && !opts.KeepHistorical {
		return mgr.Reserve(id)
	}
	_, err = mgr.Restore(snap)
	return err
}

// Encode writes the document, entities in ascending id order.
func (d *Document) Encode(w io.Writer, opts SaveOptions) error {
	f := File{
		Version:        CurrentVersion,
		UUID:           d.UUID,
		Created:        d.Created,
		Modified:       d.Modified,
		LabelImagePath: d.LabelImage,
		Shape:          d.Shape,
		Entities:       []Record{},
	}
	for _, e := range d.Manager.AllEntities() {
		if e.Historical() && opts.SkipHistorical {
			continue
		}
		rec, err := record(e)
		if err != nil {
			return err
		}
		f.Entities = append(f.Entities, rec)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func record(e *entity.Entity) (Record, error) {
	contours := e.Contours()
	if len(contours) == 0 {
		return Record{}, fmt.Errorf("%w: entity %d has no geometry", errs.ErrEmpty, e.ID())
	}
	rec := Record{
		ID:           json.Number(fmt.Sprint(e.ID())),
		Contour:      contour.FormatPolygon(contours[0]),
		Historical:   e.Historical(),
		Predecessors: e.Predecessors(),
		Attributes:   e.Attributes(),
	}
	if rec.Predecessors == nil {
		rec.Predecessors = []int{}
	}
	if rec.Attributes == nil {
		rec.Attributes = entity.Attributes{}
	}
	if len(contours) > 1 {
		for _, p := range contours {
			rec.Contours = append(rec.Contours, contour.FormatPolygon(p))
		}
	}
	return rec, nil
}

// Save writes the document to a file, stamping its identity and
// modification time.
func (d *Document) Save(path string, opts SaveOptions) error {
	now := time.Now()
	if d.UUID == "" {
		d.UUID = uuid.New().String()
	}
	if d.Created.IsZero() {
		d.Created = now
	}
	d.Modified = now

	var buf bytes.Buffer
	if err := d.Encode(&buf, opts); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return nil
}

// SetLabelImage sets the label image path (relative to the document).
func (d *Document) SetLabelImage(docPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(docPath), imagePath)
	if err != nil {
		d.LabelImage = imagePath
	} else {
		d.LabelImage = rel
	}
}

// LabelImagePath returns the absolute path to the label image.
func (d *Document) LabelImagePath(docPath string) string {
	if d.LabelImage == "" {
		return ""
	}
	if filepath.IsAbs(d.LabelImage) {
		return d.LabelImage
	}
	return filepath.Join(filepath.Dir(docPath), d.LabelImage)
}
