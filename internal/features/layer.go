package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"cell-annotator/internal/errs"
)

// Table is a feature table: the first column is the entity id and rows are
// in ascending id order.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// NewTable creates a table with only the id column.
func NewTable(ids []int) *Table {
	t := &Table{Columns: []string{"id"}, Rows: make([][]float64, len(ids))}
	for i, id := range ids {
		t.Rows[i] = []float64{float64(id)}
	}
	return t
}

// AddColumn appends a column; values must have one entry per row and the
// name must be new.
func (t *Table) AddColumn(name string, values []float64) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("%w: column %s has %d values for %d rows", errs.ErrInvalidArgument, name, len(values), len(t.Rows))
	}
	if slices.Contains(t.Columns, name) {
		return fmt.Errorf("%w: duplicate column %s", errs.ErrInvalidArgument, name)
	}
	t.Columns = append(t.Columns, name)
	for i, v := range values {
		t.Rows[i] = append(t.Rows[i], v)
	}
	return nil
}

// Column returns the values of a named column.
func (t *Table) Column(name string) ([]float64, bool) {
	for c, n := range t.Columns {
		if n != name {
			continue
		}
		out := make([]float64, len(t.Rows))
		for i, row := range t.Rows {
			out[i] = row[c]
		}
		return out, true
	}
	return nil, false
}

// IDs returns the id column as integers.
func (t *Table) IDs() []int {
	out := make([]int, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = int(row[0])
	}
	return out
}

// WriteCSV writes the table with a header row. Ids are written as integers,
// NaN as an empty field.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for c, v := range row {
			record[c] = formatValue(c, v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(col int, v float64) string {
	if col == 0 {
		return strconv.Itoa(int(v))
	}
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
