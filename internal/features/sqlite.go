package features

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteSink writes feature tables into a SQLite database file.
type SQLiteSink struct {
	Path string
	// Table is the SQL table name; empty means "features".
	Table string
}

// Write replaces the SQL table with the contents of t. The id column becomes
// the integer primary key, the rest REAL columns; NaN is stored as NULL.
func (s SQLiteSink) Write(ctx context.Context, t *Table) error {
	if s.Path == "" {
		return fmt.Errorf("sqlite sink: empty database path")
	}
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;")
	return WriteTable(ctx, db, s.tableName(), t)
}

func (s SQLiteSink) tableName() string {
	if s.Table == "" {
		return "features"
	}
	return s.Table
}

// WriteTable writes t into an open database in one transaction.
func WriteTable(ctx context.Context, db *sql.DB, name string, t *Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", name)
	}

	defs := make([]string, len(t.Columns))
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c)
		marks[i] = "?"
		if i == 0 {
			defs[i] = cols[i] + " INTEGER PRIMARY KEY"
		} else {
			defs[i] = cols[i] + " REAL"
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			switch {
			case i == 0:
				args[i] = int64(v)
			case math.IsNaN(v):
				args[i] = nil
			default:
				args[i] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert id %d: %w", int64(row[0]), err)
		}
	}
	return tx.Commit()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
