// Package source reads the donation platform's relational tables so the
// ingestion job can turn rows into knowledge-base documents. The reader is
// schema-agnostic: it returns every column as a string field and leaves the
// per-table sentence formatting to the ingestion layer.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Record is a single source row. Fields maps column name to its rendered
// string value; SQL NULL renders as the literal "null".
type Record struct {
	// ID is the row's primary key, rendered as a string.
	ID string
	// Fields holds every column of the row, keyed by column name.
	Fields map[string]string
}

// Reader lists the rows of a source table. Implementations must be safe for
// concurrent use.
type Reader interface {
	// Rows returns all rows of the named table.
	Rows(ctx context.Context, table string) ([]Record, error)
	// Close releases any resources held by the reader.
	Close() error
}

// SQLiteReader is a Reader backed by a local SQLite database.
type SQLiteReader struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// Open opens a read-only SQLiteReader at the given path. Use ":memory:" for
// an in-memory database in tests.
func Open(path string) (*SQLiteReader, error) {
	dsn := path + "?_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	return &SQLiteReader{db: db}, nil
}

// NewReader wraps an existing database handle, for tests that seed their own
// schema before reading.
func NewReader(db *sql.DB) *SQLiteReader {
	return &SQLiteReader{db: db}
}

// Rows returns all rows of the named table. The table name is validated
// against a strict identifier pattern because it cannot be bound as a query
// parameter.
func (r *SQLiteReader) Rows(ctx context.Context, table string) ([]Record, error) {
	if !validIdentifier(table) {
		return nil, fmt.Errorf("source: invalid table name %q", table)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q`, table))
	if err != nil {
		return nil, fmt.Errorf("source: query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("source: columns of %s: %w", table, err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("source: scan %s: %w", table, err)
		}

		rec := Record{Fields: make(map[string]string, len(cols))}
		for i, col := range cols {
			rendered := renderValue(values[i])
			rec.Fields[col] = rendered
			if col == "id" {
				rec.ID = rendered
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: rows of %s: %w", table, err)
	}
	return records, nil
}

// Close releases the database connection pool.
func (r *SQLiteReader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("source: close: %w", err)
	}
	return nil
}

// renderValue converts a scanned SQL value to its string form. Floats keep
// the shortest representation that round-trips, so "25" stays "25" and not
// "25.000000".
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// validIdentifier reports whether s is safe to interpolate as a quoted SQL
// identifier: ASCII letters, digits, and underscores only, starting with a
// letter or underscore.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
