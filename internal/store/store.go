package store

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrUnreachable marks failures to reach the store at all, as opposed to the
// store rejecting a statement.
var ErrUnreachable = errors.New("store unreachable")

// QueryError is returned when the store rejects a statement (syntax error,
// unknown table or column, constraint violation).
type QueryError struct {
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("store: statement rejected: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Row is one record of a result table keyed by column name.
type Row map[string]any

// Result is either a row sequence (Columns and Rows set) or, for statements
// that return no rows, an affected-row count.
type Result struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         []Row    `json:"rows,omitempty"`
	RowsAffected *int64   `json:"rowsAffected,omitempty"`
}

// ReturnsRows reports whether the result is a row sequence.
func (r *Result) ReturnsRows() bool { return r.RowsAffected == nil }

// Table serializes the result for a generation prompt: a JSON array of
// objects with keys in column order, or {"rows_affected": n}. At most limit
// rows are included when limit > 0.
func (r *Result) Table(limit int) string {
	if !r.ReturnsRows() {
		return fmt.Sprintf(`{"rows_affected": %d}`, *r.RowsAffected)
	}
	rows := r.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	var b bytes.Buffer
	b.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('{')
		for j, col := range r.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			key, _ := json.Marshal(col)
			val, err := json.Marshal(row[col])
			if err != nil {
				val, _ = json.Marshal(fmt.Sprint(row[col]))
			}
			b.Write(key)
			b.WriteString(": ")
			b.Write(val)
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

// DB is an open, pooled connection to one store.
type DB struct {
	dialect Dialect
	db      *sql.DB
}

// Open parses the descriptor, opens a connection pool and verifies the store
// is reachable.
func Open(ctx context.Context, conn string) (*DB, error) {
	d, err := ParseDescriptor(conn)
	if err != nil {
		return nil, err
	}
	if err := d.checkFile(); err != nil {
		return nil, fmt.Errorf("store: open %s: %w", d.Engine, err)
	}

	db, err := sql.Open(d.Driver, d.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", d.Engine, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("store: ping %s: %w", d.Engine, ctx.Err())
		}
		return nil, fmt.Errorf("store: ping %s: %w: %v", d.Engine, ErrUnreachable, err)
	}
	return &DB{dialect: d, db: db}, nil
}

// Dialect returns the dialect the DB was opened with.
func (s *DB) Dialect() Dialect { return s.dialect }

// Close releases the connection pool.
func (s *DB) Close() error { return s.db.Close() }

// Execute runs a single statement. Row-producing statements return their
// rows; anything else returns the affected-row count.
func (s *DB) Execute(ctx context.Context, stmt string) (*Result, error) {
	if returnsRows(stmt) {
		return s.query(ctx, stmt)
	}
	res, err := s.db.ExecContext(ctx, stmt)
	if err != nil {
		return nil, s.wrap(ctx, stmt, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = 0
	}
	return &Result{RowsAffected: &n}, nil
}

func (s *DB) query(ctx context.Context, stmt string) (*Result, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, s.wrap(ctx, stmt, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, s.wrap(ctx, stmt, err)
	}

	result := &Result{Columns: cols, Rows: []Row{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, s.wrap(ctx, stmt, err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalize(vals[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, stmt, err)
	}
	return result, nil
}

// wrap classifies a driver error. Context errors pass through so callers can
// detect deadlines; network failures become ErrUnreachable; everything else
// is a QueryError.
func (s *DB) wrap(ctx context.Context, stmt string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("store: execute: %w", ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("store: execute: %w", err)
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("store: execute: %w: %v", ErrUnreachable, err)
	}
	return &QueryError{Statement: stmt, Err: err}
}

// normalize converts driver values into JSON-friendly Go values.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

var rowKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "PRAGMA": true, "SHOW": true, "EXPLAIN": true,
	"VALUES": true, "DESCRIBE": true, "DESC": true, "TABLE": true,
}

// returnsRows guesses whether stmt produces a row set from its leading
// keyword or a RETURNING clause.
func returnsRows(stmt string) bool {
	fields := strings.Fields(strings.TrimLeft(stmt, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	if rowKeywords[strings.ToUpper(fields[0])] {
		return true
	}
	for _, f := range fields[1:] {
		if strings.EqualFold(f, "RETURNING") {
			return true
		}
	}
	return false
}
