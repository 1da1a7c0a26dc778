// Package dbcheck provides guarded, read-only inspection of a solution's
// SQLite database. Queries are vetted before execution and the connection
// itself is opened with query_only set, so a check can look at state the
// UI never shows without any chance of mutating it.
package dbcheck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrQueryNotAllowed is returned when a query fails read-only vetting.
var ErrQueryNotAllowed = errors.New("query not allowed")

const (
	// DefaultMaxRows caps result sets returned to the model.
	DefaultMaxRows = 200

	// DefaultQueryTimeout bounds each inspection query.
	DefaultQueryTimeout = 10 * time.Second

	maxQueryLen = 8192
)

// Config holds inspector configuration.
type Config struct {
	// Path is the SQLite database file to inspect.
	Path string

	// MaxRows caps returned rows per query. Zero means DefaultMaxRows.
	MaxRows int

	// QueryTimeout bounds each query. Zero means DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// QueryResult holds the rendered output of one inspection query.
type QueryResult struct {
	Columns   []string      `json:"columns"`
	Rows      [][]string    `json:"rows"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"-"`
}

// TableInfo describes one user table.
type TableInfo struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"not_null"`
	PK      bool   `json:"pk"`
}

// Inspector is a read-only view over one SQLite database.
type Inspector struct {
	db  *sql.DB
	cfg Config
}

// Open opens the database at cfg.Path for inspection. The file must
// already exist: sql.Open would silently create an empty database for
// a mistyped path.
func Open(cfg Config) (*Inspector, error) {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("dbcheck: database %s: %w", cfg.Path, err)
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("dbcheck: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA query_only = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("dbcheck: pragma %q: %w", p, err)
		}
	}

	return &Inspector{db: db, cfg: cfg}, nil
}

// Close closes the underlying database connection.
func (i *Inspector) Close() error {
	return i.db.Close()
}

// forbiddenKeywords may never appear as bare tokens in an inspection
// query. query_only already rejects writes at the engine level; the vet
// refuses them earlier with a clearer error.
var forbiddenKeywords = map[string]bool{
	"attach":  true,
	"pragma":  true,
	"insert":  true,
	"update":  true,
	"delete":  true,
	"drop":    true,
	"alter":   true,
	"create":  true,
	"replace": true,
	"vacuum":  true,
	"reindex": true,
}

// vetQuery rejects anything that is not a single read-only statement.
func vetQuery(query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return fmt.Errorf("%w: empty query", ErrQueryNotAllowed)
	}
	if len(q) > maxQueryLen {
		return fmt.Errorf("%w: query exceeds %d bytes", ErrQueryNotAllowed, maxQueryLen)
	}

	q = strings.TrimSuffix(q, ";")
	if strings.Contains(q, ";") {
		return fmt.Errorf("%w: multiple statements", ErrQueryNotAllowed)
	}

	fields := strings.Fields(strings.ToLower(q))
	if fields[0] != "select" && fields[0] != "with" {
		return fmt.Errorf("%w: only SELECT queries are permitted, got %q", ErrQueryNotAllowed, fields[0])
	}
	for _, f := range fields {
		if forbiddenKeywords[f] {
			return fmt.Errorf("%w: keyword %q is forbidden", ErrQueryNotAllowed, f)
		}
	}
	return nil
}

// Query runs one vetted SELECT and renders every value as a string.
// Results are capped at cfg.MaxRows with Truncated set when more rows
// were available.
func (i *Inspector) Query(ctx context.Context, query string) (*QueryResult, error) {
	if err := vetQuery(query); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := i.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dbcheck: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dbcheck: columns: %w", err)
	}

	result := &QueryResult{Columns: cols, Rows: [][]string{}}
	for rows.Next() {
		if len(result.Rows) >= i.cfg.MaxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for j := range values {
			valuePtrs[j] = &values[j]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("dbcheck: scan: %w", err)
		}

		rendered := make([]string, len(cols))
		for j, v := range values {
			rendered[j] = formatValue(v)
		}
		result.Rows = append(result.Rows, rendered)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dbcheck: rows: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Tables lists user tables with their row counts.
func (i *Inspector) Tables(ctx context.Context) ([]TableInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.QueryTimeout)
	defer cancel()

	rows, err := i.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("dbcheck: list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("dbcheck: scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dbcheck: tables: %w", err)
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		// name comes from sqlite_master, not from the caller
		var count int64
		if err := i.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("dbcheck: count %s: %w", name, err)
		}
		tables = append(tables, TableInfo{Name: name, RowCount: count})
	}
	return tables, nil
}

// Columns describes the columns of one table. The name is checked
// against the actual table list before it reaches any SQL.
func (i *Inspector) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	tables, err := i.Tables(ctx)
	if err != nil {
		return nil, err
	}
	known := false
	for _, t := range tables {
		if t.Name == table {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("dbcheck: table %q not found", table)
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.QueryTimeout)
	defer cancel()

	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("dbcheck: table_info %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("dbcheck: scan column: %w", err)
		}
		cols = append(cols, ColumnInfo{Name: name, Type: typ, NotNull: notNull != 0, PK: pk != 0})
	}
	return cols, rows.Err()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
