package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Introspect enumerates tables, columns and foreign keys into a Schema
// Document. It only reads catalog tables.
func (s *DB) Introspect(ctx context.Context) (Schema, error) {
	var (
		schema Schema
		err    error
	)
	switch s.dialect.Engine {
	case EngineSQLite:
		schema, err = s.introspectSQLite(ctx)
	case EnginePostgres:
		schema, err = s.introspectCatalog(ctx, postgresColumnsQuery, postgresForeignKeysQuery)
	case EngineMySQL:
		schema, err = s.introspectCatalog(ctx, mysqlColumnsQuery, mysqlForeignKeysQuery)
	default:
		return nil, fmt.Errorf("store: introspect: unsupported engine %q", s.dialect.Engine)
	}
	if err != nil {
		return nil, fmt.Errorf("store: introspect %s: %w", s.dialect.Engine, err)
	}
	return schema, nil
}

// ---------------------------------------------------------------------------
// SQLite
// ---------------------------------------------------------------------------

func (s *DB) introspectSQLite(ctx context.Context) (Schema, error) {
	tables, err := s.stringColumn(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}

	schema := make(Schema, len(tables))
	for _, table := range tables {
		cols, err := s.sqliteColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		refs, err := s.sqliteForeignKeys(ctx, table)
		if err != nil {
			return nil, err
		}
		for i := range cols {
			cols[i].References = refs[cols[i].Name]
		}
		schema[table] = cols
	}
	return schema, nil
}

func (s *DB) sqliteColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+s.dialect.QuoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, Column{
			Name:       name,
			Type:       typ,
			Nullable:   notNull == 0,
			Default:    nullString(dflt),
			PrimaryKey: pk > 0,
		})
	}
	return cols, rows.Err()
}

// sqliteForeignKeys maps a column name to its "table.column" reference.
func (s *DB) sqliteForeignKeys(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA foreign_key_list("+s.dialect.QuoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	refs := make(map[string]string)
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// id, seq, table, from, to, on_update, on_delete, match
		if len(vals) < 5 {
			continue
		}
		refTable, from, to := vals[2].String, vals[3].String, vals[4].String
		if to == "" {
			to = "rowid"
		}
		refs[from] = refTable + "." + to
	}
	return refs, rows.Err()
}

// ---------------------------------------------------------------------------
// information_schema engines
// ---------------------------------------------------------------------------

const postgresColumnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default,
       EXISTS (
         SELECT 1 FROM information_schema.table_constraints tc
         JOIN information_schema.key_column_usage k
           ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
         WHERE tc.constraint_type = 'PRIMARY KEY'
           AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
           AND k.column_name = c.column_name
       ) AS is_pk
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = current_schema() AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

const postgresForeignKeysQuery = `
SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema()`

const mysqlColumnsQuery = `
SELECT c.TABLE_NAME, c.COLUMN_NAME, c.COLUMN_TYPE, c.IS_NULLABLE, c.COLUMN_DEFAULT,
       c.COLUMN_KEY = 'PRI'
FROM information_schema.COLUMNS c
JOIN information_schema.TABLES t
  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
WHERE c.TABLE_SCHEMA = DATABASE() AND t.TABLE_TYPE = 'BASE TABLE'
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

const mysqlForeignKeysQuery = `
SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL`

func (s *DB) introspectCatalog(ctx context.Context, columnsQuery, fkQuery string) (Schema, error) {
	rows, err := s.db.QueryContext(ctx, columnsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schema := make(Schema)
	for rows.Next() {
		var (
			table, name, typ, nullable string
			dflt                       sql.NullString
			pk                         bool
		)
		if err := rows.Scan(&table, &name, &typ, &nullable, &dflt, &pk); err != nil {
			return nil, err
		}
		schema[table] = append(schema[table], Column{
			Name:       name,
			Type:       typ,
			Nullable:   nullable == "YES",
			Default:    nullString(dflt),
			PrimaryKey: pk,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fkRows, err := s.db.QueryContext(ctx, fkQuery)
	if err != nil {
		return nil, err
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var table, col, refTable, refCol string
		if err := fkRows.Scan(&table, &col, &refTable, &refCol); err != nil {
			return nil, err
		}
		cols := schema[table]
		for i := range cols {
			if cols[i].Name == col {
				cols[i].References = refTable + "." + refCol
			}
		}
	}
	return schema, fkRows.Err()
}

// stringColumn runs a single-column query and collects the values.
func (s *DB) stringColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
