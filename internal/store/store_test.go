package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopDDL = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	region TEXT DEFAULT 'north'
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	total REAL NOT NULL,
	placed_at TEXT
);
INSERT INTO customers (id, name, region) VALUES (1, 'Ada', 'north'), (2, 'Grace', 'south');
INSERT INTO orders (id, customer_id, total, placed_at) VALUES
	(1, 1, 120.5, '2024-01-03'),
	(2, 1, 80, '2024-02-11'),
	(3, 2, 42.25, '2024-02-19');
`

// newShopDB writes a small SQLite database to a temp dir and returns its
// connection descriptor.
func newShopDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(shopDDL)
	require.NoError(t, err)
	require.NoError(t, raw.Close())
	return "sqlite:///" + path
}

func openShop(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), newShopDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ---------------------------------------------------------------------------
// Descriptors
// ---------------------------------------------------------------------------

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name   string
		conn   string
		engine Engine
		driver string
		path   string
	}{
		{"bare path", "shop.db", EngineSQLite, "sqlite", "shop.db"},
		{"sqlalchemy relative", "sqlite:///data/shop.db", EngineSQLite, "sqlite", "data/shop.db"},
		{"sqlalchemy absolute", "sqlite:////tmp/shop.db", EngineSQLite, "sqlite", "/tmp/shop.db"},
		{"memory", ":memory:", EngineSQLite, "sqlite", ""},
		{"postgres", "postgres://u:p@localhost:5432/shop", EnginePostgres, "pgx", ""},
		{"postgresql with driver", "postgresql+psycopg2://u:p@localhost/shop", EnginePostgres, "pgx", ""},
		{"mysql", "mysql://u:p@db:3306/shop", EngineMySQL, "mysql", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDescriptor(tt.conn)
			require.NoError(t, err)
			assert.Equal(t, tt.engine, d.Engine)
			assert.Equal(t, tt.driver, d.Driver)
			assert.Equal(t, tt.path, d.Path)
		})
	}
}

func TestParseDescriptor_Normalizes(t *testing.T) {
	d, err := ParseDescriptor("postgresql+psycopg2://u:p@localhost/shop")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/shop", d.DSN)

	d, err = ParseDescriptor("mysql+pymysql://u:p@db/shop")
	require.NoError(t, err)
	assert.Contains(t, d.DSN, "u:p@tcp(db:3306)/shop")
	assert.Contains(t, d.DSN, "parseTime=true")
}

func TestParseDescriptor_Errors(t *testing.T) {
	for _, conn := range []string{"", "  ", "sqlite://", "oracle://x/y"} {
		_, err := ParseDescriptor(conn)
		assert.Error(t, err, "descriptor %q", conn)
	}
}

func TestDialect_QuoteIdent(t *testing.T) {
	assert.Equal(t, `"order ""items"""`, Dialect{Engine: EngineSQLite}.QuoteIdent(`order "items"`))
	assert.Equal(t, "`a``b`", Dialect{Engine: EngineMySQL}.QuoteIdent("a`b"))
}

// ---------------------------------------------------------------------------
// Query Executor
// ---------------------------------------------------------------------------

func TestOpen_MissingFileIsUnreachable(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestExecute_Select(t *testing.T) {
	db := openShop(t)

	res, err := db.Execute(context.Background(),
		"SELECT c.name, SUM(o.total) AS revenue FROM orders o JOIN customers c ON c.id = o.customer_id GROUP BY c.name ORDER BY c.name")
	require.NoError(t, err)

	assert.True(t, res.ReturnsRows())
	assert.Equal(t, []string{"name", "revenue"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Ada", res.Rows[0]["name"])
	assert.InDelta(t, 200.5, res.Rows[0]["revenue"], 1e-9)
	assert.Equal(t, `[{"name": "Ada", "revenue": 200.5}, {"name": "Grace", "revenue": 42.25}]`, res.Table(0))
	assert.Equal(t, `[{"name": "Ada", "revenue": 200.5}]`, res.Table(1))
}

func TestExecute_EmptySelect(t *testing.T) {
	db := openShop(t)

	res, err := db.Execute(context.Background(), "SELECT id FROM orders WHERE total > 1000")
	require.NoError(t, err)
	assert.True(t, res.ReturnsRows())
	assert.Empty(t, res.Rows)
	assert.Equal(t, "[]", res.Table(0))
}

func TestExecute_SQLiteIsReadOnly(t *testing.T) {
	db := openShop(t)
	ctx := context.Background()
	const totals = "SELECT SUM(total) AS s FROM orders"

	before, err := db.Execute(ctx, totals)
	require.NoError(t, err)

	for _, stmt := range []string{
		"UPDATE orders SET total = total + 1 WHERE customer_id = 1",
		"DROP TABLE orders",
	} {
		_, err := db.Execute(ctx, stmt)
		require.Error(t, err, stmt)
		var qe *QueryError
		require.True(t, errors.As(err, &qe), stmt)
		assert.Equal(t, stmt, qe.Statement)
	}

	after, err := db.Execute(ctx, totals)
	require.NoError(t, err)
	assert.Equal(t, before.Rows, after.Rows)
}

func TestParseDescriptor_SQLiteQueryOnly(t *testing.T) {
	d, err := ParseDescriptor("sqlite:///tmp/shop.db")
	require.NoError(t, err)
	assert.Contains(t, d.DSN, "_pragma=query_only(1)")

	d, err = ParseDescriptor("file:shop.db?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "file:shop.db?cache=shared&_pragma=query_only(1)", d.DSN)
}

func TestResult_TableRowsAffected(t *testing.T) {
	n := int64(2)
	res := &Result{RowsAffected: &n}
	assert.False(t, res.ReturnsRows())
	assert.Equal(t, `{"rows_affected": 2}`, res.Table(0))
}

func TestExecute_SchemaMismatchIsQueryError(t *testing.T) {
	db := openShop(t)

	_, err := db.Execute(context.Background(), "SELECT nope FROM invoices")
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "SELECT nope FROM invoices", qe.Statement)
	assert.NotErrorIs(t, err, ErrUnreachable)
}

func TestExecute_CanceledContext(t *testing.T) {
	db := openShop(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Execute(ctx, "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReturnsRows(t *testing.T) {
	assert.True(t, returnsRows("select 1"))
	assert.True(t, returnsRows("  WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.True(t, returnsRows("(SELECT 1) UNION (SELECT 2)"))
	assert.True(t, returnsRows("INSERT INTO t VALUES (1) RETURNING id"))
	assert.False(t, returnsRows("DELETE FROM t"))
	assert.False(t, returnsRows(""))
}

// ---------------------------------------------------------------------------
// Schema Introspector
// ---------------------------------------------------------------------------

func TestIntrospect_SQLite(t *testing.T) {
	db := openShop(t)

	schema, err := db.Introspect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"customers", "orders"}, schema.TableNames())

	customers := schema["customers"]
	require.Len(t, customers, 3)
	assert.Equal(t, "id", customers[0].Name)
	assert.True(t, customers[0].PrimaryKey)
	assert.Equal(t, "name", customers[1].Name)
	assert.False(t, customers[1].Nullable)
	assert.Equal(t, "region", customers[2].Name)
	assert.True(t, customers[2].Nullable)
	require.NotNil(t, customers[2].Default)
	assert.Equal(t, "'north'", *customers[2].Default)

	orders := schema["orders"]
	require.Len(t, orders, 4)
	assert.Equal(t, "customers.id", orders[1].References)

	assert.Equal(t, []ForeignKey{{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"}},
		schema.ForeignKeys())
}

func TestSchema_Document(t *testing.T) {
	dflt := "0"
	schema := Schema{
		"b": {{Name: "x", Type: "INTEGER", Nullable: false, Default: &dflt}},
		"a": {{Name: "z", Type: "TEXT", Nullable: true}, {Name: "y", Type: "TEXT", Nullable: true}},
	}

	doc := schema.Document()
	assert.Equal(t,
		`{"a":[{"name":"z","type":"TEXT","nullable":true,"default":null},{"name":"y","type":"TEXT","nullable":true,"default":null}],`+
			`"b":[{"name":"x","type":"INTEGER","nullable":false,"default":"0"}]}`,
		doc)

	var decoded map[string][]Column
	require.NoError(t, json.Unmarshal([]byte(doc), &decoded))
	assert.Len(t, decoded, 2)
	assert.Equal(t, "{}", Schema(nil).Document())
}

// ---------------------------------------------------------------------------
// Pools
// ---------------------------------------------------------------------------

func TestPools_ConcurrentGetSharesPool(t *testing.T) {
	conn := newShopDB(t)
	pools := NewPools()
	t.Cleanup(func() { _ = pools.Close() })

	const n = 8
	dbs := make([]*DB, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dbs[i], errs[i] = pools.Get(context.Background(), conn)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, dbs[0], dbs[i])
	}
	res, err := dbs[0].Execute(context.Background(), "SELECT COUNT(*) AS n FROM orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows[0]["n"])
}

func TestPools_ReuseAndClose(t *testing.T) {
	conn := newShopDB(t)
	pools := NewPools()
	ctx := context.Background()

	a, err := pools.Get(ctx, conn)
	require.NoError(t, err)
	b, err := pools.Get(ctx, conn)
	require.NoError(t, err)
	assert.Same(t, a, b)

	res, err := pools.Execute(ctx, conn, "SELECT COUNT(*) AS n FROM orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows[0]["n"])

	schema, err := pools.Introspect(ctx, conn)
	require.NoError(t, err)
	assert.Contains(t, schema, "orders")

	require.NoError(t, pools.Close())
	c, err := pools.Get(ctx, conn)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	require.NoError(t, pools.Close())
}
