//go:build cgo

package graph

import (
	"context"
	"fmt"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(":memory:", cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS SchemaTable(
		name STRING,
		columns INT64,
		PRIMARY KEY(name)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS SchemaColumn(
		id STRING,
		table_name STRING,
		name STRING,
		type STRING,
		nullable BOOLEAN,
		primary_key BOOLEAN,
		position INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Cluster(
		name STRING,
		cohesion_score DOUBLE,
		PRIMARY KEY(name)
	)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_COLUMN(FROM SchemaTable TO SchemaColumn)`,
	`CREATE REL TABLE IF NOT EXISTS REFERS_TO(FROM SchemaTable TO SchemaTable, source_column STRING, target_column STRING)`,
	`CREATE REL TABLE IF NOT EXISTS BELONGS_TO(FROM SchemaTable TO Cluster)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddTable inserts a SchemaTable node.
func (s *KuzuStore) AddTable(_ context.Context, node TableNode) error {
	return s.exec(
		"CREATE (t:SchemaTable {name: $name, columns: $columns})",
		map[string]any{
			"name":    node.Name,
			"columns": int64(node.Columns),
		},
	)
}

// AddColumn inserts a SchemaColumn node.
func (s *KuzuStore) AddColumn(_ context.Context, node ColumnNode) error {
	return s.exec(
		`CREATE (c:SchemaColumn {
			id: $id,
			table_name: $table,
			name: $name,
			type: $type,
			nullable: $nullable,
			primary_key: $pk,
			position: $pos
		})`,
		map[string]any{
			"id":       columnID(node.Table, node.Name),
			"table":    node.Table,
			"name":     node.Name,
			"type":     node.Type,
			"nullable": node.Nullable,
			"pk":       node.PrimaryKey,
			"pos":      int64(node.Position),
		},
	)
}

// AddCluster inserts a Cluster node.
func (s *KuzuStore) AddCluster(_ context.Context, node ClusterNode) error {
	return s.exec(
		"CREATE (c:Cluster {name: $name, cohesion_score: $score})",
		map[string]any{
			"name":  node.Name,
			"score": node.CohesionScore,
		},
	)
}

// AddEdge inserts a relationship edge between two nodes.
// The Cypher statement is chosen based on the EdgeKind.
func (s *KuzuStore) AddEdge(_ context.Context, edge Edge) error {
	params := map[string]any{
		"src": edge.SourceID,
		"dst": edge.TargetID,
	}
	var cypher string
	switch edge.Kind {
	case EdgeKindHasColumn:
		cypher = `MATCH (a:SchemaTable {name: $src}), (b:SchemaColumn {id: $dst})
				CREATE (a)-[:HAS_COLUMN]->(b)`
	case EdgeKindReferences:
		cypher = `MATCH (a:SchemaTable {name: $src}), (b:SchemaTable {name: $dst})
				CREATE (a)-[:REFERS_TO {source_column: $sc, target_column: $tc}]->(b)`
		params["sc"] = edge.SourceColumn
		params["tc"] = edge.TargetColumn
	case EdgeKindBelongs:
		cypher = `MATCH (a:SchemaTable {name: $src}), (b:Cluster {name: $dst})
				CREATE (a)-[:BELONGS_TO]->(b)`
	default:
		return fmt.Errorf("kuzu: unsupported edge kind: %s", edge.Kind)
	}
	return s.exec(cypher, params)
}

// ---------- Read operations ----------

// GetTable retrieves a single SchemaTable node by name, or returns nil if not found.
func (s *KuzuStore) GetTable(_ context.Context, name string) (*TableNode, error) {
	rows, err := s.query(
		"MATCH (t:SchemaTable {name: $name}) RETURN t.name, t.columns",
		map[string]any{"name": name},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &TableNode{Name: rows[0].str(0), Columns: rows[0].integer(1)}, nil
}

// GetColumns returns the columns of a table ordered by position.
func (s *KuzuStore) GetColumns(_ context.Context, table string) ([]ColumnNode, error) {
	rows, err := s.query(
		`MATCH (t:SchemaTable {name: $name})-[:HAS_COLUMN]->(c:SchemaColumn)
		 RETURN c.table_name, c.name, c.type, c.nullable, c.primary_key, c.position
		 ORDER BY c.position`,
		map[string]any{"name": table},
	)
	if err != nil {
		return nil, err
	}
	out := make([]ColumnNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, ColumnNode{
			Table:      r.str(0),
			Name:       r.str(1),
			Type:       r.str(2),
			Nullable:   r.boolean(3),
			PrimaryKey: r.boolean(4),
			Position:   r.integer(5),
		})
	}
	return out, nil
}

// ---------- Graph traversal ----------

// GetRelated performs a BFS over REFERS_TO edges starting from the given
// table. It returns one JoinPath per reachable table.
func (s *KuzuStore) GetRelated(_ context.Context, table string, dir Direction, maxDepth int) ([]JoinPath, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return traverse(table, maxDepth, func(name string) ([]hop, error) {
		return s.tableNeighbors(name, dir)
	})
}

// tableNeighbors returns immediate table neighbors along REFERS_TO edges.
func (s *KuzuStore) tableNeighbors(name string, dir Direction) ([]hop, error) {
	switch dir {
	case DirectionUpstream, DirectionDownstream, DirectionBoth:
	default:
		return nil, fmt.Errorf("kuzu: unknown direction: %s", dir)
	}

	var out []hop
	if dir == DirectionUpstream || dir == DirectionBoth {
		rows, err := s.query(
			`MATCH (a:SchemaTable {name: $name})-[r:REFERS_TO]->(b:SchemaTable)
			 RETURN b.name, r.source_column, r.target_column`,
			map[string]any{"name": name},
		)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			target := r.str(0)
			out = append(out, hop{table: target, edge: Edge{
				SourceID: name, TargetID: target, Kind: EdgeKindReferences,
				SourceColumn: r.str(1), TargetColumn: r.str(2),
			}})
		}
	}
	if dir == DirectionDownstream || dir == DirectionBoth {
		rows, err := s.query(
			`MATCH (a:SchemaTable)-[r:REFERS_TO]->(b:SchemaTable {name: $name})
			 RETURN a.name, r.source_column, r.target_column`,
			map[string]any{"name": name},
		)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			source := r.str(0)
			out = append(out, hop{table: source, edge: Edge{
				SourceID: source, TargetID: name, Kind: EdgeKindReferences,
				SourceColumn: r.str(1), TargetColumn: r.str(2),
			}})
		}
	}
	return out, nil
}

// GetClusters returns all Cluster nodes.
func (s *KuzuStore) GetClusters(_ context.Context) ([]ClusterNode, error) {
	rows, err := s.query(
		"MATCH (c:Cluster) RETURN c.name, c.cohesion_score ORDER BY c.name",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make([]ClusterNode, 0, len(rows))
	for _, r := range rows {
		name := r.str(0)
		score := r.float(1)

		// Fetch cluster members via BELONGS_TO edges.
		memberRows, err := s.query(
			"MATCH (t:SchemaTable)-[:BELONGS_TO]->(c:Cluster {name: $name}) RETURN t.name ORDER BY t.name",
			map[string]any{"name": name},
		)
		if err != nil {
			return nil, err
		}
		members := make([]string, 0, len(memberRows))
		for _, mr := range memberRows {
			members = append(members, mr.str(0))
		}

		out = append(out, ClusterNode{
			Name:          name,
			CohesionScore: score,
			Members:       members,
		})
	}
	return out, nil
}

// ---------- Edge enumeration ----------

// GetAllEdges returns all edges across all relationship tables.
func (s *KuzuStore) GetAllEdges(_ context.Context) ([]Edge, error) {
	var edges []Edge

	rows, err := s.query("MATCH (a:SchemaTable)-[:HAS_COLUMN]->(b:SchemaColumn) RETURN a.name, b.id", nil)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		edges = append(edges, Edge{SourceID: r.str(0), TargetID: r.str(1), Kind: EdgeKindHasColumn})
	}

	rows, err = s.query(
		"MATCH (a:SchemaTable)-[r:REFERS_TO]->(b:SchemaTable) RETURN a.name, b.name, r.source_column, r.target_column",
		nil,
	)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		edges = append(edges, Edge{
			SourceID:     r.str(0),
			TargetID:     r.str(1),
			Kind:         EdgeKindReferences,
			SourceColumn: r.str(2),
			TargetColumn: r.str(3),
		})
	}

	rows, err = s.query("MATCH (a:SchemaTable)-[:BELONGS_TO]->(b:Cluster) RETURN a.name, b.name", nil)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		edges = append(edges, Edge{SourceID: r.str(0), TargetID: r.str(1), Kind: EdgeKindBelongs})
	}
	return edges, nil
}

// ---------- Stats ----------

// statQueries count every node and relationship table. The order matches
// the GraphStats fields filled by Stats.
var statQueries = []string{
	"MATCH (n:SchemaTable) RETURN count(n)",
	"MATCH (n:SchemaColumn) RETURN count(n)",
	"MATCH (n:Cluster) RETURN count(n)",
	"MATCH ()-[r:HAS_COLUMN]->() RETURN count(r)",
	"MATCH ()-[r:REFERS_TO]->() RETURN count(r)",
	"MATCH ()-[r:BELONGS_TO]->() RETURN count(r)",
}

// Stats returns node and edge counts.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	counts := make([]int, len(statQueries))
	for i, q := range statQueries {
		rows, err := s.query(q, nil)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			counts[i] = rows[0].integer(0)
		}
	}
	return &GraphStats{
		TableCount:   counts[0],
		ColumnCount:  counts[1],
		ClusterCount: counts[2],
		EdgeCount:    counts[3] + counts[4] + counts[5],
	}, nil
}

// ---------- Cypher execution ----------

// exec runs a statement whose result rows are not needed.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	_, err := s.query(cypher, params)
	return err
}

// query runs a Cypher statement, prepared when it has parameters, and
// collects every result row.
func (s *KuzuStore) query(cypher string, params map[string]any) ([]row, error) {
	res, err := s.run(cypher, params)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var rows []row
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func (s *KuzuStore) run(cypher string, params map[string]any) (*kuzu.QueryResult, error) {
	if len(params) == 0 {
		res, err := s.conn.Query(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: query: %w", err)
		}
		return res, nil
	}
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return nil, fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()
	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return nil, fmt.Errorf("kuzu: execute: %w", err)
	}
	return res, nil
}

// row is one result tuple. KuzuDB returns int64, float64, bool and string
// values; the accessors return zero values for anything else.
type row []any

func (r row) str(i int) string {
	switch v := r[i].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (r row) integer(i int) int {
	switch n := r[i].(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case uint64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func (r row) float(i int) float64 {
	switch n := r[i].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func (r row) boolean(i int) bool {
	b, _ := r[i].(bool)
	return b
}
