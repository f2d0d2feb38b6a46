package graph

import (
	"context"
	"sort"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	tables   map[string]TableNode
	columns  map[string][]ColumnNode // key: table name
	edges    []Edge
	clusters []ClusterNode
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		tables:  make(map[string]TableNode),
		columns: make(map[string][]ColumnNode),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddTable stores a table node keyed by its name.
func (m *MemStore) AddTable(_ context.Context, node TableNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[node.Name] = node
	return nil
}

// AddColumn appends a column to its table's column list.
func (m *MemStore) AddColumn(_ context.Context, node ColumnNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.columns[node.Table] = append(m.columns[node.Table], node)
	return nil
}

// AddCluster appends a cluster to the internal slice.
func (m *MemStore) AddCluster(_ context.Context, node ClusterNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters = append(m.clusters, node)
	return nil
}

// AddEdge appends an edge to the internal slice.
func (m *MemStore) AddEdge(_ context.Context, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edge)
	return nil
}

// GetTable returns the table node for the given name, or nil if not found.
func (m *MemStore) GetTable(_ context.Context, name string) (*TableNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// GetColumns returns the columns of table ordered by position.
func (m *MemStore) GetColumns(_ context.Context, table string) ([]ColumnNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ColumnNode, len(m.columns[table]))
	copy(out, m.columns[table])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// GetRelated performs a BFS over REFERENCES edges from table in the given
// direction, up to maxDepth hops. It returns one JoinPath per reachable table.
func (m *MemStore) GetRelated(_ context.Context, table string, direction Direction, maxDepth int) ([]JoinPath, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return traverse(table, maxDepth, func(id string) ([]hop, error) {
		return hopsFrom(m.edges, id, direction), nil
	})
}

// GetClusters returns all stored clusters.
func (m *MemStore) GetClusters(_ context.Context) ([]ClusterNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ClusterNode, len(m.clusters))
	copy(out, m.clusters)
	return out, nil
}

// GetAllEdges returns a copy of all edges in the store.
func (m *MemStore) GetAllEdges(_ context.Context) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Edge, len(m.edges))
	copy(out, m.edges)
	return out, nil
}

// Stats returns counts of all node and edge types in the graph.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	columns := 0
	for _, cols := range m.columns {
		columns += len(cols)
	}
	return &GraphStats{
		TableCount:   len(m.tables),
		ColumnCount:  columns,
		ClusterCount: len(m.clusters),
		EdgeCount:    len(m.edges),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// hop is one step along a REFERENCES edge.
type hop struct {
	table string
	edge  Edge
}

// hopsFrom returns the REFERENCES hops leaving table in direction.
func hopsFrom(edges []Edge, table string, direction Direction) []hop {
	var out []hop
	for _, e := range edges {
		if e.Kind != EdgeKindReferences {
			continue
		}
		if (direction == DirectionUpstream || direction == DirectionBoth) && e.SourceID == table {
			out = append(out, hop{table: e.TargetID, edge: e})
		}
		if (direction == DirectionDownstream || direction == DirectionBoth) && e.TargetID == table {
			out = append(out, hop{table: e.SourceID, edge: e})
		}
	}
	return out
}

// traverse runs a breadth-first search from start, so the path recorded for
// each reachable table is a shortest one.
func traverse(start string, maxDepth int, next func(table string) ([]hop, error)) ([]JoinPath, error) {
	if maxDepth <= 0 {
		return nil, nil
	}

	type bfsEntry struct {
		tables []string
		joins  []Edge
	}

	visited := map[string]bool{start: true}
	queue := []bfsEntry{{tables: []string{start}}}
	var paths []JoinPath

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			tip := entry.tables[len(entry.tables)-1]
			hops, err := next(tip)
			if err != nil {
				return nil, err
			}
			sort.SliceStable(hops, func(i, j int) bool { return hops[i].table < hops[j].table })
			for _, h := range hops {
				if visited[h.table] {
					continue
				}
				visited[h.table] = true
				tables := append(append(make([]string, 0, len(entry.tables)+1), entry.tables...), h.table)
				joins := append(append(make([]Edge, 0, len(entry.joins)+1), entry.joins...), h.edge)
				paths = append(paths, JoinPath{Tables: tables, Joins: joins, Depth: len(joins)})
				nextQueue = append(nextQueue, bfsEntry{tables: tables, joins: joins})
			}
		}
		queue = nextQueue
	}
	return paths, nil
}
