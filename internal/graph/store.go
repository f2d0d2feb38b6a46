package graph

import (
	"context"
	"io"
)

// Store is the interface for the schema graph backend.
// Implementations: KuzuStore (cgo builds), MemStore (everywhere, and tests).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddTable(ctx context.Context, node TableNode) error
	AddColumn(ctx context.Context, node ColumnNode) error
	AddCluster(ctx context.Context, node ClusterNode) error
	AddEdge(ctx context.Context, edge Edge) error

	// Read operations.
	GetTable(ctx context.Context, name string) (*TableNode, error)
	GetColumns(ctx context.Context, table string) ([]ColumnNode, error)

	// Graph traversal over REFERENCES edges.
	GetRelated(ctx context.Context, table string, direction Direction, maxDepth int) ([]JoinPath, error)
	GetClusters(ctx context.Context) ([]ClusterNode, error)
	GetAllEdges(ctx context.Context) ([]Edge, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}

// Direction controls traversal direction along REFERENCES edges.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"   // tables this one references
	DirectionDownstream Direction = "downstream" // tables referencing this one
	DirectionBoth       Direction = "both"
)
