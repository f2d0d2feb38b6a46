package graph

// --- Enums ---

// NodeKind classifies nodes in the schema graph.
type NodeKind string

const (
	NodeKindTable   NodeKind = "table"
	NodeKindColumn  NodeKind = "column"
	NodeKindCluster NodeKind = "cluster"
)

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	EdgeKindHasColumn  EdgeKind = "HAS_COLUMN"
	EdgeKindReferences EdgeKind = "REFERENCES"
	EdgeKindBelongs    EdgeKind = "BELONGS"
)

// --- Models ---

// TableNode represents a table in the schema graph.
type TableNode struct {
	Name    string `json:"name"`
	Columns int    `json:"columns"`
}

// ColumnNode represents a column of a table.
type ColumnNode struct {
	Table      string `json:"table"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primaryKey,omitempty"`
	Position   int    `json:"position"`
}

// ClusterNode represents a subject area: tables connected by foreign keys.
type ClusterNode struct {
	Name          string   `json:"name"`
	CohesionScore float64  `json:"cohesionScore"`
	Members       []string `json:"members"` // table names
}

// Edge represents a relationship between two nodes. For REFERENCES edges
// SourceID and TargetID are table names and the columns give the join
// condition; HAS_COLUMN edges point from a table to a column ID.
type Edge struct {
	SourceID     string   `json:"sourceId"`
	TargetID     string   `json:"targetId"`
	Kind         EdgeKind `json:"kind"`
	SourceColumn string   `json:"sourceColumn,omitempty"`
	TargetColumn string   `json:"targetColumn,omitempty"`
}

// Condition renders a REFERENCES edge as a join condition.
func (e Edge) Condition() string {
	return e.SourceID + "." + e.SourceColumn + " = " + e.TargetID + "." + e.TargetColumn
}

// GraphStats summarizes a schema graph.
type GraphStats struct {
	TableCount   int `json:"tableCount"`
	ColumnCount  int `json:"columnCount"`
	ClusterCount int `json:"clusterCount"`
	EdgeCount    int `json:"edgeCount"`
}

// JoinPath is an ordered sequence of tables connected by foreign keys.
type JoinPath struct {
	Tables []string `json:"tables"` // table names in order
	Joins  []Edge   `json:"joins"`  // one REFERENCES edge per hop, as stored
	Depth  int      `json:"depth"`
}

// columnID produces a deterministic identifier for a column: "table.column".
func columnID(table, column string) string {
	return table + "." + column
}
