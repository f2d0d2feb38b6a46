package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/chartwise/internal/store"
)

// ErrNoJoinPath is returned when two tables are not connected by foreign keys.
var ErrNoJoinPath = errors.New("graph: no join path")

// maxJoinDepth bounds join path searches.
const maxJoinDepth = 8

// Build loads a schema document into s: one table node per table, one column
// node per column, HAS_COLUMN edges, REFERENCES edges for foreign keys whose
// target table exists, and subject-area clusters.
func Build(ctx context.Context, s Store, schema store.Schema) (*GraphStats, error) {
	if err := s.InitSchema(ctx); err != nil {
		return nil, err
	}

	names := schema.TableNames()
	tables := make([]TableNode, 0, len(names))
	for _, name := range names {
		cols := schema[name]
		node := TableNode{Name: name, Columns: len(cols)}
		if err := s.AddTable(ctx, node); err != nil {
			return nil, fmt.Errorf("graph: add table %s: %w", name, err)
		}
		tables = append(tables, node)

		for i, c := range cols {
			col := ColumnNode{
				Table:      name,
				Name:       c.Name,
				Type:       c.Type,
				Nullable:   c.Nullable,
				PrimaryKey: c.PrimaryKey,
				Position:   i + 1,
			}
			if err := s.AddColumn(ctx, col); err != nil {
				return nil, fmt.Errorf("graph: add column %s: %w", columnID(name, c.Name), err)
			}
			edge := Edge{SourceID: name, TargetID: columnID(name, c.Name), Kind: EdgeKindHasColumn}
			if err := s.AddEdge(ctx, edge); err != nil {
				return nil, fmt.Errorf("graph: add column edge: %w", err)
			}
		}
	}

	for _, fk := range schema.ForeignKeys() {
		if _, ok := schema[fk.RefTable]; !ok {
			continue
		}
		edge := Edge{
			SourceID:     fk.Table,
			TargetID:     fk.RefTable,
			Kind:         EdgeKindReferences,
			SourceColumn: fk.Column,
			TargetColumn: fk.RefColumn,
		}
		if err := s.AddEdge(ctx, edge); err != nil {
			return nil, fmt.Errorf("graph: add reference %s: %w", edge.Condition(), err)
		}
	}

	if _, err := ComputeClusters(ctx, s, tables); err != nil {
		return nil, fmt.Errorf("graph: clusters: %w", err)
	}
	return s.Stats(ctx)
}

// FindJoinPath returns a shortest chain of foreign keys connecting from and
// to, following references in either direction.
func FindJoinPath(ctx context.Context, s Store, from, to string) (*JoinPath, error) {
	for _, name := range []string{from, to} {
		t, err := s.GetTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("graph: unknown table %q", name)
		}
	}
	if from == to {
		return &JoinPath{Tables: []string{from}}, nil
	}

	paths, err := s.GetRelated(ctx, from, DirectionBoth, maxJoinDepth)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if p.Tables[len(p.Tables)-1] == to {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w between %s and %s", ErrNoJoinPath, from, to)
}

// Describe renders subject areas and foreign-key relations as prompt text.
// It returns "" when the schema has no relations.
func Describe(ctx context.Context, s Store) (string, error) {
	clusters, err := s.GetClusters(ctx)
	if err != nil {
		return "", err
	}
	edges, err := s.GetAllEdges(ctx)
	if err != nil {
		return "", err
	}

	var relations []string
	for _, e := range edges {
		if e.Kind == EdgeKindReferences {
			relations = append(relations, e.Condition())
		}
	}
	if len(relations) == 0 && len(clusters) == 0 {
		return "", nil
	}

	var b strings.Builder
	if len(clusters) > 0 {
		b.WriteString("Subject areas:\n")
		for _, c := range clusters {
			fmt.Fprintf(&b, "- %s (cohesion %.2f): %s\n", c.Name, c.CohesionScore, strings.Join(c.Members, ", "))
		}
	}
	if len(relations) > 0 {
		b.WriteString("Relations:\n")
		for _, r := range relations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
