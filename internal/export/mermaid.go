package export

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dusk-indust/chartwise/internal/graph"
)

// GenerateMermaid produces a Mermaid erDiagram of the given tables from a
// schema graph. Columns keep their ordinal order; REFERENCES edges become
// one-to-many relationships labelled with the foreign-key column. Subject
// areas are emitted as comments since erDiagram has no grouping.
func GenerateMermaid(ctx context.Context, store graph.Store, tables []string) (string, error) {
	clusters, err := store.GetClusters(ctx)
	if err != nil {
		return "", fmt.Errorf("get clusters: %w", err)
	}

	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return "", fmt.Errorf("get edges: %w", err)
	}

	// Foreign-key columns per table.
	fks := make(map[string]map[string]bool)
	var refs []graph.Edge
	for _, e := range edges {
		if e.Kind != graph.EdgeKindReferences {
			continue
		}
		if fks[e.SourceID] == nil {
			fks[e.SourceID] = make(map[string]bool)
		}
		fks[e.SourceID][e.SourceColumn] = true
		refs = append(refs, e)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].SourceID != refs[j].SourceID {
			return refs[i].SourceID < refs[j].SourceID
		}
		return refs[i].SourceColumn < refs[j].SourceColumn
	})

	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)

	var sb strings.Builder
	sb.WriteString("erDiagram\n")

	for _, c := range clusters {
		sb.WriteString(fmt.Sprintf("  %%%% subject area %s: %s\n", c.Name, strings.Join(c.Members, ", ")))
	}

	for _, table := range sorted {
		cols, err := store.GetColumns(ctx, table)
		if err != nil {
			return "", fmt.Errorf("get columns of %s: %w", table, err)
		}
		sb.WriteString(fmt.Sprintf("  %s {\n", mermaidName(table)))
		for _, col := range cols {
			var keys []string
			if col.PrimaryKey {
				keys = append(keys, "PK")
			}
			if fks[table][col.Name] {
				keys = append(keys, "FK")
			}
			line := fmt.Sprintf("    %s %s", mermaidType(col.Type), mermaidName(col.Name))
			if len(keys) > 0 {
				line += " " + strings.Join(keys, ",")
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("  }\n")
	}

	for _, e := range refs {
		sb.WriteString(fmt.Sprintf("  %s ||--o{ %s : \"%s\"\n",
			mermaidName(e.TargetID), mermaidName(e.SourceID), e.SourceColumn))
	}

	return sb.String(), nil
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// mermaidName makes an identifier Mermaid accepts as an entity or attribute.
func mermaidName(s string) string {
	s = strings.Trim(nonIdent.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

// mermaidType turns a declared type such as "VARCHAR(255)" into a single
// token ("VARCHAR_255"). Columns without a declared type become "ANY".
func mermaidType(t string) string {
	if strings.TrimSpace(t) == "" {
		return "ANY"
	}
	return mermaidName(t)
}
