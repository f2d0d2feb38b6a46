package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ComputeClusters finds connected components in the table graph
// (REFERENCES edges only) and stores them as ClusterNodes.
//
// Algorithm:
//  1. Build an undirected adjacency list from REFERENCES edges among the given tables.
//  2. Find connected components via BFS, visiting tables in name order.
//  3. For each component with >= 2 tables, compute a cohesion score, name the
//     subject area and store the cluster with BELONGS edges for its members.
func ComputeClusters(ctx context.Context, store Store, tables []TableNode) ([]ClusterNode, error) {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)

	adj, err := buildAdjacency(ctx, store, names)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool, len(names))
	used := make(map[string]bool)
	var clusters []ClusterNode

	for _, name := range names {
		if visited[name] {
			continue
		}
		component := bfsComponent(name, adj, visited)
		if len(component) < 2 {
			continue
		}
		sort.Strings(component)
		cluster := ClusterNode{
			Name:          uniqueName(clusterName(component, adj), used),
			CohesionScore: computeCohesion(component, adj),
			Members:       component,
		}
		if err := store.AddCluster(ctx, cluster); err != nil {
			return nil, err
		}
		for _, member := range component {
			edge := Edge{
				SourceID: member,
				TargetID: cluster.Name,
				Kind:     EdgeKindBelongs,
			}
			if err := store.AddEdge(ctx, edge); err != nil {
				return nil, err
			}
		}
		clusters = append(clusters, cluster)
	}

	return clusters, nil
}

// buildAdjacency constructs a bidirectional adjacency list from REFERENCES
// edges using a single pass over all edges. Self references are ignored.
func buildAdjacency(ctx context.Context, store Store, tables []string) (map[string]map[string]bool, error) {
	adj := make(map[string]map[string]bool, len(tables))
	for _, t := range tables {
		adj[t] = make(map[string]bool)
	}

	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: edges: %w", err)
	}
	for _, e := range edges {
		if e.Kind != EdgeKindReferences || e.SourceID == e.TargetID {
			continue
		}
		if adj[e.SourceID] != nil && adj[e.TargetID] != nil {
			adj[e.SourceID][e.TargetID] = true
			adj[e.TargetID][e.SourceID] = true
		}
	}
	return adj, nil
}

// bfsComponent performs BFS from start on the adjacency list and returns
// all reachable nodes. It marks visited nodes as it goes.
func bfsComponent(start string, adj map[string]map[string]bool, visited map[string]bool) []string {
	var component []string
	queue := []string{start}
	visited[start] = true

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)
		for neighbor := range adj[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	return component
}

// computeCohesion returns the edge density of a component: distinct linked
// table pairs divided by all possible pairs. A chain scores low, a fully
// cross-referenced group scores 1.
func computeCohesion(component []string, adj map[string]map[string]bool) float64 {
	n := len(component)
	if n < 2 {
		return 0
	}
	links := 0
	for _, m := range component {
		for neighbor := range adj[m] {
			if m < neighbor {
				links++
			}
		}
	}
	return float64(links) / float64(n*(n-1)/2)
}

// clusterName names a subject area after the longest common snake_case
// prefix of its tables ("order_items", "order_notes" → "order"), falling
// back to the most connected table.
func clusterName(component []string, adj map[string]map[string]bool) string {
	if prefix := commonSegmentPrefix(component); prefix != "" {
		return prefix
	}
	hub := component[0]
	for _, t := range component[1:] {
		if len(adj[t]) > len(adj[hub]) {
			hub = t
		}
	}
	return hub
}

// commonSegmentPrefix returns the longest common prefix of names made of
// whole "_"-separated segments, ignoring a plural "s" on the last segment.
func commonSegmentPrefix(names []string) string {
	split := make([][]string, len(names))
	for i, n := range names {
		split[i] = strings.Split(strings.ToLower(n), "_")
	}

	var prefix []string
	for i := 0; ; i++ {
		var seg string
		for j, parts := range split {
			if i >= len(parts) {
				return strings.Join(prefix, "_")
			}
			s := strings.TrimSuffix(parts[i], "s")
			if j == 0 {
				seg = s
			} else if s != seg {
				return strings.Join(prefix, "_")
			}
		}
		if seg == "" {
			return strings.Join(prefix, "_")
		}
		prefix = append(prefix, seg)
	}
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[candidate]; i++ {
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
	used[candidate] = true
	return candidate
}
