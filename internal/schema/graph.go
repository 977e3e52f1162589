package schema

import (
	"fmt"
	"sort"
	"strings"

	"sql-cleanser/internal/anomaly"
)

// Edge A -> B means rows of A must be emitted before rows of B because B
// carries Column referencing A.
type Edge struct {
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Column string `json:"column" yaml:"column"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s (%s)", e.From, e.To, e.Column)
}

func (e Edge) less(o Edge) bool {
	if e.From != o.From {
		return e.From < o.From
	}
	return e.To < o.To
}

// DependencyGraph holds the inferred table references and the resulting
// emission order.
type DependencyGraph struct {
	Nodes   []string `json:"nodes" yaml:"nodes"`
	Edges   []Edge   `json:"edges" yaml:"edges"`
	Removed []Edge   `json:"removed,omitempty" yaml:"removed,omitempty"`
	Order   []string `json:"order" yaml:"order"`

	rank map[string]int
}

// Rank returns the position of table in Order, or len(Order) when unknown.
func (g *DependencyGraph) Rank(table string) int {
	if r, ok := g.rank[TableName(table)]; ok {
		return r
	}
	return len(g.Order)
}

// Dependencies returns the tables that must precede table.
func (g *DependencyGraph) Dependencies(table string) []string {
	name := TableName(table)
	var result []string
	for _, e := range g.Edges {
		if e.To == name {
			result = append(result, e.From)
		}
	}
	return result
}

// BuildGraph infers edges from `<singular(A)>_id` / `<A>_id` column names over
// the union of tables across datasets and orders them topologically.
func BuildGraph(datasets ...*Dataset) (*DependencyGraph, []anomaly.Anomaly) {
	columns := make(map[string]map[string]bool)
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		for name, t := range ds.Tables {
			if columns[name] == nil {
				columns[name] = make(map[string]bool)
			}
			for _, c := range t.Columns {
				columns[name][strings.ToLower(c)] = true
			}
		}
	}
	nodes := make([]string, 0, len(columns))
	for name := range columns {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)

	var edges []Edge
	for _, to := range nodes {
		cols := make([]string, 0, len(columns[to]))
		for c := range columns[to] {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		linked := make(map[string]bool)
		for _, col := range cols {
			if !strings.HasSuffix(col, "_id") {
				continue
			}
			ref := strings.TrimSuffix(col, "_id")
			for _, from := range nodes {
				if from == to || linked[from] {
					continue
				}
				if ref == from || ref == Singular(from) {
					linked[from] = true
					edges = append(edges, Edge{From: from, To: to, Column: col})
				}
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].less(edges[j]) })

	order, removed := SortTables(nodes, edges)
	graph := &DependencyGraph{Nodes: nodes, Edges: edges, Removed: removed, Order: order}
	graph.rank = make(map[string]int, len(order))
	for i, name := range order {
		graph.rank[name] = i
	}

	var anomalies []anomaly.Anomaly
	for _, e := range removed {
		anomalies = append(anomalies, anomaly.Newf(anomaly.DependencyCycleWarning, e.To,
			"dependency cycle broken by dropping edge %s; rows of %s may reference rows emitted later", e, e.To))
	}
	return graph, anomalies
}

// SortTables orders nodes so that every kept edge goes forward. Ready nodes
// are taken in lexicographic order. When no node is ready, a cycle is located
// starting from the smallest remaining node and its lexicographically greatest
// edge is dropped; the dropped edges are returned.
func SortTables(nodes []string, edges []Edge) ([]string, []Edge) {
	active := make([]Edge, len(edges))
	copy(active, edges)
	processed := make(map[string]bool, len(nodes))
	remaining := make([]string, len(nodes))
	copy(remaining, nodes)
	sort.Strings(remaining)

	var sorted []string
	var removed []Edge
	for len(sorted) < len(nodes) {
		added := false
		for _, name := range remaining {
			if processed[name] {
				continue
			}
			if !hasPendingDependency(name, active, processed) {
				sorted = append(sorted, name)
				processed[name] = true
				added = true
				// restart so the next pick is again the smallest ready node
				break
			}
		}
		if added {
			continue
		}

		cycle := findCycle(remaining, active, processed)
		if len(cycle) == 0 {
			// unreachable with consistent input; emit the rest as is
			for _, name := range remaining {
				if !processed[name] {
					sorted = append(sorted, name)
					processed[name] = true
				}
			}
			break
		}
		victim := cycle[0]
		for _, e := range cycle[1:] {
			if victim.less(e) {
				victim = e
			}
		}
		removed = append(removed, victim)
		active = dropEdge(active, victim)
	}
	return sorted, removed
}

func hasPendingDependency(name string, edges []Edge, processed map[string]bool) bool {
	for _, e := range edges {
		if e.To == name && !processed[e.From] {
			return true
		}
	}
	return false
}

// findCycle walks backwards along the smallest unprocessed predecessor until
// a node repeats. Every unprocessed node has one when the sort stalls.
func findCycle(nodes []string, edges []Edge, processed map[string]bool) []Edge {
	var start string
	for _, name := range nodes {
		if !processed[name] {
			start = name
			break
		}
	}
	if start == "" {
		return nil
	}
	visitedAt := map[string]int{}
	var path []Edge
	current := start
	for {
		if at, ok := visitedAt[current]; ok {
			return path[at:]
		}
		visitedAt[current] = len(path)
		var next *Edge
		for i := range edges {
			e := &edges[i]
			if e.To != current || processed[e.From] {
				continue
			}
			if next == nil || e.From < next.From {
				next = e
			}
		}
		if next == nil {
			return nil
		}
		path = append(path, *next)
		current = next.From
	}
}

func dropEdge(edges []Edge, victim Edge) []Edge {
	result := edges[:0]
	for _, e := range edges {
		if e.From == victim.From && e.To == victim.To {
			continue
		}
		result = append(result, e)
	}
	return result
}
