package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/polydep/internal/poly"
)

// RecurrenceWarning reports a group of statements that depend on each
// other through a dependence relation, so no schedule can run them as
// independent loops.
//
// Recurrences are not errors: reductions and stencils are recurrences by
// nature. They are reported so a caller can tell which statements must be
// scheduled together.
type RecurrenceWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["S1", "S2", "S1"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeRecurrences projects a dependence relation onto statements and
// reports its cycles.
//
// The algorithm:
//  1. Build a statement graph with an edge S → T for every dependence
//     from an instance of S to an instance of T (tags are stripped)
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// Self-loops are reported at level "info" since they only carry a
// loop-carried dependence. Output is deterministic: nodes are visited in
// name order and warnings are sorted by their first statement.
func AnalyzeRecurrences(dep poly.Map) []RecurrenceWarning {
	if dep.IsEmpty() {
		return []RecurrenceWarning{}
	}

	graph := buildStatementGraph(dep)
	sccs := tarjanSCC(graph)

	warnings := []RecurrenceWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, sccToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b RecurrenceWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// statementGraph maps statement → statements depending on it, sorted.
type statementGraph map[string][]string

func buildStatementGraph(dep poly.Map) statementGraph {
	edges := make(map[string]map[string]bool)
	for _, p := range dep.Pairs() {
		from := p.In.Instance().Name()
		to := p.Out.Instance().Name()
		if edges[from] == nil {
			edges[from] = make(map[string]bool)
		}
		if edges[to] == nil {
			edges[to] = make(map[string]bool)
		}
		edges[from][to] = true
	}

	graph := make(statementGraph, len(edges))
	for from, tos := range edges {
		succ := make([]string, 0, len(tos))
		for to := range tos {
			succ = append(succ, to)
		}
		slices.Sort(succ)
		graph[from] = succ
	}
	return graph
}

func hasSelfLoop(node string, graph statementGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of statement names.
// Single-node SCCs without self-loops are NOT recurrences.
func tarjanSCC(graph statementGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToWarning(scc []string, graph statementGraph) RecurrenceWarning {
	if len(scc) == 1 {
		s := scc[0]
		return RecurrenceWarning{
			Path:    []string{s, s},
			Message: fmt.Sprintf("Loop-carried dependence: %s → %s", s, s),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return RecurrenceWarning{
		Path:    path,
		Message: fmt.Sprintf("Recurrence between statements: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Starts at the first member and follows edges to unvisited members until
// it can return to the start. Members are sorted, so the path is stable.
func reconstructCyclePath(scc []string, graph statementGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && !visited[neighbor] {
				next = neighbor
				break
			}
		}
		if next == "" {
			// Nothing left to visit; close the cycle if possible.
			if slices.Contains(graph[current], start) {
				path = append(path, start)
			}
			break
		}

		path = append(path, next)
		current = next
	}

	return path
}
