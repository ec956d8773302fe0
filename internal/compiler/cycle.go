package compiler

import (
	"strings"

	"github.com/roach88/goalc/internal/diag"
	"github.com/roach88/goalc/internal/ir"
)

// checkGoalCycles rejects parent/child cycles between goals.
//
// Goals must form a DAG: a child only proceeds once all of its parents
// completed, so a cycle can never make progress. The algorithm:
//  1. Build child -> parents edges from the goals' parent lists
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as E207 on every member
//  4. Drop the parent edges that stay inside the SCC
//
// Parent names must already be canonical (see validator.goal). After this
// pass the remaining edges are acyclic.
func checkGoalCycles(goals []*ir.Goal, log *diag.Log) {
	if len(goals) == 0 {
		return
	}

	byName := make(map[string]*ir.Goal, len(goals))
	order := make([]string, 0, len(goals))
	graph := make(goalGraph, len(goals))
	for _, g := range goals {
		byName[g.Name] = g
		order = append(order, g.Name)
		graph[g.Name] = append([]string{}, g.Parents...)
	}

	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		members := make(map[string]bool, len(scc))
		for _, k := range scc {
			members[k] = true
		}
		path := reconstructCyclePath(scc, graph)
		names := make([]string, len(path))
		for i, k := range path {
			names[i] = byName[k].Name
		}
		for _, k := range scc {
			g := byName[k]
			log.Error(g.Location, diag.ErrGoalCycle,
				"goal %q is part of a parent cycle: %s", g.Name, strings.Join(names, " -> "))
			kept := g.Parents[:0]
			for _, p := range g.Parents {
				if !members[p] {
					kept = append(kept, p)
				}
			}
			g.Parents = kept
		}
	}
}

// goalGraph maps a goal name to the names of its parents.
type goalGraph map[string][]string

func hasSelfLoop(node string, graph goalGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in order so the result is deterministic.
func tarjanSCC(graph goalGraph, order []string) [][]string {
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
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph goalGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
