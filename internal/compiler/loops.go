package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bassline/internal/ir"
)

// LoopWarning reports a ring of stream contacts.
//
// A stream contact forwards every write, equal or not, so a wire ring made
// only of last-mode contacts never converges; the engine's step quota is
// the only thing stopping it. Loops are warnings, not errors, because a
// gadget in the ring may break it by refusing to activate.
type LoopWarning struct {
	Path    []string `json:"path"`    // contact ring: ["a", "b", "c", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeLoops finds rings of last-mode contacts.
//
// The algorithm:
//  1. Build a directed graph over last-mode contacts from wire directions
//     (both ways for bidirectional wires)
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each component that can carry a value around: three or more
//     contacts, or two contacts joined by more than one wire (a single
//     bidirectional wire never echoes back to its sender)
//
// A network without such rings returns an empty list.
func AnalyzeLoops(b ir.Bassline) []LoopWarning {
	graph, wireCount := buildStreamGraph(b)

	warnings := []LoopWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) < 2 {
			continue
		}
		if len(scc) == 2 && wireCount[pairKey(scc[0], scc[1])] < 2 {
			continue
		}
		warnings = append(warnings, loopWarning(scc, graph))
	}
	slices.SortFunc(warnings, func(a, b LoopWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// streamGraph maps contact ID → stream contacts it writes to.
type streamGraph map[string][]string

func buildStreamGraph(b ir.Bassline) (streamGraph, map[string]int) {
	graph := make(streamGraph)
	wireCount := make(map[string]int)

	isStream := func(id string) bool {
		c, ok := b.Contacts[id]
		return ok && c.BlendMode == ir.BlendLast
	}
	for id, c := range b.Contacts {
		if c.BlendMode == ir.BlendLast {
			graph[id] = nil
		}
	}

	for _, id := range sortedIDs(b.Wires) {
		w := b.Wires[id]
		if !isStream(w.FromID) || !isStream(w.ToID) || w.FromID == w.ToID {
			continue
		}
		graph[w.FromID] = append(graph[w.FromID], w.ToID)
		if w.Bidirectional {
			graph[w.ToID] = append(graph[w.ToID], w.FromID)
		}
		wireCount[pairKey(w.FromID, w.ToID)]++
	}

	for id := range graph {
		slices.Sort(graph[id])
		graph[id] = slices.Compact(graph[id])
	}
	return graph, wireCount
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph streamGraph) [][]string {
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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedIDs(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// loopWarning walks the component from its smallest member, preferring
// unvisited contacts, until it returns to the start.
func loopWarning(scc []string, graph streamGraph) LoopWarning {
	members := make(map[string]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		for _, n := range graph[current] {
			if members[n] && !visited[n] {
				next = n
				break
			}
		}
		if next == "" && slices.Contains(graph[current], start) {
			next = start
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}

	return LoopWarning{
		Path:    path,
		Message: fmt.Sprintf("stream contacts form a loop that never converges: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}
