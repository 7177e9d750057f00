// Package graph loads the adjacency-list files that describe simulation
// topologies, relabeling arbitrary string node labels to a contiguous
// integer domain in deterministic (sorted) order.
package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/oscillon/desync/desyncerrors"
)

// Graph is an undirected adjacency list over relabeled node indices
// 0..N-1. Labels holds the original string label for each index, in index
// order, for diagnostics.
type Graph struct {
	Labels    []string
	Neighbors [][]int
}

// N returns the number of nodes.
func (g *Graph) N() int { return len(g.Labels) }

// Load reads an adjacency list file: lines are '#'-prefixed comments or
// whitespace-separated label lists, first token the source, remaining
// tokens its neighbors. Labels are coerced to a contiguous 0..N-1 domain
// in sorted lexicographic order.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, desyncerrors.NewIOError("graph_load", "cannot open adjacency list", err).
			WithContext("path", path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads an adjacency list from r. See Load for the file grammar.
func Parse(r io.Reader) (*Graph, error) {
	edges := make(map[string]map[string]struct{})

	ensure := func(label string) {
		if _, ok := edges[label]; !ok {
			edges[label] = make(map[string]struct{})
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		src := fields[0]
		ensure(src)
		for _, dst := range fields[1:] {
			ensure(dst)
			edges[src][dst] = struct{}{}
			edges[dst][src] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, desyncerrors.NewIOError("graph_parse", "failed reading adjacency list", err)
	}

	labels := make([]string, 0, len(edges))
	for label := range edges {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	index := make(map[string]int, len(labels))
	for i, label := range labels {
		index[label] = i
	}

	neighbors := make([][]int, len(labels))
	for label, peers := range edges {
		id := index[label]
		ids := make([]int, 0, len(peers))
		for peer := range peers {
			ids = append(ids, index[peer])
		}
		sort.Ints(ids)
		neighbors[id] = ids
	}

	return &Graph{Labels: labels, Neighbors: neighbors}, nil
}

// Validate checks the structural invariants Load/Parse should always
// produce, surfaced separately so callers (e.g. tests constructing a Graph
// literal) can reuse it.
func (g *Graph) Validate() error {
	if len(g.Labels) != len(g.Neighbors) {
		return desyncerrors.NewInvariantViolation("graph_validate", "labels/neighbors length mismatch", nil)
	}
	for id, peers := range g.Neighbors {
		for _, peer := range peers {
			if peer < 0 || peer >= len(g.Labels) {
				return desyncerrors.NewInvariantViolation("graph_validate", fmt.Sprintf("node %d references out-of-range neighbor %d", id, peer), nil)
			}
		}
	}
	return nil
}
