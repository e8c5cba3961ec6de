// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

package ancestry

import "github.com/escrin/nftrout-indexer/internal/model"

// Inbreeding computes t's coefficient of inbreeding by Wright's path
// method. A node with fewer than two parents has COI 0.
//
// The reference implementation enumerates paths via DFS but then uses
// only the shortest path per parent to each common ancestor, rather
// than summing over every simple path as Wright's formula actually
// specifies. This method reproduces that observed (shortest-path)
// behavior so stored values match the original; see
// NewWithFullPathEnumeration for the literal full-enumeration
// alternative.
func (g *Graph) Inbreeding(t model.TroutID) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	parents := g.parentsLocked(t)
	if len(parents) < 2 {
		return 0
	}
	p1, p2 := parents[0], parents[1]

	if g.fullPaths {
		return g.inbreedingAllPathsLocked(p1, p2)
	}
	return g.inbreedingShortestPathLocked(p1, p2)
}

func (g *Graph) parentsLocked(id model.TroutID) []model.TroutID {
	slots, ok := g.parents[id]
	if !ok {
		return nil
	}
	var out []model.TroutID
	for _, p := range slots {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// shortestDistances returns, for every node reachable by following
// parent edges from start (start included at distance 0), the number
// of edges on the shortest such path.
func (g *Graph) shortestDistancesLocked(start model.TroutID) map[model.TroutID]int {
	dist := map[model.TroutID]int{start: 0}
	if _, ok := g.nodes[start]; !ok {
		return dist
	}
	queue := []model.TroutID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range g.parentsLocked(cur) {
			if _, seen := dist[p]; seen {
				continue
			}
			dist[p] = dist[cur] + 1
			queue = append(queue, p)
		}
	}
	return dist
}

func (g *Graph) inbreedingShortestPathLocked(p1, p2 model.TroutID) float64 {
	d1 := g.shortestDistancesLocked(p1)
	d2 := g.shortestDistancesLocked(p2)
	var coi float64
	for a, n := range d1 {
		m, ok := d2[a]
		if !ok {
			continue
		}
		coi += pow2(-(n + m + 1))
	}
	return coi
}

// allPathLengths returns, for every ancestor reachable from start, the
// length (edge count) of every distinct simple path to it. The graph
// is a DAG so this terminates; it is exponential in the worst case and
// is only ever used behind the fullPaths test flag.
func (g *Graph) allPathLengthsLocked(start model.TroutID) map[model.TroutID][]int {
	lengths := make(map[model.TroutID][]int)
	var walk func(node model.TroutID, depth int)
	walk = func(node model.TroutID, depth int) {
		lengths[node] = append(lengths[node], depth)
		for _, p := range g.parentsLocked(node) {
			walk(p, depth+1)
		}
	}
	if _, ok := g.nodes[start]; ok {
		walk(start, 0)
	}
	return lengths
}

func (g *Graph) inbreedingAllPathsLocked(p1, p2 model.TroutID) float64 {
	l1 := g.allPathLengthsLocked(p1)
	l2 := g.allPathLengthsLocked(p2)
	var coi float64
	for a, ns := range l1 {
		ms, ok := l2[a]
		if !ok {
			continue
		}
		for _, n := range ns {
			for _, m := range ms {
				coi += pow2(-(n + m + 1))
			}
		}
	}
	return coi
}

// pow2 computes 2^e for the small negative integer exponents COI
// terms need, without pulling in math.Pow's float edge cases.
func pow2(e int) float64 {
	if e >= 0 {
		v := 1.0
		for i := 0; i < e; i++ {
			v *= 2
		}
		return v
	}
	v := 1.0
	for i := 0; i < -e; i++ {
		v /= 2
	}
	return v
}
