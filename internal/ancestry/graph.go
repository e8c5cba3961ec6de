// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package ancestry is the append-only parentage DAG the reconciler
// builds as it discovers tokens, and the Wright's-path-method
// inbreeding coefficient computed over it.
package ancestry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/escrin/nftrout-indexer/internal/model"
)

// Graph is a directed acyclic graph: nodes are TroutIds, edges point
// from child to parent. It never holds back-references; COI lookups
// walk the parent edges directly. Safe for concurrent use: writers
// (AddNode/AddEdge/Bootstrap) take the write lock; readers
// (Contains/Parents and the Inbreeding computation) take the read lock.
type Graph struct {
	mu      sync.RWMutex
	parents map[model.TroutID][2]*model.TroutID // two parent slots, nil = unset
	nodes   map[model.TroutID]struct{}

	// fullPaths switches Inbreeding to the full Wright enumeration
	// instead of the reference implementation's shortest-path-per-
	// parent behavior. Exposed only for tests; see Inbreeding's doc.
	fullPaths bool
}

// New returns an empty graph using the reference's shortest-path COI
// behavior.
func New() *Graph {
	return &Graph{
		parents: make(map[model.TroutID][2]*model.TroutID),
		nodes:   make(map[model.TroutID]struct{}),
	}
}

// NewWithFullPathEnumeration returns a graph that computes the true
// Wright's-method sum over all simple paths, rather than reproducing
// the shortest-path-per-parent behavior the original implementation
// actually exhibits. For tests exploring the discrepancy only; see
// Inbreeding's doc comment.
func NewWithFullPathEnumeration() *Graph {
	g := New()
	g.fullPaths = true
	return g
}

// AddNode registers id with no parents, a no-op if id is already
// present (its parent edges are untouched).
func (g *Graph) AddNode(id model.TroutID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(id)
}

func (g *Graph) addNodeLocked(id model.TroutID) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = struct{}{}
	g.parents[id] = [2]*model.TroutID{}
}

// AddEdge records that child's next free parent slot is parent.
// parent must already be a node in the graph, or AddEdge reports ok =
// false and does nothing (callers log and skip, per spec: the DAG
// never back-fills a missing ancestor).
func (g *Graph) AddEdge(child, parent model.TroutID) (ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[parent]; !ok {
		return false
	}
	g.addNodeLocked(child)
	slots := g.parents[child]
	p := parent
	if slots[0] == nil {
		slots[0] = &p
	} else if slots[1] == nil {
		slots[1] = &p
	} else {
		return false // a trout has at most two parents
	}
	g.parents[child] = slots
	return true
}

// Bootstrap (re)builds the graph from a full chain token listing,
// exactly as spec'd: every token becomes a node first (so parent
// lookups below never race node creation order), then edges are added
// for any token with parents. An edge whose parent is absent from
// tokens is skipped and logged, never retried.
func (g *Graph) Bootstrap(chain model.ChainID, tokens []model.TokenForUi, log *zap.Logger) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, tok := range tokens {
		g.addNodeLocked(model.TroutID{Chain: chain, Token: tok.ID})
	}
	for _, tok := range tokens {
		if tok.Parents == nil {
			continue
		}
		child := model.TroutID{Chain: chain, Token: tok.ID}
		for _, parent := range tok.Parents {
			if _, ok := g.nodes[parent]; !ok {
				if log != nil {
					log.Warn("skipping edge to unknown parent", zap.Stringer("child", child), zap.Stringer("parent", parent))
				}
				continue
			}
			slots := g.parents[child]
			if slots[0] == nil {
				p := parent
				slots[0] = &p
			} else if slots[1] == nil {
				p := parent
				slots[1] = &p
			}
			g.parents[child] = slots
		}
	}
}

// Contains reports whether id has been added to the graph.
func (g *Graph) Contains(id model.TroutID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Parents returns id's 0, 1, or 2 recorded parents.
func (g *Graph) Parents(id model.TroutID) []model.TroutID {
	g.mu.RLock()
	defer g.mu.RUnlock()
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
