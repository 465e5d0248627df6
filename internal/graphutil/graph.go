// Copyright the rangeprop authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphutil

import (
	"sort"

	"gonum.org/v1/gonum/graph"

	"github.com/regionir/rangeprop/analysis/ir"
)

// DUGraph is the def-use graph of one function: one node per operation, and a
// directed edge from an operation to every operation consuming one of its results
// (or one of its body arguments, for region-carrying operations). It implements
// the methods to satisfy graph.Iterator and Gonum's graph.Graph.
type DUGraph struct {
	// The order of the graph
	order int

	// The function the DUGraph was constructed from
	Fn *ir.Function

	// IDMap maps from node IDs to DUNodes
	IDMap map[int64]DUNode

	// Keys are all the node IDs
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool
}

// NewDefUseIterator returns a new def-use graph iterator where node ids correspond
// to the Operation.ID of each operation in fn.
func NewDefUseIterator(fn *ir.Function) DUGraph {
	ops := fn.Ops()
	n := len(ops)
	idmap := make(map[int64]DUNode, n)
	edges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, n)
	for i, op := range ops {
		keys[i] = int64(op.ID())
		idmap[int64(op.ID())] = DUNode{op}
		edges[int64(op.ID())] = map[int64]bool{}
	}
	for _, op := range ops {
		out := edges[int64(op.ID())]
		for _, res := range op.Results {
			for _, user := range res.Uses() {
				out[int64(user.ID())] = true
			}
		}
		for _, arg := range op.BodyArgs {
			for _, user := range arg.Uses() {
				out[int64(user.ID())] = true
			}
		}
		// A yield hands its operands back to the enclosing loop, closing the
		// loop-carried dependence cycle.
		if op.Kind == ir.KindYield && op.Parent() != nil {
			out[int64(op.Parent().ID())] = true
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return DUGraph{
		order: n,
		Fn:    fn,
		IDMap: idmap,
		Edges: edges,
		Keys:  keys,
	}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order, Fn and IDMap are the same as in origin, meaning that node indices will stay consistent
// across subgraphs.
func Subgraph(original DUGraph, include []int64) DUGraph {
	idmap := make(map[int64]DUNode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}

	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
			}
		}
	}

	return DUGraph{
		order: original.Order(),
		Fn:    original.Fn,
		IDMap: original.IDMap,
		Edges: edges,
		Keys:  keys,
	}
}

// SCCRanks assigns each operation id a rank such that, outside of cycles, defining
// operations rank lower than their users. Operations in the same strongly
// connected component share a rank.
func SCCRanks(g DUGraph) map[int]int {
	successors := func(v int64) []int64 {
		var out []int64
		for w := range g.Edges[v] {
			out = append(out, w)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}
	sccs := StronglyConnectedComponents(g.Keys, successors)
	ranks := make(map[int]int, len(g.Keys))
	// Components come out successors-first; reverse so definitions rank first.
	for i, scc := range sccs {
		rank := len(sccs) - 1 - i
		for _, v := range scc {
			ranks[int(v)] = rank
		}
	}
	return ranks
}

// Order implements the order of the graph.Iterator interface for the DUGraph
func (c DUGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the DUGraph
func (c DUGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c DUGraph) Node(v int) graph.Node {
	return c.IDMap[int64(v)]
}

// Nodes returns the set of nodes in the graph
func (c DUGraph) Nodes() graph.Nodes {
	keys := make([]int64, len(c.IDMap))

	i := 0
	for k := range c.IDMap {
		keys[i] = k
		i++
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   0,
	}
}

// From returns the set of nodes reachable from the id
func (c DUGraph) From(id int64) graph.Nodes {
	var keys []int64

	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   0,
	}
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c DUGraph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c DUGraph) Edge(uid, vid int64) graph.Edge {
	ue := c.Edges[uid]
	if ue != nil {
		if ue[vid] {
			return DUEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
		}
	}
	return nil
}

// *************** Nodes implementation **********************

// DUNode is a wrapper around an *ir.Operation that implements the graph.Node interface
type DUNode struct {
	Op *ir.Operation
}

// ID returns the id of the node
func (n DUNode) ID() int64 {
	return int64(n.Op.ID())
}

func (n DUNode) String() string {
	if n.Op == nil {
		return ""
	}
	return n.Op.Kind
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]DUNode

	// ids is the set of node ids in the iterator
	// invariant: len(ids) = len(nodes)
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: 0 <= cur < len(nodes)
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the length of the node set
func (ns *NodeSet) Len() int {
	return len(ns.ids)
}

// Reset resets the id of the current node in the set
func (ns *NodeSet) Reset() {
	ns.cur = 0
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// DUEdge implements the graph.Edge interface
type DUEdge struct {
	from DUNode
	to   DUNode
}

// From returns the origin of the edge
func (e DUEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e DUEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e DUEdge) ReversedEdge() graph.Edge {
	return DUEdge{from: e.to, to: e.from}
}
