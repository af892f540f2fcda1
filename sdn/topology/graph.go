/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package topology models the switched network as a directed graph.

Nodes are switches, host interfaces and PTP clocks. Every link carries the
delay used as the path weight and the egress ports each switch uses to reach
the other end of the link. A Graph must not be modified once it was handed
to other goroutines; all mutating methods are meant for building graphs and
for private working copies.
*/
package topology

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrInvalidLink is returned when a link can't be added to the graph
var ErrInvalidLink = errors.New("invalid link")

// Link is a directed link between two nodes
type Link struct {
	From  NodeID
	To    NodeID
	Delay float64
	// Ports maps a switch on either end of the link to its port facing the other end
	Ports map[NodeID]uint32
}

// Port returns the port n uses on this link
func (l Link) Port(n NodeID) (uint32, bool) {
	p, ok := l.Ports[n]
	return p, ok
}

func (l Link) String() string {
	return fmt.Sprintf("%s -> %s (delay %g)", l.From, l.To, l.Delay)
}

// vertex is a gonum node backed by NodeID
type vertex struct {
	id  int64
	key NodeID
}

func (v vertex) ID() int64 {
	return v.id
}

func (v vertex) DOTID() string {
	return v.key.DOTID()
}

// edge is a gonum weighted edge carrying the Link
type edge struct {
	from vertex
	to   vertex
	link Link
}

func (e edge) From() graph.Node {
	return e.from
}

func (e edge) To() graph.Node {
	return e.to
}

func (e edge) ReversedEdge() graph.Edge {
	l := e.link
	l.From, l.To = l.To, l.From
	return edge{from: e.to, to: e.from, link: l}
}

func (e edge) Weight() float64 {
	return e.link.Delay
}

// Attributes labels edges with their delay in DOT dumps
func (e edge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: fmt.Sprintf("%g", e.link.Delay)}}
}

// Graph is a directed, delay weighted network graph
type Graph struct {
	g    *simple.WeightedDirectedGraph
	ids  map[NodeID]int64
	next int64
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{
		g:   simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		ids: map[NodeID]int64{},
	}
}

func (g *Graph) vertex(n NodeID) (vertex, bool) {
	id, ok := g.ids[n]
	if !ok {
		return vertex{}, false
	}
	return vertex{id: id, key: n}, true
}

// AddNode adds node to the graph, if it's not there yet
func (g *Graph) AddNode(n NodeID) {
	if _, ok := g.ids[n]; ok {
		return
	}
	v := vertex{id: g.next, key: n}
	g.next++
	g.ids[n] = v.id
	g.g.AddNode(v)
}

// AddLink adds or replaces a directed link, adding both ends as needed
func (g *Graph) AddLink(l Link) error {
	if l.From == l.To {
		return fmt.Errorf("%w: %s links to itself", ErrInvalidLink, l.From)
	}
	if l.Delay < 0 || math.IsNaN(l.Delay) || math.IsInf(l.Delay, 0) {
		return fmt.Errorf("%w: %s has bad delay %v", ErrInvalidLink, l, l.Delay)
	}
	g.AddNode(l.From)
	g.AddNode(l.To)
	from, _ := g.vertex(l.From)
	to, _ := g.vertex(l.To)
	g.g.SetWeightedEdge(edge{from: from, to: to, link: l})
	return nil
}

// HasNode is true if the node is in the graph
func (g *Graph) HasNode(n NodeID) bool {
	_, ok := g.ids[n]
	return ok
}

// Link returns the link from one node to another
func (g *Graph) Link(from, to NodeID) (Link, bool) {
	f, ok := g.ids[from]
	if !ok {
		return Link{}, false
	}
	t, ok := g.ids[to]
	if !ok {
		return Link{}, false
	}
	e := g.g.WeightedEdge(f, t)
	if e == nil {
		return Link{}, false
	}
	return e.(edge).link, true
}

// NodeCount returns number of nodes
func (g *Graph) NodeCount() int {
	return len(g.ids)
}

// Nodes returns all nodes in stable order
func (g *Graph) Nodes() []NodeID {
	res := make([]NodeID, 0, len(g.ids))
	for n := range g.ids {
		res = append(res, n)
	}
	sortNodes(res)
	return res
}

// Successors returns nodes reachable over a single link from n, in stable order
func (g *Graph) Successors(n NodeID) []NodeID {
	id, ok := g.ids[n]
	if !ok {
		return nil
	}
	it := g.g.From(id)
	res := make([]NodeID, 0, it.Len())
	for it.Next() {
		res = append(res, it.Node().(vertex).key)
	}
	sortNodes(res)
	return res
}

// Links returns all links in stable order
func (g *Graph) Links() []Link {
	res := []Link{}
	for _, n := range g.Nodes() {
		for _, s := range g.Successors(n) {
			l, _ := g.Link(n, s)
			res = append(res, l)
		}
	}
	return res
}

// RemoveNode deletes node and all its links
func (g *Graph) RemoveNode(n NodeID) {
	id, ok := g.ids[n]
	if !ok {
		return
	}
	g.g.RemoveNode(id)
	delete(g.ids, n)
}

// RemoveLink deletes the directed link, keeping both nodes
func (g *Graph) RemoveLink(from, to NodeID) {
	f, ok := g.ids[from]
	if !ok {
		return
	}
	t, ok := g.ids[to]
	if !ok {
		return
	}
	g.g.RemoveEdge(f, t)
}

// Clone returns a copy that can be changed without affecting g.
// Port maps are shared, they are never changed in place.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		g:    simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		ids:  make(map[NodeID]int64, len(g.ids)),
		next: g.next,
	}
	for n, id := range g.ids {
		c.ids[n] = id
		c.g.AddNode(vertex{id: id, key: n})
	}
	edges := g.g.WeightedEdges()
	for edges.Next() {
		c.g.SetWeightedEdge(edges.WeightedEdge())
	}
	return c
}

// MarshalDOT renders the graph in graphviz DOT format
func (g *Graph) MarshalDOT(name string) ([]byte, error) {
	return dot.Marshal(g.g, name, "", "  ")
}

// ShortestPaths holds delay weighted shortest paths from a single node
type ShortestPaths struct {
	g    *Graph
	from NodeID
	sp   path.Shortest
}

// ShortestFrom runs Dijkstra from the node. It returns false if the node is not in the graph.
func (g *Graph) ShortestFrom(from NodeID) (*ShortestPaths, bool) {
	v, ok := g.vertex(from)
	if !ok {
		return nil, false
	}
	return &ShortestPaths{
		g:    g,
		from: from,
		sp:   path.DijkstraFrom(v, g.g),
	}, true
}

// To returns the shortest path to the node and its total delay.
// Unreachable nodes give nil path and +Inf.
func (s *ShortestPaths) To(to NodeID) (Path, float64) {
	id, ok := s.g.ids[to]
	if !ok {
		return nil, math.Inf(1)
	}
	nodes, weight := s.sp.To(id)
	if len(nodes) == 0 {
		return nil, math.Inf(1)
	}
	p := make(Path, 0, len(nodes))
	for _, n := range nodes {
		p = append(p, n.(vertex).key)
	}
	return p, weight
}

// Distance returns total delay of the shortest path to the node, +Inf if it's unreachable
func (s *ShortestPaths) Distance(to NodeID) float64 {
	id, ok := s.g.ids[to]
	if !ok {
		return math.Inf(1)
	}
	return s.sp.WeightTo(id)
}

// Nearest returns the reachable node closest to the origin, ignoring the origin itself
// and anything in skip. Ties go to the node that sorts first.
func (s *ShortestPaths) Nearest(skip ...NodeID) (NodeID, float64, bool) {
	var (
		best  NodeID
		dist  = math.Inf(1)
		found bool
	)
outer:
	for _, n := range s.g.Nodes() {
		if n == s.from {
			continue
		}
		for _, k := range skip {
			if n == k {
				continue outer
			}
		}
		d := s.Distance(n)
		if math.IsInf(d, 1) {
			continue
		}
		if !found || d < dist {
			best, dist, found = n, d, true
		}
	}
	return best, dist, found
}

func sortNodes(nodes []NodeID) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Less(nodes[j])
	})
}
