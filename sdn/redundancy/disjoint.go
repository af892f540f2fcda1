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

package redundancy

import (
	"github.com/facebook/ptpsec/sdn/topology"
)

// flowNetwork is a residual network for unit capacity max flow.
// Edge e and e^1 are a forward edge and its residual twin.
type flowNetwork struct {
	adj [][]int
	to  []int
	cap []int
}

func newFlowNetwork(vertices int) *flowNetwork {
	return &flowNetwork{adj: make([][]int, vertices)}
}

func (f *flowNetwork) addEdge(u, v, c int) {
	f.adj[u] = append(f.adj[u], len(f.to))
	f.to = append(f.to, v)
	f.cap = append(f.cap, c)
	f.adj[v] = append(f.adj[v], len(f.to))
	f.to = append(f.to, u)
	f.cap = append(f.cap, 0)
}

// augment finds the shortest augmenting path with BFS and pushes one unit over it
func (f *flowNetwork) augment(s, t int) bool {
	via := make([]int, len(f.adj))
	for i := range via {
		via[i] = -1
	}
	visited := make([]bool, len(f.adj))
	visited[s] = true
	queue := []int{s}
	for len(queue) > 0 && !visited[t] {
		u := queue[0]
		queue = queue[1:]
		for _, e := range f.adj[u] {
			v := f.to[e]
			if visited[v] || f.cap[e] == 0 {
				continue
			}
			visited[v] = true
			via[v] = e
			queue = append(queue, v)
		}
	}
	if !visited[t] {
		return false
	}
	for v := t; v != s; v = f.to[via[v]^1] {
		f.cap[via[v]]--
		f.cap[via[v]^1]++
	}
	return true
}

// DisjointPaths returns up to n paths from source to target that share no node but the two ends.
// Neighbors are explored in stable node order so the result is deterministic.
func DisjointPaths(g *topology.Graph, source, target topology.NodeID, n int) []topology.Path {
	if n < 1 || source == target || !g.HasNode(source) || !g.HasNode(target) {
		return nil
	}
	nodes := g.Nodes()
	index := make(map[topology.NodeID]int, len(nodes))
	for i, node := range nodes {
		index[node] = i
	}
	// node i is split into in=2i and out=2i+1 joined by a unit edge, ends are not capped
	in := func(i int) int { return 2 * i }
	out := func(i int) int { return 2*i + 1 }

	f := newFlowNetwork(2 * len(nodes))
	for i, node := range nodes {
		c := 1
		if node == source || node == target {
			c = len(nodes)
		}
		f.addEdge(in(i), out(i), c)
	}
	original := map[int]bool{}
	for i, node := range nodes {
		if node == target {
			continue
		}
		for _, next := range g.Successors(node) {
			if next == source {
				continue
			}
			original[len(f.to)] = true
			f.addEdge(out(i), in(index[next]), 1)
		}
	}

	s, t := out(index[source]), in(index[target])
	flow := 0
	for flow < n && f.augment(s, t) {
		flow++
	}

	// decompose: every unit leaves the source over its own edge and is walked to the target
	paths := make([]topology.Path, 0, flow)
	for p := 0; p < flow; p++ {
		path := topology.Path{source}
		u := s
		for u != t {
			moved := false
			for _, e := range f.adj[u] {
				if !original[e] || f.cap[e] != 0 {
					continue
				}
				// consume the unit so the next walk takes another edge
				f.cap[e] = 1
				v := f.to[e]
				node := nodes[v/2]
				path = append(path, node)
				if node == target {
					u = t
				} else {
					u = out(v / 2)
				}
				moved = true
				break
			}
			if !moved {
				break
			}
		}
		if path[len(path)-1] != target {
			break
		}
		paths = append(paths, path)
	}
	return paths
}
