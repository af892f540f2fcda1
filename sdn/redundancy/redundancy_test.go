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
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/facebook/ptpsec/sdn/topology"
)

var (
	master = topology.Endpoint(0x0c42a1fffe6d7ca6)
	slave  = topology.Endpoint(0xb8599ffffe55af4e)
)

func sw(id uint64) topology.NodeID {
	return topology.Switch(id)
}

// cable adds links in both directions
func cable(t *testing.T, g *topology.Graph, a, b topology.NodeID, delay float64) {
	ports := map[topology.NodeID]uint32{}
	if a.IsSwitch() {
		ports[a] = uint32(b.Value % 64)
	}
	if b.IsSwitch() {
		ports[b] = uint32(a.Value % 64)
	}
	require.NoError(t, g.AddLink(topology.Link{From: a, To: b, Delay: delay, Ports: ports}))
	require.NoError(t, g.AddLink(topology.Link{From: b, To: a, Delay: delay, Ports: ports}))
}

func chain(t *testing.T, g *topology.Graph, nodes ...topology.NodeID) {
	for i := 1; i < len(nodes); i++ {
		cable(t, g, nodes[i-1], nodes[i], 1)
	}
}

// requireValid checks that paths are simple, connected, start and end right and share no inner node
func requireValid(t *testing.T, g *topology.Graph, res *Result, source, target topology.NodeID) {
	seen := map[topology.NodeID]bool{}
	for _, p := range res.Paths {
		require.GreaterOrEqual(t, len(p), 2)
		require.Equal(t, source, p[0])
		require.Equal(t, target, p[len(p)-1])
		for i := 1; i < len(p); i++ {
			_, ok := g.Link(p[i-1], p[i])
			require.True(t, ok, "no link %s -> %s in %s", p[i-1], p[i], p)
		}
		for _, n := range p[1 : len(p)-1] {
			require.False(t, seen[n], "node %s used twice", n)
			seen[n] = true
		}
	}
}

func TestComputeThreeChains(t *testing.T) {
	g := topology.NewGraph()
	chain(t, g, master, sw(11), sw(12), slave)
	chain(t, g, master, sw(21), sw(22), slave)
	chain(t, g, master, sw(31), sw(32), slave)

	res, err := Compute(g, master, slave, 3)
	require.NoError(t, err)
	want := &Result{
		Paths: []topology.Path{
			{master, sw(11), sw(12), slave},
			{master, sw(21), sw(22), slave},
			{master, sw(31), sw(32), slave},
		},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Compute() mismatch (-want +got):\n%s", diff)
	}
	require.True(t, res.Satisfied(3))
	requireValid(t, g, res, master, slave)

	// fewer requested than available
	res, err = Compute(g, master, slave, 2)
	require.NoError(t, err)
	require.Len(t, res.Paths, 2)
	require.Empty(t, res.Recommendations)
	require.True(t, res.Satisfied(2))

	// and the other way around
	res, err = Compute(g, slave, master, 3)
	require.NoError(t, err)
	require.Len(t, res.Paths, 3)
	requireValid(t, g, res, slave, master)
}

func TestComputeSinglePath(t *testing.T) {
	g := topology.NewGraph()
	chain(t, g, master, sw(1), sw(2), slave)
	// spare switches hanging off both ends
	cable(t, g, master, sw(3), 1)
	cable(t, g, master, sw(5), 2)
	cable(t, g, slave, sw(4), 1)
	cable(t, g, slave, sw(6), 2)
	before := g.Links()

	res, err := Compute(g, master, slave, 3)
	require.NoError(t, err)
	want := &Result{
		Paths:           []topology.Path{{master, sw(1), sw(2), slave}},
		Recommendations: []Link{{From: sw(3), To: sw(4)}, {From: sw(5), To: sw(6)}},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Compute() mismatch (-want +got):\n%s", diff)
	}
	require.False(t, res.Satisfied(3))
	// input graph untouched
	require.Equal(t, before, g.Links())

	// only as many recommendations as needed
	res, err = Compute(g, master, slave, 2)
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	require.Equal(t, []Link{{From: sw(3), To: sw(4)}}, res.Recommendations)
}

func TestComputeSinglePathNoSpares(t *testing.T) {
	g := topology.NewGraph()
	chain(t, g, master, sw(1), sw(2), slave)
	cable(t, g, master, sw(3), 1)

	res, err := Compute(g, master, slave, 3)
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	// slave side has nothing left to offer
	require.Empty(t, res.Recommendations)
}

func TestComputeRecommendationsByDelay(t *testing.T) {
	g := topology.NewGraph()
	chain(t, g, master, sw(1), slave)
	cable(t, g, master, sw(7), 5)
	cable(t, g, master, sw(8), 1)
	cable(t, g, slave, sw(9), 3)
	// 10 sits behind 9, so it is farther away from the slave
	cable(t, g, sw(9), sw(10), 0.5)

	res, err := Compute(g, master, slave, 2)
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	require.Equal(t, []Link{{From: sw(8), To: sw(9)}}, res.Recommendations)
	require.Equal(t, "s8 <-> s9", res.Recommendations[0].String())
}

func TestComputeDirectLink(t *testing.T) {
	g := topology.NewGraph()
	cable(t, g, master, slave, 1)
	chain(t, g, master, sw(1), slave)
	cable(t, g, master, sw(2), 1)
	cable(t, g, slave, sw(3), 1)

	res, err := Compute(g, master, slave, 3)
	require.NoError(t, err)
	want := &Result{
		Paths: []topology.Path{
			{master, sw(1), slave},
			{master, slave},
		},
		Recommendations: []Link{{From: sw(2), To: sw(3)}},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Compute() mismatch (-want +got):\n%s", diff)
	}
}

func TestDisjointPathsReroutesFlow(t *testing.T) {
	// the shortest first path s-1-2-t blocks a second one unless flow is rerouted
	g := topology.NewGraph()
	add := func(a, b topology.NodeID) {
		require.NoError(t, g.AddLink(topology.Link{From: a, To: b, Delay: 1}))
	}
	add(master, sw(1))
	add(master, sw(3))
	add(sw(1), sw(2))
	add(sw(1), sw(4))
	add(sw(3), sw(2))
	add(sw(2), slave)
	add(sw(4), slave)

	paths := DisjointPaths(g, master, slave, 5)
	want := []topology.Path{
		{master, sw(1), sw(4), slave},
		{master, sw(3), sw(2), slave},
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("DisjointPaths() mismatch (-want +got):\n%s", diff)
	}
	// links are directed
	require.Empty(t, DisjointPaths(g, slave, master, 5))
}

func TestComputeDisconnected(t *testing.T) {
	g := topology.NewGraph()
	chain(t, g, master, sw(1))
	chain(t, g, slave, sw(2))

	res, err := Compute(g, master, slave, 3)
	require.NoError(t, err)
	require.Empty(t, res.Paths)
	require.Empty(t, res.Recommendations)
	require.False(t, res.Satisfied(1))
}

func TestComputeBadInput(t *testing.T) {
	g := topology.NewGraph()
	chain(t, g, master, sw(1), slave)

	_, err := Compute(g, master, slave, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = Compute(g, master, master, 3)
	require.ErrorIs(t, err, ErrInvalidInput)
	res, err := Compute(g, master, topology.Endpoint(42), 3)
	require.ErrorIs(t, err, ErrNodeNotFound)
	require.Empty(t, res.Paths)
	_, err = Compute(g, topology.Endpoint(42), slave, 3)
	require.ErrorIs(t, err, ErrNodeNotFound)
	require.Nil(t, DisjointPaths(g, master, slave, 0))
}

func TestComputeRandomGraphs(t *testing.T) {
	r := rand.New(rand.NewSource(1588))
	for i := 0; i < 50; i++ {
		g := topology.NewGraph()
		switches := 3 + r.Intn(12)
		for s := 1; s <= switches; s++ {
			g.AddNode(sw(uint64(s)))
		}
		for l := 0; l < switches*2; l++ {
			a, b := uint64(1+r.Intn(switches)), uint64(1+r.Intn(switches))
			if a == b {
				continue
			}
			cable(t, g, sw(a), sw(b), float64(1+r.Intn(5)))
		}
		for _, end := range []topology.NodeID{master, slave} {
			links := 1 + r.Intn(4)
			for k := 0; k < links; k++ {
				cable(t, g, end, sw(uint64(1+r.Intn(switches))), 1)
			}
		}
		for n := 1; n <= 4; n++ {
			t.Run(fmt.Sprintf("graph=%d n=%d", i, n), func(t *testing.T) {
				res, err := Compute(g, master, slave, n)
				require.NoError(t, err)
				requireValid(t, g, res, master, slave)
				require.LessOrEqual(t, len(res.Paths), n)
				require.LessOrEqual(t, len(res.Paths)+len(res.Recommendations), n)
				all := DisjointPaths(g, master, slave, g.NodeCount())
				if len(all) < n {
					require.Len(t, res.Paths, len(all))
				} else {
					require.Len(t, res.Paths, n)
					require.Empty(t, res.Recommendations)
				}
				for _, rec := range res.Recommendations {
					require.NotEqual(t, rec.From, rec.To)
					require.NotEqual(t, master, rec.From)
					require.NotEqual(t, slave, rec.To)
				}
			})
		}
	}
}
