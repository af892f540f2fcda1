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
Package redundancy finds vertex-disjoint paths between two clocks.

When the network can't provide the requested number of paths it proposes
links which, once added, would make more disjoint paths possible.
*/
package redundancy

import (
	"errors"
	"fmt"

	"github.com/facebook/ptpsec/sdn/topology"
)

// Errors returned for malformed requests
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Link is a recommended new link
type Link struct {
	From topology.NodeID
	To   topology.NodeID
}

func (l Link) String() string {
	return fmt.Sprintf("%s <-> %s", l.From, l.To)
}

// Result of path computation
type Result struct {
	Paths           []topology.Path
	Recommendations []Link
}

// Satisfied is true if there are at least n disjoint paths
func (r *Result) Satisfied(n int) bool {
	return len(r.Paths) >= n
}

// Compute returns up to n vertex-disjoint paths from source to target.
// If fewer than n exist, it also recommends links that would help, so that
// paths plus recommendations add up to at most n.
// A disconnected pair gives an empty result and no error.
func Compute(g *topology.Graph, source, target topology.NodeID, n int) (*Result, error) {
	if n < 1 {
		return &Result{}, fmt.Errorf("%w: need at least one path, got %d", ErrInvalidInput, n)
	}
	if source == target {
		return &Result{}, fmt.Errorf("%w: source and target are both %s", ErrInvalidInput, source)
	}
	if !g.HasNode(source) {
		return &Result{}, fmt.Errorf("source %s: %w", source, ErrNodeNotFound)
	}
	if !g.HasNode(target) {
		return &Result{}, fmt.Errorf("target %s: %w", target, ErrNodeNotFound)
	}

	res := &Result{Paths: DisjointPaths(g, source, target, n)}
	if len(res.Paths) >= n || len(res.Paths) == 0 {
		return res, nil
	}
	res.Recommendations = recommend(g, source, target, res.Paths, n-len(res.Paths))
	return res, nil
}

// recommend proposes up to want links between the nearest spare nodes of both sides.
// The target side candidate is ranked by the target's own distances and can't be
// the source or the node just picked for it. Every round spends the picked nodes
// and the prefixes leading to them, so no link is proposed twice.
func recommend(g *topology.Graph, source, target topology.NodeID, paths []topology.Path, want int) []Link {
	work := g.Clone()
	for _, p := range paths {
		for _, node := range p[1 : len(p)-1] {
			work.RemoveNode(node)
		}
	}
	work.RemoveLink(source, target)
	work.RemoveLink(target, source)

	recs := []Link{}
	for len(recs) < want {
		fromSource, _ := work.ShortestFrom(source)
		fromTarget, _ := work.ShortestFrom(target)
		nearSource, _, ok := fromSource.Nearest(target)
		if !ok {
			break
		}
		nearTarget, _, ok := fromTarget.Nearest(source, nearSource)
		if !ok {
			break
		}
		recs = append(recs, Link{From: nearSource, To: nearTarget})

		// spend the nodes that lead to the proposed link so the next round picks other ones
		sp, _ := fromSource.To(nearSource)
		tp, _ := fromTarget.To(nearTarget)
		for _, node := range sp[1:] {
			work.RemoveNode(node)
		}
		for _, node := range tp[1:] {
			work.RemoveNode(node)
		}
	}
	return recs
}
