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

package topology

import (
	ptp "github.com/facebook/ptpsec/ptp/protocol"
)

// Project builds the clock graph: every interface node found in endpoints is replaced by
// the Endpoint node of its clock. Interfaces of the same clock collapse into one node,
// and when that leaves parallel links the one with the lowest delay is kept.
// Switches and unknown interfaces are kept as is. The input graph is not modified.
func Project(g *Graph, endpoints map[NodeID]ptp.ClockIdentity) *Graph {
	relabel := func(n NodeID) NodeID {
		if c, ok := endpoints[n]; ok {
			return Endpoint(c)
		}
		return n
	}

	res := NewGraph()
	for _, n := range g.Nodes() {
		res.AddNode(relabel(n))
	}
	for _, l := range g.Links() {
		from, to := relabel(l.From), relabel(l.To)
		if from == to {
			continue
		}
		if have, ok := res.Link(from, to); ok && have.Delay <= l.Delay {
			continue
		}
		ports := make(map[NodeID]uint32, len(l.Ports))
		for k, v := range l.Ports {
			ports[relabel(k)] = v
		}
		// input links were validated when they were added
		_ = res.AddLink(Link{From: from, To: to, Delay: l.Delay, Ports: ports})
	}
	return res
}
