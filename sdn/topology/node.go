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
	"fmt"
	"net"
	"strings"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
)

// NodeKind tells what a graph node stands for
type NodeKind uint8

// Node kinds
const (
	KindSwitch NodeKind = iota + 1
	KindInterface
	KindEndpoint
)

// NodeKindToString is a map from NodeKind to string
var NodeKindToString = map[NodeKind]string{
	KindSwitch:    "switch",
	KindInterface: "interface",
	KindEndpoint:  "endpoint",
}

func (k NodeKind) String() string {
	if s, ok := NodeKindToString[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// NodeID identifies a node of the network graph.
// Value is a datapath id for switches, a packed MAC address for interfaces
// and a clock identity for endpoints.
type NodeID struct {
	Kind  NodeKind
	Value uint64
}

// Switch returns NodeID of a switch
func Switch(dpid uint64) NodeID {
	return NodeID{Kind: KindSwitch, Value: dpid}
}

// Interface returns NodeID of a host network interface
func Interface(mac net.HardwareAddr) NodeID {
	var v uint64
	for _, b := range mac {
		v = v<<8 | uint64(b)
	}
	return NodeID{Kind: KindInterface, Value: v}
}

// Endpoint returns NodeID of a PTP clock
func Endpoint(c ptp.ClockIdentity) NodeID {
	return NodeID{Kind: KindEndpoint, Value: uint64(c)}
}

// IsSwitch is true for switch nodes
func (n NodeID) IsSwitch() bool {
	return n.Kind == KindSwitch
}

// DPID returns datapath id of a switch node
func (n NodeID) DPID() uint64 {
	return n.Value
}

// MAC returns MAC address of an interface node
func (n NodeID) MAC() net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	for i := 5; i >= 0; i-- {
		mac[i] = byte(n.Value >> (8 * (5 - i)))
	}
	return mac
}

// ClockIdentity returns clock identity of an endpoint node
func (n NodeID) ClockIdentity() ptp.ClockIdentity {
	return ptp.ClockIdentity(n.Value)
}

// Less orders nodes by kind, then by value
func (n NodeID) Less(o NodeID) bool {
	if n.Kind != o.Kind {
		return n.Kind < o.Kind
	}
	return n.Value < o.Value
}

func (n NodeID) String() string {
	switch n.Kind {
	case KindSwitch:
		return fmt.Sprintf("s%d", n.Value)
	case KindInterface:
		return n.MAC().String()
	case KindEndpoint:
		return n.ClockIdentity().String()
	}
	return fmt.Sprintf("%s:%d", n.Kind, n.Value)
}

// DOTID is the node name in DOT dumps
func (n NodeID) DOTID() string {
	switch n.Kind {
	case KindSwitch:
		return fmt.Sprintf("s%d", n.Value)
	case KindInterface:
		return fmt.Sprintf("if_%012x", n.Value)
	case KindEndpoint:
		return fmt.Sprintf("clk_%016x", n.Value)
	}
	return fmt.Sprintf("n%d_%d", n.Kind, n.Value)
}

// Path is a simple path through the graph, from the first node to the last one
type Path []NodeID

// Index returns position of the node in the path, or -1
func (p Path) Index(n NodeID) int {
	for i, v := range p {
		if v == n {
			return i
		}
	}
	return -1
}

// Contains is true if the node is on the path
func (p Path) Contains(n NodeID) bool {
	return p.Index(n) >= 0
}

func (p Path) String() string {
	s := make([]string, 0, len(p))
	for _, n := range p {
		s = append(s, n.String())
	}
	return strings.Join(s, " -> ")
}
