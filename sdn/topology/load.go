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
	"os"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
)

// DefaultDelay is used for links with no delay configured
const DefaultDelay = 1.0

// SwitchLinkConfig describes a cable between two switch ports
type SwitchLinkConfig struct {
	From     uint64   `yaml:"from"`
	FromPort uint32   `yaml:"from_port"`
	To       uint64   `yaml:"to"`
	ToPort   uint32   `yaml:"to_port"`
	Delay    *float64 `yaml:"delay"`
}

// HostConfig describes a host interface plugged into a switch port.
// Interfaces sharing a clock are grouped by Clock, which defaults to the identity derived from MAC.
type HostConfig struct {
	MAC    string `yaml:"mac"`
	Switch uint64 `yaml:"switch"`
	Port   uint32 `yaml:"port"`
	Clock  uint64 `yaml:"clock"`
}

// FileConfig is the topology file layout
type FileConfig struct {
	Switches []uint64           `yaml:"switches"`
	Links    []SwitchLinkConfig `yaml:"links"`
	Hosts    []HostConfig       `yaml:"hosts"`
}

// Graph builds the network graph described by the file.
// Cables become links in both directions, hosts are attached with delay 1 both ways.
func (c *FileConfig) Graph() (*Graph, error) {
	g := NewGraph()
	for _, s := range c.Switches {
		g.AddNode(Switch(s))
	}
	for _, l := range c.Links {
		delay := DefaultDelay
		if l.Delay != nil {
			delay = *l.Delay
		}
		a, b := Switch(l.From), Switch(l.To)
		ports := map[NodeID]uint32{a: l.FromPort, b: l.ToPort}
		if err := g.AddLink(Link{From: a, To: b, Delay: delay, Ports: ports}); err != nil {
			return nil, err
		}
		if err := g.AddLink(Link{From: b, To: a, Delay: delay, Ports: ports}); err != nil {
			return nil, err
		}
	}
	for _, h := range c.Hosts {
		mac, err := net.ParseMAC(h.MAC)
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", h.MAC, err)
		}
		if len(mac) != 6 {
			return nil, fmt.Errorf("host %q: only EUI-48 addresses are supported", h.MAC)
		}
		sw, iface := Switch(h.Switch), Interface(mac)
		ports := map[NodeID]uint32{sw: h.Port}
		if err := g.AddLink(Link{From: sw, To: iface, Delay: DefaultDelay, Ports: ports}); err != nil {
			return nil, err
		}
		if err := g.AddLink(Link{From: iface, To: sw, Delay: DefaultDelay, Ports: ports}); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Endpoints maps every host interface to the clock it belongs to
func (c *FileConfig) Endpoints() (map[NodeID]ptp.ClockIdentity, error) {
	res := map[NodeID]ptp.ClockIdentity{}
	for _, h := range c.Hosts {
		mac, err := net.ParseMAC(h.MAC)
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", h.MAC, err)
		}
		clock := ptp.ClockIdentity(h.Clock)
		if clock == 0 {
			if clock, err = ptp.NewClockIdentity(mac); err != nil {
				return nil, fmt.Errorf("host %q: %w", h.MAC, err)
			}
		}
		res[Interface(mac)] = clock
	}
	return res, nil
}

// ParseConfig reads topology file layout from YAML
func ParseConfig(data []byte) (*FileConfig, error) {
	c := &FileConfig{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse reads topology from YAML
func Parse(data []byte) (*Graph, error) {
	c, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return c.Graph()
}

// LoadFileConfig reads topology file layout from YAML file
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology %q: %w", path, err)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing topology %q: %w", path, err)
	}
	return c, nil
}

// LoadFile reads topology from YAML file
func LoadFile(path string) (*Graph, error) {
	c, err := LoadFileConfig(path)
	if err != nil {
		return nil, err
	}
	g, err := c.Graph()
	if err != nil {
		return nil, fmt.Errorf("building topology %q: %w", path, err)
	}
	log.Debugf("loaded topology from %s: %d nodes", path, g.NodeCount())
	return g, nil
}

// StaticSource always serves the same topology graph
type StaticSource struct {
	g *Graph
}

// NewStaticSource wraps a ready graph
func NewStaticSource(g *Graph) *StaticSource {
	return &StaticSource{g: g}
}

// Topology returns the graph
func (s *StaticSource) Topology() *Graph {
	return s.g
}
