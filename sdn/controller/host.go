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

package controller

import (
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
	"github.com/facebook/ptpsec/sdn/redundancy"
	"github.com/facebook/ptpsec/sdn/topology"
)

// Assignment is the set of paths a host is synchronized over.
// Published as a whole and never modified afterwards.
type Assignment struct {
	// Main carries Sync, Follow_Up and the delay request-response exchange. Nil if none of the paths starts at the master switch.
	Main topology.Path
	// Measurement paths are used to cross-check Main
	Measurement     []topology.Path
	Recommendations []redundancy.Link
	UpdatedAt       time.Time
}

// MeasurementPathWith returns the first measurement path going through n
func (a *Assignment) MeasurementPathWith(n topology.NodeID) topology.Path {
	if a == nil {
		return nil
	}
	for _, p := range a.Measurement {
		if p.Contains(n) {
			return p
		}
	}
	return nil
}

// Interface is a network interface a host was seen on
type Interface struct {
	MAC  net.HardwareAddr
	Port uint32
}

// Host is a PTP clock seen by the controller
type Host struct {
	ClockIdentity ptp.ClockIdentity

	mu         sync.Mutex
	interfaces map[string]Interface
	lastSeen   time.Time

	assignment atomic.Pointer[Assignment]
}

func newHost(c ptp.ClockIdentity) *Host {
	return &Host{
		ClockIdentity: c,
		interfaces:    map[string]Interface{},
	}
}

// observe records a frame sent by the host
func (h *Host) observe(mac net.HardwareAddr, port uint32, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interfaces[mac.String()] = Interface{MAC: mac, Port: port}
	h.lastSeen = now
}

// Interfaces returns known interfaces sorted by MAC
func (h *Host) Interfaces() []Interface {
	h.mu.Lock()
	res := make([]Interface, 0, len(h.interfaces))
	for _, i := range h.interfaces {
		res = append(res, i)
	}
	h.mu.Unlock()
	sort.Slice(res, func(i, j int) bool {
		return res[i].MAC.String() < res[j].MAC.String()
	})
	return res
}

// LastSeen returns when the host sent its last frame
func (h *Host) LastSeen() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeen
}

// Assignment returns the current path assignment, nil if the host wasn't planned yet
func (h *Host) Assignment() *Assignment {
	return h.assignment.Load()
}

// Master is the clock last seen sending Sync
type Master struct {
	ClockIdentity ptp.ClockIdentity
	MAC           net.HardwareAddr
}
