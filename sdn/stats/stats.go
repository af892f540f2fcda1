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
Package stats implements statistics collection and reporting.
It is used by the controller to report internal statistics, such as number of
PTP frames seen and forwarding directives sent.
*/
package stats

import (
	"fmt"
	"strings"
	"sync"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
)

// Stats is a metric collection interface
type Stats interface {
	// Start starts a stat reporter
	// Use this for passive reporters
	Start(monitoringport int)

	// Snapshot the values so they can be reported atomically
	Snapshot()

	// Reset atomically sets all the counters to 0
	Reset()

	// IncRX atomically add 1 to the counter of received PTP frames
	IncRX(t ptp.MessageType)

	// IncRouted atomically add 1 to the counter of forwarded PTP frames
	IncRouted(t ptp.MessageType)

	// IncDropped atomically add 1 to the counter of frames with no usable path
	IncDropped(t ptp.MessageType)

	// IncUnknownHost atomically add 1 to the counter of frames referring to unknown hosts
	IncUnknownHost(t ptp.MessageType)

	// IncDecodeError atomically add 1 to the counter
	IncDecodeError()

	// IncPacketOut atomically add 1 to the counter
	IncPacketOut()

	// IncFlowMod atomically add 1 to the counter
	IncFlowMod()

	// IncDirectiveError atomically add 1 to the counter
	IncDirectiveError()

	// IncPlan atomically add 1 to the counter
	IncPlan()

	// IncPlanSkipped atomically add 1 to the counter
	IncPlanSkipped()

	// IncPathError atomically add 1 to the counter
	IncPathError()

	// IncEvicted atomically add 1 to the counter
	IncEvicted()

	// SetHosts atomically sets number of known hosts
	SetHosts(hosts int64)

	// SetUnsatisfied atomically sets number of hosts with fewer paths than required
	SetUnsatisfied(hosts int64)

	// SetRecommendations atomically sets number of recommended links
	SetRecommendations(links int64)
}

// syncMapInt64 sync map of PTP messages
type syncMapInt64 struct {
	sync.Mutex
	m map[int]int64
}

// init initializes the underlying map
func (s *syncMapInt64) init() {
	s.m = make(map[int]int64)
}

// keys returns slice of keys of the underlying map
func (s *syncMapInt64) keys() []int {
	s.Lock()
	defer s.Unlock()
	keys := make([]int, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	return keys
}

// load gets the value by the key
func (s *syncMapInt64) load(key int) int64 {
	s.Lock()
	defer s.Unlock()
	return s.m[key]
}

// inc increments the counter for the given key
func (s *syncMapInt64) inc(key int) {
	s.Lock()
	s.m[key]++
	s.Unlock()
}

// store saves the value with the key
func (s *syncMapInt64) store(key int, value int64) {
	s.Lock()
	s.m[key] = value
	s.Unlock()
}

// copy all key-values between maps
func (s *syncMapInt64) copy(dst *syncMapInt64) {
	for _, t := range s.keys() {
		dst.store(t, s.load(t))
	}
}

// reset stats to 0
func (s *syncMapInt64) reset() {
	s.Lock()
	for t := range s.m {
		s.m[t] = 0
	}
	s.Unlock()
}

// export adds every value to res under prefix.<message type>
func (s *syncMapInt64) export(res map[string]int64, prefix string) {
	for _, t := range s.keys() {
		mt := strings.ToLower(ptp.MessageType(t).String())
		res[fmt.Sprintf("%s.%s", prefix, mt)] = s.load(t)
	}
}

type counters struct {
	rx              syncMapInt64
	routed          syncMapInt64
	dropped         syncMapInt64
	unknownHost     syncMapInt64
	decodeErrors    int64
	packetOut       int64
	flowMod         int64
	directiveErrors int64
	plans           int64
	planSkipped     int64
	pathErrors      int64
	evicted         int64
	hosts           int64
	unsatisfied     int64
	recommendations int64
}

func (c *counters) init() {
	c.rx.init()
	c.routed.init()
	c.dropped.init()
	c.unknownHost.init()
}

func (c *counters) reset() {
	c.rx.reset()
	c.routed.reset()
	c.dropped.reset()
	c.unknownHost.reset()
	c.decodeErrors = 0
	c.packetOut = 0
	c.flowMod = 0
	c.directiveErrors = 0
	c.plans = 0
	c.planSkipped = 0
	c.pathErrors = 0
	c.evicted = 0
	c.hosts = 0
	c.unsatisfied = 0
	c.recommendations = 0
}

// toMap converts counters to a map
func (c *counters) toMap() (export map[string]int64) {
	res := make(map[string]int64)

	c.rx.export(res, "rx")
	c.routed.export(res, "routed")
	c.dropped.export(res, "dropped")
	c.unknownHost.export(res, "unknown_host")

	res["decode_errors"] = c.decodeErrors
	res["directives.packet_out"] = c.packetOut
	res["directives.flow_mod"] = c.flowMod
	res["directives.errors"] = c.directiveErrors
	res["plan.runs"] = c.plans
	res["plan.skipped"] = c.planSkipped
	res["plan.path_errors"] = c.pathErrors
	res["hosts"] = c.hosts
	res["hosts.evicted"] = c.evicted
	res["hosts.unsatisfied"] = c.unsatisfied
	res["recommendations"] = c.recommendations

	return res
}
