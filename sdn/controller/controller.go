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
Package controller keeps PTP traffic of every slave on a path planned from the
current master. Periodically it projects the network onto the PTP clocks it has
seen, picks vertex-disjoint paths for every slave and then steers each PTP
frame that a switch hands over along the path of the clock it belongs to.
*/
package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
	"github.com/facebook/ptpsec/sdn/frame"
	"github.com/facebook/ptpsec/sdn/redundancy"
	"github.com/facebook/ptpsec/sdn/stats"
	"github.com/facebook/ptpsec/sdn/topology"
)

var (
	// ErrTopologyLookup is returned when a frame can't be mapped onto a path
	ErrTopologyLookup = errors.New("no usable path")
	// ErrUnknownHost is returned when a frame refers to a clock we've never seen
	ErrUnknownHost = errors.New("unknown host")
	// ErrPlanSkipped is returned by Plan when paths can't be computed yet
	ErrPlanSkipped = errors.New("planning skipped")
)

// Controller owns hosts, master and clock graph, and routes PTP frames
type Controller struct {
	cfg   *Config
	topo  TopologySource
	sw    SwitchControl
	stats stats.Stats

	hostsMu sync.RWMutex
	hosts   map[ptp.ClockIdentity]*Host

	master     atomic.Pointer[Master]
	clockGraph atomic.Pointer[topology.Graph]

	now func() time.Time
}

// New creates a Controller
func New(cfg *Config, topo TopologySource, sw SwitchControl, st stats.Stats) *Controller {
	return &Controller{
		cfg:   cfg,
		topo:  topo,
		sw:    sw,
		stats: st,
		hosts: map[ptp.ClockIdentity]*Host{},
		now:   time.Now,
	}
}

// Master returns the current master, nil if no Sync was seen yet
func (c *Controller) Master() *Master {
	return c.master.Load()
}

// ClockGraph returns the clock graph of the last planning cycle
func (c *Controller) ClockGraph() *topology.Graph {
	return c.clockGraph.Load()
}

// Host returns host by clock identity, nil if it's unknown
func (c *Controller) Host(id ptp.ClockIdentity) *Host {
	c.hostsMu.RLock()
	defer c.hostsMu.RUnlock()
	return c.hosts[id]
}

// Hosts returns all known hosts ordered by clock identity
func (c *Controller) Hosts() []*Host {
	c.hostsMu.RLock()
	res := make([]*Host, 0, len(c.hosts))
	for _, h := range c.hosts {
		res = append(res, h)
	}
	c.hostsMu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		return res[i].ClockIdentity < res[j].ClockIdentity
	})
	return res
}

func (c *Controller) learn(id ptp.ClockIdentity, mac net.HardwareAddr, port uint32) *Host {
	// observe under the table lock so evict never drops a host between lookup and observation
	c.hostsMu.RLock()
	h, ok := c.hosts[id]
	if ok {
		h.observe(mac, port, c.now())
	}
	c.hostsMu.RUnlock()
	if ok {
		return h
	}

	c.hostsMu.Lock()
	defer c.hostsMu.Unlock()
	if h, ok = c.hosts[id]; !ok {
		h = newHost(id)
		c.hosts[id] = h
		log.Infof("new PTP host %s on %s", id, mac)
	}
	h.observe(mac, port, c.now())
	return h
}

func (c *Controller) evict() {
	if c.cfg.HostTTL == 0 {
		return
	}
	deadline := c.now().Add(-c.cfg.HostTTL)
	master := c.master.Load()

	c.hostsMu.Lock()
	defer c.hostsMu.Unlock()
	for id, h := range c.hosts {
		if master != nil && master.ClockIdentity == id {
			continue
		}
		if last := h.LastSeen(); last.Before(deadline) {
			log.Infof("evicting host %s, last seen %v", id, last)
			delete(c.hosts, id)
			c.stats.IncEvicted()
		}
	}
}

// Run plans paths every PlanInterval until ctx is cancelled
func (c *Controller) Run(ctx context.Context) error {
	timer := time.NewTimer(c.cfg.PlanInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug("cancelled planning loop")
			return ctx.Err()
		case <-timer.C:
			timer.Reset(c.cfg.PlanInterval)
			if err := c.Plan(); err != nil {
				log.Warning(err)
			}
			c.stats.Snapshot()
			c.stats.Reset()
		}
	}
}

// Plan rebuilds the clock graph and assigns paths to every slave
func (c *Controller) Plan() error {
	c.stats.IncPlan()
	c.evict()

	network := c.topo.Topology()
	if network == nil {
		network = topology.NewGraph()
	}
	hosts := c.Hosts()
	c.stats.SetHosts(int64(len(hosts)))
	endpoints := map[topology.NodeID]ptp.ClockIdentity{}
	for _, h := range hosts {
		for _, i := range h.Interfaces() {
			endpoints[topology.Interface(i.MAC)] = h.ClockIdentity
		}
	}
	clockGraph := topology.Project(network, endpoints)
	c.clockGraph.Store(clockGraph)
	if log.IsLevelEnabled(log.DebugLevel) {
		dot, err := clockGraph.MarshalDOT("clock")
		if err != nil {
			log.Errorf("failed to marshal clock graph: %v", err)
		} else {
			log.Debugf("current clock graph:\n%s", dot)
		}
	}

	m := c.master.Load()
	if m == nil {
		c.stats.IncPlanSkipped()
		return fmt.Errorf("%w: no known PTP master", ErrPlanSkipped)
	}
	master := topology.Endpoint(m.ClockIdentity)
	if !clockGraph.HasNode(master) {
		c.stats.IncPlanSkipped()
		return fmt.Errorf("%w: master %s is not in the clock graph", ErrPlanSkipped, m.ClockIdentity)
	}
	iface := topology.Interface(m.MAC)
	if !network.HasNode(iface) {
		c.stats.IncPlanSkipped()
		return fmt.Errorf("%w: master interface %s is not in the topology", ErrPlanSkipped, m.MAC)
	}
	// the switch the master sends Sync to, main paths go through it
	var masterSwitch topology.NodeID
	for _, n := range network.Successors(iface) {
		if n.IsSwitch() {
			masterSwitch = n
			break
		}
	}

	var unsatisfied, recommendations atomic.Int64
	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for _, h := range hosts {
		if h.ClockIdentity == m.ClockIdentity {
			continue
		}
		eg.Go(func() error {
			res := c.planHost(clockGraph, master, masterSwitch, h)
			if !res.Satisfied(c.cfg.RedundantPaths) {
				unsatisfied.Add(1)
			}
			recommendations.Add(int64(len(res.Recommendations)))
			return nil
		})
	}
	// per host failures are handled in planHost
	_ = eg.Wait()
	c.stats.SetUnsatisfied(unsatisfied.Load())
	c.stats.SetRecommendations(recommendations.Load())
	return nil
}

func (c *Controller) planHost(g *topology.Graph, master, masterSwitch topology.NodeID, h *Host) *redundancy.Result {
	n := c.cfg.RedundantPaths
	slave := topology.Endpoint(h.ClockIdentity)
	res, err := redundancy.Compute(g, master, slave, n)
	if err != nil {
		log.Warningf("computing paths from %s to %s: %v", master, slave, err)
		c.stats.IncPathError()
		h.assignment.Store(&Assignment{UpdatedAt: c.now()})
		return res
	}
	if len(res.Paths) == 0 {
		log.Warningf("no path between master %s and slave %s", master, slave)
		c.stats.IncPathError()
		h.assignment.Store(&Assignment{UpdatedAt: c.now()})
		return res
	}
	log.Debugf("paths from %s to %s: %v, recommendations: %v", master, slave, res.Paths, res.Recommendations)
	if !res.Satisfied(n) {
		log.Warningf("unable to fulfill path requirements between master %s and slave %s (%d of %d paths), recommended links to add: %v",
			master, slave, len(res.Paths), n, res.Recommendations)
	}
	a := selectPaths(res.Paths, masterSwitch, n)
	if a.Main == nil {
		log.Warningf("no path from %s to %s starts at master switch %s", master, slave, masterSwitch)
	}
	a.Recommendations = res.Recommendations
	a.UpdatedAt = c.now()
	h.assignment.Store(a)
	return res
}

// selectPaths makes the path through masterSwitch the main one and keeps up to n-1 others for measurement
func selectPaths(paths []topology.Path, masterSwitch topology.NodeID, n int) *Assignment {
	a := &Assignment{}
	main := -1
	for i, p := range paths {
		if len(p) > 1 && p[1] == masterSwitch {
			main = i
			a.Main = p
			break
		}
	}
	for i, p := range paths {
		if i == main {
			continue
		}
		if len(a.Measurement) == n-1 {
			break
		}
		a.Measurement = append(a.Measurement, p)
	}
	return a
}

// HandlePacketIn routes a frame a switch sent to the controller.
// It returns false if the frame is not PTP traffic the controller routes.
func (c *Controller) HandlePacketIn(in PacketIn) bool {
	f, err := frame.Decode(in.Data)
	if err != nil {
		if !errors.Is(err, frame.ErrNotPTP) {
			log.Debugf("failed to decode frame from switch %d port %d: %v", in.DPID, in.InPort, err)
			c.stats.IncDecodeError()
		}
		return false
	}
	t := f.Packet.MessageType()
	src := f.Packet.PTPHeader().SourceClockIdentity()
	c.stats.IncRX(t)
	log.Debugf("%s from %s at switch %d port %d", t, src, in.DPID, in.InPort)

	// decoded MAC points into the frame buffer, which the caller may reuse
	srcMAC := append(net.HardwareAddr(nil), f.Src...)
	sender := c.learn(src, srcMAC, in.InPort)
	if t == ptp.MessageSync {
		if m := c.master.Load(); m == nil || m.ClockIdentity != src {
			log.Infof("PTP master is now %s (%s)", src, srcMAC)
		}
		c.master.Store(&Master{ClockIdentity: src, MAC: srcMAC})
	}

	switch t {
	case ptp.MessageSync, ptp.MessageFollowUp, ptp.MessageDelayReq, ptp.MessageDelayResp, ptp.MessageMeasurement:
	default:
		return false
	}

	ports, match, err := c.route(in, f.Packet, sender)
	if err != nil {
		if errors.Is(err, ErrUnknownHost) {
			log.Debugf("dropping %s at switch %d: %v", t, in.DPID, err)
			c.stats.IncUnknownHost(t)
		} else {
			log.Warningf("dropping %s at switch %d port %d: %v", t, in.DPID, in.InPort, err)
			c.stats.IncDropped(t)
		}
		return true
	}
	c.emit(in, t, ports, match)
	return true
}

// route finds egress ports for the frame and, unless the frame is fanned out, a match for the flow
func (c *Controller) route(in PacketIn, p ptp.Packet, sender *Host) ([]uint32, *Match, error) {
	g := c.clockGraph.Load()
	if g == nil {
		return nil, nil, fmt.Errorf("%w: no clock graph yet", ErrTopologyLookup)
	}
	sw := topology.Switch(in.DPID)
	src := p.PTPHeader().SourceClockIdentity()

	switch pkt := p.(type) {
	case *ptp.SyncDelayReq:
		if pkt.MessageType() == ptp.MessageSync {
			return c.fanOut(g, sw, in.InPort, ptp.MessageSync)
		}
		port, err := nextHop(g, sw, sender.Assignment(), false)
		if err != nil {
			return nil, nil, fmt.Errorf("delay request of %s: %w", src, err)
		}
		m := newMatch(in.InPort, ptp.MessageDelayReq)
		m.SourceClockIdentity = &src
		return []uint32{port}, m, nil
	case *ptp.FollowUp:
		return c.fanOut(g, sw, in.InPort, ptp.MessageFollowUp)
	case *ptp.DelayResp:
		requesting := pkt.RequestingPortIdentity.ClockIdentity
		h := c.Host(requesting)
		if h == nil {
			return nil, nil, fmt.Errorf("requesting clock %s: %w", requesting, ErrUnknownHost)
		}
		port, err := nextHop(g, sw, h.Assignment(), true)
		if err != nil {
			return nil, nil, fmt.Errorf("delay response to %s: %w", requesting, err)
		}
		m := newMatch(in.InPort, ptp.MessageDelayResp)
		m.RequestingClockIdentity = &requesting
		return []uint32{port}, m, nil
	case *ptp.Measurement:
		return c.routeMeasurement(g, sw, in.InPort, pkt, sender)
	}
	return nil, nil, fmt.Errorf("%w: can't route %s", ErrTopologyLookup, p.MessageType())
}

// fanOut sends Sync and Follow_Up along the main path of every slave
func (c *Controller) fanOut(g *topology.Graph, sw topology.NodeID, inPort uint32, t ptp.MessageType) ([]uint32, *Match, error) {
	master := c.master.Load()
	seen := map[uint32]bool{}
	ports := []uint32{}
	for _, h := range c.Hosts() {
		if master != nil && h.ClockIdentity == master.ClockIdentity {
			continue
		}
		a := h.Assignment()
		if a == nil || a.Main == nil || !a.Main.Contains(sw) {
			continue
		}
		port, err := nextHop(g, sw, a, true)
		if err != nil {
			log.Debugf("skipping %s for %s: %v", t, h.ClockIdentity, err)
			continue
		}
		if !seen[port] {
			seen[port] = true
			ports = append(ports, port)
		}
	}
	if len(ports) == 0 {
		return nil, nil, fmt.Errorf("%w: no main path goes through %s", ErrTopologyLookup, sw)
	}
	// a flow would also match frames meant for slaves whose paths differ
	if len(ports) > 1 {
		return ports, nil, nil
	}
	return ports, newMatch(inPort, t), nil
}

func (c *Controller) routeMeasurement(g *topology.Graph, sw topology.NodeID, inPort uint32, pkt *ptp.Measurement, sender *Host) ([]uint32, *Match, error) {
	src := pkt.SourceClockIdentity()
	mt := pkt.MeasurementType
	target := pkt.TargetClockIdentity
	m := newMatch(inPort, ptp.MessageMeasurement)
	m.SourceClockIdentity = &src
	m.MeasurementType = &mt

	owner := sender
	fromMaster := true
	switch mt {
	case ptp.MeasurementMeasurement, ptp.MeasurementFollowUp:
		if master := c.master.Load(); master == nil || master.ClockIdentity != src {
			fromMaster = false
			break
		}
		fallthrough
	case ptp.MeasurementTransport:
		owner = c.Host(target)
		if owner == nil {
			return nil, nil, fmt.Errorf("measurement target %s: %w", target, ErrUnknownHost)
		}
		m.TargetClockIdentity = &target
	default:
		return nil, nil, fmt.Errorf("%w: unsupported measurement type %s", ErrTopologyLookup, mt)
	}

	a := owner.Assignment()
	path := a.MeasurementPathWith(sw)
	if path == nil {
		return nil, nil, fmt.Errorf("%w: no measurement path of %s goes through %s", ErrTopologyLookup, owner.ClockIdentity, sw)
	}
	port, err := resolve(g, sw, path, fromMaster)
	if err != nil {
		return nil, nil, fmt.Errorf("%s measurement of %s: %w", mt, owner.ClockIdentity, err)
	}
	return []uint32{port}, m, nil
}

// nextHop resolves the egress port on the main path of a
func nextHop(g *topology.Graph, sw topology.NodeID, a *Assignment, fromMaster bool) (uint32, error) {
	if a == nil || a.Main == nil {
		return 0, fmt.Errorf("%w: no main path assigned", ErrTopologyLookup)
	}
	return resolve(g, sw, a.Main, fromMaster)
}

// resolve returns the port sw uses toward its neighbour on p, downstream if fromMaster and upstream otherwise
func resolve(g *topology.Graph, sw topology.NodeID, p topology.Path, fromMaster bool) (uint32, error) {
	idx := p.Index(sw)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s is not on path %s", ErrTopologyLookup, sw, p)
	}
	next := idx + 1
	if !fromMaster {
		next = idx - 1
	}
	if next < 0 || next >= len(p) {
		return 0, fmt.Errorf("%w: path %s ends at %s", ErrTopologyLookup, p, sw)
	}
	l, ok := g.Link(sw, p[next])
	if !ok {
		return 0, fmt.Errorf("%w: no link %s -> %s", ErrTopologyLookup, sw, p[next])
	}
	port, ok := l.Port(sw)
	if !ok {
		return 0, fmt.Errorf("%w: link %s has no port on %s", ErrTopologyLookup, l, sw)
	}
	return port, nil
}

func (c *Controller) emit(in PacketIn, t ptp.MessageType, ports []uint32, match *Match) {
	if err := c.sw.PacketOut(in.DPID, in.InPort, ports, in.Data); err != nil {
		log.Errorf("failed to send %s out of switch %d ports %v: %v", t, in.DPID, ports, err)
		c.stats.IncDirectiveError()
	} else {
		c.stats.IncPacketOut()
	}
	c.stats.IncRouted(t)
	if match == nil {
		return
	}
	flow := &FlowMod{
		Priority: c.cfg.FlowPriority,
		Cookie:   c.cfg.FlowCookie,
		Match:    *match,
		OutPorts: ports,
	}
	if err := c.sw.InstallFlow(in.DPID, flow); err != nil {
		log.Errorf("failed to install flow %s on switch %d: %v", flow, in.DPID, err)
		c.stats.IncDirectiveError()
		return
	}
	log.Debugf("installed flow %s on switch %d", flow, in.DPID)
	c.stats.IncFlowMod()
}
