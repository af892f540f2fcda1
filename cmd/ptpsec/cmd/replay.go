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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/ptpsec/sdn/controller"
	"github.com/facebook/ptpsec/sdn/stats"
	"github.com/facebook/ptpsec/sdn/topology"
)

var (
	replayConfigFlag         string
	replayPathsFlag          int
	replayIntervalFlag       time.Duration
	replayHostTTLFlag        time.Duration
	replayMonitoringPortFlag int
	replayServeFlag          bool
)

func init() {
	RootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&rootTopologyFlag, "topology", "t", "", rootTopologyFlagDesc)
	replayCmd.Flags().StringVarP(&replayConfigFlag, "config", "c", "", "Path to a config with controller settings")
	replayCmd.Flags().IntVarP(&replayPathsFlag, "paths", "n", 3, "Number of vertex-disjoint paths every slave needs")
	replayCmd.Flags().DurationVar(&replayIntervalFlag, "interval", 5*time.Second, "Interval between path planning runs in serve mode")
	replayCmd.Flags().DurationVar(&replayHostTTLFlag, "hostttl", 0, "Forget hosts silent for this long, 0 never does")
	replayCmd.Flags().IntVar(&replayMonitoringPortFlag, "monitoringport", 4270, "Port to serve stats on in serve mode")
	replayCmd.Flags().BoolVar(&replayServeFlag, "serve", false, "Keep planning and serving stats after the replay until interrupted")
	if err := replayCmd.MarkFlagRequired("topology"); err != nil {
		log.Fatal(err)
	}
}

// fabric plays the switches of the topology, every frame sent out of a switch port arrives at its peer
type fabric struct {
	network *topology.Graph
	w       io.Writer
	out     []uint32
	flows   int
}

func (f *fabric) PacketOut(dpid uint64, inPort uint32, outPorts []uint32, _ []byte) error {
	fmt.Fprintf(f.w, "  s%d: packet_out in_port=%d out_ports=%v\n", dpid, inPort, outPorts)
	f.out = append(f.out, outPorts...)
	return nil
}

func (f *fabric) InstallFlow(dpid uint64, flow *controller.FlowMod) error {
	fmt.Fprintf(f.w, "  s%d: flow_mod %s\n", dpid, flow)
	f.flows++
	return nil
}

// ingress finds the switch port the interface is plugged into
func (f *fabric) ingress(mac net.HardwareAddr) (uint64, uint32, bool) {
	iface := topology.Interface(mac)
	for _, n := range f.network.Successors(iface) {
		if !n.IsSwitch() {
			continue
		}
		l, _ := f.network.Link(iface, n)
		if port, ok := l.Port(n); ok {
			return n.DPID(), port, true
		}
	}
	return 0, 0, false
}

// peer returns the node on the other end of the switch port, and its own port if it's a switch
func (f *fabric) peer(sw topology.NodeID, port uint32) (topology.NodeID, uint32, bool) {
	for _, n := range f.network.Successors(sw) {
		l, _ := f.network.Link(sw, n)
		if p, ok := l.Port(sw); ok && p == port {
			inPort, _ := l.Port(n)
			return n, inPort, true
		}
	}
	return topology.NodeID{}, 0, false
}

// forward hands the frame to the controller at every switch it reaches
func (f *fabric) forward(c *controller.Controller, dpid uint64, inPort uint32, data []byte) {
	type hop struct {
		dpid   uint64
		inPort uint32
	}
	visited := map[hop]bool{}
	queue := []hop{{dpid: dpid, inPort: inPort}}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if visited[h] {
			continue
		}
		visited[h] = true

		f.out = nil
		if !c.HandlePacketIn(controller.PacketIn{DPID: h.dpid, InPort: h.inPort, Data: data}) {
			fmt.Fprintf(f.w, "  s%d: not handled\n", h.dpid)
			continue
		}
		for _, port := range f.out {
			n, in, ok := f.peer(topology.Switch(h.dpid), port)
			if !ok {
				log.Warningf("nothing is plugged into port %d of s%d", port, h.dpid)
				continue
			}
			if n.IsSwitch() {
				queue = append(queue, hop{dpid: n.DPID(), inPort: in})
				continue
			}
			fmt.Fprintf(f.w, "  delivered to %s\n", n)
		}
	}
}

func printAssignments(w io.Writer, c *controller.Controller) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"clock", "main path", "measurement paths", "recommended links"})
	for _, h := range c.Hosts() {
		a := h.Assignment()
		if a == nil {
			continue
		}
		main := ""
		if a.Main != nil {
			main = a.Main.String()
		}
		measurement := []string{}
		for _, p := range a.Measurement {
			measurement = append(measurement, p.String())
		}
		links := []string{}
		for _, l := range a.Recommendations {
			links = append(links, l.String())
		}
		table.Append([]string{
			h.ClockIdentity.String(),
			main,
			strings.Join(measurement, "\n"),
			strings.Join(links, "\n"),
		})
	}
	table.Render()
}

func printCounters(w io.Writer, counters map[string]int64) {
	keys := make([]string, 0, len(counters))
	for k, v := range counters {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"counter", "value"})
	for _, k := range keys {
		table.Append([]string{k, fmt.Sprintf("%d", counters[k])})
	}
	table.Render()
}

// replayRun learns hosts from the capture, plans paths once and then routes every captured frame through the topology
func replayRun(w io.Writer, topologyPath, input string, cfg *controller.Config, st stats.Stats) (*controller.Controller, error) {
	network, err := topology.LoadFile(topologyPath)
	if err != nil {
		return nil, err
	}
	frames, err := readCapture(input)
	if err != nil {
		return nil, err
	}
	fab := &fabric{network: network, w: w}
	c := controller.New(cfg, topology.NewStaticSource(network), fab, st)

	// nothing is routed before the first plan, this only fills the host table
	for _, cf := range frames {
		dpid, port, ok := fab.ingress(cf.Frame.Src)
		if !ok {
			log.Warningf("%s is not attached to any switch", cf.Frame.Src)
			continue
		}
		c.HandlePacketIn(controller.PacketIn{DPID: dpid, InPort: port, Data: cf.Data})
	}
	if err := c.Plan(); err != nil {
		return c, fmt.Errorf("planning: %w", err)
	}
	printAssignments(w, c)

	for _, cf := range frames {
		dpid, port, ok := fab.ingress(cf.Frame.Src)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s %s from %s\n", cf.Timestamp.UTC().Format(time.RFC3339Nano), cf.Frame.Packet.MessageType(), cf.Frame.Src)
		fab.forward(c, dpid, port, cf.Data)
	}
	st.Snapshot()
	return c, nil
}

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Route PTP frames of a capture through a topology and print controller directives",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		setFlags := map[string]bool{}
		for _, name := range []string{"paths", "interval", "hostttl", "monitoringport"} {
			setFlags[name] = c.Flags().Changed(name)
		}
		cfg, err := controller.PrepareConfig(replayConfigFlag, replayPathsFlag, replayIntervalFlag, replayHostTTLFlag, replayMonitoringPortFlag, setFlags)
		if err != nil {
			log.Fatal(err)
		}

		st := stats.NewJSONStats()
		ctrl, err := replayRun(os.Stdout, rootTopologyFlag, args[0], cfg, st)
		if err != nil {
			log.Fatal(err)
		}
		printCounters(os.Stdout, st.Report())
		if !replayServeFlag {
			return
		}

		go st.Start(cfg.MonitoringPort)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	},
}
