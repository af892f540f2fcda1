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
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
	"github.com/facebook/ptpsec/sdn/redundancy"
	"github.com/facebook/ptpsec/sdn/topology"
)

var (
	pathsMasterFlag string
	pathsCountFlag  int
	pathsDOTFlag    bool
)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

func init() {
	RootCmd.AddCommand(pathsCmd)
	pathsCmd.Flags().StringVarP(&rootTopologyFlag, "topology", "t", "", rootTopologyFlagDesc)
	pathsCmd.Flags().StringVarP(&pathsMasterFlag, "master", "m", "", "MAC address the PTP master sends Sync from")
	pathsCmd.Flags().IntVarP(&pathsCountFlag, "paths", "n", 3, "Number of vertex-disjoint paths every slave needs")
	pathsCmd.Flags().BoolVar(&pathsDOTFlag, "dot", false, "Print the clock graph in DOT format instead")
	if err := pathsCmd.MarkFlagRequired("topology"); err != nil {
		log.Fatal(err)
	}
	if err := pathsCmd.MarkFlagRequired("master"); err != nil {
		log.Fatal(err)
	}
}

// slaveReport is the redundancy verdict for one slave
type slaveReport struct {
	Slave  ptp.ClockIdentity
	Main   topology.Path
	Result *redundancy.Result
	Err    error
}

func (r *slaveReport) status(n int) string {
	switch {
	case r.Err != nil || len(r.Result.Paths) == 0:
		return failString
	case !r.Result.Satisfied(n):
		return warnString
	}
	return okString
}

// computeReport computes paths from the master to every other clock of the topology
func computeReport(c *topology.FileConfig, masterMAC net.HardwareAddr, n int) (*topology.Graph, []*slaveReport, error) {
	network, err := c.Graph()
	if err != nil {
		return nil, nil, err
	}
	endpoints, err := c.Endpoints()
	if err != nil {
		return nil, nil, err
	}
	iface := topology.Interface(masterMAC)
	masterClock, ok := endpoints[iface]
	if !ok {
		return nil, nil, fmt.Errorf("master %s is not a host of the topology", masterMAC)
	}
	var masterSwitch topology.NodeID
	for _, s := range network.Successors(iface) {
		if s.IsSwitch() {
			masterSwitch = s
			break
		}
	}
	clocks := topology.Project(network, endpoints)
	master := topology.Endpoint(masterClock)

	slaves := map[ptp.ClockIdentity]bool{}
	for _, clock := range endpoints {
		if clock != masterClock {
			slaves[clock] = true
		}
	}
	reports := make([]*slaveReport, 0, len(slaves))
	for s := range slaves {
		r := &slaveReport{Slave: s}
		r.Result, r.Err = redundancy.Compute(clocks, master, topology.Endpoint(s), n)
		for _, p := range r.Result.Paths {
			if len(p) > 1 && p[1] == masterSwitch {
				r.Main = p
				break
			}
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Slave < reports[j].Slave
	})
	return clocks, reports, nil
}

func printReport(w io.Writer, reports []*slaveReport, n int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"status", "slave", "paths", "main path", "recommended links", "error"})
	for _, r := range reports {
		errStr := ""
		if r.Err != nil {
			errStr = r.Err.Error()
		}
		main := ""
		if r.Main != nil {
			main = r.Main.String()
		}
		links := []string{}
		for _, l := range r.Result.Recommendations {
			links = append(links, l.String())
		}
		table.Append([]string{
			r.status(n),
			r.Slave.String(),
			fmt.Sprintf("%d/%d", len(r.Result.Paths), n),
			main,
			strings.Join(links, "\n"),
			errStr,
		})
	}
	table.Render()
}

func pathsRun(w io.Writer, topologyPath string, master string, n int, dot bool) error {
	masterMAC, err := net.ParseMAC(master)
	if err != nil {
		return fmt.Errorf("parsing master address: %w", err)
	}
	c, err := topology.LoadFileConfig(topologyPath)
	if err != nil {
		return err
	}
	clocks, reports, err := computeReport(c, masterMAC, n)
	if err != nil {
		return err
	}
	if dot {
		b, err := clocks.MarshalDOT("clock")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	printReport(w, reports, n)
	return nil
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Report redundant paths between the master and every slave of a topology",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := pathsRun(os.Stdout, rootTopologyFlag, pathsMasterFlag, pathsCountFlag, pathsDOTFlag); err != nil {
			log.Fatal(err)
		}
	},
}
