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
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
)

var (
	decodeDumpFlag  bool
	decodeTypesFlag []string
)

func init() {
	RootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVarP(&decodeDumpFlag, "dump", "d", false, "dump every decoded message")
	decodeCmd.Flags().StringSliceVarP(&decodeTypesFlag, "type", "T", nil, "only show these message types, e.g. sync,delay_req. All by default")
}

// parseMessageTypes turns message type names into a filter. Empty list matches everything.
func parseMessageTypes(names []string) (map[ptp.MessageType]bool, error) {
	filter := map[ptp.MessageType]bool{}
	if len(names) == 0 {
		for v := range ptp.MessageTypeToString {
			filter[v] = true
		}
		return filter, nil
	}
	for _, name := range names {
		found := false
		for v, s := range ptp.MessageTypeToString {
			if s == strings.ToUpper(name) {
				filter[v] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unsupported msg type %q", name)
		}
	}
	return filter, nil
}

// describe returns one line summary of the message
func describe(p ptp.Packet) string {
	h := p.PTPHeader()
	s := fmt.Sprintf("%s seq=%d src=%s", p.MessageType(), h.SequenceID, h.SourcePortIdentity)
	switch m := p.(type) {
	case *ptp.DelayResp:
		s += fmt.Sprintf(" requesting=%s", m.RequestingPortIdentity)
	case *ptp.Measurement:
		s += fmt.Sprintf(" type=%s target=%s target_mac=%s", m.MeasurementType, m.TargetClockIdentity, m.TargetClockIdentity.MAC())
	case *ptp.Announce:
		s += fmt.Sprintf(" gm=%s", m.GrandmasterIdentity)
	}
	if h.CorrectionField != 0 {
		s += fmt.Sprintf(" corr=%s", h.CorrectionField)
	}
	return s + fmt.Sprintf(" interval=%s", h.LogMessageInterval.Duration())
}

func decodeRun(w io.Writer, input string, types []string, dump bool) error {
	filter, err := parseMessageTypes(types)
	if err != nil {
		return err
	}
	frames, err := readCapture(input)
	if err != nil {
		return err
	}
	for _, cf := range frames {
		p := cf.Frame.Packet
		if !filter[p.MessageType()] {
			continue
		}
		fmt.Fprintf(w, "%s %s -> %s %s\n", cf.Timestamp.UTC().Format(time.RFC3339Nano), cf.Frame.Src, cf.Frame.Dst, describe(p))
		if dump {
			spew.Fdump(w, p)
		}
	}
	return nil
}

var decodeCmd = &cobra.Command{
	Use:   "decode <capture>",
	Short: "Print PTP over Ethernet messages from pcap or pcapng file",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := decodeRun(os.Stdout, args[0], decodeTypesFlag, decodeDumpFlag); err != nil {
			log.Fatal(err)
		}
	},
}
